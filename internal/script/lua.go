// lua.go - optional Lua scripting hook for the CLI driver
//
// The reference codebase embeds github.com/yuin/gopher-lua for
// coprocessor/debug scripting but does not expose that embedding as a
// directly reusable building block; this package mirrors its embedding
// pattern (a long-lived *lua.LState, Go functions registered as globals,
// host state returned to Lua as plain numbers) and repurposes it to drive
// conditional breakpoints and register inspection instead of
// coprocessor dispatch.
package script

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/intuitionamiga/rv32core/internal/device"
)

// Hook wraps a Lua state bound to one device, loaded from a script file.
// Call Invoke once every N steps (or on whatever cadence the caller
// chooses); the script requests a stop by returning true from its
// global "on_step" function.
type Hook struct {
	state *lua.LState
	dev   *device.Device
}

// Load parses and runs the top level of the script at path, binding it
// to dev for the lifetime of the returned Hook.
func Load(path string, dev *device.Device) (*Hook, error) {
	l := lua.NewState()
	h := &Hook{state: l, dev: dev}

	l.SetGlobal("reg", l.NewFunction(h.luaReg))
	l.SetGlobal("pc", l.NewFunction(h.luaPC))
	l.SetGlobal("cycles", l.NewFunction(h.luaCycles))

	if err := l.DoFile(path); err != nil {
		l.Close()
		return nil, fmt.Errorf("script: %w", err)
	}
	return h, nil
}

// Close releases the Lua state.
func (h *Hook) Close() {
	h.state.Close()
}

// Invoke calls the script's global "on_step" function, if defined, and
// reports whether it requested the run be stopped (by returning true).
func (h *Hook) Invoke() (stop bool, err error) {
	fn := h.state.GetGlobal("on_step")
	if fn == lua.LNil {
		return false, nil
	}
	if err := h.state.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}); err != nil {
		return false, fmt.Errorf("script: on_step: %w", err)
	}
	ret := h.state.Get(-1)
	h.state.Pop(1)
	return lua.LVAsBool(ret), nil
}

func (h *Hook) luaReg(l *lua.LState) int {
	i := l.CheckInt(1)
	l.Push(lua.LNumber(h.dev.Reg(uint8(i))))
	return 1
}

func (h *Hook) luaPC(l *lua.LState) int {
	l.Push(lua.LNumber(h.dev.PC()))
	return 1
}

func (h *Hook) luaCycles(l *lua.LState) int {
	l.Push(lua.LNumber(h.dev.Cycles()))
	return 1
}
