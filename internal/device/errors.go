// errors.go - error taxonomy for the RV32IM+Zicond device core

package device

import "errors"

// Sentinel errors, one per taxonomy entry. Wrap with fmt.Errorf("...: %w", ...)
// at call sites that need extra context (faulting address, opcode word, etc).
var (
	ErrDecode = errors.New("device: decode error")
	ErrFetch  = errors.New("device: fetch fault")
	ErrMemory = errors.New("device: memory fault")
	ErrLoader = errors.New("device: loader error")
	ErrILP    = errors.New("device: ilp file error")
)
