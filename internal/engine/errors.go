package engine

import "fmt"

// FatalError is returned by World methods when firmware has misused a
// peripheral in a way real hardware cannot recover from (spec.md §7,
// "Programming errors" and "Resource-exhaustion errors"). The driver loop
// logs it and terminates the process; it never crosses back into firmware.
type FatalError struct {
	Subsystem string
	Instance  int
	Err       error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s%d: %v", e.Subsystem, e.Instance, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// Fatalf builds a FatalError the way cmd/cli/main.go wraps errors with
// fmt.Errorf, but tagged with the offending subsystem and instance index.
func Fatalf(subsystem string, instance int, format string, args ...any) error {
	return &FatalError{Subsystem: subsystem, Instance: instance, Err: fmt.Errorf(format, args...)}
}
