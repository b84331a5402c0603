package media

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNoOutput is returned when a tool exits cleanly without writing its
// output file.
var ErrNoOutput = errors.New("tool produced no output file")

// ToolError is the failure of one external tool invocation.
type ToolError struct {
	Tool   string
	Args   []string
	Stderr string
	Err    error
}

func (e *ToolError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Tool, e.Err)
	if tail := lastLine(e.Stderr); tail != "" {
		msg += ": " + tail
	}
	return msg
}

func (e *ToolError) Unwrap() error { return e.Err }

// Transient reports whether the failure looks like a condition that may
// clear on its own (resource pressure, interrupted I/O, a killed process).
// Bad arguments, missing inputs and codec errors are persistent.
func (e *ToolError) Transient() bool {
	if e.Err == nil {
		return false
	}
	if errors.Is(e.Err, ErrNoOutput) {
		return true
	}
	if reTransient.MatchString(e.Stderr) {
		return true
	}
	return reSignal.MatchString(e.Err.Error())
}

// Pre-compiled stderr classifiers.
var (
	reTransient = regexp.MustCompile(
		`(?i)Resource temporarily unavailable|` +
			`Device or resource busy|` +
			`Cannot allocate memory|` +
			`Input/output error|` +
			`Connection reset by peer|` +
			`Connection timed out|` +
			`No space left on device|` +
			`Interrupted system call`)

	reSignal = regexp.MustCompile(`signal: (killed|terminated|interrupt)`)
)

// IsTransient reports whether err is a *ToolError classified as transient.
func IsTransient(err error) bool {
	var te *ToolError
	if errors.As(err, &te) {
		return te.Transient()
	}
	return false
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}
