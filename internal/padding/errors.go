package padding

import (
	"errors"
	"fmt"
)

var (
	ErrNoEvents          = errors.New("no events")
	ErrInvalidEvent      = errors.New("event stops before it starts")
	ErrOverlappingEvents = errors.New("events overlap")
	ErrInvalidBounds     = errors.New("timeline bounds do not enclose events")
	ErrUnknownNamespace  = errors.New("unknown namespace")
	ErrStreamConflict    = errors.New("cannot merge events with different streams")
)

// InvalidInputError reports input the planner refuses to plan. Err is one of
// the sentinel errors above, so callers can match with errors.Is.
type InvalidInputError struct {
	Err    error
	Detail string
}

func (e *InvalidInputError) Error() string {
	if e.Detail == "" {
		return "invalid input: " + e.Err.Error()
	}
	return fmt.Sprintf("invalid input: %v: %s", e.Err, e.Detail)
}

func (e *InvalidInputError) Unwrap() error { return e.Err }

func invalid(err error, format string, args ...interface{}) error {
	return &InvalidInputError{Err: err, Detail: fmt.Sprintf(format, args...)}
}

// IsInvalidInput reports whether err is (or wraps) an InvalidInputError.
func IsInvalidInput(err error) bool {
	var ie *InvalidInputError
	return errors.As(err, &ie)
}
