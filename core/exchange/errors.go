package exchange

import "fmt"

// ValidationError reports malformed interconnector or MPI profile input. It is
// only returned during market construction; a market never starts clearing
// with invalid static data.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func validationErrorf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}
