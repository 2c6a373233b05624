package steps

import "errors"

// PermanentError marks a failure that must not be retried: protocol
// violations, missing rows, exceeded ceilings. Anything else is treated
// as transient and eligible for bounded retry.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// Permanent wraps err as a PermanentError. A nil err returns nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err carries a PermanentError anywhere in
// its chain.
func IsPermanent(err error) bool {
	var p *PermanentError
	return errors.As(err, &p)
}
