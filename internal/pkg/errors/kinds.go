package xerrors

import "errors"

// Kind classifies a failure for the retry/failover layer. Configuration
// problems must never be retried; transient provider problems may be.
type Kind int

const (
	KindUnknown Kind = iota
	KindConfig
	KindTransient
	KindValidation
)

type kindError struct {
	kind Kind
	err  error
}

func (e *kindError) Error() string { return e.err.Error() }
func (e *kindError) Unwrap() error { return e.err }

// Config marks err as a configuration error (missing credentials,
// malformed reference data). Not retryable.
func Config(err error) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: KindConfig, err: err}
}

// Transient marks err as a transient error (timeout, 5xx, connection
// failure). Retryable with backoff.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: KindTransient, err: err}
}

// Validation marks err as a validation error (incomplete/unusable data).
// Recorded, not retried.
func Validation(err error) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: KindValidation, err: err}
}

// KindOf returns the classification of err, or KindUnknown.
func KindOf(err error) Kind {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.kind
	}
	return KindUnknown
}

func IsConfig(err error) bool     { return KindOf(err) == KindConfig }
func IsTransient(err error) bool  { return KindOf(err) == KindTransient }
func IsValidation(err error) bool { return KindOf(err) == KindValidation }
