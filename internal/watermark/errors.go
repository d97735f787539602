package watermark

import (
	"errors"
	"fmt"
)

var (
	// ErrExhausted means every instruction was tried and none produced an image.
	ErrExhausted = errors.New("no instruction produced an image")
	// ErrQuota means the remote service reported a quota or rate limit.
	ErrQuota = errors.New("remote quota exceeded")
	// ErrTransport means the remote service could not be used at all: the
	// upload failed or the key was rejected.
	ErrTransport = errors.New("remote transport failure")
)

// ExhaustedError carries the per-attempt reports of a failed removal.
type ExhaustedError struct {
	Reports []Report
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s after %d attempts", ErrExhausted, len(e.Reports))
}

func (e *ExhaustedError) Is(target error) bool {
	return target == ErrExhausted
}

// QuotaError is returned when an attempt or the upload hit a quota limit.
// Reports holds the attempts made before the limit was hit.
type QuotaError struct {
	Reports []Report
	Err     error
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("%s: %v", ErrQuota, e.Err)
}

func (e *QuotaError) Unwrap() []error {
	return []error{ErrQuota, e.Err}
}

// TransportError is returned when the upload failed or an attempt showed the
// service cannot be used for any instruction. Reports holds the attempts made.
type TransportError struct {
	Reports []Report
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", ErrTransport, e.Err)
}

func (e *TransportError) Unwrap() []error {
	return []error{ErrTransport, e.Err}
}

// AttemptCount returns the number of attempts recorded in err, or 0.
func AttemptCount(err error) int {
	var ex *ExhaustedError
	if errors.As(err, &ex) {
		return len(ex.Reports)
	}
	var q *QuotaError
	if errors.As(err, &q) {
		return len(q.Reports)
	}
	var tr *TransportError
	if errors.As(err, &tr) {
		return len(tr.Reports)
	}
	return 0
}
