package app

import "errors"

var (
	// ErrItemNotFound indicates the requested ID resolves to no item.
	ErrItemNotFound = errors.New("item not found")

	// ErrUploadFailed marks an object-storage failure inside the creation
	// pipeline. No item exists when it is returned.
	ErrUploadFailed = errors.New("image upload failed")

	// ErrDeliveryFailed marks an enquiry mail the relay did not accept.
	ErrDeliveryFailed = errors.New("enquiry delivery failed")
)

// ValidationError rejects a submission before any side effect runs.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func invalid(reason string) error {
	return &ValidationError{Reason: reason}
}

// IsValidation reports whether err is a submission-validation rejection.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
