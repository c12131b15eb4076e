package ward

import "errors"

// Error kinds. Every error returned by the service for a caller mistake
// matches exactly one of these through errors.Is.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrForbidden  = errors.New("forbidden")
)

// Error carries a caller-facing message and its kind.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

var (
	ErrPatientIDRequired = newError(ErrValidation, "Patient ID is required")
	ErrInvalidPatientID  = newError(ErrValidation, "Patient ID is not a valid identifier")
	ErrInvalidWardID     = newError(ErrValidation, "Ward ID is not a valid identifier")
	ErrInvalidStatus     = newError(ErrValidation, "Invalid bed status")
	ErrInvalidBody       = newError(ErrValidation, "Invalid request body")
	ErrOccupantRequired  = newError(ErrValidation, "Occupant patient ID is required to mark a bed OCCUPIED")
	ErrWardNameRequired  = newError(ErrValidation, "Ward name is required")
	ErrDepartmentMissing = newError(ErrValidation, "Department is required")
	ErrRoomIDRequired    = newError(ErrValidation, "Room ID is required")
	ErrBedNumberRequired = newError(ErrValidation, "Bed number is required")
	ErrTooManyBeds       = newError(ErrValidation, "Total beds exceeds the ward limit")

	ErrWardNotFound    = newError(ErrNotFound, "Ward not found")
	ErrRoomNotFound    = newError(ErrNotFound, "Room not found")
	ErrBedNotFound     = newError(ErrNotFound, "Bed not found")
	ErrPatientNotFound = newError(ErrNotFound, "Patient not found")

	ErrBedNotAvailable = newError(ErrConflict, "Bed is not available for assignment")
	ErrBedNotAssigned  = newError(ErrConflict, "Bed is not currently assigned")

	ErrNotPermitted = newError(ErrForbidden, "Insufficient role for this operation")
)

// IsCallerError reports whether err is one of the caller-facing kinds.
func IsCallerError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrConflict) || errors.Is(err, ErrForbidden)
}

// errNoRecord is returned by repositories when a lookup by id matches no
// row. The service translates it into the entity-specific error.
var errNoRecord = errors.New("record not found")
