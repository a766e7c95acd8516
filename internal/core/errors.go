package core

import "errors"

// Error categories. Every error returned by the services wraps exactly one of
// these so the transport layer can map it to a status code.
var (
	ErrValidation   = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnavailable  = errors.New("unavailable")
)

var (
	ErrMissingField        = newError(ErrValidation, "missing required field")
	ErrInvalidAmount       = newError(ErrValidation, "invalid amount")
	ErrInvalidType         = newError(ErrValidation, "invalid transaction type")
	ErrInvalidDate         = newError(ErrValidation, "invalid date")
	ErrInvalidRole         = newError(ErrValidation, "invalid role")
	ErrUnknownCategory     = newError(ErrValidation, "unknown category")
	ErrCategoryMismatch    = newError(ErrValidation, "category does not match transaction type")
	ErrAttachmentType      = newError(ErrValidation, "file type not allowed")
	ErrAttachmentTooLarge  = newError(ErrValidation, "file too large")
	ErrInvalidStorageKey   = newError(ErrValidation, "invalid attachment name")
	ErrInvalidCredentials  = newError(ErrUnauthorized, "invalid username or password")
	ErrSessionExpired      = newError(ErrUnauthorized, "session expired")
	ErrInvalidSecret       = newError(ErrForbidden, "invalid registration key")
	ErrAdminRequired       = newError(ErrForbidden, "admin access required")
	ErrIncomeNotAllowed    = newError(ErrForbidden, "only admins can record income")
	ErrDuplicateUser       = newError(ErrConflict, "username already exists")
	ErrDuplicateCategory   = newError(ErrConflict, "category already exists")
	ErrCategoryInUse       = newError(ErrConflict, "category is used by existing transactions")
	ErrExportDisabled      = newError(ErrUnavailable, "sheets export is not configured")
)

// kindError carries its own message while matching its category with errors.Is.
type kindError struct {
	kind error
	msg  string
}

func newError(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Is(target error) bool { return target == e.kind }

// Warning reports a non fatal problem that happened while completing an
// operation, such as an attachment file that could not be removed.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	WarningAttachmentCleanup = "attachment_cleanup_failed"
)
