package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind groups errors by the class of guard that failed.
type Kind string

const (
	KindNotFound        Kind = "NOT_FOUND"
	KindInvalidState    Kind = "INVALID_STATE"
	KindPolicyViolation Kind = "POLICY_VIOLATION"
	KindUnauthorized    Kind = "UNAUTHORIZED"
	KindConfig          Kind = "CONFIG_ERROR"
	KindValidation      Kind = "VALIDATION"
	KindInternal        Kind = "INTERNAL"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Number  int    `json:"number"`
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches errors sharing the same code so clones compare equal to their template.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Kind: kindFromStatus(status), Number: status}
}

// Define creates an Error carrying a stable numeric code and kind.
func Define(code string, number int, kind Kind, status int, message string) *Error {
	return &Error{Code: code, Number: number, Kind: kind, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err, Kind: kindFromStatus(status), Number: status}
}

// WithCause clones a predefined error and attaches the underlying cause.
func WithCause(template *Error, err error, message string) *Error {
	clone := Clone(template, message)
	if clone != nil {
		clone.Err = err
	}
	return clone
}

// Predefined errors for common scenarios.
var (
	ErrInvalidCredentials = Define("INVALID_CREDENTIALS", 1019, KindUnauthorized, http.StatusUnauthorized, "invalid username or password")
	ErrInactiveAccount    = Define("ACCOUNT_INACTIVE", 1020, KindUnauthorized, http.StatusForbidden, "account is disabled")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = Define("FORBIDDEN", 1031, KindUnauthorized, http.StatusForbidden, "forbidden")
	ErrUnauthorized       = Define("UNAUTHORIZED", 401, KindUnauthorized, http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrPreconditionFailed = New("PRECONDITION_FAILED", http.StatusPreconditionFailed, "precondition failed")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = Define("INTERNAL_ERROR", 500, KindInternal, http.StatusInternalServerError, "internal server error")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// Document control errors. Numbers are part of the public contract.
var (
	ErrFileTypeNotAllowed           = Define("FILE_TYPE_NOT_ALLOWED", 1001, KindPolicyViolation, http.StatusBadRequest, "file type not allowed")
	ErrFileTooLarge                 = Define("FILE_TOO_LARGE", 1002, KindPolicyViolation, http.StatusBadRequest, "file too large")
	ErrFileNumberExists             = Define("FILE_NUMBER_EXISTS", 1005, KindPolicyViolation, http.StatusConflict, "file number already exists")
	ErrDocumentNotFound             = Define("DOCUMENT_NOT_FOUND", 1006, KindNotFound, http.StatusNotFound, "document not found")
	ErrDocumentStatusInvalid        = Define("DOCUMENT_STATUS_INVALID", 1007, KindInvalidState, http.StatusConflict, "document status does not allow this operation")
	ErrApprovalFlowNotFound         = Define("APPROVAL_FLOW_NOT_FOUND", 1008, KindNotFound, http.StatusNotFound, "no applicable approval flow")
	ErrApproverNotFound             = Define("APPROVER_NOT_FOUND", 1009, KindNotFound, http.StatusNotFound, "no enabled approver for role")
	ErrUserNotFound                 = Define("USER_NOT_FOUND", 1010, KindNotFound, http.StatusNotFound, "user not found")
	ErrApprovalRecordNotFound       = Define("APPROVAL_RECORD_NOT_FOUND", 1011, KindNotFound, http.StatusNotFound, "no pending approval record for caller")
	ErrApprovalFlowConfig           = Define("APPROVAL_FLOW_CONFIG_ERROR", 1012, KindConfig, http.StatusUnprocessableEntity, "approval flow configuration error")
	ErrDocumentNotApproved          = Define("DOCUMENT_NOT_APPROVED", 1013, KindPolicyViolation, http.StatusConflict, "only approved documents can be distributed")
	ErrNotCurrentVersion            = Define("NOT_CURRENT_VERSION", 1014, KindPolicyViolation, http.StatusConflict, "only the current version can be distributed")
	ErrDistributionTarget           = Define("DISTRIBUTION_TARGET_ERROR", 1015, KindPolicyViolation, http.StatusBadRequest, "invalid distribution target")
	ErrVersionExists                = Define("VERSION_EXISTS", 1016, KindPolicyViolation, http.StatusConflict, "version already exists")
	ErrVersionAlreadyCurrent        = Define("VERSION_ALREADY_CURRENT", 1017, KindPolicyViolation, http.StatusConflict, "version is already current")
	ErrUploadSessionNotFound        = Define("UPLOAD_SESSION_NOT_FOUND", 1032, KindNotFound, http.StatusNotFound, "upload session not found or expired")
	ErrDistributionReceiverNotFound = Define("DISTRIBUTION_RECEIVER_NOT_FOUND", 1033, KindNotFound, http.StatusNotFound, "caller is not a receiver of this distribution")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

func kindFromStatus(status int) Kind {
	switch status {
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindUnauthorized
	case http.StatusConflict, http.StatusPreconditionFailed:
		return KindInvalidState
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return KindValidation
	default:
		return KindInternal
	}
}
