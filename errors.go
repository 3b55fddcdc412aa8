package accounts

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeValidation         = "VALIDATION_ERROR"
	TextCodeEmailTaken         = "EMAIL_TAKEN"
	TextCodeAccountNotFound    = "ACCOUNT_NOT_FOUND"
	TextCodeForbidden          = "FORBIDDEN"
	TextCodeAccountProtected   = "ACCOUNT_PROTECTED"
	TextCodeRoleMismatch       = "ROLE_MISMATCH"
	TextCodeNotEligible        = "NOT_ELIGIBLE"
	TextCodeAlreadyProcessed   = "ALREADY_PROCESSED"
	TextCodeAlreadyInactive    = "ALREADY_INACTIVE"
	TextCodeAlreadyActive      = "ALREADY_ACTIVE"
	TextCodeAlreadyVerified    = "ALREADY_VERIFIED"
	TextCodeInvalidCredentials = "INVALID_CREDENTIALS"
	TextCodeWrongPassword      = "WRONG_PASSWORD"
	TextCodeNotVerified        = "EMAIL_NOT_VERIFIED"
	TextCodeNotActive          = "ACCOUNT_NOT_ACTIVE"
	TextCodeNotApproved        = "PRACTITIONER_NOT_APPROVED"
	TextCodeInvalidCode        = "INVALID_CODE"
	TextCodeExpiredCode        = "EXPIRED_CODE"
	TextCodeInvalidToken       = "INVALID_TOKEN"
	TextCodeExpiredToken       = "EXPIRED_TOKEN"
	TextCodeTooManyRequests    = "TOO_MANY_REQUESTS"
	TextCodeUnauthenticated    = "UNAUTHENTICATED"
	TextCodeSessionExpired     = "SESSION_EXPIRED"
	TextCodeInvalidTransition  = "INVALID_TRANSITION"
	TextCodeStaleAccount       = "STALE_ACCOUNT"
	TextCodeInternal           = "INTERNAL_ERROR"
)

var (
	// ErrEmailTaken registration with an email already on file
	ErrEmailTaken = goerrors.New("email is already registered", goerrors.CategoryConflict).
			WithTextCode(TextCodeEmailTaken).
			WithCode(goerrors.CodeConflict)

	// ErrAccountNotFound no account for the given identifier
	ErrAccountNotFound = goerrors.New("account not found", goerrors.CategoryNotFound).
				WithTextCode(TextCodeAccountNotFound).
				WithCode(goerrors.CodeNotFound)

	// ErrForbidden principal role is not allowed to perform the action
	ErrForbidden = goerrors.New("access denied", goerrors.CategoryAuthz).
			WithTextCode(TextCodeForbidden).
			WithCode(goerrors.CodeForbidden)

	// ErrAccountProtected administrators can not be inactivated or reactivated
	ErrAccountProtected = goerrors.New("super admin accounts can not be modified", goerrors.CategoryAuthz).
				WithTextCode(TextCodeAccountProtected).
				WithCode(goerrors.CodeForbidden)

	// ErrRoleMismatch target account is not a practitioner
	ErrRoleMismatch = goerrors.New("account is not a practitioner", goerrors.CategoryBadInput).
			WithTextCode(TextCodeRoleMismatch).
			WithCode(goerrors.CodeBadRequest)

	// ErrNotEligible account is in no state to take the requested action
	ErrNotEligible = goerrors.New("account is not eligible for this action", goerrors.CategoryBadInput).
			WithTextCode(TextCodeNotEligible).
			WithCode(goerrors.CodeBadRequest)

	// ErrAlreadyProcessed practitioner approval decision was already taken
	ErrAlreadyProcessed = goerrors.New("practitioner application was already processed", goerrors.CategoryConflict).
				WithTextCode(TextCodeAlreadyProcessed).
				WithCode(goerrors.CodeConflict)

	ErrAlreadyInactive = goerrors.New("account is already inactive", goerrors.CategoryConflict).
				WithTextCode(TextCodeAlreadyInactive).
				WithCode(goerrors.CodeConflict)

	ErrAlreadyActive = goerrors.New("account is already active", goerrors.CategoryConflict).
				WithTextCode(TextCodeAlreadyActive).
				WithCode(goerrors.CodeConflict)

	ErrAlreadyVerified = goerrors.New("email is already verified", goerrors.CategoryConflict).
				WithTextCode(TextCodeAlreadyVerified).
				WithCode(goerrors.CodeConflict)

	// ErrInvalidCredentials is returned for unknown email and for wrong
	// password alike
	ErrInvalidCredentials = goerrors.New("invalid email or password", goerrors.CategoryAuth).
				WithTextCode(TextCodeInvalidCredentials).
				WithCode(goerrors.CodeUnauthorized)

	ErrWrongPassword = goerrors.New("current password is incorrect", goerrors.CategoryAuth).
				WithTextCode(TextCodeWrongPassword).
				WithCode(goerrors.CodeUnauthorized)

	ErrNotVerified = goerrors.New("email address is not verified", goerrors.CategoryAuthz).
			WithTextCode(TextCodeNotVerified).
			WithCode(goerrors.CodeForbidden)

	ErrNotActive = goerrors.New("account is not active", goerrors.CategoryAuthz).
			WithTextCode(TextCodeNotActive).
			WithCode(goerrors.CodeForbidden)

	ErrNotApproved = goerrors.New("practitioner account is pending approval", goerrors.CategoryAuthz).
			WithTextCode(TextCodeNotApproved).
			WithCode(goerrors.CodeForbidden)

	ErrInvalidCode = goerrors.New("verification code is invalid", goerrors.CategoryBadInput).
			WithTextCode(TextCodeInvalidCode).
			WithCode(goerrors.CodeBadRequest)

	ErrExpiredCode = goerrors.New("verification code has expired", goerrors.CategoryBadInput).
			WithTextCode(TextCodeExpiredCode).
			WithCode(goerrors.CodeBadRequest)

	ErrInvalidToken = goerrors.New("reapply token is invalid", goerrors.CategoryBadInput).
			WithTextCode(TextCodeInvalidToken).
			WithCode(goerrors.CodeBadRequest)

	ErrExpiredToken = goerrors.New("reapply token has expired", goerrors.CategoryBadInput).
			WithTextCode(TextCodeExpiredToken).
			WithCode(goerrors.CodeBadRequest)

	ErrTooManyRequests = goerrors.New("please wait before requesting a new code", goerrors.CategoryRateLimit).
				WithTextCode(TextCodeTooManyRequests).
				WithCode(http.StatusTooManyRequests)

	// ErrUnauthenticated no session token or the token is not valid
	ErrUnauthenticated = goerrors.New("authentication required", goerrors.CategoryAuth).
				WithTextCode(TextCodeUnauthenticated).
				WithCode(goerrors.CodeUnauthorized)

	ErrSessionExpired = goerrors.New("session has expired", goerrors.CategoryAuth).
				WithTextCode(TextCodeSessionExpired).
				WithCode(goerrors.CodeUnauthorized)

	// ErrInvalidTransition the status graph does not allow the move
	ErrInvalidTransition = goerrors.New("invalid account status transition", goerrors.CategoryBadInput).
				WithTextCode(TextCodeInvalidTransition).
				WithCode(goerrors.CodeBadRequest)

	// ErrStaleAccount a guarded write lost the race against a concurrent
	// writer. Commands retry on it and it should not reach callers.
	ErrStaleAccount = goerrors.New("account was modified concurrently", goerrors.CategoryConflict).
			WithTextCode(TextCodeStaleAccount).
			WithCode(goerrors.CodeConflict)
)

// asRichError returns err when it already carries a category, otherwise
// it wraps it as an internal failure.
func asRichError(err error, message string) error {
	if err == nil {
		return nil
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, message).
		WithTextCode(TextCodeInternal).
		WithCode(goerrors.CodeInternal)
}

// IsValidationError reports whether err was caused by malformed input
func IsValidationError(err error) bool {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.Category == goerrors.CategoryValidation
	}
	return false
}

// TextCodeOf extracts the text code of a rich error, empty otherwise.
func TextCodeOf(err error) string {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode
	}
	return ""
}

// HTTPStatusOf maps an error to a response status.
func HTTPStatusOf(err error) int {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.Code > 0 {
		return richErr.Code
	}
	return http.StatusInternalServerError
}
