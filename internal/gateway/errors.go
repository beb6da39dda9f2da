package gateway

import (
	"context"
	"errors"

	"github.com/Dicklesworthstone/authdeck/internal/provider"
)

// Category is a user-facing failure class.
type Category string

const (
	CategoryInvalidEmail        Category = "invalid-email"
	CategoryUserNotFound        Category = "user-not-found"
	CategoryWrongPassword       Category = "wrong-password"
	CategoryInvalidCredential   Category = "invalid-credential"
	CategoryTooManyRequests     Category = "too-many-requests"
	CategoryNetworkFailure      Category = "network-failure"
	CategoryInternalError       Category = "internal-error"
	CategoryMissingPassword     Category = "missing-password"
	CategoryEmailAlreadyInUse   Category = "email-already-in-use"
	CategoryWeakPassword        Category = "weak-password"
	CategoryOperationNotAllowed Category = "operation-not-allowed"
	CategoryUnknown             Category = "unknown"
)

var categoryByCode = map[string]Category{
	provider.CodeInvalidEmail:        CategoryInvalidEmail,
	provider.CodeUserNotFound:        CategoryUserNotFound,
	provider.CodeWrongPassword:       CategoryWrongPassword,
	provider.CodeInvalidCredential:   CategoryInvalidCredential,
	provider.CodeTooManyRequests:     CategoryTooManyRequests,
	provider.CodeNetworkRequestFail:  CategoryNetworkFailure,
	provider.CodeInternalError:       CategoryInternalError,
	provider.CodeMissingPassword:     CategoryMissingPassword,
	provider.CodeEmailAlreadyInUse:   CategoryEmailAlreadyInUse,
	provider.CodeWeakPassword:        CategoryWeakPassword,
	provider.CodeOperationNotAllowed: CategoryOperationNotAllowed,
}

// CategoryFor maps a provider code to its category. Unmapped codes are
// CategoryUnknown.
func CategoryFor(code string) Category {
	if c, ok := categoryByCode[code]; ok {
		return c
	}
	return CategoryUnknown
}

// MappedCodes returns the provider codes with a dedicated category.
func MappedCodes() []string {
	out := make([]string, 0, len(categoryByCode))
	for code := range categoryByCode {
		out = append(out, code)
	}
	return out
}

// Failure is a classified gateway error.
type Failure struct {
	Category Category
	// Code and Message are the raw provider values, kept for the unknown
	// passthrough text.
	Code    string
	Message string
}

// Unknown reports whether the failure fell outside the mapped codes.
func (f Failure) Unknown() bool { return f.Category == CategoryUnknown }

// Canceled is the failure reported for abandoned actions.
var Canceled = Failure{Category: CategoryUnknown, Code: "canceled", Message: "the action was canceled"}

// Classify maps any error to a Failure. It never panics; a nil error yields
// the zero Failure.
func Classify(err error) Failure {
	if err == nil {
		return Failure{}
	}

	var pe *provider.Error
	if errors.As(err, &pe) && pe != nil {
		return Failure{Category: CategoryFor(pe.Code), Code: pe.Code, Message: pe.Message}
	}
	if errors.Is(err, context.Canceled) {
		return Canceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Failure{Category: CategoryNetworkFailure, Code: provider.CodeNetworkRequestFail, Message: err.Error()}
	}
	if errors.Is(err, ErrNotAuthenticated) {
		return Failure{Category: CategoryUnknown, Code: provider.CodeNoCurrentUser, Message: err.Error()}
	}
	return Failure{Category: CategoryUnknown, Message: err.Error()}
}
