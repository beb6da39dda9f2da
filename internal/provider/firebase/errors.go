package firebase

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/Dicklesworthstone/authdeck/internal/provider"
)

// restErrors maps Identity Toolkit error messages to client error codes.
var restErrors = map[string]string{
	"EMAIL_EXISTS":                   provider.CodeEmailAlreadyInUse,
	"EMAIL_NOT_FOUND":                provider.CodeUserNotFound,
	"USER_NOT_FOUND":                 provider.CodeUserNotFound,
	"INVALID_PASSWORD":               provider.CodeWrongPassword,
	"INVALID_LOGIN_CREDENTIALS":      provider.CodeInvalidCredential,
	"INVALID_IDP_RESPONSE":           provider.CodeInvalidCredential,
	"TOO_MANY_ATTEMPTS_TRY_LATER":    provider.CodeTooManyRequests,
	"OPERATION_NOT_ALLOWED":          provider.CodeOperationNotAllowed,
	"PASSWORD_LOGIN_DISABLED":        provider.CodeOperationNotAllowed,
	"ADMIN_ONLY_OPERATION":           provider.CodeOperationNotAllowed,
	"INVALID_EMAIL":                  provider.CodeInvalidEmail,
	"MISSING_EMAIL":                  provider.CodeInvalidEmail,
	"MISSING_PASSWORD":               provider.CodeMissingPassword,
	"WEAK_PASSWORD":                  provider.CodeWeakPassword,
	"USER_DISABLED":                  provider.CodeUserDisabled,
	"INVALID_ID_TOKEN":               provider.CodeUserTokenExpired,
	"TOKEN_EXPIRED":                  provider.CodeUserTokenExpired,
	"INVALID_REFRESH_TOKEN":          provider.CodeUserTokenExpired,
	"CREDENTIAL_TOO_OLD_LOGIN_AGAIN": provider.CodeRequiresRecentLogin,
	"INVALID_API_KEY":                provider.CodeInvalidAPIKey,
	"INTERNAL_ERROR":                 provider.CodeInternalError,
}

type restErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// decodeRESTError turns an error response body into a *provider.Error.
// Messages look like "WEAK_PASSWORD : Password should be at least 6
// characters"; the part before " : " selects the code.
func decodeRESTError(body []byte) *provider.Error {
	var parsed restErrorBody
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.Error.Message == "" {
		return provider.NewError(provider.CodeInternalError, strings.TrimSpace(string(body)))
	}

	raw := parsed.Error.Message
	key, detail, _ := strings.Cut(raw, " : ")
	key = strings.TrimSpace(key)

	if strings.HasPrefix(key, "API key not valid") {
		return provider.NewError(provider.CodeInvalidAPIKey, raw)
	}
	if code, ok := restErrors[key]; ok {
		if detail == "" {
			detail = raw
		}
		return provider.NewError(code, strings.TrimSpace(detail))
	}

	// Unknown server errors keep a code derived from the message so callers
	// can show it verbatim.
	if isErrorKey(key) {
		return provider.NewError("auth/"+strings.ToLower(strings.ReplaceAll(key, "_", "-")), raw)
	}
	return provider.NewError(provider.CodeInternalError, raw)
}

func isErrorKey(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < 'A' || r > 'Z') && r != '_' && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// transportError classifies a failure to reach the server. Cancellation of
// the caller's context is returned unchanged; client timeouts and connection
// failures become network-request-failed.
func transportError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return provider.WrapError(provider.CodeNetworkRequestFail, "A network error has occurred.", err)
}
