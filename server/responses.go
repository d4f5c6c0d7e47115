package server

import (
	"encoding/json"
	goerrors "errors"
	"net/http"

	"github.com/finledger/auth-server/auth"
	"github.com/finledger/auth-server/store"
	"github.com/finledger/auth-server/tenants"
	"github.com/finledger/auth-server/token"
)

// errorResponse is the uniform error body. No stack traces or internal
// identifiers ever reach the client.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}

// writeDomainError translates a service error into status + {error, message}.
// Unrecognized errors collapse into a generic 500 so internals never leak;
// the caller is responsible for logging the original.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case goerrors.Is(err, auth.ErrInvalidEmail):
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case goerrors.Is(err, auth.ErrWeakPassword):
		writeError(w, http.StatusBadRequest, "WEAK_PASSWORD", err.Error())
	case goerrors.Is(err, auth.ErrEmailTaken):
		writeError(w, http.StatusBadRequest, "EMAIL_TAKEN", err.Error())
	case goerrors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password")
	case goerrors.Is(err, auth.ErrAccountInactive):
		writeError(w, http.StatusUnauthorized, "ACCOUNT_INACTIVE", "User account is inactive")
	case goerrors.Is(err, auth.ErrPasswordNotSet):
		writeError(w, http.StatusUnauthorized, "CREDENTIALS_NOT_CONFIGURED", "User password not set")
	case goerrors.Is(err, auth.ErrInvalidRefreshToken):
		writeError(w, http.StatusUnauthorized, "INVALID_REFRESH_TOKEN", "Invalid or expired refresh token")
	case goerrors.Is(err, auth.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "User not found")
	case goerrors.Is(err, token.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or expired token")
	case goerrors.Is(err, tenants.ErrNotFound):
		writeError(w, http.StatusNotFound, "TENANT_NOT_FOUND", "Tenant not found or inactive")
	case goerrors.Is(err, store.ErrNoTenant):
		writeError(w, http.StatusBadRequest, "TENANT_REQUIRED", "Tenant identity required")
	case goerrors.Is(err, auth.ErrLogoutFailed):
		writeError(w, http.StatusInternalServerError, "LOGOUT_FAILED", "Logout failed")
	default:
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}
