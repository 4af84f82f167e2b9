package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

type contextKey string

const principalKey contextKey = "principal"

// PrincipalMiddleware reads an opaque user identifier from header and stores it in the
// request context. The identifier is set by an upstream identity provider; this service
// never sees or checks credentials. When require is true, requests without the header
// are rejected.
func PrincipalMiddleware(header string, require bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := ""
			if header != "" {
				principal = strings.TrimSpace(r.Header.Get(header))
			}

			if principal == "" && require {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing "+header+" header")
				return
			}

			ctx := context.WithValue(r.Context(), principalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PrincipalFromContext returns the identifier stored by PrincipalMiddleware, or "".
func PrincipalFromContext(ctx context.Context) string {
	principal, _ := ctx.Value(principalKey).(string)
	return principal
}

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// writeJSONError writes a JSON error response.
func writeJSONError(w http.ResponseWriter, status int, error, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:            error,
		ErrorDescription: description,
	})
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
