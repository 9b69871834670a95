package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"

	"github.com/linkwell/linkwell/internal/aierr"
)

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

// writeAIError maps an enrichment failure onto an HTTP status. Rate
// limits carry a Retry-After header; timeouts map to 504; credential
// problems to 503; everything else from the AI layer is a 502.
func writeAIError(w http.ResponseWriter, err error) {
	var e *aierr.Error
	if !errors.As(err, &e) {
		httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
		return
	}

	switch e.Code {
	case aierr.CodeRateLimited:
		if secs := int(math.Ceil(e.RetryAfter.Seconds())); secs > 0 {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", secs))
		}
		writeCoded(w, http.StatusTooManyRequests, e)
	case aierr.CodeTimeout:
		writeCoded(w, http.StatusGatewayTimeout, e)
	case aierr.CodeMissingCredentials:
		writeCoded(w, http.StatusServiceUnavailable, e)
	default:
		writeCoded(w, http.StatusBadGateway, e)
	}
}

func writeCoded(w http.ResponseWriter, status int, e *aierr.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message":   e.Message,
			"type":      "ai_error",
			"code":      string(e.Code),
			"retryable": e.Retryable,
		},
	})
}
