package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/linesmerrill/donation-checkin-api/config"
	"github.com/linesmerrill/donation-checkin-api/models"
)

var validate = validator.New()

// writeJSON marshals v with the given status
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(b)
}

// writeError sends an expected domain failure as a models.ErrorResponse
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, models.ErrorResponse{
		Success:   false,
		Error:     message,
		Code:      code,
		Retryable: code == models.CodeStoreUnavailable || code == models.CodeTokenAllocationFailed,
	})
}

// validationMessage flattens validator errors into one readable line
func validationMessage(err error) string {
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	msgs := make([]string, 0, len(errs))
	for _, fe := range errs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("Field '%s' is required", fe.Field()))
		case "email":
			msgs = append(msgs, fmt.Sprintf("Field '%s' must be a valid email address", fe.Field()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("Field '%s' must not exceed %s in length", fe.Field(), fe.Param()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("Field '%s' must be one of [%s]", fe.Field(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("Field validation for '%s' failed on the '%s' tag", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}

// queryInt reads a positive integer query parameter, falling back to def
func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		zap.S().Warnw("ignoring invalid query parameter", "key", key, "value", raw)
		return def
	}
	return v
}
