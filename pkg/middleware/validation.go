// pkg/middleware/validation.go

package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error string      `json:"error"`
	Field string      `json:"field,omitempty"`
	Value interface{} `json:"value,omitempty"`
}

const maxBodySize = 1 << 20

// ValidateRequest rejects non-JSON bodies on POST/PUT and caps the body size.
// Empty bodies are allowed; handlers decide whether they need one.
func ValidateRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut {
			contentType := r.Header.Get("Content-Type")
			if r.ContentLength != 0 && contentType != "" && !strings.Contains(contentType, "application/json") {
				WriteError(w, http.StatusBadRequest, "Invalid Content-Type, expected application/json")
				return
			}
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
		next.ServeHTTP(w, r)
	})
}

// DecodeAndValidate reads a JSON body into dst and runs struct validation.
// On failure the response is already written and false is returned.
func DecodeAndValidate(w http.ResponseWriter, r *http.Request, v *validator.Validate, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	if err := v.Struct(dst); err != nil {
		field := ""
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			field = verrs[0].Field()
		}
		HandleValidationError(w, err, field, "")
		return false
	}
	return true
}

// HandleValidationError writes a 400 with the offending field.
func HandleValidationError(w http.ResponseWriter, err error, field, value string) {
	logrus.WithField("field", field).Debugf("validation error: %v", err)

	resp := ErrorResponse{Error: err.Error(), Field: field}
	if value != "" {
		resp.Value = value
	}
	WriteJSON(w, http.StatusBadRequest, resp)
}

func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Warn("failed to encode response")
	}
}

func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, ErrorResponse{Error: msg})
}
