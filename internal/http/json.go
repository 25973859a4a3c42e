package httpx

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	apperrors "github.com/brightcart/storefront/internal/errors"
)

// DecodeJSON decodes JSON from the request body into the destination and handles errors.
// Returns true if successful, false if there was an error (error response already written).
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_json", Err: err})
		return false
	}

	return true
}

// WriteJSON writes a JSON response with the given status code and data.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := buf.WriteTo(w); err != nil {
		// Response writer errors (e.g., client disconnect) can't be recovered from here.
		return
	}
}

// WriteRawJSON relays an upstream JSON payload as-is under a data envelope.
func WriteRawJSON(w http.ResponseWriter, code int, data json.RawMessage) {
	if data == nil {
		data = json.RawMessage("null")
	}
	WriteJSON(w, code, map[string]json.RawMessage{"data": data})
}

// ErrorParams groups parameters for WriteError.
type ErrorParams struct {
	Code    int
	ErrCode string
	Err     error
}

// WriteError writes a JSON error response using ErrorParams.
func WriteError(w http.ResponseWriter, p ErrorParams) {
	WriteJSON(w, p.Code, map[string]string{"error": p.ErrCode, "message": p.Err.Error()})
}

// WriteAppError maps an application error onto an HTTP status and writes it
// with the user-facing message.
func WriteAppError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch apperrors.GetCode(err) {
	case apperrors.ErrCodeValidation:
		code = http.StatusBadRequest
	case apperrors.ErrCodeMissingField, apperrors.ErrCodeDecode, apperrors.ErrCodeNetwork:
		// malformed or unreachable upstream
		code = http.StatusBadGateway
	case apperrors.ErrCodeUpstream:
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) && appErr.StatusCode > 0 {
			code = appErr.StatusCode
		} else {
			code = http.StatusBadGateway
		}
	case apperrors.ErrCodeAuthExpired:
		code = http.StatusUnauthorized
	case apperrors.ErrCodeNotFound:
		code = http.StatusNotFound
	case apperrors.ErrCodeTimeout:
		code = http.StatusGatewayTimeout
	}

	errCode := string(apperrors.GetCode(err))
	if errCode == "" {
		errCode = "internal"
	}
	WriteJSON(w, code, map[string]string{
		"error":   errCode,
		"message": apperrors.UserMessage(err),
	})
}
