package web

import (
	"encoding/json"
	"errors"
	"net/http"
)

// maxAPIRequestBodyBytes caps decoded request bodies, grounded on the
// teacher's internal/web/api.go (same constant, same purpose: a
// misbehaving or malicious client can't exhaust memory on decode).
const maxAPIRequestBodyBytes int64 = 10 * 1024 * 1024

// decodeJSONRequest decodes r's body into dst, rejecting unknown fields and
// bodies over maxAPIRequestBodyBytes.
func decodeJSONRequest(w http.ResponseWriter, r *http.Request, dst any) (int, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxAPIRequestBodyBytes)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return http.StatusRequestEntityTooLarge, err
		}
		return http.StatusBadRequest, err
	}
	return 0, nil
}

// jsonResponse writes a 200 JSON response.
func (h *Handler) jsonResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.config.Logger.Error("json encode error", "error", err)
	}
}

// jsonError writes a JSON error body with the given status code.
func (h *Handler) jsonError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		h.config.Logger.Error("json encode error", "error", err)
	}
}
