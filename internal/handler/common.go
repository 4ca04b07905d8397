package handler

import (
	"encoding/json"
	"net/http"

	"bookpay-be/internal/apperr"
)

// Response is the envelope every endpoint answers with. Domain and
// infrastructure failures share the same shape; callers tell them apart by
// status code and message only.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Count   *int        `json:"count,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, statusCode int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(resp)
}

func writeData(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, Response{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, err error) {
	if appErr, ok := err.(*apperr.Error); ok {
		writeJSON(w, appErr.HTTPStatus(), Response{Success: false, Message: appErr.Message})
		return
	}
	writeJSON(w, http.StatusInternalServerError, Response{Success: false, Message: "Internal server error"})
}

// NotFoundHandler is the fallback for unmatched routes.
func NotFoundHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, Response{Success: false, Message: "Route not found"})
	})
}
