package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"evalsvc/internal/shared/apperror"
)

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type Envelope struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data,omitempty"`
	Error     *Error `json:"error,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, payload Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Warn("write json failed", "err", err)
	}
}

func Success(w http.ResponseWriter, data any, requestID string) {
	WriteJSON(w, http.StatusOK, Envelope{Success: true, Data: data, RequestID: requestID})
}

func Created(w http.ResponseWriter, data any, requestID string) {
	WriteJSON(w, http.StatusCreated, Envelope{Success: true, Data: data, RequestID: requestID})
}

func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func Fail(w http.ResponseWriter, status int, code, message, requestID string) {
	WriteJSON(w, status, Envelope{Success: false, Error: &Error{Code: code, Message: message}, RequestID: requestID})
}

func FailWithDetails(w http.ResponseWriter, status int, code, message string, details any, requestID string) {
	WriteJSON(w, status, Envelope{Success: false, Error: &Error{Code: code, Message: message, Details: details}, RequestID: requestID})
}

// FailError answers with the status and code carried by an AppError in err's
// chain. Input errors echo the full message so batch callers can see which
// item failed. Anything else is logged and reported as an internal error.
func FailError(w http.ResponseWriter, err error, requestID string) {
	appErr, ok := apperror.As(err)
	if !ok || appErr.HTTPStatus == 0 {
		slog.Error("request failed", "err", err, "requestId", requestID)
		appErr = apperror.ErrInternal
	}
	message := appErr.Message
	if appErr.Code == apperror.CodeInvalidInput {
		message = err.Error()
	}
	Fail(w, appErr.HTTPStatus, appErr.Code, message, requestID)
}
