package web

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

// maxBodyBytes bounds decoded request bodies.
const maxBodyBytes = 1 << 20

// Error carries the status and the caller facing message for a failed request. Err is kept for
// logs only.
type Error struct {
	Err     error
	Status  int
	Message string
}

// NewRequestError wraps err with the status and message to respond with.
func NewRequestError(err error, status int, message string) error {
	return &Error{Err: err, Status: status, Message: message}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Err.Error()
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// Decode reads a JSON request body into v.
func Decode(r *http.Request, v interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return errors.Wrap(err, "read body")
	}

	if err := sonic.Unmarshal(body, v); err != nil {
		return NewRequestError(err, http.StatusBadRequest, "invalid request body")
	}

	return nil
}

// DecodeOptional is Decode for requests whose body may be empty. It reports whether a body was
// decoded.
func DecodeOptional(r *http.Request, v interface{}) (bool, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return false, nil
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return false, errors.Wrap(err, "read body")
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return false, nil
	}

	if err := sonic.Unmarshal(body, v); err != nil {
		return false, NewRequestError(err, http.StatusBadRequest, "invalid request body")
	}

	return true, nil
}

// Respond marshals data as JSON and writes it with the status code.
func Respond(ctx context.Context, w http.ResponseWriter, data interface{}, statusCode int) error {
	if v := ValuesFromContext(ctx); v != nil {
		v.StatusCode = statusCode
	}

	if statusCode == http.StatusNoContent {
		w.WriteHeader(statusCode)
		return nil
	}

	b, err := sonic.Marshal(data)
	if err != nil {
		return errors.Wrap(err, "marshal response")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, err := w.Write(b); err != nil {
		return errors.Wrap(err, "write response")
	}

	return nil
}

// RespondError writes the error response for err. Anything that is not a *Error becomes a 500.
func RespondError(ctx context.Context, w http.ResponseWriter, err error) error {
	if webErr, ok := errors.Cause(err).(*Error); ok {
		return Respond(ctx, w, ErrorResponse{Error: webErr.Message}, webErr.Status)
	}

	return Respond(ctx, w, ErrorResponse{Error: "processing error"}, http.StatusInternalServerError)
}
