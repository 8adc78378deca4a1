package handler

import (
	"net/http"

	apperrors "github.com/jwalitptl/attend-api/pkg/errors"
)

// Response is the envelope every endpoint returns. RequestID is carried on
// error responses so a client report can be matched to the request log line.
type Response struct {
	Status    string      `json:"status"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
	}
}

func (r *Response) WithRequestID(id string) *Response {
	r.RequestID = id
	return r
}

// StatusFor maps application error codes to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case apperrors.IsCode(err, apperrors.ErrNotFound),
		apperrors.IsCode(err, apperrors.ErrUnknownDevice):
		return http.StatusNotFound
	case apperrors.IsCode(err, apperrors.ErrDuplicateDevice):
		return http.StatusConflict
	case apperrors.IsCode(err, apperrors.ErrBadRequest),
		apperrors.IsCode(err, apperrors.ErrInvalidEvent),
		apperrors.IsCode(err, apperrors.ErrTemplate):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
