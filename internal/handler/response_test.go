package handler

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/jwalitptl/attend-api/pkg/errors"
)

func TestStatusForMapsErrorCodes(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{apperrors.UnknownDevice("zk-001"), http.StatusNotFound},
		{apperrors.NewNotFound("group", nil), http.StatusNotFound},
		{apperrors.DuplicateDevice("zk-001"), http.StatusConflict},
		{apperrors.NewBadRequest("bad", nil), http.StatusBadRequest},
		{apperrors.Template("mood"), http.StatusBadRequest},
		{errors.New("anything else"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, StatusFor(tc.err))
	}
}

func TestErrorResponseCarriesRequestID(t *testing.T) {
	r := NewErrorResponse("boom").WithRequestID("req-1")
	assert.Equal(t, "error", r.Status)
	assert.Equal(t, "req-1", r.RequestID)

	assert.Empty(t, NewSuccessResponse(nil).RequestID)
}
