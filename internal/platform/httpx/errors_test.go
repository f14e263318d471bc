package httpx

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromStatus(t *testing.T) {
	cases := map[int]error{
		http.StatusOK:                  nil,
		http.StatusNoContent:           nil,
		http.StatusBadRequest:          ErrValidation,
		http.StatusUnprocessableEntity: ErrValidation,
		http.StatusUnauthorized:        ErrUnauthorized,
		http.StatusForbidden:           ErrForbidden,
		http.StatusNotFound:            ErrNotFound,
		http.StatusConflict:            ErrDuplicate,
		http.StatusBadGateway:          ErrUpstream,
		http.StatusInternalServerError: ErrUpstream,
	}
	for code, want := range cases {
		assert.Equal(t, want, FromStatus(code), "status %d", code)
	}
}

func TestRespondErrorUsesProblemDetails(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, errors.Join(ErrForbidden, errors.New("role admin required")))

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Body.String(), `"title":"Forbidden"`)
}
