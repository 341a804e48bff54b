package apperrors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusCode(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("wrapped: %w", ErrJobNotFound), http.StatusNotFound},
		{ErrDocumentNotFound, http.StatusNotFound},
		{fmt.Errorf("%w: bad limit", ErrInvalidInput), http.StatusBadRequest},
		{ErrProviderTransient, http.StatusServiceUnavailable},
		{ErrPersistence, http.StatusInternalServerError},
		{fmt.Errorf("plain"), http.StatusInternalServerError},
		{New(ErrInvalidInput, http.StatusUnprocessableEntity, "bad payload"), http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.code, HTTPStatusCode(tc.err), "%v", tc.err)
	}
}

func TestTransient(t *testing.T) {
	assert.True(t, Transient(fmt.Errorf("%w: 429", ErrProviderTransient)))
	assert.False(t, Transient(ErrProviderPermanent))
	assert.False(t, Transient(nil))
}

func TestAppErrorUnwrap(t *testing.T) {
	err := Newf(ErrEmbeddingMismatch, http.StatusBadGateway, "requested %d, received %d", 10, 9)
	assert.ErrorIs(t, err, ErrEmbeddingMismatch)
	assert.Contains(t, err.Error(), "requested 10, received 9")
}
