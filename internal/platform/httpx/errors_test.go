package httpx

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tempora-app/tempora/internal/shared"
)

func TestRespondErrorMapsTaxonomy(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("%w: invoice 7", shared.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: already covered", shared.ErrConflict), http.StatusConflict},
		{fmt.Errorf("%w: batch replayed", shared.ErrIdempotencyConflict), http.StatusConflict},
		{fmt.Errorf("%w: hours out of range", shared.ErrValidation), http.StatusBadRequest},
		{errors.New("pq: connection reset"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		RespondError(rr, tc.err)
		require.Equal(t, tc.status, rr.Code)
		require.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
	}
}

func TestInternalErrorsLeakNoDetail(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, errors.New("dial tcp 10.0.0.7:5432: timeout"))
	require.NotContains(t, rr.Body.String(), "10.0.0.7")
}

func TestIsInternal(t *testing.T) {
	require.False(t, IsInternal(fmt.Errorf("%w: x", shared.ErrValidation)))
	require.False(t, IsInternal(fmt.Errorf("%w: x", shared.ErrNotFound)))
	require.False(t, IsInternal(nil))
	require.True(t, IsInternal(errors.New("boom")))
}
