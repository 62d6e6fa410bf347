package apierr

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/tictactoe-live/internal/model"
	"github.com/mcoot/tictactoe-live/internal/services/auth"
)

func TestWriteErrorMapsKnownErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{auth.ErrMissingToken, http.StatusUnauthorized, CodeUnauthorizedMissingToken},
		{fmt.Errorf("%w: bad signature", auth.ErrInvalidToken), http.StatusUnauthorized, CodeUnauthorizedInvalidToken},
		{fmt.Errorf("alice: %w", model.ErrAlreadyConnected), http.StatusConflict, CodeAlreadyConnected},
		{NewUnavailableError("shutting down"), http.StatusServiceUnavailable, CodeUnavailable},
		{fmt.Errorf("boom"), http.StatusInternalServerError, CodeInternalError},
	}

	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(rec, tc.err)

			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body ErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tc.code, body.Error.Code)
			assert.NotEmpty(t, body.Error.Message)
			assert.Equal(t, tc.status, Status(tc.err))
		})
	}
}
