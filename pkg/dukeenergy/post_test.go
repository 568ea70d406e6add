package dukeenergy

import (
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPost(t *testing.T) {
	p := newFakePortal(t)
	c := p.mustClient()

	t.Run("UnsupportedPayload", func(t *testing.T) {
		_, err := c.post(t.Context(), p.server.URL+"/echo", 42)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnsupportedPayload)

		var pe *PostError
		assert.True(t, errors.As(err, &pe))
	})

	t.Run("StringPayloadIsSentRaw", func(t *testing.T) {
		p.handle("/raw", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, map[string]any{"Status": "Success"})
		})
		_, err := c.post(t.Context(), p.server.URL+"/raw", `{"a":1}`)
		require.NoError(t, err)

		req := p.lastRequest("raw")
		require.NotNil(t, req)
		assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
		assert.Equal(t, map[string]any{"a": float64(1)}, p.lastBody("raw"))
	})

	t.Run("NonOKStatus", func(t *testing.T) {
		p.handle("/broken", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
		_, err := c.post(t.Context(), p.server.URL+"/broken", map[string]any{})
		var pe *PostError
		require.True(t, errors.As(err, &pe))
		assert.Equal(t, http.StatusServiceUnavailable, pe.StatusCode)
	})
}

func TestPostAndCheckStatus(t *testing.T) {
	p := newFakePortal(t)
	c := p.mustClient()

	tests := []struct {
		name    string
		body    string
		wantErr bool
		status  string
		message string
	}{
		{name: "Success", body: `{"Status":"Success","Value":1}`},
		{name: "Failure", body: `{"Status":"Failure","MessageText":"locked"}`, wantErr: true, status: "Failure", message: "locked"},
		{name: "NoStatus", body: `{"Value":1}`, wantErr: true, message: "response has no Status"},
		{name: "NotJSON", body: `<html>maintenance</html>`, wantErr: true, message: "response is not JSON"},
		{name: "EmptyObject", body: `{}`, wantErr: true, message: "response is not JSON"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p.handle("/check", func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, tt.body)
			})
			body, err := c.postAndCheckStatus(t.Context(), p.server.URL+"/check", map[string]any{"x": "y"})
			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, "Success", body["Status"])
				return
			}
			require.Error(t, err)
			assert.Nil(t, body)

			var se *StatusError
			require.True(t, errors.As(err, &se), "logical failures should be StatusError")
			assert.Equal(t, tt.status, se.Status)
			assert.Equal(t, tt.message, se.Message)
		})
	}

	t.Run("TransportFailureIsPostError", func(t *testing.T) {
		p.handle("/check", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})
		_, err := c.postAndCheckStatus(t.Context(), p.server.URL+"/check", map[string]any{})
		var pe *PostError
		assert.True(t, errors.As(err, &pe))
		var se *StatusError
		assert.False(t, errors.As(err, &se))
	})
}
