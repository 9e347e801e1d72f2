package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestApp(t *testing.T) {
	app := New(zap.NewNop(), RequestLogger, Errors, Panics)

	app.Handle(http.MethodGet, "/ok", func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		v := ValuesFromContext(ctx)
		require.NotNil(t, v)
		return Respond(ctx, w, map[string]bool{"success": true}, http.StatusOK)
	})
	app.Handle(http.MethodGet, "/forbidden", func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		return NewRequestError(errors.New("bad signature"), http.StatusForbidden, "invalid payment")
	})
	app.Handle(http.MethodGet, "/broken", func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		return errors.New("ledger password rejected")
	})
	app.Handle(http.MethodGet, "/panic", func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		panic("boom")
	})

	tests := []struct {
		path   string
		status int
		body   string
	}{
		{"/ok", http.StatusOK, `{"success":true}`},
		{"/forbidden", http.StatusForbidden, `{"success":false,"error":"invalid payment"}`},
		{"/broken", http.StatusInternalServerError, `{"success":false,"error":"processing error"}`},
		{"/panic", http.StatusInternalServerError, `{"success":false,"error":"processing error"}`},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			app.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.status, w.Code)
			assert.JSONEq(t, tt.body, w.Body.String())
			assert.NotContains(t, w.Body.String(), "ledger password")
		})
	}
}

func TestDecode(t *testing.T) {
	var v struct {
		Payment string `json:"payment"`
	}

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"payment":"abc"}`))
	require.NoError(t, Decode(r, &v))
	assert.Equal(t, "abc", v.Payment)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"payment":`))
	err := Decode(r, &v)
	require.Error(t, err)

	webErr, ok := errors.Cause(err).(*Error)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, webErr.Status)
}

func TestDecodeOptional(t *testing.T) {
	var v struct {
		Payment string `json:"payment"`
	}

	ok, err := DecodeOptional(httptest.NewRequest(http.MethodPost, "/", nil), &v)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = DecodeOptional(httptest.NewRequest(http.MethodPost, "/", strings.NewReader("  \n")), &v)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = DecodeOptional(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"payment":"abc"}`)), &v)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abc", v.Payment)

	_, err = DecodeOptional(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`[`)), &v)
	require.Error(t, err)
}
