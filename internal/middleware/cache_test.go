package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCached(t *testing.T) {
	calls := 0
	h := Cached(time.Minute, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	for i := 0; i < 3; i++ {
		r, err := http.NewRequest(http.MethodGet, "/v1/users/u1", nil)
		require.NoError(t, err)

		w := httptest.NewRecorder()
		h(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, `{"ok":true}`, w.Body.String())
	}

	assert.Equal(t, 1, calls)
}

func TestCached_errorNotCached(t *testing.T) {
	calls := 0
	h := Cached(time.Minute, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	})

	for i := 0; i < 2; i++ {
		r, err := http.NewRequest(http.MethodGet, "/v1/users/u1", nil)
		require.NoError(t, err)

		w := httptest.NewRecorder()
		h(w, r)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	}

	assert.Equal(t, 2, calls)
}
