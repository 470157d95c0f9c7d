package health

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubStore struct {
	err error
}

func (s stubStore) CheckWritable() error { return s.err }

func serve(h http.HandlerFunc) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/?full=1", nil))
	return rec
}

func TestHealthChecker(t *testing.T) {
	t.Run("ready when upload dir writable", func(t *testing.T) {
		hc := NewHealthChecker(stubStore{}, nil)

		assert.Equal(t, http.StatusOK, serve(hc.LiveHandler()).Code)
		assert.Equal(t, http.StatusOK, serve(hc.ReadyHandler()).Code)
		assert.Equal(t, "OK", hc.CheckHealth()["upload_dir"])
	})

	t.Run("not ready when upload dir broken", func(t *testing.T) {
		hc := NewHealthChecker(stubStore{err: errors.New("read-only file system")}, nil)

		assert.Equal(t, http.StatusOK, serve(hc.LiveHandler()).Code)

		rec := serve(hc.ReadyHandler())
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), "read-only file system")
		assert.Contains(t, hc.CheckHealth()["upload_dir"], "ERROR")
	})
}
