package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIndexServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/index.txt", func(w http.ResponseWriter, r *http.Request) {
		user, pass, _ := r.BasicAuth()
		if user != "map" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte("# layers\ncoast.shp\n\nborders.geojson\ncoast.dbf\n"))
	})
	mux.HandleFunc("/coast.shp", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("shape"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPStorageList(t *testing.T) {
	srv := newIndexServer(t)
	s := NewHTTPStorage(HTTPConfig{BaseURL: srv.URL + "/", Username: "map", Password: "secret"})

	objects, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, objects, 2)
	assert.Equal(t, "coast.shp", objects[0].Key)
	assert.Equal(t, "borders.geojson", objects[1].Key)
}

func TestHTTPStorageListUnauthorized(t *testing.T) {
	srv := newIndexServer(t)
	s := NewHTTPStorage(HTTPConfig{BaseURL: srv.URL})

	_, err := s.List(context.Background())
	assert.Error(t, err)
}

func TestHTTPStorageDownloadAndExists(t *testing.T) {
	srv := newIndexServer(t)
	s := NewHTTPStorage(HTTPConfig{BaseURL: srv.URL})
	ctx := context.Background()

	dest := filepath.Join(t.TempDir(), "coast.shp")
	require.NoError(t, s.Download(ctx, "coast.shp", dest))
	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "shape", string(got))

	ok, err := s.Exists(ctx, "coast.shp")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Exists(ctx, "coast.prj")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Error(t, s.Download(ctx, "missing.shp", filepath.Join(t.TempDir(), "missing.shp")))
}
