package static_test

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/ckenx/kenx/config"
	"github.com/ckenx/kenx/plugin/plugintest"
	"github.com/ckenx/kenx/plugins/chiapp"
	"github.com/ckenx/kenx/plugins/static"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply(t *testing.T) {
	t.Parallel()

	host := plugintest.NewHost(nil)
	host.Root = t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(host.Root, "web"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(host.Root, "web", "app.js"), []byte("console.log(1)"), 0o600))

	app, err := chiapp.New(host, config.ServerConfig{})
	require.NoError(t, err)

	err = static.Apply(host, app, map[string]any{
		"plugin": static.Reference,
		"root":   "web",
		"prefix": "/assets",
		"maxAge": "1h",
	})
	require.NoError(t, err)

	root, ok := app.Attachment(static.AttachmentKey)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(host.Root, "web"), root)

	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/assets/app.js", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "console.log(1)", rec.Body.String())
	assert.Equal(t, "public, max-age=3600", rec.Header().Get("Cache-Control"))
}

func TestApplyErrors(t *testing.T) {
	t.Parallel()

	host := plugintest.NewHost(nil)
	host.Root = t.TempDir()

	app, err := chiapp.New(host, config.ServerConfig{})
	require.NoError(t, err)

	err = static.Apply(host, app, map[string]any{})
	require.ErrorIs(t, err, static.ErrNotDirectory, "default root does not exist")

	require.NoError(t, os.Mkdir(filepath.Join(host.Root, "public"), 0o755))

	err = static.Apply(host, app, map[string]any{"prefix": "assets"})
	require.Error(t, err)
}
