package ginapp_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ckenx/kenx/config"
	"github.com/ckenx/kenx/plugin/appkit"
	"github.com/ckenx/kenx/plugin/plugintest"
	"github.com/ckenx/kenx/plugins/ginapp"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func do(handler http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	return rec
}

func TestRouter(t *testing.T) {
	t.Parallel()

	app, err := ginapp.New(plugintest.NewHost(nil), config.ServerConfig{})
	require.NoError(t, err)

	app.Attach("version", "v1")

	require.NoError(t, app.Router("/users", func(group *gin.RouterGroup) {
		group.GET("/:id", func(c *gin.Context) {
			version, _ := appkit.AttachmentFrom(c.Request.Context(), "version")
			c.String(http.StatusOK, "%s %s", version, c.Param("id"))
		})
	}))
	require.NoError(t, app.Router("/static", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, r.URL.Path)
	})))

	rec := do(app.Handler(), "/users/7")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "v1 7", rec.Body.String())

	assert.Equal(t, "/static/app.js", do(app.Handler(), "/static/app.js").Body.String())
	assert.Equal(t, http.StatusNotFound, do(app.Handler(), "/nope").Code)
}

func TestRouterErrors(t *testing.T) {
	t.Parallel()

	app, err := ginapp.New(plugintest.NewHost(nil), config.ServerConfig{})
	require.NoError(t, err)

	require.ErrorIs(t, app.Router("/x", "handler"), appkit.ErrUnsupportedRouter)

	require.NoError(t, app.Router("/files", http.NotFoundHandler()))
	require.ErrorIs(t, app.Router("/files", http.NotFoundHandler()), appkit.ErrRouterConflict)
}

func TestEngine(t *testing.T) {
	t.Parallel()

	app, err := ginapp.New(plugintest.NewHost(nil), config.ServerConfig{})
	require.NoError(t, err)

	ginApp, ok := app.(*ginapp.App)
	require.True(t, ok)

	ginApp.Engine().GET("/direct", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	assert.Equal(t, http.StatusNoContent, do(app.Handler(), "/direct").Code)
	assert.Equal(t, gin.ReleaseMode, gin.Mode())
}
