package core_test

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ckenx/kenx/config"
	"github.com/ckenx/kenx/core"
	"github.com/ckenx/kenx/entry"
	"github.com/ckenx/kenx/plugin"
	"github.com/ckenx/kenx/registry"
	"github.com/ckenx/kenx/setup"
	"github.com/stretchr/testify/require"
)

var (
	errRefused   = errors.New("connection refused")
	errAddrInUse = errors.New("address already in use")
)

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, event)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.events...)
}

type fakeServer struct {
	name    string
	rec     *recorder
	unbound bool
	failing bool
	info    *plugin.ActiveServerInfo
	binder  plugin.Binder
	options map[string]any
}

func (s *fakeServer) Listen(_ context.Context, binder plugin.Binder) (*plugin.ActiveServerInfo, error) {
	s.binder = binder
	s.rec.add("listen " + s.name)

	if s.failing {
		return nil, errAddrInUse
	}

	if s.unbound {
		return nil, nil
	}

	s.info = &plugin.ActiveServerInfo{Type: s.name, Host: binder.Host, Port: binder.Port}

	return s.info, nil
}

func (s *fakeServer) Close(context.Context) error {
	s.rec.add("close " + s.name)

	return nil
}

func (s *fakeServer) Info() *plugin.ActiveServerInfo {
	return s.info
}

type fakeDatabase struct {
	cfg      config.DatabaseConfig
	rec      *recorder
	failures int
	attempts int
}

func (d *fakeDatabase) Connect(context.Context) (any, error) {
	d.attempts++

	if d.attempts <= d.failures {
		return nil, errRefused
	}

	d.rec.add("connect " + d.cfg.RegistryKey())

	return d.cfg.URI, nil
}

func (d *fakeDatabase) Disconnect(context.Context) error {
	d.rec.add("disconnect " + d.cfg.RegistryKey())

	return nil
}

func (d *fakeDatabase) Connection(string) (any, error) {
	return d.cfg.URI, nil
}

type fakeApp struct {
	cfg         config.ServerConfig
	rec         *recorder
	attachments map[string]any
	overhead    bool
	server      *fakeServer
}

func (a *fakeApp) Handler() http.Handler { return http.NotFoundHandler() }

func (a *fakeApp) Attach(key string, value any) { a.attachments[key] = value }

func (a *fakeApp) Use(...func(http.Handler) http.Handler) {}

func (a *fakeApp) Router(string, any) error { return nil }

func (a *fakeApp) OnError(plugin.ErrorHandler) {}

func (a *fakeApp) Attachment(key string) (any, bool) {
	value, ok := a.attachments[key]

	return value, ok
}

func (a *fakeApp) Serve(ctx context.Context, overhead bool) (plugin.ServerPlugin, error) {
	a.overhead = overhead
	a.server = &fakeServer{name: "app", rec: a.rec}

	_, err := a.server.Listen(ctx, plugin.Binder{Host: a.cfg.Host, Port: a.cfg.Port})

	return a.server, err
}

type harness struct {
	core     *core.Core
	registry *registry.Registry
	rec      *recorder
	dbs      map[string]*fakeDatabase
	apps     []*fakeApp
	failures int
}

func newHarness(t *testing.T, setupYAML string, env map[string]string, modules *entry.Catalog, opts ...core.Option) *harness {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".config"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".config", "index.yml"), []byte(setupYAML), 0o600))

	h := &harness{registry: registry.New(), rec: &recorder{}, dbs: make(map[string]*fakeDatabase)}

	serverFactory := func(name string, unbound bool) plugin.ServerFactory {
		return func(_ plugin.Host, _ plugin.ApplicationPlugin, options map[string]any) (plugin.ServerPlugin, error) {
			return &fakeServer{name: name, rec: h.rec, unbound: unbound, options: options}, nil
		}
	}

	bundled := plugin.NewCatalog().
		MustAdd("server:http", serverFactory("http", false)).
		MustAdd("server:websocket", serverFactory("websocket", false)).
		MustAdd("server:broken", serverFactory("broken", true)).
		MustAdd("server:failing", plugin.ServerFactory(func(plugin.Host, plugin.ApplicationPlugin, map[string]any) (plugin.ServerPlugin, error) {
			return &fakeServer{name: "failing", rec: h.rec, failing: true}, nil
		})).
		MustAdd("database:fake", plugin.DatabaseFactory(func(_ plugin.Host, cfg config.DatabaseConfig) (plugin.DatabasePlugin, error) {
			db := &fakeDatabase{cfg: cfg, rec: h.rec, failures: h.failures}
			h.dbs[cfg.RegistryKey()] = db

			return db, nil
		})).
		MustAdd("app:fake", plugin.ApplicationFactory(func(_ plugin.Host, cfg config.ServerConfig) (plugin.ApplicationPlugin, error) {
			app := &fakeApp{cfg: cfg, rec: h.rec, attachments: make(map[string]any)}
			h.apps = append(h.apps, app)

			return app, nil
		})).
		MustAdd("app:@test/assets", plugin.ExtensionFactory(func(_ plugin.Host, app plugin.ApplicationPlugin, cfg map[string]any) error {
			app.Attach("assets", cfg["root"])
			h.rec.add("extension assets")

			return nil
		}))

	if modules == nil {
		modules = entry.NewCatalog()
	}

	manager := setup.NewManager(
		setup.WithWorkdir(dir),
		setup.WithEnvironment(env),
		setup.WithBundled(bundled),
		setup.WithModuleSource(modules),
		setup.WithPluginOpener(func(string) (plugin.Symbols, error) { return nil, os.ErrNotExist }),
	)

	h.core = core.New(manager, h.registry, opts...)

	return h
}
