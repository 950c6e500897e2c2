package setup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"

	"github.com/ckenx/kenx/config"
	"github.com/ckenx/kenx/entry"
	"github.com/ckenx/kenx/logging"
	"github.com/ckenx/kenx/plugin"
)

// Defaults for the project layout.
const (
	DefaultConfigDir = ".config"
	IndexTarget      = "index"
	PluginsDir       = "plugins"
	CompiledDir      = "dist"
)

// ErrNotInitialized is returned by operations that need a loaded setup.
var ErrNotInitialized = errors.New("no setup configuration found")

// ErrSetupNotFound is returned when the index setup document cannot be loaded.
var ErrSetupNotFound = errors.New("setup configuration not loaded")

var _ plugin.Host = (*Manager)(nil)

// Manager loads the setup configuration and imports plugins and modules on its behalf.
type Manager struct {
	workdir    string
	configDir  string
	categories []string
	bundled    *plugin.Catalog
	extra      []plugin.Source
	openPlugin plugin.OpenFunc
	modules    []entry.Source
	openModule entry.OpenFunc
	fatal      func(error)
	logger     *slog.Logger

	vars    map[string]string
	process bool
	env     Environment

	setup   *config.SetupConfig
	plugins []string
	issues  []config.Issue
	loader  *plugin.Loader
	source  entry.Source
}

// Option configures a Manager.
type Option func(*Manager)

// WithWorkdir sets the project root. It defaults to the current directory.
func WithWorkdir(dir string) Option {
	return func(m *Manager) {
		m.workdir = dir
	}
}

// WithConfigDir sets the directory holding setup documents, relative to the workdir.
func WithConfigDir(dir string) Option {
	return func(m *Manager) {
		m.configDir = dir
	}
}

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithEnvironment replaces the process environment with vars.
// Dotenv values are merged into vars instead of the process.
func WithEnvironment(vars map[string]string) Option {
	return func(m *Manager) {
		m.vars = make(map[string]string, len(vars))
		maps.Copy(m.vars, vars)
		m.process = false
	}
}

// WithCategories sets the plugin category allow-list.
func WithCategories(categories ...string) Option {
	return func(m *Manager) {
		m.categories = categories
	}
}

// WithBundled sets the catalog searched last, after local and registered plugins.
func WithBundled(catalog *plugin.Catalog) Option {
	return func(m *Manager) {
		m.bundled = catalog
	}
}

// WithPluginSource adds sources searched after the project plugins directory.
func WithPluginSource(sources ...plugin.Source) Option {
	return func(m *Manager) {
		m.extra = append(m.extra, sources...)
	}
}

// WithPluginOpener replaces how plugin shared objects are opened.
func WithPluginOpener(open plugin.OpenFunc) Option {
	return func(m *Manager) {
		m.openPlugin = open
	}
}

// WithModuleSource adds entrypoint sources searched before shared objects.
func WithModuleSource(sources ...entry.Source) Option {
	return func(m *Manager) {
		m.modules = append(m.modules, sources...)
	}
}

// WithModuleOpener replaces how entrypoint shared objects are opened.
func WithModuleOpener(open entry.OpenFunc) Option {
	return func(m *Manager) {
		m.openModule = open
	}
}

// WithFatal sets the callback run by Fatal.
func WithFatal(fatal func(error)) Option {
	return func(m *Manager) {
		m.fatal = fatal
	}
}

// NewManager creates a Manager.
func NewManager(opts ...Option) *Manager {
	manager := &Manager{
		workdir:   ".",
		configDir: DefaultConfigDir,
		bundled:   plugin.NewCatalog(),
		logger:    slog.Default(),
		process:   true,
	}

	for _, apply := range opts {
		apply(manager)
	}

	if manager.vars == nil {
		manager.vars = environFromProcess()
	}

	if abs, err := filepath.Abs(manager.workdir); err == nil {
		manager.workdir = abs
	}

	manager.logger = logging.Component(manager.logger, "setup")

	return manager
}

// LoadEnv reads ".env.local" in development mode and ".env" otherwise.
// Variables already set are kept. A missing file is not an error.
// Without WithEnvironment the process environment is read again here, so
// variables set after NewManager are visible to [env] references.
func (m *Manager) LoadEnv() error {
	if m.process {
		m.vars = environFromProcess()
	}

	name := EnvFile
	if isDevelopment(m.vars["KENX_ENV"], m.vars["NODE_ENV"]) {
		name = DevelopmentEnvFile
	}

	values, err := readEnvFile(filepath.Join(m.workdir, name))
	if err != nil {
		return err
	}

	for key, value := range values {
		if _, set := m.vars[key]; set {
			continue
		}

		m.vars[key] = value

		if m.process {
			err := os.Setenv(key, value)
			if err != nil {
				return fmt.Errorf("setting %s: %w", key, err)
			}
		}
	}

	m.logger.Debug("environment loaded", slog.String("file", name), slog.Int("variables", len(values)))

	environment, err := ParseEnvironment(m.vars)
	if err != nil {
		return err
	}

	m.env = environment

	return nil
}

// Initialize loads and resolves the index setup, decodes it and prepares the
// plugin loader. Problems that do not prevent startup are logged as warnings.
func (m *Manager) Initialize() error {
	tree, collector, misses, err := m.load(IndexTarget)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSetupNotFound, err)
	}

	setup, err := config.Decode(tree, "", &config.SetupConfig{})
	if err != nil {
		return fmt.Errorf("decoding setup: %w", err)
	}

	setup.Tree = tree

	if setup.Directory.Base == "" {
		setup.Directory.Base = "."
	}

	setup.Directory.Base = m.absolute(setup.Directory.Base)

	m.setup = setup
	m.plugins = collector.Plugins()
	m.issues = config.Check(setup, misses)

	for _, issue := range m.issues {
		m.logger.Warn("setup issue", slog.String("path", issue.Path), slog.String("issue", issue.Message))
	}

	root := m.lookupRoot()

	sources := []plugin.Source{plugin.NewDirectorySource(filepath.Join(root, PluginsDir), m.openPlugin)}
	sources = append(sources, m.extra...)
	sources = append(sources,
		plugin.NewCatalogSource("packages", plugin.Packages()),
		plugin.NewCatalogSource("bundled", m.bundled),
	)

	m.loader = plugin.NewLoader(
		plugin.WithSources(sources...),
		plugin.WithCategories(m.categoryList()...),
		plugin.WithLogger(logging.Component(m.logger, "plugin")),
	)

	chain := append(entry.Chain{}, m.modules...)
	m.source = append(chain, entry.NewSharedObjectSource(root, m.openModule))

	m.logger.Info("setup initialized",
		slog.String("base", setup.Directory.Base),
		slog.String("pattern", setup.Directory.Pattern),
		slog.Int("servers", len(setup.Servers)),
		slog.Int("databases", len(setup.Databases)),
	)

	return nil
}

// LoadConfig loads and resolves another setup target, such as "frontend".
func (m *Manager) LoadConfig(target string) (map[string]any, error) {
	tree, _, _, err := m.load(target)
	if err != nil {
		return nil, err
	}

	return tree, nil
}

func (m *Manager) load(target string) (map[string]any, *config.PluginCollector, []config.Miss, error) {
	loader := config.NewLoader(config.WithLoaderLogger(m.logger))

	raw, err := loader.Load(filepath.Join(m.workdir, m.configDir, target))
	if err != nil {
		return nil, nil, nil, err //nolint:wrapcheck
	}

	collector := &config.PluginCollector{}
	resolver := config.NewResolver(
		config.WithEnvLookup(m.lookupEnv),
		config.WithObserver(collector),
	)

	tree, err := resolver.ResolveTree(raw)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("resolving %s: %w", target, err)
	}

	return tree, collector, resolver.Misses(), nil
}

func (m *Manager) lookupEnv(key string) (string, bool) {
	value, ok := m.vars[key]

	return value, ok
}

func (m *Manager) categoryList() []string {
	if len(m.categories) == 0 {
		return plugin.DefaultCategories
	}

	return m.categories
}

// lookupRoot is where local plugins and modules live: the base directory,
// or the compiled output when the project is built from TypeScript sources.
func (m *Manager) lookupRoot() string {
	if m.setup.Typescript {
		return filepath.Join(m.workdir, CompiledDir)
	}

	return m.setup.Directory.Base
}

func (m *Manager) absolute(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}

	return filepath.Join(m.workdir, path)
}

// Config returns the resolved setup, or nil before Initialize.
func (m *Manager) Config() *config.SetupConfig {
	return m.setup
}

// Section returns a top level section of the resolved setup.
func (m *Manager) Section(name string) any {
	if m.setup == nil {
		return nil
	}

	return m.setup.Section(name)
}

// Env returns the parsed environment.
func (m *Manager) Env() Environment {
	return m.env
}

// Issues returns the problems found by Initialize.
func (m *Manager) Issues() []config.Issue {
	return m.issues
}

// Plugins returns every plugin reference found in the setup, in discovery order.
func (m *Manager) Plugins() []string {
	return m.plugins
}

// Workdir returns the absolute project root.
func (m *Manager) Workdir() string {
	return m.workdir
}

// ImportModule imports the entrypoint module at path, relative to the base directory.
func (m *Manager) ImportModule(ctx context.Context, path string) (entry.Module, error) {
	if m.source == nil {
		return entry.Module{}, ErrNotInitialized
	}

	return m.source.Import(ctx, path) //nolint:wrapcheck
}

// Logger implements plugin.Host.
func (m *Manager) Logger() *slog.Logger {
	return m.logger
}

// ImportPlugin implements plugin.Host.
func (m *Manager) ImportPlugin(reference string) (any, error) {
	if m.loader == nil {
		return nil, ErrNotInitialized
	}

	return m.loader.Import(reference) //nolint:wrapcheck
}

// ResolvePath implements plugin.Host. Relative paths are resolved against the base directory.
func (m *Manager) ResolvePath(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}

	base := m.workdir
	if m.setup != nil {
		base = m.setup.Directory.Base
	}

	return filepath.Join(base, path)
}

// Environment implements plugin.Host.
func (m *Manager) Environment() map[string]string {
	return maps.Clone(m.vars)
}

// Fatal implements plugin.Host.
func (m *Manager) Fatal(err error) {
	m.logger.Error("fatal error", slog.Any("error", err))

	if m.fatal != nil {
		m.fatal(err)
	}
}
