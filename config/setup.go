package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"dario.cat/mergo"
)

// DefaultKey is the registry key of a resource declared without "key".
const DefaultKey = "default"

// Directory patterns.
const (
	PatternSingleton = "-"
	PatternMVC       = "mvc"
)

// HTTPType is the server type provisioned by the built-in HTTP path.
const HTTPType = "http"

// Extension section names inside an application config, in the order they are applied.
const (
	SectionSession = "session"
	SectionAssets  = "assets"
	SectionRouting = "routing"
)

// ErrMissingType is returned when a resource declares no type.
var ErrMissingType = errors.New("resource type is required")

// Directory describes where the project's modules live.
type Directory struct {
	Base    string `mapstructure:"base"`
	Pattern string `mapstructure:"pattern"`
}

// ResourceConfig identifies the plugin behind a resource and its registry key.
type ResourceConfig struct {
	Type   string `mapstructure:"type"`
	Plugin string `mapstructure:"plugin"`
	Key    string `mapstructure:"key"`
}

// RegistryKey returns Key, or DefaultKey when it is empty.
func (r ResourceConfig) RegistryKey() string {
	if r.Key == "" {
		return DefaultKey
	}

	return r.Key
}

// ApplicationConfig selects the application framework served by an HTTP server.
type ApplicationConfig struct {
	Framework   string         `mapstructure:"framework"`
	Plugin      string         `mapstructure:"plugin"`
	Middlewares []string       `mapstructure:"middlewares"`
	Session     map[string]any `mapstructure:"session"`
	Assets      map[string]any `mapstructure:"assets"`
	Routing     map[string]any `mapstructure:"routing"`
	Options     map[string]any `mapstructure:"options"`
}

// Reference returns the plugin reference of the framework, or "" when none is configured.
// An explicit plugin wins over the framework name.
func (a *ApplicationConfig) Reference() string {
	if a == nil {
		return ""
	}

	if a.Plugin != "" {
		return a.Plugin
	}

	if a.Framework != "" {
		return "app:" + a.Framework
	}

	return ""
}

// Extension is an application sub-plugin declared in the session, assets or routing section.
type Extension struct {
	Section string
	Plugin  string
	Config  map[string]any
}

// Extensions lists the sub-plugins to apply, skipping sections without a plugin.
func (a *ApplicationConfig) Extensions() []Extension {
	if a == nil {
		return nil
	}

	sections := []struct {
		name   string
		config map[string]any
	}{
		{SectionSession, a.Session},
		{SectionAssets, a.Assets},
		{SectionRouting, a.Routing},
	}

	var out []Extension

	for _, section := range sections {
		ref, _ := section.config["plugin"].(string)
		if ref == "" {
			continue
		}

		out = append(out, Extension{Section: section.name, Plugin: ref, Config: section.config})
	}

	return out
}

// ServerConfig describes an HTTP or auxiliary server.
type ServerConfig struct {
	ResourceConfig `mapstructure:",squash"`

	Host        string             `mapstructure:"HOST"`
	Port        int                `mapstructure:"PORT"`
	BindTo      string             `mapstructure:"bindTo"`
	Application *ApplicationConfig `mapstructure:"application"`
	Options     map[string]any     `mapstructure:"options"`
	Extra       map[string]any     `mapstructure:",remain"`
}

// ApplyDefaults fills every zero field from defaults.
func (s *ServerConfig) ApplyDefaults(defaults ServerConfig) error {
	err := mergo.Merge(s, defaults)
	if err != nil {
		return fmt.Errorf("applying server defaults: %w", err)
	}

	return nil
}

// Address returns HOST:PORT.
func (s *ServerConfig) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// Validate validates the ServerConfig.
func (s *ServerConfig) Validate() error {
	if s.Type == "" {
		return ErrMissingType
	}

	return nil
}

// PoolConfig sizes a connection pool.
type PoolConfig struct {
	MaxOpen     int           `mapstructure:"maxOpen"`
	MaxIdle     int           `mapstructure:"maxIdle"`
	MaxLifetime time.Duration `mapstructure:"maxLifetime"`
}

// DatabaseOptions are the discrete connection settings used when no URI is set.
type DatabaseOptions struct {
	Host     string      `mapstructure:"host"`
	Port     int         `mapstructure:"port"`
	Database string      `mapstructure:"database"`
	User     string      `mapstructure:"user"`
	Password string      `mapstructure:"password"`
	Pool     *PoolConfig `mapstructure:"pool"`
}

// DatabaseConfig describes a database resource.
type DatabaseConfig struct {
	ResourceConfig `mapstructure:",squash"`

	Autoconnect bool             `mapstructure:"autoconnect"`
	URI         string           `mapstructure:"uri"`
	Options     *DatabaseOptions `mapstructure:"options"`
	Extra       map[string]any   `mapstructure:",remain"`
}

// Target returns a printable location of the database: its URI or host.
func (d *DatabaseConfig) Target() string {
	if d.URI != "" {
		return d.URI
	}

	if d.Options != nil {
		return d.Options.Host
	}

	return ""
}

// SetupConfig is the merged and resolved setup.
type SetupConfig struct {
	Directory  Directory        `mapstructure:"directory"`
	Typescript bool             `mapstructure:"typescript"`
	Servers    []ServerConfig   `mapstructure:"servers"`
	Databases  []DatabaseConfig `mapstructure:"databases"`

	// Tree keeps every section of the resolved document.
	Tree map[string]any `mapstructure:"-"`
}

// SetDefaults fills the directory pattern.
func (s *SetupConfig) SetDefaults() bool {
	if s.Directory.Pattern == "" {
		s.Directory.Pattern = PatternSingleton

		return true
	}

	return false
}

// Section returns a top level section of the resolved document.
func (s *SetupConfig) Section(name string) any {
	return s.Tree[name]
}
