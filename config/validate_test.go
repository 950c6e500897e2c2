package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheck(t *testing.T) {
	t.Parallel()

	setup := &SetupConfig{
		Directory: Directory{Base: "/srv/app", Pattern: "layered"},
		Servers: []ServerConfig{
			{ResourceConfig: ResourceConfig{Type: "http"}, Application: &ApplicationConfig{}},
			{ResourceConfig: ResourceConfig{Type: "websocket"}},
			{},
			{ResourceConfig: ResourceConfig{Type: "websocket"}, BindTo: "http:default"},
		},
		Databases: []DatabaseConfig{
			{ResourceConfig: ResourceConfig{Type: "redis"}, Autoconnect: true},
			{ResourceConfig: ResourceConfig{Type: "sqlite", Plugin: "database:sqlite"}, Autoconnect: true},
			{URI: "redis://localhost"},
		},
	}

	issues := Check(setup, []Miss{{Path: "databases:0:uri", Reference: "[env]:REDIS_URL"}})

	paths := make([]string, 0, len(issues))
	for _, issue := range issues {
		paths = append(paths, issue.Path)
	}

	assert.Equal(t, []string{
		"databases:0:uri",
		"directory:pattern",
		"databases:0",
		"databases:2:plugin",
		"servers:0:application",
		"servers:1",
		"servers:2:type",
	}, paths)

	assert.Contains(t, FormatIssues(issues), "databases:0:uri: reference [env]:REDIS_URL resolved to nothing")
}

func TestCheck_Clean(t *testing.T) {
	t.Parallel()

	setup := &SetupConfig{
		Directory: Directory{Base: "/srv/app", Pattern: PatternMVC},
		Servers: []ServerConfig{
			{ResourceConfig: ResourceConfig{Type: "http"}, Application: &ApplicationConfig{Framework: "chi"}},
			{ResourceConfig: ResourceConfig{Type: "metrics"}, Port: 9100},
		},
		Databases: []DatabaseConfig{
			{ResourceConfig: ResourceConfig{Type: "redis", Plugin: "database:redis"}, URI: "redis://localhost"},
			{ResourceConfig: ResourceConfig{Type: "postgres"}, URI: "postgres://localhost/app"},
		},
	}

	assert.Empty(t, Check(setup, nil))
}
