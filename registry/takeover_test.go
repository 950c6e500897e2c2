package registry_test

import (
	"testing"

	"github.com/ckenx/kenx/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPopulated() *registry.Registry {
	reg := registry.New()
	reg.Set("database", "default", "mysql")
	reg.Set("database", "cache", "redis")
	reg.Set("http", "default", "web")
	reg.Set("http", "admin", "backoffice")

	return reg
}

func TestBuildArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		selectors []string
		want      []any
	}{
		{
			name:      "no selectors",
			selectors: nil,
			want:      []any{},
		},
		{
			name:      "section defaults to default key",
			selectors: []string{"database"},
			want:      []any{"mysql"},
		},
		{
			name:      "single missing key is nil",
			selectors: []string{"database:archive"},
			want:      []any{nil},
		},
		{
			name:      "wildcard expands the section",
			selectors: []string{"http:*"},
			want:      []any{registry.Group{"default": "web", "admin": "backoffice"}},
		},
		{
			name:      "wildcard on empty section is an empty group",
			selectors: []string{"websocket:*"},
			want:      []any{registry.Group{}},
		},
		{
			name:      "several keys restrict the group",
			selectors: []string{"database:default", "database:archive", "database:cache"},
			want:      []any{registry.Group{"default": "mysql", "cache": "redis"}},
		},
		{
			name:      "wildcard wins over named keys",
			selectors: []string{"http:admin", "http:*"},
			want:      []any{registry.Group{"default": "web", "admin": "backoffice"}},
		},
		{
			name:      "sections keep first-seen order",
			selectors: []string{"http:admin", "database:*", "http:default"},
			want: []any{
				registry.Group{"admin": "backoffice", "default": "web"},
				registry.Group{"default": "mysql", "cache": "redis"},
			},
		},
		{
			name:      "repeated key stays single",
			selectors: []string{"database:cache", "database:cache"},
			want:      []any{"redis"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			args, err := newPopulated().BuildArgs(tt.selectors)

			require.NoError(t, err)
			assert.Equal(t, tt.want, args)
		})
	}
}

func TestBuildArgs_ArgumentCountMatchesSections(t *testing.T) {
	t.Parallel()

	selectors := []string{"a:1", "b", "a:2", "c:*", "b:x", "d:y"}

	args, err := registry.New().BuildArgs(selectors)

	require.NoError(t, err)
	assert.Len(t, args, 4)
}

func TestBuildArgs_Strict(t *testing.T) {
	t.Parallel()

	reg := newPopulated()

	_, err := reg.BuildArgs([]string{"database:archive"}, registry.WithStrict())
	require.ErrorIs(t, err, registry.ErrResourceNotFound)

	_, err = reg.BuildArgs([]string{"database:default", "database:archive"}, registry.WithStrict())
	require.ErrorIs(t, err, registry.ErrResourceNotFound)

	args, err := reg.BuildArgs([]string{"websocket:*"}, registry.WithStrict())
	require.NoError(t, err)
	assert.Equal(t, []any{registry.Group{}}, args)
}

func TestBuildArgs_InvalidSelector(t *testing.T) {
	t.Parallel()

	_, err := registry.New().BuildArgs([]string{":default"})

	require.ErrorIs(t, err, registry.ErrInvalidSelector)
}
