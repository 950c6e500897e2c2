package entry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ckenx/kenx/entry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ctxKey struct{}

func TestPositional(t *testing.T) {
	t.Parallel()

	errApp := errors.New("application failed")

	tests := []struct {
		name    string
		fn      any
		in      entry.Input
		want    any
		wantErr error
	}{
		{
			name: "value result",
			fn:   func(a, b string) string { return a + b },
			in:   entry.Input{Args: []any{"http", "db"}},
			want: "httpdb",
		},
		{
			name: "no result",
			fn:   func(string) {},
			in:   entry.Input{Args: []any{"x"}},
			want: nil,
		},
		{
			name:    "error result",
			fn:      func() error { return errApp },
			wantErr: errApp,
		},
		{
			name:    "value and error",
			fn:      func(n int) (int, error) { return n * 2, nil },
			in:      entry.Input{Args: []any{21}},
			want:    42,
			wantErr: nil,
		},
		{
			name: "nil becomes zero value",
			fn:   func(db map[string]any, s string) bool { return db == nil && s == "" },
			in:   entry.Input{Args: []any{nil}},
			want: true,
		},
		{
			name: "surplus arguments are dropped",
			fn:   func(a string) string { return a },
			in:   entry.Input{Args: []any{"kept", "dropped"}},
			want: "kept",
		},
		{
			name: "variadic collects the rest",
			fn:   func(first string, rest ...any) int { return len(rest) },
			in:   entry.Input{Args: []any{"a", "b", "c"}},
			want: 2,
		},
		{
			name: "controllers receive models and views",
			fn: func(http, models, views string) string {
				return http + "|" + models + "|" + views
			},
			in:   entry.Input{Args: []any{"server"}, Models: "m", Views: "v", Role: entry.RoleController},
			want: "server|m|v",
		},
		{
			name: "leading context",
			fn: func(ctx context.Context, s string) string {
				return ctx.Value(ctxKey{}).(string) + s //nolint:forcetypeassert
			},
			in:   entry.Input{Args: []any{"!"}},
			want: "ctx!",
		},
		{
			name:    "mismatched argument",
			fn:      func(n int) int { return n },
			in:      entry.Input{Args: []any{"nope"}},
			wantErr: entry.ErrArgumentType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fn, err := entry.Positional(tt.fn)
			require.NoError(t, err)

			ctx := context.WithValue(t.Context(), ctxKey{}, "ctx")

			got, err := fn(ctx, tt.in)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPositional_Rejects(t *testing.T) {
	t.Parallel()

	_, err := entry.Positional("not a func")
	require.ErrorIs(t, err, entry.ErrNotFunc)

	_, err = entry.Positional(func() (int, int) { return 0, 0 })
	require.ErrorIs(t, err, entry.ErrNotFunc)

	assert.Panics(t, func() { entry.MustPositional(nil) })
}

func TestInput_Positional(t *testing.T) {
	t.Parallel()

	in := entry.Input{Args: []any{1, 2}, Models: "m", Views: nil}

	assert.Equal(t, []any{1, 2}, in.Positional())

	in.Role = entry.RoleController
	assert.Equal(t, []any{1, 2, "m", nil}, in.Positional())
}
