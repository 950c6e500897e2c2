// Package static is the "app:@kenx/static" extension serving a directory of assets.
//
//	assets:
//	  plugin: app:@kenx/static
//	  root: public
//	  prefix: /static
//	  maxAge: 1h
package static

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ckenx/kenx/config"
	"github.com/ckenx/kenx/plugin"
)

// Reference is the plugin reference of this package.
const Reference = "app:@kenx/static"

// AttachmentKey holds the absolute asset root on the application.
const AttachmentKey = "assets"

// ErrNotDirectory is returned when the asset root is missing or not a directory.
var ErrNotDirectory = errors.New("asset root is not a directory")

// Options of the extension.
type Options struct {
	Root   string        `mapstructure:"root"`
	Prefix string        `mapstructure:"prefix"`
	MaxAge time.Duration `mapstructure:"maxAge"`
}

// SetDefaults sets default values for the Options.
func (o *Options) SetDefaults() bool {
	changed := false

	if o.Root == "" {
		o.Root = "public"
		changed = true
	}

	if o.Prefix == "" {
		o.Prefix = "/static"
		changed = true
	}

	return changed
}

// Validate checks the prefix.
func (o *Options) Validate() error {
	if !strings.HasPrefix(o.Prefix, "/") {
		return fmt.Errorf("prefix %q must start with /", o.Prefix) //nolint:err113
	}

	return nil
}

// Apply is the plugin.ExtensionFactory of "app:@kenx/static".
func Apply(host plugin.Host, app plugin.ApplicationPlugin, cfg map[string]any) error {
	opts, err := config.Decode(cfg, "", &Options{})
	if err != nil {
		return fmt.Errorf("static options: %w", err)
	}

	root := host.ResolvePath(opts.Root)

	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotDirectory, root)
	}

	prefix := strings.TrimSuffix(opts.Prefix, "/")

	var handler http.Handler = http.FileServer(http.Dir(root))
	if prefix != "" {
		handler = http.StripPrefix(prefix, handler)
	}

	if opts.MaxAge > 0 {
		handler = cacheControl(handler, opts.MaxAge)
	}

	err = app.Router(opts.Prefix, handler)
	if err != nil {
		return fmt.Errorf("mounting assets: %w", err)
	}

	app.Attach(AttachmentKey, root)

	host.Logger().Debug("assets mounted", "root", root, "prefix", opts.Prefix)

	return nil
}

func cacheControl(next http.Handler, maxAge time.Duration) http.Handler {
	value := "public, max-age=" + strconv.Itoa(int(maxAge.Seconds()))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", value)
		next.ServeHTTP(w, r)
	})
}
