package httpserver

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/http"

	"github.com/ckenx/kenx/plugin"
)

var (
	// ErrNotMountable is returned when a bind target cannot mount handlers.
	ErrNotMountable = errors.New("bind target cannot mount handlers")
	// ErrTargetNotBound is returned when a bind target is not listening yet.
	ErrTargetNotBound = errors.New("bind target is not listening")
)

// Attach serves handler at pattern for an auxiliary server. With a target in
// binder the handler is mounted on it and the returned *Server is nil;
// otherwise a new Server listens on the binder address. The returned info
// carries the pattern as its "path" extra.
func Attach(
	ctx context.Context,
	host plugin.Host,
	binder plugin.Binder,
	pattern string,
	handler http.Handler,
	options map[string]any,
) (*Server, *plugin.ActiveServerInfo, error) {
	if binder.Target != nil {
		mounter, ok := binder.Target.(plugin.Mounter)
		if !ok {
			return nil, nil, fmt.Errorf("%w: %T", ErrNotMountable, binder.Target)
		}

		targetInfo := binder.Target.Info()
		if targetInfo == nil {
			return nil, nil, ErrTargetNotBound
		}

		mounter.Mount(pattern, handler)

		return nil, withPath(targetInfo, pattern), nil
	}

	own, err := New(host, nil, options)
	if err != nil {
		return nil, nil, err
	}

	server, _ := own.(*Server)
	server.Mount(pattern, handler)

	info, err := server.Listen(ctx, plugin.Binder{Host: binder.Host, Port: binder.Port})
	if err != nil {
		return nil, nil, err
	}

	return server, withPath(info, pattern), nil
}

func withPath(info *plugin.ActiveServerInfo, pattern string) *plugin.ActiveServerInfo {
	extra := maps.Clone(info.Extra)
	if extra == nil {
		extra = make(map[string]any, 1)
	}

	extra["path"] = pattern

	return &plugin.ActiveServerInfo{Type: info.Type, Host: info.Host, Port: info.Port, Extra: extra}
}
