package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// route is one entry of the static route table. A pattern is either a
// literal path or a literal prefix ending in a "{name...}" capture.
type route struct {
	method   string
	pattern  string
	prefix   string
	wildcard string
	handler  http.Handler
}

// router dispatches on (method, path). It is filled once at startup and
// only read afterwards.
type router struct {
	routes   []route
	notFound http.Handler
}

func newRouter(notFound http.Handler) *router {
	return &router{notFound: notFound}
}

// handle registers h. It panics on a malformed pattern or a duplicate,
// both of which are programming errors in the fixed table.
func (rt *router) handle(method, pattern string, h http.Handler) {
	e := route{method: method, pattern: pattern, prefix: pattern, handler: h}
	if open := strings.LastIndexByte(pattern, '{'); open >= 0 {
		if !strings.HasSuffix(pattern, "...}") || !strings.HasSuffix(pattern[:open], "/") {
			panic(fmt.Sprintf("router: bad pattern %q", pattern))
		}
		e.prefix = pattern[:open]
		e.wildcard = strings.TrimSuffix(pattern[open+1:], "...}")
		if e.wildcard == "" || strings.ContainsAny(e.prefix, "{}") {
			panic(fmt.Sprintf("router: bad pattern %q", pattern))
		}
	}
	for _, existing := range rt.routes {
		if existing.method == method && existing.pattern == pattern {
			panic(fmt.Sprintf("router: duplicate route %s %s", method, pattern))
		}
	}
	rt.routes = append(rt.routes, e)
}

// match returns the most specific route for method and path: an exact
// literal beats any capture, and among captures the longest prefix wins.
// The second result is the captured remainder.
func (rt *router) match(method, path string) (*route, string) {
	var (
		best      *route
		bestScore = -1
		capture   string
	)
	for i := range rt.routes {
		e := &rt.routes[i]
		if e.method != method {
			continue
		}
		switch {
		case e.wildcard == "":
			if path == e.pattern && len(e.pattern)+1 > bestScore {
				best, bestScore, capture = e, len(e.pattern)+1, ""
			}
		case len(path) > len(e.prefix) && strings.HasPrefix(path, e.prefix):
			if len(e.prefix) > bestScore {
				best, bestScore, capture = e, len(e.prefix), path[len(e.prefix):]
			}
		}
	}
	return best, capture
}

func (rt *router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	e, rest := rt.match(r.Method, r.URL.Path)
	if e == nil && r.Method == http.MethodHead {
		e, rest = rt.match(http.MethodGet, r.URL.Path)
	}
	if e == nil {
		setRoute(r.Context(), routeNotFound)
		rt.notFound.ServeHTTP(w, r)
		return
	}
	setRoute(r.Context(), e.pattern)
	if e.wildcard != "" {
		r.SetPathValue(e.wildcard, rest)
	}
	e.handler.ServeHTTP(w, r)
}

const routeNotFound = "notfound"

// routeSlot lets the router report the matched pattern to outer middleware.
type routeSlot struct {
	pattern string
}

type routeSlotKey struct{}

func withRouteSlot(ctx context.Context) (context.Context, *routeSlot) {
	slot := &routeSlot{pattern: routeNotFound}
	return context.WithValue(ctx, routeSlotKey{}, slot), slot
}

func setRoute(ctx context.Context, pattern string) {
	if slot, ok := ctx.Value(routeSlotKey{}).(*routeSlot); ok {
		slot.pattern = pattern
	}
}
