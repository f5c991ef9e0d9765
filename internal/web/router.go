package web

import (
	"net/http"
	"sort"
	"strings"
)

type Route struct {
	Method  string
	Path    string
	Handler http.HandlerFunc
}

// methodMap dispatches multiple methods on the same path.
type methodMap map[string]http.HandlerFunc

// Router dispatches by path then method. Paths use http.ServeMux patterns,
// so "{name}" segments are read with r.PathValue.
type Router struct {
	mux         *http.ServeMux
	routes      []Route
	pathMethods map[string]methodMap // path → method → handler
}

func NewRouter() *Router {
	return &Router{
		mux:         http.NewServeMux(),
		pathMethods: make(map[string]methodMap),
	}
}

func (rt *Router) Handle(method, path string, handler http.HandlerFunc) {
	rt.routes = append(rt.routes, Route{Method: method, Path: path, Handler: handler})

	// wildcard method: register directly
	if method == "*" {
		rt.mux.HandleFunc(path, handler)
		return
	}

	mm, exists := rt.pathMethods[path]
	if !exists {
		mm = make(methodMap)
		rt.pathMethods[path] = mm
		rt.mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			if h, ok := rt.pathMethods[path][r.Method]; ok {
				h(w, r)
				return
			}
			w.Header().Set("Allow", rt.allowed(path))
			Fail(w, r, "METHOD_NOT_ALLOWED", "method not allowed", http.StatusMethodNotAllowed)
		})
	}
	mm[method] = handler
}

func (rt *Router) allowed(path string) string {
	methods := make([]string, 0, len(rt.pathMethods[path]))
	for m := range rt.pathMethods[path] {
		methods = append(methods, m)
	}
	sort.Strings(methods)
	return strings.Join(methods, ", ")
}

func (rt *Router) GET(path string, handler http.HandlerFunc) {
	rt.Handle(http.MethodGet, path, handler)
}
func (rt *Router) POST(path string, handler http.HandlerFunc) {
	rt.Handle(http.MethodPost, path, handler)
}
func (rt *Router) PUT(path string, handler http.HandlerFunc) {
	rt.Handle(http.MethodPut, path, handler)
}
func (rt *Router) DELETE(path string, handler http.HandlerFunc) {
	rt.Handle(http.MethodDelete, path, handler)
}

// Routes lists registered routes in registration order.
func (rt *Router) Routes() []Route {
	out := make([]Route, len(rt.routes))
	copy(out, rt.routes)
	return out
}

func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt.mux.ServeHTTP(w, r)
}

// Group registers routes under a shared path prefix.
type Group struct {
	rt     *Router
	prefix string
}

func (rt *Router) Group(prefix string) *Group {
	return &Group{rt: rt, prefix: strings.TrimSuffix(prefix, "/")}
}

// Path returns the full path of a route in the group.
func (g *Group) Path(p string) string { return g.prefix + p }

func (g *Group) GET(p string, h http.HandlerFunc)    { g.rt.GET(g.Path(p), h) }
func (g *Group) POST(p string, h http.HandlerFunc)   { g.rt.POST(g.Path(p), h) }
func (g *Group) PUT(p string, h http.HandlerFunc)    { g.rt.PUT(g.Path(p), h) }
func (g *Group) DELETE(p string, h http.HandlerFunc) { g.rt.DELETE(g.Path(p), h) }
