package operation

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/conduit-lang/apimeta/internal/metadata"
	"github.com/conduit-lang/apimeta/internal/metadata/resource"
)

// RouteMatch is the operation a request path resolved to
type RouteMatch struct {
	Class     metadata.ResourceClass
	Operation string
	Pattern   string
	Variables map[string]string
}

// Router matches requests to operations
type Router interface {
	Match(method, path string) (RouteMatch, error)
}

// ChiRouter routes through a chi mux holding every REST operation
type ChiRouter struct {
	mux    *chi.Mux
	routes map[string]RouteMatch
}

// NewChiRouter creates an empty router
func NewChiRouter() *ChiRouter {
	return &ChiRouter{mux: chi.NewRouter(), routes: make(map[string]RouteMatch)}
}

// NewChiRouterFor creates a router holding every REST operation of the
// universe
func NewChiRouterFor(ctx context.Context, names Names, resources resource.Factory) (*ChiRouter, error) {
	r := NewChiRouter()

	classes, err := names.Names(ctx)
	if err != nil {
		return nil, err
	}
	for _, class := range classes {
		c, err := resources.Create(ctx, class)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", class, err)
		}
		for _, op := range c.Operations() {
			if err := r.Add(op); err != nil {
				return nil, err
			}
		}
	}
	return r, nil
}

// Add registers a REST operation. The first operation registered for a
// method and template keeps it.
func (r *ChiRouter) Add(op metadata.Operation) (err error) {
	if op.URITemplate == "" || op.GraphQL {
		return nil
	}
	method, ok := metadata.NormalizeMethod(op.Method)
	if !ok {
		return &metadata.InvalidMethodError{Class: op.Class, Operation: op.Name, Method: op.Method}
	}
	key := method + " " + op.URITemplate
	if _, ok := r.routes[key]; ok {
		return nil
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("cannot route %s %s: %v", method, op.URITemplate, rec)
		}
	}()
	r.mux.MethodFunc(method, op.URITemplate, func(http.ResponseWriter, *http.Request) {})

	r.routes[key] = RouteMatch{Class: op.Class, Operation: op.Name, Pattern: op.URITemplate}
	return nil
}

// Match implements Router
func (r *ChiRouter) Match(method, path string) (RouteMatch, error) {
	method = strings.ToUpper(method)
	rctx := chi.NewRouteContext()
	if !r.mux.Match(rctx, method, path) {
		return RouteMatch{}, &metadata.OperationNotFoundError{Operation: method + " " + path}
	}

	pattern := rctx.RoutePattern()
	route, ok := r.routes[method+" "+pattern]
	if !ok {
		return RouteMatch{}, &metadata.OperationNotFoundError{Operation: method + " " + path}
	}

	route.Variables = make(map[string]string, len(rctx.URLParams.Keys))
	for i, key := range rctx.URLParams.Keys {
		route.Variables[key] = rctx.URLParams.Values[i]
	}
	return route, nil
}

// Routes lists the registered method and template pairs
func (r *ChiRouter) Routes() []RouteMatch {
	var out []RouteMatch
	_ = chi.Walk(r.mux, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		if m, ok := r.routes[method+" "+route]; ok {
			out = append(out, m)
		}
		return nil
	})
	return out
}
