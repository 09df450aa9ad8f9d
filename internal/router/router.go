// Package router maps request paths to the handlers that build each document.
package router

import (
	"net/http"

	"cloudpico-node/internal/sensor"
	"cloudpico-node/internal/views"
)

// Handler builds the response document for one request. A returned error
// wrapping sensor.ErrPeripheral is answered with 503.
type Handler func(r *http.Request) (views.Document, error)

type Route struct {
	Path    string
	Handler Handler
}

// Router is a fixed exact-match table. It is never mutated after New.
type Router struct {
	routes map[string]Handler
}

// New builds a router from routes. A later route with the same path
// replaces an earlier one.
func New(routes ...Route) *Router {
	m := make(map[string]Handler, len(routes))
	for _, rt := range routes {
		m[rt.Path] = rt.Handler
	}
	return &Router{routes: m}
}

// Route returns the handler registered for path. Matching is exact and
// case-sensitive; "/metrics/" and "/Metrics" do not match "/metrics".
func (rt *Router) Route(path string) (Handler, bool) {
	h, ok := rt.routes[path]
	return h, ok
}

// SensorReader is the part of sensor.Reader the default routes use.
type SensorReader interface {
	Sample() (sensor.Sample, error)
	Health() (sensor.Health, error)
	BarometerName() string
}

// Observer receives every sample that made it into a metrics document.
// Observe must not block.
type Observer interface {
	Observe(id sensor.Identity, s sensor.Sample)
}

type Options struct {
	Observer Observer
}

// Default registers "/" (status page) and "/metrics" (exposition).
func Default(reader SensorReader, id sensor.Identity, opts Options) *Router {
	return New(
		Route{Path: "/", Handler: statusHandler(reader, id)},
		Route{Path: views.MetricsPath, Handler: metricsHandler(reader, id, opts.Observer)},
	)
}

func statusHandler(reader SensorReader, id sensor.Identity) Handler {
	return func(*http.Request) (views.Document, error) {
		h, err := reader.Health()
		if err != nil {
			return views.Document{}, err
		}
		return views.RenderStatus(id, h)
	}
}

func metricsHandler(reader SensorReader, id sensor.Identity, obs Observer) Handler {
	return func(*http.Request) (views.Document, error) {
		s, err := reader.Sample()
		if err != nil {
			return views.Document{}, err
		}
		doc := views.RenderMetrics(id, s, views.MetricsOptions{BarometerName: reader.BarometerName()})
		if obs != nil {
			obs.Observe(id, s)
		}
		return doc, nil
	}
}
