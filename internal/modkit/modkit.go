// Package modkit provides module wiring and core deps
package modkit

import (
	"net/http"

	"pulseboard/internal/modkit/httpkit"
	"pulseboard/internal/modkit/module"
)

// Module is the surface the api mounts; see module.Module
type Module = module.Module

// Option mutates build configuration for a module
type Option func(*Built)

// WithName overrides the module name used in logs and the registry
func WithName(name string) Option {
	return func(b *Built) { b.Name = name }
}

// WithPrefix mounts a module under another path prefix
func WithPrefix(prefix string) Option {
	return func(b *Built) { b.Prefix = prefix }
}

// WithMiddlewares attaches per module middleware in order
func WithMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(b *Built) { b.Mw = append(b.Mw, mw...) }
}

// WithPorts injects the ports a module consumes; the concrete type is owned by that module
func WithPorts[T any](p T) Option {
	return func(b *Built) { b.Ports = p }
}

// Built is the resolved module configuration
type Built struct {
	Name   string
	Prefix string
	Mw     []func(http.Handler) http.Handler
	Ports  any
}

// Build applies opts over the given defaults
func Build(name, prefix string, opts ...Option) Built {
	b := Built{Name: name, Prefix: prefix}
	for _, o := range opts {
		o(&b)
	}
	return b
}

// Routes returns a module that mounts register under b.Prefix
// ports is what the module exposes to the registry and may differ from b.Ports
func (b Built) Routes(ports any, register func(httpkit.Router)) Module {
	return &routes{b: b, ports: ports, register: register}
}

type routes struct {
	b        Built
	ports    any
	register func(httpkit.Router)
}

func (m *routes) Name() string { return m.b.Name }

func (m *routes) Ports() any { return m.ports }

func (m *routes) MountRoutes(r httpkit.Router) {
	r.Route(m.b.Prefix, func(rr httpkit.Router) {
		if len(m.b.Mw) > 0 {
			rr.Use(m.b.Mw...)
		}
		m.register(rr)
	})
}
