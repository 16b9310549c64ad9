// Package module defines the minimal contract for a modkit module
package module

import (
	phttp "pulseboard/internal/platform/net/http"
)

// Module is a named unit that exposes ports and optionally mounts routes
// it lives apart from modkit so service packages can implement it without import knots
type Module interface {
	MountRoutes(r phttp.Router)
	Ports() any
	Name() string
}
