// Package domain holds the request shapes of the entities API
package domain

import (
	entdom "pulseboard/internal/services/entities/domain"
)

// ResolveInput asks for the canonical id of a raw name
// swagger:model
type ResolveInput struct {
	EntityType string `json:"entity_type" validate:"required,max=32" example:"page"`
	Name       string `json:"name" validate:"required,max=2048" example:"/Pricing & Plans/"`
}

// ResolveOutput is the resolved canonical id
type ResolveOutput struct {
	CanonicalID string `json:"canonical_entity_id" example:"page_pricing_plans"`
	EntityType  string `json:"entity_type" example:"page"`
}

// ActiveInput flips is_active of one entity
// swagger:model
type ActiveInput struct {
	OrganizationID string `json:"organization_id" validate:"required,max=128" example:"acme"`
	CanonicalID    string `json:"canonical_entity_id" validate:"required,max=200" example:"page_pricing_plans"`
	IsActive       *bool  `json:"is_active" validate:"required"`
}

// ActiveOutput echoes the applied state
type ActiveOutput struct {
	OrganizationID string `json:"organization_id"`
	CanonicalID    string `json:"canonical_entity_id"`
	IsActive       bool   `json:"is_active"`
}

// Ports are the services the entities API drives
type Ports struct {
	Entities entdom.Port
}
