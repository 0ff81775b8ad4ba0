package model

import "time"

// ResourceCRA is a catalog entry for a non-book loanable resource
// (projectors, tablets, board games, ...).  Physical units live in the
// `resource_instances` table; deleting a resource cascades to them.
type ResourceCRA struct {
	ID        uint64    // resources_cra.id
	Nombre    string    // resources_cra.nombre
	Categoria string    // resources_cra.categoria
	Sede      string    // resources_cra.sede
	Ubicacion string    // resources_cra.ubicacion
	CreatedAt time.Time // resources_cra.created_at
	UpdatedAt time.Time // resources_cra.updated_at
}

// ResourceInstance is one physical unit of a resource.  CodigoInterno is a
// unique, campus-prefixed sequential code such as "PROJ-3".
type ResourceInstance struct {
	ID            uint64    // resource_instances.id
	ResourceID    uint64    // resource_instances.resource_id
	CodigoInterno string    // resource_instances.codigo_interno
	Estado        string    // resource_instances.estado
	Observaciones *string   // resource_instances.observaciones (nullable)
	CreatedAt     time.Time // resource_instances.created_at
	UpdatedAt     time.Time // resource_instances.updated_at
}
