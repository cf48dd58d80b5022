package domain

// EntityRelation documents a relationship between two entities, possibly
// across bounded contexts.
type EntityRelation struct {
	EntityID          string `json:"entityId"`
	EntityName        string `json:"entityName"`
	Relationship      string `json:"relationship"`
	RelatedEntityID   string `json:"relatedEntityId"`
	RelatedEntityName string `json:"relatedEntityName"`
}

// BoundedContext groups the entity relations of one sub-domain.
type BoundedContext struct {
	Name     string           `json:"name"`
	Entities []EntityRelation `json:"entities"`
}

// Domain is a named set of bounded contexts.
type Domain struct {
	Name            string           `json:"name"`
	BoundedContexts []BoundedContext `json:"boundedContexts"`
}

// ContextMapping describes domains and the relations between them.
type ContextMapping struct {
	Domains       []Domain         `json:"domains"`
	Relationships []EntityRelation `json:"relationships"`
}
