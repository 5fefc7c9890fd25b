package models

import (
	"time"

	"github.com/google/uuid"
)

// Group is an administrative grouping of ontologies (e.g. all ontologies
// belonging to one project or consortium).
type Group struct {
	ID          uuid.UUID   `json:"-"`
	Acronym     string      `json:"acronym"`
	Name        string      `json:"name"`
	OntologyIDs []uuid.UUID `json:"-"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Slice is a named visibility filter over ontology listings. Slices are kept
// in sync with groups: each group gets a slice with the same acronym whose
// membership mirrors the group's ontologies, and a group-backed slice is
// pruned when its group is deleted. Hand-created slices carry no group and
// are never pruned. Requests select a slice via subdomain or the NCBO-Slice
// header.
type Slice struct {
	ID      uuid.UUID `json:"-"`
	Acronym string    `json:"acronym"`
	Name    string    `json:"name"`
	// GroupID is set for slices mirrored from a group, nil for
	// hand-created ones.
	GroupID     *uuid.UUID  `json:"-"`
	OntologyIDs []uuid.UUID `json:"-"`
	CreatedAt   time.Time   `json:"created_at"`
}
