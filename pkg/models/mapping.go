package models

import (
	"time"

	"github.com/google/uuid"
)

// ProcessKind distinguishes how a mapping process was asserted. Only
// user-asserted processes can be removed through the REST deletion flow.
type ProcessKind string

const (
	// ProcessAutomatic is a bulk-imported assertion with no creation date.
	ProcessAutomatic ProcessKind = "automatic"
	// ProcessUserAsserted is a REST-created assertion carrying a creation
	// date and a creator.
	ProcessUserAsserted ProcessKind = "user"
)

// RESTProcessName is the process name recorded for mappings created through
// the REST API.
const RESTProcessName = "REST Mapping"

// MappingProcess is one provenance record for a mapping: who or what
// asserted the relation, when, and why. A process belongs to exactly one
// mapping; a process with no owning mapping is deleted, never kept around.
type MappingProcess struct {
	ID        uuid.UUID  `json:"-"`
	MappingID uuid.UUID  `json:"-"`
	Name      string     `json:"name"`
	Relation  string     `json:"relation"`
	CreatorID *uuid.UUID `json:"-"`
	Creator   string     `json:"creator,omitempty"`
	// Date is nil for automatic (bulk-imported) processes. Its presence is
	// what makes a process eligible for user-driven deletion.
	Date       *time.Time `json:"date,omitempty"`
	Source     *string    `json:"source,omitempty"`
	SourceName *string    `json:"source_name,omitempty"`
	Comment    *string    `json:"comment,omitempty"`
}

// Kind reports whether the process was user-asserted or bulk-imported.
func (p *MappingProcess) Kind() ProcessKind {
	if p.Date != nil {
		return ProcessUserAsserted
	}
	return ProcessAutomatic
}

// TermReference points at a class inside a specific ontology. The ontology
// is referenced by URI rather than by row id: ontologies can be deleted
// while mappings that mention them survive, and readers filter those out.
type TermReference struct {
	OntologyURI string `json:"ontology"`
	ClassURI    string `json:"@id"`
}

// Mapping is an asserted relation between exactly two terms, backed by one
// or more processes. Several processes can independently assert the same
// pairing (an automatic import and a later manual confirmation, for
// example); the mapping exists as long as at least one process backs it.
type Mapping struct {
	ID        uuid.UUID         `json:"-"`
	Classes   []TermReference   `json:"classes"`
	Processes []*MappingProcess `json:"process"`
	CreatedAt time.Time         `json:"created_at"`
}

// HasUserProcess reports whether any process is eligible for the REST
// deletion flow.
func (m *Mapping) HasUserProcess() bool {
	for _, p := range m.Processes {
		if p.Kind() == ProcessUserAsserted {
			return true
		}
	}
	return false
}
