// Package models contains domain types for ontologies-api.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Ontology is a versioned collection of classes identified by an acronym
// (e.g. "NCIT") and a canonical URI.
type Ontology struct {
	ID        uuid.UUID `json:"-"`
	Acronym   string    `json:"acronym"`
	Name      string    `json:"name"`
	URI       string    `json:"@id"`
	CreatedAt time.Time `json:"created_at"`
}

// Submission status constants. A submission is queryable once parsing
// finished successfully.
const (
	SubmissionStatusUploaded = "UPLOADED"
	SubmissionStatusError    = "ERROR"
	SubmissionStatusReady    = "RDF"
)

// Submission is one processed version of an ontology. "Latest" always means
// the most recent submission whose status is SubmissionStatusReady.
type Submission struct {
	ID           uuid.UUID `json:"-"`
	OntologyID   uuid.UUID `json:"-"`
	SubmissionID int       `json:"submissionId"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`

	// Ontology is populated when the submission is loaded through its
	// owning ontology.
	Ontology *Ontology `json:"-"`
}

// Ready reports whether the submission has been parsed and is queryable.
func (s *Submission) Ready() bool {
	return s.Status == SubmissionStatusReady
}
