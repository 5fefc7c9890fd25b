package models

import "github.com/google/uuid"

// Class is a term inside one submission of an ontology. Class URIs are only
// unique within a submission; the same URI can resolve to different terms
// across submissions.
type Class struct {
	SubmissionID uuid.UUID `json:"-"`
	URI          string    `json:"@id"`
	PrefLabel    string    `json:"prefLabel"`
}
