// Package services contains the mapping engine: term resolution, process
// registry, the mapping store orchestration and the query side.
package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/DalavanCloud/ontologies-api/pkg/apperrors"
	"github.com/DalavanCloud/ontologies-api/pkg/models"
	"github.com/DalavanCloud/ontologies-api/pkg/repositories"
)

// ResolvedTerm is a class resolved within the latest processed submission of
// its ontology. Immutable once produced.
type ResolvedTerm struct {
	Ontology   *models.Ontology
	Submission *models.Submission
	Class      *models.Class
}

// TermReference converts a resolved term into the reference stored on a
// mapping.
func (t *ResolvedTerm) TermReference() models.TermReference {
	return models.TermReference{
		OntologyURI: t.Ontology.URI,
		ClassURI:    t.Class.URI,
	}
}

// TermResolver resolves class identifiers to canonical term handles.
type TermResolver interface {
	// ResolveOntology accepts a bare acronym or a fully-qualified ontology
	// URI and returns the ontology together with its latest processed
	// submission. Both lookups report distinct not-found outcomes.
	ResolveOntology(ctx context.Context, ontology string) (*models.Ontology, *models.Submission, error)

	// Resolve resolves a class URI within the latest processed submission
	// of the given ontology.
	Resolve(ctx context.Context, classURI, ontology string) (*ResolvedTerm, error)
}

type termResolver struct {
	ontologyRepo repositories.OntologyRepository
	classRepo    repositories.ClassRepository
	logger       *zap.Logger
}

// NewTermResolver creates a new TermResolver.
func NewTermResolver(
	ontologyRepo repositories.OntologyRepository,
	classRepo repositories.ClassRepository,
	logger *zap.Logger,
) TermResolver {
	return &termResolver{
		ontologyRepo: ontologyRepo,
		classRepo:    classRepo,
		logger:       logger.Named("term-resolver"),
	}
}

var _ TermResolver = (*termResolver)(nil)

func (r *termResolver) ResolveOntology(ctx context.Context, ontology string) (*models.Ontology, *models.Submission, error) {
	var (
		ont *models.Ontology
		err error
	)
	if isURI(ontology) {
		ont, err = r.ontologyRepo.GetByURI(ctx, ontology)
	} else {
		ont, err = r.ontologyRepo.GetByAcronym(ctx, ontology)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("ontology with id `%s` not found: %w", ontology, apperrors.ErrNotFound)
	}

	sub, err := r.ontologyRepo.LatestReadySubmission(ctx, ont.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("ontology `%s` does not have a parsed valid submission: %w",
			ont.Acronym, apperrors.ErrNotFound)
	}
	sub.Ontology = ont
	return ont, sub, nil
}

func (r *termResolver) Resolve(ctx context.Context, classURI, ontology string) (*ResolvedTerm, error) {
	ont, sub, err := r.ResolveOntology(ctx, ontology)
	if err != nil {
		return nil, err
	}

	cls, err := r.classRepo.GetInSubmission(ctx, sub.ID, classURI)
	if err != nil {
		return nil, fmt.Errorf("class `%s` not found in ontology `%s`: %w",
			classURI, ont.Acronym, apperrors.ErrNotFound)
	}

	return &ResolvedTerm{Ontology: ont, Submission: sub, Class: cls}, nil
}

// isURI reports whether the identifier is a fully-qualified URI rather than
// a bare acronym.
func isURI(id string) bool {
	return strings.HasPrefix(id, "http://") || strings.HasPrefix(id, "https://")
}
