package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/DalavanCloud/ontologies-api/pkg/models"
	"github.com/DalavanCloud/ontologies-api/pkg/repositories"
)

// OntologyService serves ontology listings, optionally scoped to a slice.
type OntologyService interface {
	// List returns all ontologies, or only those visible through the given
	// slice when sliceAcronym is non-empty.
	List(ctx context.Context, sliceAcronym string) ([]*models.Ontology, error)
}

type ontologyService struct {
	ontologyRepo repositories.OntologyRepository
	slices       SliceService
	logger       *zap.Logger
}

// NewOntologyService creates a new OntologyService.
func NewOntologyService(
	ontologyRepo repositories.OntologyRepository,
	slices SliceService,
	logger *zap.Logger,
) OntologyService {
	return &ontologyService{
		ontologyRepo: ontologyRepo,
		slices:       slices,
		logger:       logger.Named("ontology-service"),
	}
}

var _ OntologyService = (*ontologyService)(nil)

func (s *ontologyService) List(ctx context.Context, sliceAcronym string) ([]*models.Ontology, error) {
	if sliceAcronym != "" {
		return s.slices.Ontologies(ctx, sliceAcronym)
	}
	return s.ontologyRepo.List(ctx)
}
