package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/DalavanCloud/ontologies-api/pkg/models"
	"github.com/DalavanCloud/ontologies-api/pkg/repositories"
)

// SliceService manages slice-based visibility filters over ontology
// listings.
type SliceService interface {
	// Resolve loads a slice by acronym. Returns apperrors.ErrNotFound for
	// unknown slices; callers treat that as "no filtering".
	Resolve(ctx context.Context, acronym string) (*models.Slice, error)

	// Exists reports whether a slice with the given acronym is known.
	// Satisfies middleware.SliceResolver.
	Exists(ctx context.Context, acronym string) bool

	// Ontologies returns the ontologies visible through a slice.
	Ontologies(ctx context.Context, acronym string) ([]*models.Ontology, error)

	// SynchronizeGroupsToSlices mirrors every group into a slice with the
	// same acronym and membership, stamped with the group it came from.
	// Existing slices keep their identity; only name, membership and group
	// binding are refreshed. Group-backed slices vanish with their group
	// (schema-level cascade); hand-created slices are never touched.
	SynchronizeGroupsToSlices(ctx context.Context) error
}

type sliceService struct {
	sliceRepo repositories.SliceRepository
	groupRepo repositories.GroupRepository
	logger    *zap.Logger
}

// NewSliceService creates a new SliceService.
func NewSliceService(
	sliceRepo repositories.SliceRepository,
	groupRepo repositories.GroupRepository,
	logger *zap.Logger,
) SliceService {
	return &sliceService{
		sliceRepo: sliceRepo,
		groupRepo: groupRepo,
		logger:    logger.Named("slice-service"),
	}
}

var _ SliceService = (*sliceService)(nil)

func (s *sliceService) Resolve(ctx context.Context, acronym string) (*models.Slice, error) {
	return s.sliceRepo.GetByAcronym(ctx, acronym)
}

func (s *sliceService) Exists(ctx context.Context, acronym string) bool {
	_, err := s.sliceRepo.GetByAcronym(ctx, acronym)
	return err == nil
}

func (s *sliceService) Ontologies(ctx context.Context, acronym string) ([]*models.Ontology, error) {
	return s.sliceRepo.Ontologies(ctx, acronym)
}

func (s *sliceService) SynchronizeGroupsToSlices(ctx context.Context) error {
	groups, err := s.groupRepo.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list groups: %w", err)
	}

	for _, group := range groups {
		groupID := group.ID
		slice := &models.Slice{
			Acronym:     group.Acronym,
			Name:        group.Name,
			GroupID:     &groupID,
			OntologyIDs: group.OntologyIDs,
		}
		if err := s.sliceRepo.Upsert(ctx, slice); err != nil {
			return fmt.Errorf("failed to synchronize slice %s: %w", group.Acronym, err)
		}
	}

	s.logger.Info("Synchronized groups to slices", zap.Int("groups", len(groups)))
	return nil
}
