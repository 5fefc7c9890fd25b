package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DalavanCloud/ontologies-api/pkg/apperrors"
	"github.com/DalavanCloud/ontologies-api/pkg/models"
	"github.com/DalavanCloud/ontologies-api/pkg/repositories"
)

// ClassInput identifies one class of a mapping request: a class URI and the
// ontology (acronym or URI) it lives in.
type ClassInput struct {
	ClassURI string
	Ontology string
}

// CreateMappingInput is the validated payload for a REST mapping creation.
type CreateMappingInput struct {
	Classes  []ClassInput
	Relation string
	Creator  string
	Options  ProcessOptions
}

// DeleteOutcome describes what the deletion flow achieved.
type DeleteOutcome int

const (
	// MappingDeleted means the last user process was disconnected and the
	// mapping is gone.
	MappingDeleted DeleteOutcome = iota
	// MappingWeakened means at least one user process was disconnected but
	// automatic processes still back the mapping.
	MappingWeakened
)

// MappingService orchestrates the creation and deletion of user-asserted
// mappings.
type MappingService interface {
	// CreateRESTMapping resolves both classes and the creator, then
	// persists a new mapping backed by a single user-asserted process.
	// Every resolution happens before the first write; nothing is persisted
	// when any step fails.
	CreateRESTMapping(ctx context.Context, input CreateMappingInput) (*models.Mapping, error)

	// ImportMapping records a bulk-imported assertion: same resolution
	// steps, but the process is automatic (dateless) and carries the
	// loader's name instead of a creator.
	ImportMapping(ctx context.Context, classes []ClassInput, processName, relation string, opts ProcessOptions) (*models.Mapping, error)

	// Get loads one mapping with its full process set.
	Get(ctx context.Context, id uuid.UUID) (*models.Mapping, error)

	// Delete walks the mapping's processes in order and disconnects the
	// user-asserted ones. The mapping is deleted once its process
	// collection empties; if only automatic processes remain after at least
	// one disconnect, the mapping survives weakened. When no process is
	// eligible at all the request is rejected with
	// apperrors.ErrNoUserProcess and nothing changes.
	Delete(ctx context.Context, id uuid.UUID) (DeleteOutcome, error)
}

type mappingService struct {
	mappingRepo repositories.MappingRepository
	userRepo    repositories.UserRepository
	resolver    TermResolver
	registry    MappingProcessRegistry
	logger      *zap.Logger
}

// NewMappingService creates a new MappingService.
func NewMappingService(
	mappingRepo repositories.MappingRepository,
	userRepo repositories.UserRepository,
	resolver TermResolver,
	registry MappingProcessRegistry,
	logger *zap.Logger,
) MappingService {
	return &mappingService{
		mappingRepo: mappingRepo,
		userRepo:    userRepo,
		resolver:    resolver,
		registry:    registry,
		logger:      logger.Named("mapping-service"),
	}
}

var _ MappingService = (*mappingService)(nil)

func (s *mappingService) CreateRESTMapping(ctx context.Context, input CreateMappingInput) (*models.Mapping, error) {
	if len(input.Classes) != 2 {
		return nil, fmt.Errorf("mapping requires exactly 2 classes, got %d: %w",
			len(input.Classes), apperrors.ErrInvalidInput)
	}
	if input.Relation == "" {
		return nil, fmt.Errorf("mapping requires a relation: %w", apperrors.ErrInvalidInput)
	}
	if input.Creator == "" {
		return nil, fmt.Errorf("mapping requires a creator: %w", apperrors.ErrInvalidInput)
	}

	terms, err := s.resolveClasses(ctx, input.Classes)
	if err != nil {
		return nil, err
	}

	creator, err := s.userRepo.GetByUsername(ctx, usernameFromID(input.Creator))
	if err != nil {
		return nil, fmt.Errorf("user with id `%s` not found: %w", input.Creator, apperrors.ErrNotFound)
	}

	process, err := s.registry.NewRESTProcess(creator, input.Relation, input.Options)
	if err != nil {
		return nil, err
	}

	mapping := &models.Mapping{Classes: terms}
	if err := s.mappingRepo.Create(ctx, mapping, process); err != nil {
		return nil, fmt.Errorf("failed to persist mapping: %w", err)
	}

	s.logger.Info("Created REST mapping",
		zap.String("mapping_id", mapping.ID.String()),
		zap.String("creator", creator.Username),
		zap.String("relation", input.Relation))
	return mapping, nil
}

func (s *mappingService) ImportMapping(ctx context.Context, classes []ClassInput, processName, relation string, opts ProcessOptions) (*models.Mapping, error) {
	if len(classes) != 2 {
		return nil, fmt.Errorf("mapping requires exactly 2 classes, got %d: %w",
			len(classes), apperrors.ErrInvalidInput)
	}

	terms, err := s.resolveClasses(ctx, classes)
	if err != nil {
		return nil, err
	}

	process, err := s.registry.NewAutomaticProcess(processName, relation, opts)
	if err != nil {
		return nil, err
	}

	mapping := &models.Mapping{Classes: terms}
	if err := s.mappingRepo.Create(ctx, mapping, process); err != nil {
		return nil, fmt.Errorf("failed to persist imported mapping: %w", err)
	}
	return mapping, nil
}

func (s *mappingService) resolveClasses(ctx context.Context, classes []ClassInput) ([]models.TermReference, error) {
	terms := make([]models.TermReference, 0, len(classes))
	for _, cls := range classes {
		resolved, err := s.resolver.Resolve(ctx, cls.ClassURI, cls.Ontology)
		if err != nil {
			return nil, err
		}
		terms = append(terms, resolved.TermReference())
	}
	return terms, nil
}

func (s *mappingService) Get(ctx context.Context, id uuid.UUID) (*models.Mapping, error) {
	return s.mappingRepo.GetByID(ctx, id)
}

func (s *mappingService) Delete(ctx context.Context, id uuid.UUID) (DeleteOutcome, error) {
	mapping, err := s.mappingRepo.GetByID(ctx, id)
	if err != nil {
		return 0, err
	}

	disconnected := 0
	for _, process := range mapping.Processes {
		if process.Kind() != models.ProcessUserAsserted {
			continue
		}
		_, deleted, err := s.mappingRepo.DisconnectProcess(ctx, mapping.ID, process.ID)
		if err != nil {
			return 0, fmt.Errorf("failed to disconnect process %s: %w", process.ID, err)
		}
		disconnected++
		if deleted {
			s.logger.Info("Deleted mapping", zap.String("mapping_id", id.String()))
			return MappingDeleted, nil
		}
	}

	if disconnected == 0 {
		return 0, fmt.Errorf("mapping %s: %w", id, apperrors.ErrNoUserProcess)
	}

	s.logger.Info("Weakened mapping",
		zap.String("mapping_id", id.String()),
		zap.Int("disconnected", disconnected))
	return MappingWeakened, nil
}

// usernameFromID accepts a bare username or a user URI and returns the
// username (the final path segment of a URI).
func usernameFromID(id string) string {
	if !isURI(id) {
		return id
	}
	parts := strings.Split(strings.TrimSuffix(id, "/"), "/")
	return parts[len(parts)-1]
}
