package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/DalavanCloud/ontologies-api/pkg/models"
	"github.com/DalavanCloud/ontologies-api/pkg/repositories"
)

const (
	statsAllKey      = "mappings:statistics:ontologies"
	statsOntologyKey = "mappings:statistics:ontologies:%s"
)

// MappingQueryService is the read side of the mapping engine: paged
// listings, recent mappings and aggregate statistics.
type MappingQueryService interface {
	// ForOntology lists mappings for an ontology's latest submission. When
	// classURI is non-empty the listing is restricted to that class and
	// returned unpaged regardless of page/size; an unknown class yields
	// apperrors.ErrNotFound rather than an empty page.
	ForOntology(ctx context.Context, ontology string, page, size int, classURI string) (*models.Page[*models.Mapping], error)

	// BetweenOntologies lists mappings with one term in each of the two
	// ontologies. Both must have a processed submission.
	BetweenOntologies(ctx context.Context, ontologyA, ontologyB string, page, size int) (*models.Page[*models.Mapping], error)

	// Recent returns up to size mappings ordered by most recent user
	// assertion. The store is over-queried by a configured slack and
	// mappings whose ontology has been deleted are dropped before
	// truncation; a result can come up short when more than slack of the
	// newest rows are stale.
	Recent(ctx context.Context, size int) ([]*models.Mapping, error)

	// CountsPerOntology returns mapping counts keyed by ontology acronym.
	CountsPerOntology(ctx context.Context) (map[string]int, error)

	// CountForOntology returns the mapping count for one ontology.
	CountForOntology(ctx context.Context, ontology string) (int, error)
}

type mappingQueryService struct {
	mappingRepo  repositories.MappingRepository
	ontologyRepo repositories.OntologyRepository
	resolver     TermResolver
	cache        *redis.Client // nil disables statistics caching
	cacheTTL     time.Duration
	fetchSlack   int
	logger       *zap.Logger
}

// NewMappingQueryService creates a new MappingQueryService. A nil cache
// client disables statistics caching.
func NewMappingQueryService(
	mappingRepo repositories.MappingRepository,
	ontologyRepo repositories.OntologyRepository,
	resolver TermResolver,
	cache *redis.Client,
	cacheTTL time.Duration,
	fetchSlack int,
	logger *zap.Logger,
) MappingQueryService {
	return &mappingQueryService{
		mappingRepo:  mappingRepo,
		ontologyRepo: ontologyRepo,
		resolver:     resolver,
		cache:        cache,
		cacheTTL:     cacheTTL,
		fetchSlack:   fetchSlack,
		logger:       logger.Named("mapping-query"),
	}
}

var _ MappingQueryService = (*mappingQueryService)(nil)

func (s *mappingQueryService) ForOntology(ctx context.Context, ontology string, page, size int, classURI string) (*models.Page[*models.Mapping], error) {
	if classURI != "" {
		// The class must exist in the latest submission before its
		// mappings are listed; an unknown class is a 404, not an empty
		// collection.
		term, err := s.resolver.Resolve(ctx, classURI, ontology)
		if err != nil {
			return nil, err
		}

		mappings, err := s.mappingRepo.ForClass(ctx, term.Ontology.URI, classURI)
		if err != nil {
			return nil, err
		}
		return models.NewPage(models.UnpagedSentinel, models.UnpagedSentinel, len(mappings), mappings), nil
	}

	ont, _, err := s.resolver.ResolveOntology(ctx, ontology)
	if err != nil {
		return nil, err
	}

	return s.mappingRepo.ForOntology(ctx, ont.URI, page, size)
}

func (s *mappingQueryService) BetweenOntologies(ctx context.Context, ontologyA, ontologyB string, page, size int) (*models.Page[*models.Mapping], error) {
	ontA, _, err := s.resolver.ResolveOntology(ctx, ontologyA)
	if err != nil {
		return nil, err
	}
	ontB, _, err := s.resolver.ResolveOntology(ctx, ontologyB)
	if err != nil {
		return nil, err
	}

	return s.mappingRepo.Between(ctx, ontA.URI, ontB.URI, page, size)
}

func (s *mappingQueryService) Recent(ctx context.Context, size int) ([]*models.Mapping, error) {
	raw, err := s.mappingRepo.Recent(ctx, size+s.fetchSlack)
	if err != nil {
		return nil, err
	}

	existing, err := s.ontologyRepo.ExistingURIs(ctx)
	if err != nil {
		return nil, err
	}

	filtered := make([]*models.Mapping, 0, size)
	for _, mapping := range raw {
		if !allOntologiesExist(mapping, existing) {
			continue
		}
		filtered = append(filtered, mapping)
		if len(filtered) == size {
			break
		}
	}
	return filtered, nil
}

func allOntologiesExist(mapping *models.Mapping, existing map[string]bool) bool {
	for _, term := range mapping.Classes {
		if !existing[term.OntologyURI] {
			return false
		}
	}
	return true
}

func (s *mappingQueryService) CountsPerOntology(ctx context.Context) (map[string]int, error) {
	if cached, ok := s.cachedCounts(ctx, statsAllKey); ok {
		return cached, nil
	}

	counts, err := s.mappingRepo.CountsPerOntology(ctx)
	if err != nil {
		return nil, err
	}

	s.storeCounts(ctx, statsAllKey, counts)
	return counts, nil
}

func (s *mappingQueryService) CountForOntology(ctx context.Context, ontology string) (int, error) {
	var ont *models.Ontology
	var err error
	if isURI(ontology) {
		ont, err = s.ontologyRepo.GetByURI(ctx, ontology)
	} else {
		ont, err = s.ontologyRepo.GetByAcronym(ctx, ontology)
	}
	if err != nil {
		return 0, err
	}

	key := fmt.Sprintf(statsOntologyKey, ont.Acronym)
	if cached, ok := s.cachedCounts(ctx, key); ok {
		return cached[ont.Acronym], nil
	}

	count, err := s.mappingRepo.CountForOntology(ctx, ont.URI)
	if err != nil {
		return 0, err
	}

	s.storeCounts(ctx, key, map[string]int{ont.Acronym: count})
	return count, nil
}

// cachedCounts reads a counts map from the cache. Cache failures are logged
// and treated as misses; statistics stay servable without Redis.
func (s *mappingQueryService) cachedCounts(ctx context.Context, key string) (map[string]int, bool) {
	if s.cache == nil {
		return nil, false
	}

	payload, err := s.cache.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		s.logger.Warn("Statistics cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}

	var counts map[string]int
	if err := json.Unmarshal(payload, &counts); err != nil {
		s.logger.Warn("Statistics cache payload corrupt", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return counts, true
}

func (s *mappingQueryService) storeCounts(ctx context.Context, key string, counts map[string]int) {
	if s.cache == nil {
		return
	}

	payload, err := json.Marshal(counts)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, payload, s.cacheTTL).Err(); err != nil {
		s.logger.Warn("Statistics cache write failed", zap.String("key", key), zap.Error(err))
	}
}
