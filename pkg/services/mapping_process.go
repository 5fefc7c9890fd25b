package services

import (
	"fmt"
	"time"

	"github.com/DalavanCloud/ontologies-api/pkg/apperrors"
	"github.com/DalavanCloud/ontologies-api/pkg/models"
)

// ProcessOptions carries the optional descriptive attributes of a mapping
// process. Unset fields stay NULL in the store.
type ProcessOptions struct {
	Source     *string
	SourceName *string
	Comment    *string
}

// MappingProcessRegistry builds provenance records for mapping assertions.
// Processes are persisted by the mapping store together with the mapping
// they back, never on their own: a process without an owning mapping must
// not exist.
type MappingProcessRegistry interface {
	// NewRESTProcess builds a user-asserted process stamped with the
	// current time. Relation and creator are required.
	NewRESTProcess(creator *models.User, relation string, opts ProcessOptions) (*models.MappingProcess, error)

	// NewAutomaticProcess builds a dateless process for bulk-imported
	// mappings. Such processes are not removable through the REST deletion
	// flow.
	NewAutomaticProcess(name, relation string, opts ProcessOptions) (*models.MappingProcess, error)
}

type mappingProcessRegistry struct{}

// NewMappingProcessRegistry creates a new MappingProcessRegistry.
func NewMappingProcessRegistry() MappingProcessRegistry {
	return &mappingProcessRegistry{}
}

var _ MappingProcessRegistry = (*mappingProcessRegistry)(nil)

func (g *mappingProcessRegistry) NewRESTProcess(creator *models.User, relation string, opts ProcessOptions) (*models.MappingProcess, error) {
	if relation == "" {
		return nil, fmt.Errorf("mapping process requires a relation: %w", apperrors.ErrInvalidInput)
	}
	if creator == nil {
		return nil, fmt.Errorf("REST mapping process requires a creator: %w", apperrors.ErrInvalidInput)
	}

	now := time.Now()
	creatorID := creator.ID
	return &models.MappingProcess{
		Name:       models.RESTProcessName,
		Relation:   relation,
		CreatorID:  &creatorID,
		Creator:    creator.Username,
		Date:       &now,
		Source:     opts.Source,
		SourceName: opts.SourceName,
		Comment:    opts.Comment,
	}, nil
}

func (g *mappingProcessRegistry) NewAutomaticProcess(name, relation string, opts ProcessOptions) (*models.MappingProcess, error) {
	if relation == "" {
		return nil, fmt.Errorf("mapping process requires a relation: %w", apperrors.ErrInvalidInput)
	}
	if name == "" {
		return nil, fmt.Errorf("automatic mapping process requires a name: %w", apperrors.ErrInvalidInput)
	}

	return &models.MappingProcess{
		Name:       name,
		Relation:   relation,
		Source:     opts.Source,
		SourceName: opts.SourceName,
		Comment:    opts.Comment,
	}, nil
}
