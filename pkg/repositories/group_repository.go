package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/DalavanCloud/ontologies-api/pkg/apperrors"
	"github.com/DalavanCloud/ontologies-api/pkg/database"
	"github.com/DalavanCloud/ontologies-api/pkg/models"
)

// GroupRepository provides data access for ontology groups.
type GroupRepository interface {
	Create(ctx context.Context, group *models.Group) error
	AddOntology(ctx context.Context, groupID, ontologyID uuid.UUID) error
	// List returns every group with its ontology membership populated.
	List(ctx context.Context) ([]*models.Group, error)
	// Delete removes a group. The slice mirrored from it is pruned by the
	// schema's foreign key.
	Delete(ctx context.Context, id uuid.UUID) error
}

type groupRepository struct {
	db *database.DB
}

// NewGroupRepository creates a new GroupRepository.
func NewGroupRepository(db *database.DB) GroupRepository {
	return &groupRepository{db: db}
}

var _ GroupRepository = (*groupRepository)(nil)

func (r *groupRepository) Create(ctx context.Context, group *models.Group) error {
	if group.ID == uuid.Nil {
		group.ID = uuid.New()
	}
	if group.CreatedAt.IsZero() {
		group.CreatedAt = time.Now()
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO groups (id, acronym, name, created_at) VALUES ($1, $2, $3, $4)`,
		group.ID, group.Acronym, group.Name, group.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create group %s: %w", group.Acronym, err)
	}
	return nil
}

func (r *groupRepository) AddOntology(ctx context.Context, groupID, ontologyID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO group_ontologies (group_id, ontology_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`,
		groupID, ontologyID)
	if err != nil {
		return fmt.Errorf("failed to add ontology to group: %w", err)
	}
	return nil
}

func (r *groupRepository) List(ctx context.Context) ([]*models.Group, error) {
	rows, err := r.db.Query(ctx, `
		SELECT g.id, g.acronym, g.name, g.created_at, go.ontology_id
		FROM groups g
		LEFT JOIN group_ontologies go ON go.group_id = g.id
		ORDER BY g.acronym`)
	if err != nil {
		return nil, fmt.Errorf("failed to query groups: %w", err)
	}
	defer rows.Close()

	byID := make(map[uuid.UUID]*models.Group)
	var groups []*models.Group
	for rows.Next() {
		var (
			id         uuid.UUID
			acronym    string
			name       string
			createdAt  time.Time
			ontologyID *uuid.UUID
		)
		if err := rows.Scan(&id, &acronym, &name, &createdAt, &ontologyID); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		group, ok := byID[id]
		if !ok {
			group = &models.Group{ID: id, Acronym: acronym, Name: name, CreatedAt: createdAt}
			byID[id] = group
			groups = append(groups, group)
		}
		if ontologyID != nil {
			group.OntologyIDs = append(group.OntologyIDs, *ontologyID)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating groups: %w", err)
	}
	return groups, nil
}

func (r *groupRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM groups WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("group %s: %w", id, apperrors.ErrNotFound)
	}
	return nil
}
