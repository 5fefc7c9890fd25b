package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/DalavanCloud/ontologies-api/pkg/apperrors"
	"github.com/DalavanCloud/ontologies-api/pkg/database"
	"github.com/DalavanCloud/ontologies-api/pkg/models"
)

// SliceRepository provides data access for slices: named visibility filters
// over ontology listings, kept in sync with groups. Group-backed slices are
// removed by the groups foreign key when their group is deleted;
// hand-created slices have no group and persist.
type SliceRepository interface {
	// Upsert creates the slice or updates its name and group binding, then
	// replaces its ontology membership, all in one transaction.
	Upsert(ctx context.Context, slice *models.Slice) error
	GetByAcronym(ctx context.Context, acronym string) (*models.Slice, error)
	// Ontologies returns the ontologies visible through the given slice.
	Ontologies(ctx context.Context, acronym string) ([]*models.Ontology, error)
}

type sliceRepository struct {
	db *database.DB
}

// NewSliceRepository creates a new SliceRepository.
func NewSliceRepository(db *database.DB) SliceRepository {
	return &sliceRepository{db: db}
}

var _ SliceRepository = (*sliceRepository)(nil)

func (r *sliceRepository) Upsert(ctx context.Context, slice *models.Slice) error {
	if slice.ID == uuid.Nil {
		slice.ID = uuid.New()
	}
	if slice.CreatedAt.IsZero() {
		slice.CreatedAt = time.Now()
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
		INSERT INTO slices (id, acronym, name, group_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (acronym) DO UPDATE SET name = EXCLUDED.name, group_id = EXCLUDED.group_id
		RETURNING id`,
		slice.ID, slice.Acronym, slice.Name, slice.GroupID, slice.CreatedAt).Scan(&slice.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert slice %s: %w", slice.Acronym, err)
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM slice_ontologies WHERE slice_id = $1`, slice.ID); err != nil {
		return fmt.Errorf("failed to clear slice membership: %w", err)
	}
	for _, ontologyID := range slice.OntologyIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO slice_ontologies (slice_id, ontology_id) VALUES ($1, $2)`,
			slice.ID, ontologyID); err != nil {
			return fmt.Errorf("failed to add ontology to slice: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit slice upsert: %w", err)
	}
	return nil
}

func (r *sliceRepository) GetByAcronym(ctx context.Context, acronym string) (*models.Slice, error) {
	var slice models.Slice
	err := r.db.QueryRow(ctx, `
		SELECT id, acronym, name, group_id, created_at
		FROM slices
		WHERE acronym = $1`, acronym).Scan(
		&slice.ID, &slice.Acronym, &slice.Name, &slice.GroupID, &slice.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("slice %s: %w", acronym, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query slice: %w", err)
	}

	rows, err := r.db.Query(ctx,
		`SELECT ontology_id FROM slice_ontologies WHERE slice_id = $1`, slice.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query slice membership: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ontologyID uuid.UUID
		if err := rows.Scan(&ontologyID); err != nil {
			return nil, fmt.Errorf("failed to scan slice membership: %w", err)
		}
		slice.OntologyIDs = append(slice.OntologyIDs, ontologyID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating slice membership: %w", err)
	}
	return &slice, nil
}

func (r *sliceRepository) Ontologies(ctx context.Context, acronym string) ([]*models.Ontology, error) {
	rows, err := r.db.Query(ctx, `
		SELECT o.id, o.acronym, o.name, o.uri, o.created_at
		FROM ontologies o
		JOIN slice_ontologies so ON so.ontology_id = o.id
		JOIN slices s ON s.id = so.slice_id
		WHERE s.acronym = $1
		ORDER BY o.acronym`, acronym)
	if err != nil {
		return nil, fmt.Errorf("failed to query slice ontologies: %w", err)
	}
	defer rows.Close()

	return scanOntologies(rows)
}
