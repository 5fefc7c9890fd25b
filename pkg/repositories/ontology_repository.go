// Package repositories contains pgx-backed data access for the entity store.
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

// OntologyRepository provides data access for ontologies and their
// submissions.
type OntologyRepository interface {
	Create(ctx context.Context, ont *models.Ontology) error
	GetByAcronym(ctx context.Context, acronym string) (*models.Ontology, error)
	GetByURI(ctx context.Context, uri string) (*models.Ontology, error)
	List(ctx context.Context) ([]*models.Ontology, error)
	// ExistingURIs returns the set of URIs of ontologies currently in the
	// store. Used to filter mappings whose ontology has been deleted.
	ExistingURIs(ctx context.Context) (map[string]bool, error)
	Delete(ctx context.Context, id uuid.UUID) error

	CreateSubmission(ctx context.Context, sub *models.Submission) error
	// LatestReadySubmission returns the most recent successfully parsed
	// submission of an ontology, or apperrors.ErrNotFound when none exists.
	LatestReadySubmission(ctx context.Context, ontologyID uuid.UUID) (*models.Submission, error)
}

type ontologyRepository struct {
	db *database.DB
}

// NewOntologyRepository creates a new OntologyRepository.
func NewOntologyRepository(db *database.DB) OntologyRepository {
	return &ontologyRepository{db: db}
}

var _ OntologyRepository = (*ontologyRepository)(nil)

func (r *ontologyRepository) Create(ctx context.Context, ont *models.Ontology) error {
	if ont.ID == uuid.Nil {
		ont.ID = uuid.New()
	}
	if ont.CreatedAt.IsZero() {
		ont.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO ontologies (id, acronym, name, uri, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.Exec(ctx, query, ont.ID, ont.Acronym, ont.Name, ont.URI, ont.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create ontology %s: %w", ont.Acronym, err)
	}
	return nil
}

func (r *ontologyRepository) GetByAcronym(ctx context.Context, acronym string) (*models.Ontology, error) {
	return r.getOne(ctx, `
		SELECT id, acronym, name, uri, created_at
		FROM ontologies
		WHERE acronym = $1`, acronym)
}

func (r *ontologyRepository) GetByURI(ctx context.Context, uri string) (*models.Ontology, error) {
	return r.getOne(ctx, `
		SELECT id, acronym, name, uri, created_at
		FROM ontologies
		WHERE uri = $1`, uri)
}

func (r *ontologyRepository) getOne(ctx context.Context, query string, arg any) (*models.Ontology, error) {
	var ont models.Ontology
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&ont.ID, &ont.Acronym, &ont.Name, &ont.URI, &ont.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("ontology %v: %w", arg, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query ontology: %w", err)
	}
	return &ont, nil
}

func (r *ontologyRepository) List(ctx context.Context) ([]*models.Ontology, error) {
	query := `
		SELECT id, acronym, name, uri, created_at
		FROM ontologies
		ORDER BY acronym`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query ontologies: %w", err)
	}
	defer rows.Close()

	return scanOntologies(rows)
}

func (r *ontologyRepository) ExistingURIs(ctx context.Context) (map[string]bool, error) {
	rows, err := r.db.Query(ctx, `SELECT uri FROM ontologies`)
	if err != nil {
		return nil, fmt.Errorf("failed to query ontology URIs: %w", err)
	}
	defer rows.Close()

	uris := make(map[string]bool)
	for rows.Next() {
		var uri string
		if err := rows.Scan(&uri); err != nil {
			return nil, fmt.Errorf("failed to scan ontology URI: %w", err)
		}
		uris[uri] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ontology URIs: %w", err)
	}
	return uris, nil
}

func (r *ontologyRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM ontologies WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete ontology: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("ontology %s: %w", id, apperrors.ErrNotFound)
	}
	return nil
}

func (r *ontologyRepository) CreateSubmission(ctx context.Context, sub *models.Submission) error {
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO submissions (id, ontology_id, submission_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.Exec(ctx, query,
		sub.ID, sub.OntologyID, sub.SubmissionID, sub.Status, sub.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create submission: %w", err)
	}
	return nil
}

func (r *ontologyRepository) LatestReadySubmission(ctx context.Context, ontologyID uuid.UUID) (*models.Submission, error) {
	query := `
		SELECT id, ontology_id, submission_id, status, created_at
		FROM submissions
		WHERE ontology_id = $1 AND status = $2
		ORDER BY submission_id DESC
		LIMIT 1`

	var sub models.Submission
	err := r.db.QueryRow(ctx, query, ontologyID, models.SubmissionStatusReady).Scan(
		&sub.ID, &sub.OntologyID, &sub.SubmissionID, &sub.Status, &sub.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("submission for ontology %s: %w", ontologyID, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest submission: %w", err)
	}
	return &sub, nil
}

func scanOntologies(rows pgx.Rows) ([]*models.Ontology, error) {
	var onts []*models.Ontology
	for rows.Next() {
		var ont models.Ontology
		if err := rows.Scan(&ont.ID, &ont.Acronym, &ont.Name, &ont.URI, &ont.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ontology: %w", err)
		}
		onts = append(onts, &ont)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ontologies: %w", err)
	}
	return onts, nil
}
