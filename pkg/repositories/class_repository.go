package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/DalavanCloud/ontologies-api/pkg/apperrors"
	"github.com/DalavanCloud/ontologies-api/pkg/database"
	"github.com/DalavanCloud/ontologies-api/pkg/models"
)

// ClassRepository provides class lookups scoped to a submission.
type ClassRepository interface {
	// GetInSubmission resolves a class URI within one submission's term set.
	GetInSubmission(ctx context.Context, submissionID uuid.UUID, classURI string) (*models.Class, error)
	CreateBatch(ctx context.Context, classes []*models.Class) error
}

type classRepository struct {
	db *database.DB
}

// NewClassRepository creates a new ClassRepository.
func NewClassRepository(db *database.DB) ClassRepository {
	return &classRepository{db: db}
}

var _ ClassRepository = (*classRepository)(nil)

func (r *classRepository) GetInSubmission(ctx context.Context, submissionID uuid.UUID, classURI string) (*models.Class, error) {
	query := `
		SELECT submission_id, uri, pref_label
		FROM classes
		WHERE submission_id = $1 AND uri = $2`

	var cls models.Class
	err := r.db.QueryRow(ctx, query, submissionID, classURI).Scan(
		&cls.SubmissionID, &cls.URI, &cls.PrefLabel)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("class %s in submission %s: %w", classURI, submissionID, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query class: %w", err)
	}
	return &cls, nil
}

func (r *classRepository) CreateBatch(ctx context.Context, classes []*models.Class) error {
	batch := &pgx.Batch{}
	for _, cls := range classes {
		batch.Queue(`
			INSERT INTO classes (submission_id, uri, pref_label)
			VALUES ($1, $2, $3)
			ON CONFLICT (submission_id, uri) DO UPDATE SET pref_label = EXCLUDED.pref_label`,
			cls.SubmissionID, cls.URI, cls.PrefLabel)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for range classes {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to insert class: %w", err)
		}
	}
	return nil
}
