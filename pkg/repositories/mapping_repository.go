package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/DalavanCloud/ontologies-api/pkg/apperrors"
	"github.com/DalavanCloud/ontologies-api/pkg/database"
	"github.com/DalavanCloud/ontologies-api/pkg/models"
)

// MappingRepository is the mapping store: the many-to-many association
// between term pairs and their provenance processes, plus the read side the
// query engine is built on.
type MappingRepository interface {
	// Create persists a new mapping, its two term references and its first
	// process in a single transaction.
	Create(ctx context.Context, mapping *models.Mapping, process *models.MappingProcess) error

	// AttachProcess adds another process to an existing mapping. Used by
	// bulk loaders re-asserting an already known term pair.
	AttachProcess(ctx context.Context, mappingID uuid.UUID, process *models.MappingProcess) error

	// GetByID loads a mapping with its terms, processes and creator
	// usernames. Returns apperrors.ErrNotFound when absent.
	GetByID(ctx context.Context, id uuid.UUID) (*models.Mapping, error)

	// DisconnectProcess removes one process from a mapping. When that
	// empties the process collection the mapping itself is deleted inside
	// the same transaction, so concurrent deletions racing on one mapping
	// cannot both observe the empty state. Returns the updated mapping and
	// whether it was deleted.
	DisconnectProcess(ctx context.Context, mappingID, processID uuid.UUID) (*models.Mapping, bool, error)

	ForOntology(ctx context.Context, ontologyURI string, page, size int) (*models.Page[*models.Mapping], error)
	ForClass(ctx context.Context, ontologyURI, classURI string) ([]*models.Mapping, error)
	Between(ctx context.Context, ontologyURIA, ontologyURIB string, page, size int) (*models.Page[*models.Mapping], error)

	// Recent returns mappings ordered by most recent user process date
	// descending. Mappings with only automatic processes never appear.
	Recent(ctx context.Context, limit int) ([]*models.Mapping, error)

	CountsPerOntology(ctx context.Context) (map[string]int, error)
	CountForOntology(ctx context.Context, ontologyURI string) (int, error)
}

type mappingRepository struct {
	db *database.DB
}

// NewMappingRepository creates a new MappingRepository.
func NewMappingRepository(db *database.DB) MappingRepository {
	return &mappingRepository{db: db}
}

var _ MappingRepository = (*mappingRepository)(nil)

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *mappingRepository) Create(ctx context.Context, mapping *models.Mapping, process *models.MappingProcess) error {
	if len(mapping.Classes) != 2 {
		return fmt.Errorf("mapping requires exactly 2 term references, got %d", len(mapping.Classes))
	}
	if mapping.ID == uuid.Nil {
		mapping.ID = uuid.New()
	}
	if mapping.CreatedAt.IsZero() {
		mapping.CreatedAt = time.Now()
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO mappings (id, created_at) VALUES ($1, $2)`,
		mapping.ID, mapping.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert mapping: %w", err)
	}

	for _, term := range mapping.Classes {
		_, err = tx.Exec(ctx,
			`INSERT INTO mapping_terms (mapping_id, ontology_uri, class_uri) VALUES ($1, $2, $3)`,
			mapping.ID, term.OntologyURI, term.ClassURI)
		if err != nil {
			return fmt.Errorf("failed to insert mapping term: %w", err)
		}
	}

	process.MappingID = mapping.ID
	if err := insertProcess(ctx, tx, process); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit mapping: %w", err)
	}

	mapping.Processes = []*models.MappingProcess{process}
	return nil
}

func (r *mappingRepository) AttachProcess(ctx context.Context, mappingID uuid.UUID, process *models.MappingProcess) error {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM mappings WHERE id = $1)`, mappingID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check mapping: %w", err)
	}
	if !exists {
		return fmt.Errorf("mapping %s: %w", mappingID, apperrors.ErrNotFound)
	}

	process.MappingID = mappingID
	if err := insertProcess(ctx, r.db, process); err != nil {
		return err
	}
	return nil
}

// execer is satisfied by both the pool and a transaction.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertProcess(ctx context.Context, ex execer, process *models.MappingProcess) error {
	if process.ID == uuid.Nil {
		process.ID = uuid.New()
	}

	_, err := ex.Exec(ctx, `
		INSERT INTO mapping_processes (id, mapping_id, name, relation, creator_id, date, source, source_name, comment)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		process.ID, process.MappingID, process.Name, process.Relation,
		process.CreatorID, process.Date, process.Source, process.SourceName, process.Comment)
	if err != nil {
		return fmt.Errorf("failed to insert mapping process: %w", err)
	}
	return nil
}

func (r *mappingRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Mapping, error) {
	mappings, err := r.loadByIDs(ctx, r.db, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	if len(mappings) == 0 {
		return nil, fmt.Errorf("mapping %s: %w", id, apperrors.ErrNotFound)
	}
	return mappings[0], nil
}

func (r *mappingRepository) DisconnectProcess(ctx context.Context, mappingID, processID uuid.UUID) (*models.Mapping, bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Lock the mapping row so two racing deletions serialize on it.
	var lockedID uuid.UUID
	err = tx.QueryRow(ctx,
		`SELECT id FROM mappings WHERE id = $1 FOR UPDATE`, mappingID).Scan(&lockedID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("mapping %s: %w", mappingID, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to lock mapping: %w", err)
	}

	tag, err := tx.Exec(ctx,
		`DELETE FROM mapping_processes WHERE id = $1 AND mapping_id = $2`,
		processID, mappingID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to disconnect process: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, false, fmt.Errorf("process %s on mapping %s: %w", processID, mappingID, apperrors.ErrNotFound)
	}

	var remaining int
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM mapping_processes WHERE mapping_id = $1`, mappingID).Scan(&remaining)
	if err != nil {
		return nil, false, fmt.Errorf("failed to count remaining processes: %w", err)
	}

	deleted := remaining == 0
	if deleted {
		// A mapping with zero processes must not exist. Terms cascade.
		if _, err := tx.Exec(ctx, `DELETE FROM mappings WHERE id = $1`, mappingID); err != nil {
			return nil, false, fmt.Errorf("failed to delete emptied mapping: %w", err)
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, false, fmt.Errorf("failed to commit disconnect: %w", err)
		}
		return &models.Mapping{ID: mappingID, Processes: []*models.MappingProcess{}}, true, nil
	}

	updated, err := r.loadByIDs(ctx, tx, []uuid.UUID{mappingID})
	if err != nil {
		return nil, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("failed to commit disconnect: %w", err)
	}
	return updated[0], false, nil
}

func (r *mappingRepository) ForOntology(ctx context.Context, ontologyURI string, page, size int) (*models.Page[*models.Mapping], error) {
	var total int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(DISTINCT mapping_id) FROM mapping_terms WHERE ontology_uri = $1`,
		ontologyURI).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("failed to count mappings: %w", err)
	}

	query := `
		SELECT DISTINCT m.id, m.created_at
		FROM mappings m
		JOIN mapping_terms t ON t.mapping_id = m.id
		WHERE t.ontology_uri = $1
		ORDER BY m.created_at DESC, m.id`
	args := []any{ontologyURI}
	query, args = appendWindow(query, args, page, size)

	ids, err := r.queryIDs(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	mappings, err := r.loadByIDs(ctx, r.db, ids)
	if err != nil {
		return nil, err
	}
	return models.NewPage(page, size, total, mappings), nil
}

func (r *mappingRepository) ForClass(ctx context.Context, ontologyURI, classURI string) ([]*models.Mapping, error) {
	ids, err := r.queryIDs(ctx, `
		SELECT DISTINCT m.id, m.created_at
		FROM mappings m
		JOIN mapping_terms t ON t.mapping_id = m.id
		WHERE t.ontology_uri = $1 AND t.class_uri = $2
		ORDER BY m.created_at DESC, m.id`,
		ontologyURI, classURI)
	if err != nil {
		return nil, err
	}
	return r.loadByIDs(ctx, r.db, ids)
}

func (r *mappingRepository) Between(ctx context.Context, ontologyURIA, ontologyURIB string, page, size int) (*models.Page[*models.Mapping], error) {
	// Order-independent pairing: one term in each ontology.
	where := `
		EXISTS (SELECT 1 FROM mapping_terms t WHERE t.mapping_id = m.id AND t.ontology_uri = $1)
		AND EXISTS (SELECT 1 FROM mapping_terms t WHERE t.mapping_id = m.id AND t.ontology_uri = $2)`

	var total int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM mappings m WHERE `+where,
		ontologyURIA, ontologyURIB).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("failed to count mappings between ontologies: %w", err)
	}

	query := `SELECT m.id, m.created_at FROM mappings m WHERE ` + where + `
		ORDER BY m.created_at DESC, m.id`
	args := []any{ontologyURIA, ontologyURIB}
	query, args = appendWindow(query, args, page, size)

	ids, err := r.queryIDs(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	mappings, err := r.loadByIDs(ctx, r.db, ids)
	if err != nil {
		return nil, err
	}
	return models.NewPage(page, size, total, mappings), nil
}

func (r *mappingRepository) Recent(ctx context.Context, limit int) ([]*models.Mapping, error) {
	ids, err := r.queryIDs(ctx, `
		SELECT m.id, MAX(p.date) AS latest
		FROM mappings m
		JOIN mapping_processes p ON p.mapping_id = m.id
		WHERE p.date IS NOT NULL
		GROUP BY m.id
		ORDER BY latest DESC
		LIMIT $1`,
		limit)
	if err != nil {
		return nil, err
	}
	return r.loadByIDs(ctx, r.db, ids)
}

func (r *mappingRepository) CountsPerOntology(ctx context.Context) (map[string]int, error) {
	// Inner join drops mappings whose ontology has been deleted.
	rows, err := r.db.Query(ctx, `
		SELECT o.acronym, COUNT(DISTINCT t.mapping_id)
		FROM mapping_terms t
		JOIN ontologies o ON o.uri = t.ontology_uri
		GROUP BY o.acronym`)
	if err != nil {
		return nil, fmt.Errorf("failed to query mapping counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var acronym string
		var count int
		if err := rows.Scan(&acronym, &count); err != nil {
			return nil, fmt.Errorf("failed to scan mapping count: %w", err)
		}
		counts[acronym] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating mapping counts: %w", err)
	}
	return counts, nil
}

func (r *mappingRepository) CountForOntology(ctx context.Context, ontologyURI string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(DISTINCT mapping_id) FROM mapping_terms WHERE ontology_uri = $1`,
		ontologyURI).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count mappings for ontology: %w", err)
	}
	return count, nil
}

// appendWindow adds LIMIT/OFFSET for a 1-based page window. The 0,0 sentinel
// means unpaged.
func appendWindow(query string, args []any, page, size int) (string, []any) {
	if page == models.UnpagedSentinel || size == models.UnpagedSentinel {
		return query, args
	}
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	return query, append(args, size, (page-1)*size)
}

func (r *mappingRepository) queryIDs(ctx context.Context, query string, args ...any) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query mapping ids: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		var ignored any
		if err := rows.Scan(&id, &ignored); err != nil {
			return nil, fmt.Errorf("failed to scan mapping id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating mapping ids: %w", err)
	}
	return ids, nil
}

// loadByIDs assembles full mappings (terms, processes, creator usernames)
// for the given ids, preserving their order.
func (r *mappingRepository) loadByIDs(ctx context.Context, q querier, ids []uuid.UUID) ([]*models.Mapping, error) {
	if len(ids) == 0 {
		return []*models.Mapping{}, nil
	}

	byID := make(map[uuid.UUID]*models.Mapping, len(ids))

	rows, err := q.Query(ctx,
		`SELECT id, created_at FROM mappings WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load mappings: %w", err)
	}
	for rows.Next() {
		var m models.Mapping
		if err := rows.Scan(&m.ID, &m.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan mapping: %w", err)
		}
		m.Classes = []models.TermReference{}
		m.Processes = []*models.MappingProcess{}
		byID[m.ID] = &m
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating mappings: %w", err)
	}

	rows, err = q.Query(ctx, `
		SELECT mapping_id, ontology_uri, class_uri
		FROM mapping_terms
		WHERE mapping_id = ANY($1)
		ORDER BY ontology_uri, class_uri`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load mapping terms: %w", err)
	}
	for rows.Next() {
		var mappingID uuid.UUID
		var term models.TermReference
		if err := rows.Scan(&mappingID, &term.OntologyURI, &term.ClassURI); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan mapping term: %w", err)
		}
		if m, ok := byID[mappingID]; ok {
			m.Classes = append(m.Classes, term)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating mapping terms: %w", err)
	}

	rows, err = q.Query(ctx, `
		SELECT p.id, p.mapping_id, p.name, p.relation, p.creator_id,
		       COALESCE(u.username, ''), p.date, p.source, p.source_name, p.comment
		FROM mapping_processes p
		LEFT JOIN users u ON u.id = p.creator_id
		WHERE p.mapping_id = ANY($1)
		ORDER BY p.date ASC NULLS FIRST, p.id`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load mapping processes: %w", err)
	}
	for rows.Next() {
		var p models.MappingProcess
		if err := rows.Scan(&p.ID, &p.MappingID, &p.Name, &p.Relation, &p.CreatorID,
			&p.Creator, &p.Date, &p.Source, &p.SourceName, &p.Comment); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan mapping process: %w", err)
		}
		if m, ok := byID[p.MappingID]; ok {
			m.Processes = append(m.Processes, &p)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating mapping processes: %w", err)
	}

	mappings := make([]*models.Mapping, 0, len(ids))
	for _, id := range ids {
		if m, ok := byID[id]; ok {
			mappings = append(mappings, m)
		}
	}
	return mappings, nil
}
