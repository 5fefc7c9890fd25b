package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DalavanCloud/ontologies-api/pkg/apperrors"
	"github.com/DalavanCloud/ontologies-api/pkg/config"
	"github.com/DalavanCloud/ontologies-api/pkg/models"
	"github.com/DalavanCloud/ontologies-api/pkg/services"
)

// ============================================================================
// Mocks
// ============================================================================

type mockMappingService struct {
	created       *models.Mapping
	createErr     error
	deleteOutcome services.DeleteOutcome
	deleteErr     error
	deletedIDs    []uuid.UUID
}

func (m *mockMappingService) CreateRESTMapping(_ context.Context, input services.CreateMappingInput) (*models.Mapping, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	return m.created, nil
}

func (m *mockMappingService) ImportMapping(_ context.Context, classes []services.ClassInput, processName, relation string, opts services.ProcessOptions) (*models.Mapping, error) {
	return nil, nil
}

func (m *mockMappingService) Get(_ context.Context, id uuid.UUID) (*models.Mapping, error) {
	return nil, apperrors.ErrNotFound
}

func (m *mockMappingService) Delete(_ context.Context, id uuid.UUID) (services.DeleteOutcome, error) {
	m.deletedIDs = append(m.deletedIDs, id)
	return m.deleteOutcome, m.deleteErr
}

type mockQueryService struct {
	page     *models.Page[*models.Mapping]
	recent   []*models.Mapping
	counts   map[string]int
	count    int
	err      error
	lastPage int
	lastSize int
}

func (m *mockQueryService) ForOntology(_ context.Context, ontology string, page, size int, classURI string) (*models.Page[*models.Mapping], error) {
	m.lastPage, m.lastSize = page, size
	return m.page, m.err
}

func (m *mockQueryService) BetweenOntologies(_ context.Context, a, b string, page, size int) (*models.Page[*models.Mapping], error) {
	m.lastPage, m.lastSize = page, size
	return m.page, m.err
}

func (m *mockQueryService) Recent(_ context.Context, size int) ([]*models.Mapping, error) {
	m.lastSize = size
	return m.recent, m.err
}

func (m *mockQueryService) CountsPerOntology(_ context.Context) (map[string]int, error) {
	return m.counts, m.err
}

func (m *mockQueryService) CountForOntology(_ context.Context, ontology string) (int, error) {
	return m.count, m.err
}

// ============================================================================
// Fixtures
// ============================================================================

func testConfig() *config.Config {
	return &config.Config{
		BaseURL: "http://localhost:9393",
		Mappings: config.MappingsConfig{
			RecentDefaultSize:    5,
			RecentMaxSize:        50,
			RecentFetchSlack:     15,
			StatsCacheTTLSeconds: 86400,
		},
	}
}

func newTestMux(mappings services.MappingService, queries services.MappingQueryService) *http.ServeMux {
	handler := NewMappingsHandler(mappings, queries, testConfig(), zap.NewNop())
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	return mux
}

func sampleMapping() *models.Mapping {
	now := time.Now()
	return &models.Mapping{
		ID: uuid.New(),
		Classes: []models.TermReference{
			{OntologyURI: "http://data.example.org/ontologies/ONTA", ClassURI: "http://purl.example.org/obo/A_1"},
			{OntologyURI: "http://data.example.org/ontologies/ONTB", ClassURI: "http://purl.example.org/obo/B_2"},
		},
		Processes: []*models.MappingProcess{{
			ID:       uuid.New(),
			Name:     models.RESTProcessName,
			Relation: "http://www.w3.org/2004/02/skos/core#exactMatch",
			Creator:  "alice",
			Date:     &now,
		}},
	}
}

func createBody(t *testing.T) *bytes.Buffer {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"classes": []map[string]string{
			{"class": "http://purl.example.org/obo/A_1", "ontology": "ONTA"},
			{"class": "http://purl.example.org/obo/B_2", "ontology": "ONTB"},
		},
		"relation": "http://www.w3.org/2004/02/skos/core#exactMatch",
		"creator":  "alice",
	})
	require.NoError(t, err)
	return bytes.NewBuffer(body)
}

// ============================================================================
// Creation
// ============================================================================

func TestCreateMapping_Success(t *testing.T) {
	mapping := sampleMapping()
	svc := &mockMappingService{created: mapping}
	mux := newTestMux(svc, &mockQueryService{})

	req := httptest.NewRequest(http.MethodPost, "/mappings", createBody(t))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp MappingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, fmt.Sprintf("http://localhost:9393/mappings/%s", mapping.ID), resp.ID)
	assert.Len(t, resp.Classes, 2)
	require.Len(t, resp.Processes, 1)
	assert.Equal(t, "alice", resp.Processes[0].Creator)
}

func TestCreateMapping_ValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		body map[string]any
	}{
		{"no classes", map[string]any{
			"relation": "rel", "creator": "alice",
		}},
		{"one class", map[string]any{
			"classes":  []map[string]string{{"class": "c", "ontology": "o"}},
			"relation": "rel", "creator": "alice",
		}},
		{"missing relation", map[string]any{
			"classes": []map[string]string{
				{"class": "c1", "ontology": "o1"}, {"class": "c2", "ontology": "o2"},
			},
			"creator": "alice",
		}},
		{"missing creator", map[string]any{
			"classes": []map[string]string{
				{"class": "c1", "ontology": "o1"}, {"class": "c2", "ontology": "o2"},
			},
			"relation": "rel",
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			body, err := json.Marshal(tc.body)
			require.NoError(t, err)

			mux := newTestMux(&mockMappingService{}, &mockQueryService{})
			req := httptest.NewRequest(http.MethodPost, "/mappings", bytes.NewBuffer(body))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestCreateMapping_UnresolvedClassIs400(t *testing.T) {
	svc := &mockMappingService{
		createErr: fmt.Errorf("class `x` not found in ontology `ONTA`: %w", apperrors.ErrNotFound),
	}
	mux := newTestMux(svc, &mockQueryService{})

	req := httptest.NewRequest(http.MethodPost, "/mappings", createBody(t))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "not found")
}

func TestCreateMapping_InvalidJSON(t *testing.T) {
	mux := newTestMux(&mockMappingService{}, &mockQueryService{})

	req := httptest.NewRequest(http.MethodPost, "/mappings", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ============================================================================
// Deletion
// ============================================================================

func TestDeleteMapping_NoContentOnSuccess(t *testing.T) {
	for _, outcome := range []services.DeleteOutcome{services.MappingDeleted, services.MappingWeakened} {
		svc := &mockMappingService{deleteOutcome: outcome}
		mux := newTestMux(svc, &mockQueryService{})

		id := uuid.New()
		req := httptest.NewRequest(http.MethodDelete, "/mappings/"+id.String(), nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, []uuid.UUID{id}, svc.deletedIDs)
	}
}

func TestDeleteMapping_OnlyAutomaticIs400(t *testing.T) {
	svc := &mockMappingService{deleteErr: apperrors.ErrNoUserProcess}
	mux := newTestMux(svc, &mockQueryService{})

	req := httptest.NewRequest(http.MethodDelete, "/mappings/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "automatic processes")
}

func TestDeleteMapping_UnknownIs404(t *testing.T) {
	svc := &mockMappingService{deleteErr: apperrors.ErrNotFound}
	mux := newTestMux(svc, &mockQueryService{})

	req := httptest.NewRequest(http.MethodDelete, "/mappings/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteMapping_BadID(t *testing.T) {
	svc := &mockMappingService{}
	mux := newTestMux(svc, &mockQueryService{})

	req := httptest.NewRequest(http.MethodDelete, "/mappings/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, svc.deletedIDs)
}

// ============================================================================
// Listings
// ============================================================================

func TestListForOntology_Paged(t *testing.T) {
	queries := &mockQueryService{page: models.NewPage(2, 10, 25, []*models.Mapping{sampleMapping()})}
	mux := newTestMux(&mockMappingService{}, queries)

	req := httptest.NewRequest(http.MethodGet, "/ontologies/ONTA/mappings?page=2&pagesize=10", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, queries.lastPage)
	assert.Equal(t, 10, queries.lastSize)

	var page models.Page[MappingResponse]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 3, page.PageCount)
	assert.Equal(t, 25, page.TotalCount)
	require.Len(t, page.Collection, 1)
	assert.Contains(t, page.Collection[0].ID, "/mappings/")
}

func TestListForOntology_DefaultPaging(t *testing.T) {
	queries := &mockQueryService{page: models.NewPage(1, 50, 0, []*models.Mapping{})}
	mux := newTestMux(&mockMappingService{}, queries)

	req := httptest.NewRequest(http.MethodGet, "/ontologies/ONTA/mappings", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, queries.lastPage)
	assert.Equal(t, 50, queries.lastSize)
}

func TestListForOntology_BadPageParam(t *testing.T) {
	mux := newTestMux(&mockMappingService{}, &mockQueryService{})

	for _, query := range []string{"page=0", "page=-1", "page=abc", "pagesize=0", "pagesize=x"} {
		req := httptest.NewRequest(http.MethodGet, "/ontologies/ONTA/mappings?"+query, nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code, "query %q", query)
	}
}

func TestListForOntology_UnknownOntologyIs404(t *testing.T) {
	queries := &mockQueryService{err: fmt.Errorf("ontology with id `NOPE` not found: %w", apperrors.ErrNotFound)}
	mux := newTestMux(&mockMappingService{}, queries)

	req := httptest.NewRequest(http.MethodGet, "/ontologies/NOPE/mappings", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListBetweenOntologies_RequiresExactlyTwo(t *testing.T) {
	mux := newTestMux(&mockMappingService{}, &mockQueryService{})

	for _, query := range []string{"", "ontologies=ONTA", "ontologies=A,B,C", "ontologies=,"} {
		req := httptest.NewRequest(http.MethodGet, "/mappings?"+query, nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code, "query %q", query)
	}
}

func TestListBetweenOntologies_Success(t *testing.T) {
	queries := &mockQueryService{page: models.NewPage(1, 50, 1, []*models.Mapping{sampleMapping()})}
	mux := newTestMux(&mockMappingService{}, queries)

	req := httptest.NewRequest(http.MethodGet, "/mappings?ontologies=ONTA,ONTB", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestListForClass_Unpaged(t *testing.T) {
	queries := &mockQueryService{page: models.NewPage(0, 0, 1, []*models.Mapping{sampleMapping()})}
	mux := newTestMux(&mockMappingService{}, queries)

	req := httptest.NewRequest(http.MethodGet,
		"/ontologies/ONTA/classes/http%3A%2F%2Fpurl.example.org%2Fobo%2FA_1/mappings", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var page models.Page[MappingResponse]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 1, page.PageCount)
}

func TestListForClass_UnknownClassIs404(t *testing.T) {
	queries := &mockQueryService{
		err: fmt.Errorf("class `http://purl.example.org/obo/A_9` not found in ontology `ONTA`: %w", apperrors.ErrNotFound),
	}
	mux := newTestMux(&mockMappingService{}, queries)

	req := httptest.NewRequest(http.MethodGet,
		"/ontologies/ONTA/classes/http%3A%2F%2Fpurl.example.org%2Fobo%2FA_9/mappings", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "not found")
}

// ============================================================================
// Recent
// ============================================================================

func TestRecent_DefaultSize(t *testing.T) {
	queries := &mockQueryService{recent: []*models.Mapping{sampleMapping()}}
	mux := newTestMux(&mockMappingService{}, queries)

	req := httptest.NewRequest(http.MethodGet, "/mappings/recent", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, queries.lastSize)
}

func TestRecent_InvalidSize(t *testing.T) {
	mux := newTestMux(&mockMappingService{}, &mockQueryService{})

	for _, size := range []string{"0", "-3", "abc"} {
		req := httptest.NewRequest(http.MethodGet, "/mappings/recent?size="+size, nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code, "size %q", size)
	}
}

func TestRecent_SizeOverLimitIs422(t *testing.T) {
	mux := newTestMux(&mockMappingService{}, &mockQueryService{})

	req := httptest.NewRequest(http.MethodGet, "/mappings/recent?size=51", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

// ============================================================================
// Statistics
// ============================================================================

func TestStatistics(t *testing.T) {
	queries := &mockQueryService{counts: map[string]int{"ONTA": 10, "ONTB": 3}}
	mux := newTestMux(&mockMappingService{}, queries)

	req := httptest.NewRequest(http.MethodGet, "/mappings/statistics/ontologies", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "public, max-age=86400", rec.Header().Get("Cache-Control"))

	var counts map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &counts))
	assert.Equal(t, 10, counts["ONTA"])
}

func TestStatisticsForOntology(t *testing.T) {
	queries := &mockQueryService{count: 42}
	mux := newTestMux(&mockMappingService{}, queries)

	req := httptest.NewRequest(http.MethodGet, "/mappings/statistics/ontologies/ONTA", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "public, max-age=86400", rec.Header().Get("Cache-Control"))

	var counts map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &counts))
	assert.Equal(t, 42, counts["ONTA"])
}

func TestStatisticsExtensions_NotImplemented(t *testing.T) {
	mux := newTestMux(&mockMappingService{}, &mockQueryService{})

	for _, path := range []string{
		"/mappings/statistics/ontologies/ONTA/popular_classes",
		"/mappings/statistics/ontologies/ONTA/users",
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotImplemented, rec.Code, "path %s", path)
	}
}
