package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DalavanCloud/ontologies-api/pkg/apperrors"
	"github.com/DalavanCloud/ontologies-api/pkg/models"
	"github.com/DalavanCloud/ontologies-api/pkg/repositories"
)

type mockSliceRepo struct {
	repositories.SliceRepository

	slices   map[string]*models.Slice
	upserted []*models.Slice
}

func (m *mockSliceRepo) Upsert(_ context.Context, slice *models.Slice) error {
	m.upserted = append(m.upserted, slice)
	if m.slices == nil {
		m.slices = make(map[string]*models.Slice)
	}
	m.slices[slice.Acronym] = slice
	return nil
}

func (m *mockSliceRepo) GetByAcronym(_ context.Context, acronym string) (*models.Slice, error) {
	slice, ok := m.slices[acronym]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return slice, nil
}

type mockGroupRepo struct {
	repositories.GroupRepository

	groups []*models.Group
}

func (m *mockGroupRepo) List(_ context.Context) ([]*models.Group, error) {
	return m.groups, nil
}

func TestSynchronizeGroupsToSlices(t *testing.T) {
	ontA, ontB := uuid.New(), uuid.New()
	groups := &mockGroupRepo{groups: []*models.Group{
		{ID: uuid.New(), Acronym: "CTSA", Name: "Clinical and Translational Science", OntologyIDs: []uuid.UUID{ontA, ontB}},
		{ID: uuid.New(), Acronym: "WHO-FIC", Name: "WHO Family of Classifications", OntologyIDs: []uuid.UUID{ontA}},
	}}
	slices := &mockSliceRepo{}
	svc := NewSliceService(slices, groups, zap.NewNop())

	require.NoError(t, svc.SynchronizeGroupsToSlices(context.Background()))

	require.Len(t, slices.upserted, 2)
	assert.Equal(t, "CTSA", slices.upserted[0].Acronym)
	assert.Equal(t, []uuid.UUID{ontA, ontB}, slices.upserted[0].OntologyIDs)
	require.NotNil(t, slices.upserted[0].GroupID, "mirrored slices record their source group")
	assert.Equal(t, groups.groups[0].ID, *slices.upserted[0].GroupID)
	assert.Equal(t, "WHO-FIC", slices.upserted[1].Acronym)
}

func TestSynchronize_KeepsStandaloneSlices(t *testing.T) {
	standalone := &models.Slice{ID: uuid.New(), Acronym: "custom", Name: "Hand-made slice"}
	slices := &mockSliceRepo{slices: map[string]*models.Slice{"custom": standalone}}
	svc := NewSliceService(slices, &mockGroupRepo{}, zap.NewNop())

	require.NoError(t, svc.SynchronizeGroupsToSlices(context.Background()))

	// Synchronization only upserts group-backed slices; slices created by
	// other means survive untouched.
	got, err := svc.Resolve(context.Background(), "custom")
	require.NoError(t, err)
	assert.Equal(t, standalone, got)
}

func TestSliceExists(t *testing.T) {
	slices := &mockSliceRepo{slices: map[string]*models.Slice{
		"biomed": {ID: uuid.New(), Acronym: "biomed"},
	}}
	svc := NewSliceService(slices, &mockGroupRepo{}, zap.NewNop())

	assert.True(t, svc.Exists(context.Background(), "biomed"))
	assert.False(t, svc.Exists(context.Background(), "unknown"))
}
