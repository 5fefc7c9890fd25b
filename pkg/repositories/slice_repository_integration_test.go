package repositories

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DalavanCloud/ontologies-api/pkg/apperrors"
	"github.com/DalavanCloud/ontologies-api/pkg/models"
	"github.com/DalavanCloud/ontologies-api/pkg/testhelpers"
)

func TestSliceRepository_UpsertReplacesMembership(t *testing.T) {
	db := testhelpers.GetTestDB(t).DB
	ctx := context.Background()

	ontologies := NewOntologyRepository(db)
	slices := NewSliceRepository(db)

	ontA := &models.Ontology{Acronym: "SLA" + uuid.NewString()[:8], Name: "A", URI: "http://data.example.org/ontologies/SLA" + uuid.NewString()[:8]}
	ontB := &models.Ontology{Acronym: "SLB" + uuid.NewString()[:8], Name: "B", URI: "http://data.example.org/ontologies/SLB" + uuid.NewString()[:8]}
	require.NoError(t, ontologies.Create(ctx, ontA))
	require.NoError(t, ontologies.Create(ctx, ontB))

	acronym := "slice-" + uuid.NewString()[:8]
	require.NoError(t, slices.Upsert(ctx, &models.Slice{
		Acronym:     acronym,
		Name:        "First version",
		OntologyIDs: []uuid.UUID{ontA.ID},
	}))

	got, err := slices.GetByAcronym(ctx, acronym)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{ontA.ID}, got.OntologyIDs)

	// A second upsert under the same acronym renames the slice and replaces
	// its membership wholesale.
	require.NoError(t, slices.Upsert(ctx, &models.Slice{
		Acronym:     acronym,
		Name:        "Second version",
		OntologyIDs: []uuid.UUID{ontB.ID},
	}))

	got, err = slices.GetByAcronym(ctx, acronym)
	require.NoError(t, err)
	assert.Equal(t, "Second version", got.Name)
	assert.Equal(t, []uuid.UUID{ontB.ID}, got.OntologyIDs)

	visible, err := slices.Ontologies(ctx, acronym)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, ontB.Acronym, visible[0].Acronym)
}

func TestSliceRepository_GroupDeletionPrunesMirroredSlice(t *testing.T) {
	db := testhelpers.GetTestDB(t).DB
	ctx := context.Background()

	groups := NewGroupRepository(db)
	slices := NewSliceRepository(db)

	suffix := uuid.NewString()[:8]
	group := &models.Group{Acronym: "prune-" + suffix, Name: "Pruned group"}
	require.NoError(t, groups.Create(ctx, group))

	mirrored := &models.Slice{Acronym: group.Acronym, Name: group.Name, GroupID: &group.ID}
	require.NoError(t, slices.Upsert(ctx, mirrored))

	standalone := &models.Slice{Acronym: "handmade-" + suffix, Name: "Hand-made slice"}
	require.NoError(t, slices.Upsert(ctx, standalone))

	require.NoError(t, groups.Delete(ctx, group.ID))

	// The mirrored slice goes with its group; the hand-created one stays.
	_, err := slices.GetByAcronym(ctx, mirrored.Acronym)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	kept, err := slices.GetByAcronym(ctx, standalone.Acronym)
	require.NoError(t, err)
	assert.Nil(t, kept.GroupID)
}

func TestSliceRepository_GetUnknown(t *testing.T) {
	db := testhelpers.GetTestDB(t).DB

	slices := NewSliceRepository(db)
	_, err := slices.GetByAcronym(context.Background(), "missing-"+uuid.NewString()[:8])
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestGroupRepository_ListWithMembership(t *testing.T) {
	db := testhelpers.GetTestDB(t).DB
	ctx := context.Background()

	ontologies := NewOntologyRepository(db)
	groups := NewGroupRepository(db)

	suffix := uuid.NewString()[:8]
	ont := &models.Ontology{Acronym: "GRP" + suffix, Name: "G", URI: "http://data.example.org/ontologies/GRP" + suffix}
	require.NoError(t, ontologies.Create(ctx, ont))

	group := &models.Group{Acronym: "group-" + suffix, Name: "Test group"}
	require.NoError(t, groups.Create(ctx, group))
	require.NoError(t, groups.AddOntology(ctx, group.ID, ont.ID))

	listed, err := groups.List(ctx)
	require.NoError(t, err)

	var found *models.Group
	for _, g := range listed {
		if g.ID == group.ID {
			found = g
		}
	}
	require.NotNil(t, found, "created group appears in the listing")
	assert.Equal(t, []uuid.UUID{ont.ID}, found.OntologyIDs)
}

func TestOntologyRepository_LatestReadySubmission(t *testing.T) {
	db := testhelpers.GetTestDB(t).DB
	ctx := context.Background()

	ontologies := NewOntologyRepository(db)

	suffix := uuid.NewString()[:8]
	ont := &models.Ontology{Acronym: "SUB" + suffix, Name: "S", URI: "http://data.example.org/ontologies/SUB" + suffix}
	require.NoError(t, ontologies.Create(ctx, ont))

	// No submission at all.
	_, err := ontologies.LatestReadySubmission(ctx, ont.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	for i, status := range []string{
		models.SubmissionStatusReady,
		models.SubmissionStatusReady,
		models.SubmissionStatusError,
	} {
		require.NoError(t, ontologies.CreateSubmission(ctx, &models.Submission{
			OntologyID:   ont.ID,
			SubmissionID: i + 1,
			Status:       status,
		}))
	}

	// The broken third submission is skipped; the second wins.
	latest, err := ontologies.LatestReadySubmission(ctx, ont.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, latest.SubmissionID)
	assert.True(t, latest.Ready())
}

func TestOntologyRepository_ExistingURIs(t *testing.T) {
	db := testhelpers.GetTestDB(t).DB
	ctx := context.Background()

	ontologies := NewOntologyRepository(db)

	suffix := uuid.NewString()[:8]
	ont := &models.Ontology{Acronym: "EXI" + suffix, Name: "E", URI: fmt.Sprintf("http://data.example.org/ontologies/EXI%s", suffix)}
	require.NoError(t, ontologies.Create(ctx, ont))

	existing, err := ontologies.ExistingURIs(ctx)
	require.NoError(t, err)
	assert.True(t, existing[ont.URI])

	require.NoError(t, ontologies.Delete(ctx, ont.ID))

	existing, err = ontologies.ExistingURIs(ctx)
	require.NoError(t, err)
	assert.False(t, existing[ont.URI])
}
