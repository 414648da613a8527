package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gofreight/internal/models"
)

func fillAirDraft(d *RouteDraft, carrier string) {
	d.Carrier = carrier
	d.Category = "AIRLINES"
	d.Note = "spot rate"
	d.Remark = "all-in"
	d.Payload = models.RatePayload{Air: &models.AirRates{Over45: rate(4.8)}}
}

func fillFCLDraft(d *RouteDraft, carrier string) {
	d.Carrier = carrier
	d.Category = "EXAMPLELINE"
	d.Note = "subject to GRI"
	d.Payload = models.RatePayload{FCL: &models.FCLRates{Rate20ft: rate(1200)}}
}

func TestNewComposerSessionSeedsThreeEmptyDrafts(t *testing.T) {
	s := NewComposerSession(newFakeRateRepo(), nil, models.FreightTypeAirImport, "CMB", "SIN")

	drafts := s.Drafts()
	require.Len(t, drafts, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{drafts[0].ID, drafts[1].ID, drafts[2].ID})
	assert.Equal(t, models.FreightTypeAirImport, s.FreightType())
}

func TestAddAndRemoveRoute(t *testing.T) {
	s := NewComposerSession(newFakeRateRepo(), nil, models.FreightTypeSeaImportFCL, "CMB", "SIN")

	added := s.AddRoute()
	assert.Equal(t, 4, added.ID)
	require.Len(t, s.Drafts(), 4)

	require.NoError(t, s.RemoveRoute(2))
	assert.Error(t, s.RemoveRoute(99))

	require.NoError(t, s.RemoveRoute(1))
	require.NoError(t, s.RemoveRoute(3))
	assert.ErrorIs(t, s.RemoveRoute(4), ErrLastRoute)
	require.Len(t, s.Drafts(), 1)
}

func TestSelectFreightTypeResetsDrafts(t *testing.T) {
	s := NewComposerSession(newFakeRateRepo(), nil, models.FreightTypeAirImport, "CMB", "SIN")
	require.NoError(t, s.UpdateDraft(1, func(d *RouteDraft) { fillAirDraft(d, "CX") }))

	s.SelectFreightType(models.FreightTypeSeaExportFCL)

	assert.Equal(t, models.FreightTypeSeaExportFCL, s.FreightType())
	drafts := s.Drafts()
	require.Len(t, drafts, 3)
	for _, d := range drafts {
		assert.Empty(t, d.Carrier)
		assert.True(t, d.Payload.IsEmpty())
	}
	// Draft ids keep growing across resets.
	assert.Equal(t, 4, drafts[0].ID)
}

func TestUpdateDraftUnknownID(t *testing.T) {
	s := NewComposerSession(newFakeRateRepo(), nil, models.FreightTypeAirImport, "CMB", "SIN")
	assert.ErrorIs(t, s.UpdateDraft(42, func(d *RouteDraft) {}), ErrDraftNotFound)
}

func TestLoadRoutesAssignsFreshIDs(t *testing.T) {
	s := NewComposerSession(newFakeRateRepo(), nil, models.FreightTypeAirImport, "CMB", "SIN")

	s.LoadRoutes([]RouteDraft{
		{ID: 77, Carrier: "CX"},
		{ID: 77, Carrier: "SQ"},
	})

	drafts := s.Drafts()
	require.Len(t, drafts, 2)
	assert.Equal(t, 4, drafts[0].ID)
	assert.Equal(t, 5, drafts[1].ID)
	assert.Equal(t, "CX", drafts[0].Carrier)
	assert.Equal(t, "SQ", drafts[1].Carrier)

	s.LoadRoutes(nil)
	require.Len(t, s.Drafts(), 1)
}

func TestSubmitAllEmptyDrafts(t *testing.T) {
	repo := newFakeRateRepo()
	s := NewComposerSession(repo, nil, models.FreightTypeAirImport, "CMB", "SIN")

	result, err := s.Submit(context.Background())
	assert.ErrorIs(t, err, ErrNoRealRoutes)
	assert.Nil(t, result)
	assert.Equal(t, 0, repo.createCalls)
}

func TestSubmitPersistsOnlyRealDrafts(t *testing.T) {
	repo := newFakeRateRepo()
	s := NewComposerSession(repo, nil, models.FreightTypeAirExport, "CMB", "SIN")

	// Fill the first and last drafts; the middle stays empty.
	require.NoError(t, s.UpdateDraft(1, func(d *RouteDraft) { fillAirDraft(d, "CX") }))
	require.NoError(t, s.UpdateDraft(3, func(d *RouteDraft) { fillAirDraft(d, "SQ") }))

	result, err := s.Submit(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 2, repo.createCalls)
	require.Len(t, repo.records, 2)

	carriers := map[string]bool{}
	for _, r := range repo.records {
		carriers[r.Carrier] = true
		assert.Equal(t, models.FreightTypeAirExport, r.FreightType)
		assert.Equal(t, "CMB", r.Origin)
		assert.Equal(t, "SIN", r.Destination)
		assert.Equal(t, models.RoutingTypeDirect, r.RoutingType)
		require.NotNil(t, r.Payload.Air)
		assert.Nil(t, r.Payload.FCL)
		assert.Nil(t, r.Payload.LCL)
	}
	assert.True(t, carriers["CX"])
	assert.True(t, carriers["SQ"])

	// Everything succeeded, so the session resets to a single empty draft.
	drafts := s.Drafts()
	require.Len(t, drafts, 1)
	assert.Empty(t, drafts[0].Carrier)
}

func TestSubmitAbortsBeforeAnyStoreCallOnValidationFailure(t *testing.T) {
	repo := newFakeRateRepo()
	s := NewComposerSession(repo, nil, models.FreightTypeSeaImportFCL, "CMB", "SIN")

	require.NoError(t, s.UpdateDraft(1, func(d *RouteDraft) { fillFCLDraft(d, "MAERSK") }))
	// Real data but no container rate and no note.
	require.NoError(t, s.UpdateDraft(2, func(d *RouteDraft) { d.Carrier = "MSC" }))

	result, err := s.Submit(context.Background())
	assert.Nil(t, result)

	var batchErr *BatchValidationError
	require.ErrorAs(t, err, &batchErr)
	require.Contains(t, batchErr.Drafts, 2)
	assert.NotContains(t, batchErr.Drafts, 1)
	assert.True(t, batchErr.Drafts[2].HasField("Payload"))
	assert.True(t, batchErr.Drafts[2].HasField("Note"))

	assert.Equal(t, 0, repo.createCalls)
	assert.Len(t, s.Drafts(), 3)
}

func TestSubmitKeepsFailedDraftsForRetry(t *testing.T) {
	repo := newFakeRateRepo()
	repo.failCarrier = "MSC"
	s := NewComposerSession(repo, nil, models.FreightTypeSeaImportFCL, "CMB", "SIN")

	require.NoError(t, s.UpdateDraft(1, func(d *RouteDraft) { fillFCLDraft(d, "MAERSK") }))
	require.NoError(t, s.UpdateDraft(2, func(d *RouteDraft) { fillFCLDraft(d, "MSC") }))

	result, err := s.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, repo.records, 1)
	assert.Equal(t, "MAERSK", repo.records[0].Carrier)

	// The successful draft left the session; the failed one can be retried.
	drafts := s.Drafts()
	ids := map[int]string{}
	for _, d := range drafts {
		ids[d.ID] = d.Carrier
	}
	assert.NotContains(t, ids, 1)
	assert.Equal(t, "MSC", ids[2])

	repo.failCarrier = ""
	result, err = s.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 0, result.Failed)
	assert.Len(t, repo.records, 2)
}

func TestEditSessionSubmitsSingleUpdate(t *testing.T) {
	repo := newFakeRateRepo()
	seed, err := repo.Create(context.Background(), &models.RateRecordInput{
		FreightType: models.FreightTypeSeaImportLCL,
		Origin:      "CMB",
		Destination: "SIN",
		Carrier:     "CONSOL CO",
		Note:        "old note",
		Payload:     models.RatePayload{LCL: &models.LCLRates{LCLRate: rate(85)}},
	})
	require.NoError(t, err)
	repo.createCalls = 0

	s := NewEditSession(repo, nil, seed)
	drafts := s.Drafts()
	require.Len(t, drafts, 1)
	assert.Equal(t, "CONSOL CO", drafts[0].Carrier)

	// Changing the freight type is not allowed while editing.
	s.SelectFreightType(models.FreightTypeAirImport)
	assert.Equal(t, models.FreightTypeSeaImportLCL, s.FreightType())
	require.Len(t, s.Drafts(), 1)

	require.NoError(t, s.UpdateDraft(1, func(d *RouteDraft) {
		d.Note = "new note"
		d.Payload = models.RatePayload{LCL: &models.LCLRates{LCLRate: rate(92)}}
	}))

	result, err := s.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 0, repo.createCalls)
	assert.Equal(t, 1, repo.updateCalls)

	updated, err := repo.GetByID(context.Background(), seed.ID)
	require.NoError(t, err)
	assert.Equal(t, "new note", updated.Note)
	require.NotNil(t, updated.Payload.LCL)
	assert.Equal(t, 92.0, *updated.Payload.LCL.LCLRate)
}

func TestEditSessionValidatesBeforeUpdate(t *testing.T) {
	repo := newFakeRateRepo()
	seed, err := repo.Create(context.Background(), &models.RateRecordInput{
		FreightType: models.FreightTypeSeaImportFCL,
		Origin:      "CMB",
		Destination: "SIN",
		Carrier:     "MAERSK",
		Note:        "note",
		Payload:     models.RatePayload{FCL: &models.FCLRates{Rate20ft: rate(1200)}},
	})
	require.NoError(t, err)

	s := NewEditSession(repo, nil, seed)
	require.NoError(t, s.UpdateDraft(1, func(d *RouteDraft) {
		d.Payload = models.RatePayload{}
	}))

	_, err = s.Submit(context.Background())
	var batchErr *BatchValidationError
	require.ErrorAs(t, err, &batchErr)
	assert.Equal(t, 0, repo.updateCalls)
}

func TestSubmitDefaultsRoutingType(t *testing.T) {
	repo := newFakeRateRepo()
	s := NewComposerSession(repo, nil, models.FreightTypeSeaImportFCL, "CMB", "SIN")

	require.NoError(t, s.UpdateDraft(1, func(d *RouteDraft) {
		fillFCLDraft(d, "MAERSK")
		d.RoutingType = models.RoutingTypeTransship
		d.TransshipmentTime = "2 days"
	}))
	require.NoError(t, s.UpdateDraft(2, func(d *RouteDraft) { fillFCLDraft(d, "MSC") }))

	_, err := s.Submit(context.Background())
	require.NoError(t, err)

	byCarrier := map[string]models.RoutingType{}
	for _, r := range repo.records {
		byCarrier[r.Carrier] = r.RoutingType
	}
	assert.Equal(t, models.RoutingTypeTransship, byCarrier["MAERSK"])
	assert.Equal(t, models.RoutingTypeDirect, byCarrier["MSC"])
}

func TestBatchValidationErrorMessage(t *testing.T) {
	repo := newFakeRateRepo()
	s := NewComposerSession(repo, nil, models.FreightTypeAirImport, "CMB", "SIN")
	require.NoError(t, s.UpdateDraft(1, func(d *RouteDraft) { d.Carrier = "CX" }))
	require.NoError(t, s.UpdateDraft(2, func(d *RouteDraft) { d.Carrier = "SQ" }))

	_, err := s.Submit(context.Background())
	var batchErr *BatchValidationError
	require.ErrorAs(t, err, &batchErr)
	assert.Equal(t, "validation failed for 2 route(s)", batchErr.Error())
}
