package lifecycle

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/curriculum-api/internal/models"
)

func TestVersionManualTransitions(t *testing.T) {
	allowed := map[[2]models.VersionState]bool{
		{models.VersionApproved, models.VersionPublished}: true,
		{models.VersionDraft, models.VersionArchived}:     true,
		{models.VersionApproved, models.VersionArchived}:  true,
		{models.VersionPublished, models.VersionArchived}: true,
	}
	for _, from := range models.VersionStates {
		for _, to := range models.VersionStates {
			if from == to {
				continue
			}
			_, err := Versions.Resolve(from, to, OriginManual)
			if allowed[[2]models.VersionState{from, to}] {
				assert.NoError(t, err, "%s -> %s", from, to)
			} else {
				assert.Error(t, err, "%s -> %s", from, to)
			}
		}
	}
}

func TestVersionWorkflowEdgesAreNotManual(t *testing.T) {
	_, err := Versions.Resolve(models.VersionDraft, models.VersionPendingReview, OriginManual)
	require.Error(t, err)
	var te *TransitionError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "version", te.Machine)

	rule, err := Versions.Resolve(models.VersionDraft, models.VersionPendingReview, OriginWorkflow)
	require.NoError(t, err)
	assert.Equal(t, EventSubmit, rule.Event)

	_, err = Versions.Resolve(models.VersionPendingReview, models.VersionApproved, OriginManual)
	assert.Error(t, err)
	_, err = Versions.Resolve(models.VersionPendingReview, models.VersionArchived, OriginWorkflow)
	assert.Error(t, err)
}

func TestTargetsRespectOrigin(t *testing.T) {
	assert.Equal(t, []models.VersionState{models.VersionArchived}, Versions.Targets(models.VersionDraft, OriginManual))
	assert.Equal(t, []models.VersionState{models.VersionArchived, models.VersionPendingReview}, Versions.Targets(models.VersionDraft, OriginWorkflow))
	assert.Equal(t, []models.VersionState{models.VersionApproved, models.VersionDraft}, Versions.Targets(models.VersionPendingReview, OriginWorkflow))
	assert.Empty(t, Versions.Targets(models.VersionPendingReview, OriginManual))
	assert.Empty(t, Mappings.Targets(models.MappingRolledBack, OriginManual))
}

func TestRejectedTransitionListsAllowedTargets(t *testing.T) {
	_, err := Mappings.Resolve(models.MappingPlanned, models.MappingApplied, OriginManual)
	require.Error(t, err)
	assert.Equal(t, "mapping: transition planned -> applied is not allowed (allowed: failed, validated)", err.Error())

	_, err = Versions.Resolve(models.VersionPendingReview, models.VersionPublished, OriginManual)
	require.Error(t, err)
	assert.Equal(t, "version: transition pending_review -> published is not allowed", err.Error())
}

func TestVersionFire(t *testing.T) {
	next, err := Versions.Fire(models.VersionPendingReview, EventReject)
	require.NoError(t, err)
	assert.Equal(t, models.VersionDraft, next)

	next, err = Versions.Fire(models.VersionDraft, EventPublish)
	require.Error(t, err)
	assert.Equal(t, models.VersionDraft, next)
}

func TestApprovalTransitions(t *testing.T) {
	all := []models.ApprovalStatus{
		models.ApprovalRequested,
		models.ApprovalInReview,
		models.ApprovalApproved,
		models.ApprovalRejected,
		models.ApprovalEscalated,
	}
	allowed := map[[2]models.ApprovalStatus]bool{
		{models.ApprovalRequested, models.ApprovalInReview}:  true,
		{models.ApprovalRequested, models.ApprovalApproved}:  true,
		{models.ApprovalRequested, models.ApprovalRejected}:  true,
		{models.ApprovalRequested, models.ApprovalEscalated}: true,
		{models.ApprovalInReview, models.ApprovalApproved}:   true,
		{models.ApprovalInReview, models.ApprovalRejected}:   true,
		{models.ApprovalInReview, models.ApprovalEscalated}:  true,
		{models.ApprovalEscalated, models.ApprovalApproved}:  true,
		{models.ApprovalEscalated, models.ApprovalRejected}:  true,
	}
	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[[2]models.ApprovalStatus{from, to}], Approvals.Can(from, to), "%s -> %s", from, to)
		}
	}
	assert.True(t, Approvals.Terminal(models.ApprovalApproved))
	assert.True(t, Approvals.Terminal(models.ApprovalRejected))
	assert.False(t, Approvals.Terminal(models.ApprovalEscalated))
}

func TestMappingTransitions(t *testing.T) {
	all := []models.MappingStatus{
		models.MappingPlanned,
		models.MappingValidated,
		models.MappingApplied,
		models.MappingFailed,
		models.MappingRolledBack,
	}
	allowed := map[[2]models.MappingStatus]bool{
		{models.MappingPlanned, models.MappingValidated}:  true,
		{models.MappingValidated, models.MappingApplied}:  true,
		{models.MappingApplied, models.MappingRolledBack}: true,
		{models.MappingPlanned, models.MappingFailed}:     true,
		{models.MappingValidated, models.MappingFailed}:   true,
	}
	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[[2]models.MappingStatus{from, to}], Mappings.Can(from, to), "%s -> %s", from, to)
		}
	}
	assert.False(t, Mappings.Can(models.MappingPlanned, models.MappingApplied))
	assert.True(t, Mappings.Terminal(models.MappingFailed))
	assert.True(t, Mappings.Terminal(models.MappingRolledBack))
}

func TestDecisionDelta(t *testing.T) {
	cases := []struct {
		prior, next models.ApprovalStatus
		event       Event
		ok          bool
	}{
		{models.ApprovalRequested, models.ApprovalApproved, EventApprove, true},
		{models.ApprovalInReview, models.ApprovalRejected, EventReject, true},
		{models.ApprovalEscalated, models.ApprovalApproved, EventApprove, true},
		{models.ApprovalRequested, models.ApprovalInReview, "", false},
		{models.ApprovalInReview, models.ApprovalEscalated, "", false},
		{models.ApprovalApproved, models.ApprovalApproved, "", false},
	}
	for _, tc := range cases {
		event, ok := DecisionDelta(tc.prior, tc.next)
		assert.Equal(t, tc.ok, ok, "%s -> %s", tc.prior, tc.next)
		assert.Equal(t, tc.event, event, "%s -> %s", tc.prior, tc.next)
	}
}

func TestDecisionDeltaDrivesVersionTable(t *testing.T) {
	event, ok := DecisionDelta(models.ApprovalInReview, models.ApprovalApproved)
	require.True(t, ok)
	next, err := Versions.Fire(models.VersionPendingReview, event)
	require.NoError(t, err)
	assert.Equal(t, models.VersionApproved, next)

	event, ok = DecisionDelta(models.ApprovalEscalated, models.ApprovalRejected)
	require.True(t, ok)
	next, err = Versions.Fire(models.VersionPendingReview, event)
	require.NoError(t, err)
	assert.Equal(t, models.VersionDraft, next)
}

func TestNewMachinePanicsOnDuplicateRule(t *testing.T) {
	assert.Panics(t, func() {
		NewMachine("dup", []Rule[models.MappingStatus]{
			{From: models.MappingPlanned, Event: EventValidate, To: models.MappingValidated},
			{From: models.MappingPlanned, Event: EventValidate, To: models.MappingFailed},
		})
	})
}
