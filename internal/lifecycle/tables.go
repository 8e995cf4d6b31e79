package lifecycle

import "github.com/noah-isme/curriculum-api/internal/models"

// Version events.
const (
	EventSubmit  Event = "submit"
	EventApprove Event = "approve"
	EventReject  Event = "reject"
	EventPublish Event = "publish"
	EventArchive Event = "archive"
)

// Approval events. Approve and reject are shared with the version table.
const (
	EventStartReview Event = "start_review"
	EventEscalate    Event = "escalate"
)

// Mapping events.
const (
	EventValidate Event = "validate"
	EventApply    Event = "apply"
	EventFail     Event = "fail"
	EventRollback Event = "rollback"
)

// Versions is the version lifecycle. Review edges belong to the approval workflow.
var Versions = NewMachine("version", []Rule[models.VersionState]{
	{From: models.VersionDraft, Event: EventSubmit, To: models.VersionPendingReview, Origin: OriginWorkflow},
	{From: models.VersionPendingReview, Event: EventApprove, To: models.VersionApproved, Origin: OriginWorkflow},
	{From: models.VersionPendingReview, Event: EventReject, To: models.VersionDraft, Origin: OriginWorkflow},
	{From: models.VersionApproved, Event: EventPublish, To: models.VersionPublished, Origin: OriginManual},
	{From: models.VersionDraft, Event: EventArchive, To: models.VersionArchived, Origin: OriginManual},
	{From: models.VersionApproved, Event: EventArchive, To: models.VersionArchived, Origin: OriginManual},
	{From: models.VersionPublished, Event: EventArchive, To: models.VersionArchived, Origin: OriginManual},
})

// Approvals is the review workflow.
var Approvals = NewMachine("approval", []Rule[models.ApprovalStatus]{
	{From: models.ApprovalRequested, Event: EventStartReview, To: models.ApprovalInReview, Origin: OriginManual},
	{From: models.ApprovalRequested, Event: EventApprove, To: models.ApprovalApproved, Origin: OriginManual},
	{From: models.ApprovalRequested, Event: EventReject, To: models.ApprovalRejected, Origin: OriginManual},
	{From: models.ApprovalRequested, Event: EventEscalate, To: models.ApprovalEscalated, Origin: OriginManual},
	{From: models.ApprovalInReview, Event: EventApprove, To: models.ApprovalApproved, Origin: OriginManual},
	{From: models.ApprovalInReview, Event: EventReject, To: models.ApprovalRejected, Origin: OriginManual},
	{From: models.ApprovalInReview, Event: EventEscalate, To: models.ApprovalEscalated, Origin: OriginManual},
	{From: models.ApprovalEscalated, Event: EventApprove, To: models.ApprovalApproved, Origin: OriginManual},
	{From: models.ApprovalEscalated, Event: EventReject, To: models.ApprovalRejected, Origin: OriginManual},
})

// Mappings is the rollout apply lifecycle. Failed and rolled_back are terminal.
var Mappings = NewMachine("mapping", []Rule[models.MappingStatus]{
	{From: models.MappingPlanned, Event: EventValidate, To: models.MappingValidated, Origin: OriginManual},
	{From: models.MappingValidated, Event: EventApply, To: models.MappingApplied, Origin: OriginManual},
	{From: models.MappingApplied, Event: EventRollback, To: models.MappingRolledBack, Origin: OriginManual},
	{From: models.MappingPlanned, Event: EventFail, To: models.MappingFailed, Origin: OriginManual},
	{From: models.MappingValidated, Event: EventFail, To: models.MappingFailed, Origin: OriginManual},
})

// DecisionDelta returns the version event implied by an approval moving from
// prior to next. Only entering approved or rejected touches the version.
func DecisionDelta(prior, next models.ApprovalStatus) (Event, bool) {
	if prior == next {
		return "", false
	}
	switch next {
	case models.ApprovalApproved:
		return EventApprove, true
	case models.ApprovalRejected:
		return EventReject, true
	default:
		return "", false
	}
}
