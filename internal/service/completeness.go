package service

import (
	"bytes"
	"encoding/json"

	"github.com/jmoiron/sqlx/types"
)

// Completeness weights per unit facet.
const (
	completenessObjectives = 20
	completenessSkills     = 15
	completenessActivities = 20
	completenessRubric     = 25
	completenessResources  = 20
	completenessMax        = 100
)

// CompletenessInput is the post-update state of a unit.
type CompletenessInput struct {
	Objectives      types.JSONText
	Skills          types.JSONText
	Activities      types.JSONText
	Rubric          types.NullJSONText
	ActiveResources int
}

// ComputeCompleteness scores how fully a unit is authored, from 0 to 100.
func ComputeCompleteness(in CompletenessInput) int {
	score := 0
	if nonEmptyArray(in.Objectives) {
		score += completenessObjectives
	}
	if nonEmptyArray(in.Skills) {
		score += completenessSkills
	}
	if nonEmptyArray(in.Activities) {
		score += completenessActivities
	}
	if rubricPresent(in.Rubric) {
		score += completenessRubric
	}
	if in.ActiveResources > 0 {
		score += completenessResources
	}
	if score > completenessMax {
		score = completenessMax
	}
	return score
}

func nonEmptyArray(raw types.JSONText) bool {
	if len(raw) == 0 {
		return false
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return false
	}
	return len(items) > 0
}

func rubricPresent(raw types.NullJSONText) bool {
	if !raw.Valid {
		return false
	}
	trimmed := bytes.TrimSpace(raw.JSONText)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}
