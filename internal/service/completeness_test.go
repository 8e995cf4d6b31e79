package service

import (
	"testing"

	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
)

func TestComputeCompleteness(t *testing.T) {
	rubric := types.NullJSONText{JSONText: types.JSONText(`{"criteria":[{"name":"accuracy","weight":50}]}`), Valid: true}
	cases := []struct {
		name  string
		input CompletenessInput
		want  int
	}{
		{name: "empty unit", input: CompletenessInput{}, want: 0},
		{name: "empty arrays", input: CompletenessInput{Objectives: types.JSONText(`[]`), Skills: types.JSONText(`[]`), Activities: types.JSONText(`[]`)}, want: 0},
		{name: "objectives only", input: CompletenessInput{Objectives: types.JSONText(`["add fractions"]`)}, want: 20},
		{name: "skills only", input: CompletenessInput{Skills: types.JSONText(`["numeracy"]`)}, want: 15},
		{name: "activities only", input: CompletenessInput{Activities: types.JSONText(`[{"title":"worksheet"}]`)}, want: 20},
		{name: "rubric only", input: CompletenessInput{Rubric: rubric}, want: 25},
		{name: "null rubric", input: CompletenessInput{Rubric: types.NullJSONText{JSONText: types.JSONText(`null`), Valid: true}}, want: 0},
		{name: "resources only", input: CompletenessInput{ActiveResources: 2}, want: 20},
		{name: "malformed arrays", input: CompletenessInput{Objectives: types.JSONText(`{"a":1}`)}, want: 0},
		{
			name: "fully authored",
			input: CompletenessInput{
				Objectives:      types.JSONText(`["a"]`),
				Skills:          types.JSONText(`["b"]`),
				Activities:      types.JSONText(`[{"title":"c"}]`),
				Rubric:          rubric,
				ActiveResources: 1,
			},
			want: 100,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ComputeCompleteness(tc.input))
		})
	}
}
