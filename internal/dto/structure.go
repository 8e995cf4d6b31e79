package dto

import "github.com/noah-isme/curriculum-api/internal/models"

// Activity is one planned learning activity of a unit.
type Activity struct {
	Title           string `json:"title" validate:"required,max=255"`
	Kind            string `json:"kind,omitempty" validate:"omitempty,max=64"`
	DurationMinutes int    `json:"durationMinutes,omitempty" validate:"gte=0,lte=1440"`
}

// RubricCriterion is one scored dimension of a rubric.
type RubricCriterion struct {
	Name   string   `json:"name" validate:"required,max=255"`
	Weight float64  `json:"weight" validate:"gte=0,lte=100"`
	Levels []string `json:"levels,omitempty" validate:"omitempty,dive,required"`
}

// Rubric is the assessment scheme of a unit.
type Rubric struct {
	Title    string            `json:"title,omitempty" validate:"omitempty,max=255"`
	Criteria []RubricCriterion `json:"criteria" validate:"required,min=1,dive"`
}

// CreateCourseRequest adds a course to a draft version.
type CreateCourseRequest struct {
	Code        *string `json:"code" validate:"omitempty,max=64"`
	Title       string  `json:"title" validate:"required,max=255"`
	Description *string `json:"description" validate:"omitempty,max=5000"`
	Sequence    *int    `json:"sequence" validate:"omitempty,gte=0"`
}

// UpdateCourseRequest patches a course.
type UpdateCourseRequest struct {
	Code        *string `json:"code" validate:"omitempty,max=64"`
	Title       *string `json:"title" validate:"omitempty,min=1,max=255"`
	Description *string `json:"description" validate:"omitempty,max=5000"`
}

// Empty reports whether the patch carries no field.
func (r UpdateCourseRequest) Empty() bool {
	return r.Code == nil && r.Title == nil && r.Description == nil
}

// ReorderItem assigns a sequence to one sibling.
type ReorderItem struct {
	ID       string `json:"id" validate:"required"`
	Sequence int    `json:"sequence" validate:"gte=0"`
}

// ReorderRequest reassigns sibling sequences in bulk.
type ReorderRequest struct {
	Items []ReorderItem `json:"items" validate:"required,min=1,dive"`
}

// CreateUnitRequest adds a unit to a course.
type CreateUnitRequest struct {
	Title       string     `json:"title" validate:"required,max=255"`
	Description *string    `json:"description" validate:"omitempty,max=5000"`
	Sequence    *int       `json:"sequence" validate:"omitempty,gte=0"`
	Objectives  []string   `json:"objectives" validate:"omitempty,dive,required,max=1000"`
	Skills      []string   `json:"skills" validate:"omitempty,dive,required,max=255"`
	Activities  []Activity `json:"activities" validate:"omitempty,dive"`
	Rubric      *Rubric    `json:"rubric"`
}

// UpdateUnitRequest patches a unit. Absent fields keep their stored value.
type UpdateUnitRequest struct {
	Title       *string     `json:"title" validate:"omitempty,min=1,max=255"`
	Description *string     `json:"description" validate:"omitempty,max=5000"`
	Objectives  *[]string   `json:"objectives" validate:"omitempty,dive,required,max=1000"`
	Skills      *[]string   `json:"skills" validate:"omitempty,dive,required,max=255"`
	Activities  *[]Activity `json:"activities" validate:"omitempty,dive"`
	Rubric      *Rubric     `json:"rubric"`
	ClearRubric bool        `json:"clearRubric"`
}

// Empty reports whether the patch carries no field.
func (r UpdateUnitRequest) Empty() bool {
	return r.Title == nil && r.Description == nil && r.Objectives == nil && r.Skills == nil &&
		r.Activities == nil && r.Rubric == nil && !r.ClearRubric
}

// SplitUnitRequest carves a new unit out of an existing one.
type SplitUnitRequest struct {
	Title       string   `json:"title" validate:"required,max=255"`
	Description *string  `json:"description" validate:"omitempty,max=5000"`
	ResourceIDs []string `json:"resourceIds" validate:"omitempty,dive,required"`
}

// SplitUnitResult returns both halves of a split.
type SplitUnitResult struct {
	Source  *models.Unit `json:"source"`
	Created *models.Unit `json:"created"`
}

// CreateResourceRequest attaches a resource to a unit.
type CreateResourceRequest struct {
	Kind     string  `json:"kind" validate:"required,max=64"`
	Title    string  `json:"title" validate:"required,max=255"`
	URL      *string `json:"url" validate:"omitempty,url,max=2048"`
	Sequence *int    `json:"sequence" validate:"omitempty,gte=0"`
}

// UpdateResourceRequest patches a resource.
type UpdateResourceRequest struct {
	Kind     *string `json:"kind" validate:"omitempty,min=1,max=64"`
	Title    *string `json:"title" validate:"omitempty,min=1,max=255"`
	URL      *string `json:"url" validate:"omitempty,url,max=2048"`
	Sequence *int    `json:"sequence" validate:"omitempty,gte=0"`
}

// Empty reports whether the patch carries no field.
func (r UpdateResourceRequest) Empty() bool {
	return r.Kind == nil && r.Title == nil && r.URL == nil && r.Sequence == nil
}
