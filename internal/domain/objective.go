package domain

import (
	"encoding/json"
	"fmt"
)

// Objective is a tracked goal with a measurable current/target value. Server fields
// the client does not model (key results, owner objects) are kept in Extra.
type Objective struct {
	ID           ID       `json:"id"`
	Title        string   `json:"title"`
	Description  string   `json:"description,omitempty"`
	Status       Status   `json:"status,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	OwnerID      ID       `json:"owner_id,omitempty"`
	DepartmentID ID       `json:"department_id,omitempty"`
	CurrentValue float64  `json:"current_value"`
	TargetValue  float64  `json:"target_value,omitempty"`
	Unit         string   `json:"unit,omitempty"`
	DueDate      string   `json:"due_date,omitempty"`
	CreatedAt    string   `json:"created_at,omitempty"`
	UpdatedAt    string   `json:"updated_at,omitempty"`

	Extra map[string]any `json:"-"`
}

// RecordID implements cache.Identified
func (o Objective) RecordID() ID { return o.ID }

type objectiveFields Objective

var objectiveKnownKeys = []string{
	"id", "title", "description", "status", "tags", "owner_id", "department_id",
	"current_value", "target_value", "unit", "due_date", "created_at", "updated_at",
}

// UnmarshalJSON decodes the modelled fields and keeps everything else in Extra.
func (o *Objective) UnmarshalJSON(data []byte) error {
	var f objectiveFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	extra, err := splitExtra(data, objectiveKnownKeys)
	if err != nil {
		return err
	}
	*o = Objective(f)
	o.Extra = extra
	return nil
}

// MarshalJSON merges Extra back into the object. Modelled fields win on conflict.
func (o Objective) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(objectiveFields(o))
	if err != nil {
		return nil, err
	}
	return mergeExtra(known, o.Extra)
}

// HasTag reports whether the objective carries tag
func (o Objective) HasTag(tag string) bool {
	for _, t := range o.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Progress returns current/target as a percentage, or 0 without a target.
func (o Objective) Progress() float64 {
	if o.TargetValue == 0 {
		return 0
	}
	return o.CurrentValue / o.TargetValue * 100
}

// ObjectiveInput is the create/update payload. Nil fields are omitted so updates are partial;
// a non-nil empty Tags clears the tags.
type ObjectiveInput struct {
	Title        *string   `json:"title,omitempty"`
	Description  *string   `json:"description,omitempty"`
	Status       *Status   `json:"status,omitempty"`
	Tags         *[]string `json:"tags,omitempty"`
	OwnerID      *ID       `json:"owner_id,omitempty"`
	DepartmentID *ID       `json:"department_id,omitempty"`
	CurrentValue *float64  `json:"current_value,omitempty"`
	TargetValue  *float64  `json:"target_value,omitempty"`
	Unit         *string   `json:"unit,omitempty"`
	DueDate      *string   `json:"due_date,omitempty"`
}

// ProgressUpdate is the body of PATCH /objectives/:id/progress
type ProgressUpdate struct {
	CurrentValue float64 `json:"current_value"`
	Notes        string  `json:"notes,omitempty"`
}

// Tag is an entry from GET /tags. Servers return either bare strings or {name, count} objects.
type Tag struct {
	Name  string `json:"name"`
	Count int    `json:"count,omitempty"`
}

// UnmarshalJSON accepts "okr" as well as {"name":"okr","count":3}.
func (t *Tag) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*t = Tag{Name: name}
		return nil
	}
	type tagFields Tag
	var f tagFields
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("invalid tag %s: %w", data, err)
	}
	*t = Tag(f)
	return nil
}

// Stats is an opaque statistics payload (dashboard, per-tag). The server owns its shape.
type Stats map[string]any
