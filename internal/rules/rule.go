// Package rules holds the triage rule model, its JSON store, and the
// matching/translation logic the mailbox applier drives.
package rules

import (
	"strings"

	"github.com/google/uuid"

	"github.com/joshsymonds/mailtriage/internal/fault"
)

// Field names a message attribute a condition can test.
type Field string

const (
	FieldFrom        Field = "from"
	FieldTo          Field = "to"
	FieldSubject     Field = "subject"
	FieldBodySnippet Field = "body_snippet"
	FieldLabel       Field = "label"
)

// Operator names a comparison a condition applies to its field.
type Operator string

const (
	OpContains    Operator = "contains"
	OpNotContains Operator = "not_contains"
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "not_equals"
	OpStartsWith  Operator = "starts_with"
	OpEndsWith    Operator = "ends_with"
)

// Conjunction combines the per-condition results of a rule.
type Conjunction string

const (
	ConjunctionAnd Conjunction = "AND"
	ConjunctionOr  Conjunction = "OR"
)

// ActionType names a mutation a matched message receives.
type ActionType string

const (
	ActionTrash       ActionType = "trash"
	ActionAddLabel    ActionType = "add_label"
	ActionRemoveLabel ActionType = "remove_label"
	ActionMarkRead    ActionType = "mark_read"
	ActionMarkUnread  ActionType = "mark_unread"
)

// Condition tests one message field against a value. Comparisons are
// case-insensitive.
type Condition struct {
	Field    Field    `json:"field"`
	Operator Operator `json:"operator"`
	Value    string   `json:"value"`
}

// Validate reports whether the condition names a known field and operator.
func (c Condition) Validate() error {
	switch c.Field {
	case FieldFrom, FieldTo, FieldSubject, FieldBodySnippet, FieldLabel:
	default:
		return fault.Newf(fault.KindParameter, "unknown condition field %q", c.Field)
	}
	switch c.Operator {
	case OpContains, OpNotContains, OpEquals, OpNotEquals, OpStartsWith, OpEndsWith:
	default:
		return fault.Newf(fault.KindParameter, "unknown condition operator %q", c.Operator)
	}
	return nil
}

// Action is one mutation applied to matched messages. LabelName is required
// for add_label/remove_label and must be absent for every other type.
type Action struct {
	Type      ActionType `json:"type"`
	LabelName string     `json:"label_name,omitempty"`
}

// Validate enforces the label-name invariant at construction time.
func (a Action) Validate() error {
	switch a.Type {
	case ActionAddLabel, ActionRemoveLabel:
		if strings.TrimSpace(a.LabelName) == "" {
			return fault.Newf(fault.KindParameter, "label_name is required for %s actions", a.Type)
		}
	case ActionTrash, ActionMarkRead, ActionMarkUnread:
		if a.LabelName != "" {
			return fault.Newf(fault.KindParameter, "label_name %q not allowed for %s actions", a.LabelName, a.Type)
		}
	default:
		return fault.Newf(fault.KindParameter, "unknown action type %q", a.Type)
	}
	return nil
}

// Key is the aggregation key used by the applier and in run summaries,
// e.g. "trash" or "add_label:Important".
func (a Action) Key() string {
	if a.LabelName != "" {
		return string(a.Type) + ":" + a.LabelName
	}
	return string(a.Type)
}

// Rule is one declarative triage rule. A rule with zero conditions never
// matches.
type Rule struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Enabled     bool        `json:"enabled"`
	Conditions  []Condition `json:"conditions"`
	Conjunction Conjunction `json:"conjunction"`
	Actions     []Action    `json:"actions"`
}

// New fills in defaults for a freshly defined rule: a generated id when
// absent and AND when no conjunction is given.
func New(r Rule) Rule {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Conjunction == "" {
		r.Conjunction = ConjunctionAnd
	}
	return r
}

// Validate checks the rule schema. It is applied on store load and before
// adding a rule; invalid persisted entries are skipped, invalid new rules
// rejected.
func (r Rule) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fault.New(fault.KindParameter, "rule name must not be empty")
	}
	switch r.Conjunction {
	case ConjunctionAnd, ConjunctionOr:
	default:
		return fault.Newf(fault.KindParameter, "unknown conjunction %q", r.Conjunction)
	}
	for _, c := range r.Conditions {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	if len(r.Actions) == 0 {
		return fault.Newf(fault.KindParameter, "rule %q has no actions", r.Name)
	}
	for _, a := range r.Actions {
		if err := a.Validate(); err != nil {
			return err
		}
	}
	return nil
}
