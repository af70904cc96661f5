package rules

import (
	"strings"

	"github.com/joshsymonds/mailtriage/internal/gmail"
)

// Record is the matchable shape of one email: scalar header fields plus the
// resolved label-name set. Missing fields compare as empty.
type Record struct {
	From        string
	To          string
	Subject     string
	BodySnippet string
	Labels      []string
}

// RecordFromMessage flattens a fetched message into a Record. Header names
// are matched case-insensitively since senders control their casing.
// labelName resolves label ids to names; ids it cannot resolve are kept
// verbatim so system labels still match by id.
func RecordFromMessage(msg gmail.Message, labelName func(gmail.LabelID) string) Record {
	rec := Record{
		From:        headerValue(msg.Headers, "From"),
		To:          headerValue(msg.Headers, "To"),
		Subject:     headerValue(msg.Headers, "Subject"),
		BodySnippet: msg.Snippet,
	}
	for _, id := range msg.LabelIDs {
		name := ""
		if labelName != nil {
			name = labelName(id)
		}
		if name == "" {
			name = string(id)
		}
		rec.Labels = append(rec.Labels, name)
	}
	return rec
}

// Matches evaluates one condition against the record. Matching is fail-safe:
// an operator the field does not support yields false, never an error.
func Matches(rec Record, cond Condition) bool {
	want := strings.ToLower(cond.Value)

	if cond.Field == FieldLabel {
		// Labels form a set; only membership tests are meaningful.
		switch cond.Operator {
		case OpContains:
			return containsLabel(rec.Labels, want)
		case OpNotContains:
			return !containsLabel(rec.Labels, want)
		default:
			return false
		}
	}

	got := strings.ToLower(rec.field(cond.Field))
	switch cond.Operator {
	case OpContains:
		return strings.Contains(got, want)
	case OpNotContains:
		return !strings.Contains(got, want)
	case OpEquals:
		return got == want
	case OpNotEquals:
		return got != want
	case OpStartsWith:
		return strings.HasPrefix(got, want)
	case OpEndsWith:
		return strings.HasSuffix(got, want)
	default:
		return false
	}
}

// RuleMatches combines per-condition results under the rule's conjunction.
// Disabled rules and rules with zero conditions never match.
func RuleMatches(rec Record, r Rule) bool {
	if !r.Enabled || len(r.Conditions) == 0 {
		return false
	}
	if r.Conjunction == ConjunctionOr {
		for _, c := range r.Conditions {
			if Matches(rec, c) {
				return true
			}
		}
		return false
	}
	for _, c := range r.Conditions {
		if !Matches(rec, c) {
			return false
		}
	}
	return true
}

func (rec Record) field(f Field) string {
	switch f {
	case FieldFrom:
		return rec.From
	case FieldTo:
		return rec.To
	case FieldSubject:
		return rec.Subject
	case FieldBodySnippet:
		return rec.BodySnippet
	default:
		return ""
	}
}

func headerValue(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return v
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

func containsLabel(labels []string, want string) bool {
	for _, l := range labels {
		if strings.ToLower(l) == want {
			return true
		}
	}
	return false
}
