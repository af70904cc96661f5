package rules

import (
	"fmt"
	"strings"
)

// TranslateQuery maps a rule's conditions onto Gmail search syntax on a
// best-effort basis and returns "" when nothing is expressible. The result
// is a server-side pre-filter only: conditions that cannot be expressed are
// dropped from the query, and NeedsFullDetails decides whether matches must
// be re-verified client-side.
func TranslateQuery(r Rule) string {
	fragments := make([]string, 0, len(r.Conditions))
	for _, c := range r.Conditions {
		frag, ok := queryFragment(c)
		if !ok {
			continue
		}
		fragments = append(fragments, frag)
	}
	if len(fragments) == 0 {
		return ""
	}
	if r.Conjunction == ConjunctionOr {
		// Bare OR joins; mixed groups stay unparenthesized, matching how
		// Gmail's own filter export renders them.
		return strings.Join(fragments, " OR ")
	}
	return strings.Join(fragments, " ")
}

func queryFragment(c Condition) (string, bool) {
	switch c.Field {
	case FieldFrom, FieldTo, FieldSubject, FieldLabel:
	default:
		return "", false
	}

	value := c.Value
	if c.Field == FieldSubject && strings.Contains(strings.TrimSpace(value), " ") {
		value = fmt.Sprintf("(%q)", value)
	}

	switch c.Operator {
	case OpContains, OpEquals:
		return fmt.Sprintf("%s:%s", c.Field, value), true
	case OpNotContains, OpNotEquals:
		return fmt.Sprintf("-%s:%s", c.Field, value), true
	default:
		return "", false
	}
}

// NeedsFullDetails reports whether candidates listed for this rule must be
// fetched and re-verified client-side. Only the narrow translatable-AND case
// trusts the server query outright: every field in the query dialect, every
// operator expressible, and no OR over multiple conditions (OR joins widen
// the candidate set beyond exactness). A rule with zero conditions always
// re-verifies; its empty query lists the whole mailbox while the rule itself
// never matches, so trusting the query would invert the fail-closed default.
func NeedsFullDetails(r Rule) bool {
	if len(r.Conditions) == 0 {
		return true
	}
	if r.Conjunction == ConjunctionOr && len(r.Conditions) > 1 {
		return true
	}
	for _, c := range r.Conditions {
		switch c.Field {
		case FieldFrom, FieldTo, FieldSubject, FieldLabel:
		default:
			return true
		}
		switch c.Operator {
		case OpContains, OpEquals, OpNotContains, OpNotEquals:
		default:
			return true
		}
		if c.Field == FieldLabel {
			switch c.Operator {
			case OpContains, OpNotContains:
			default:
				return true
			}
		}
	}
	return false
}

// NeedsBodyContent reports whether a detail fetch must request the full
// payload rather than cheaper metadata.
func NeedsBodyContent(r Rule) bool {
	for _, c := range r.Conditions {
		if c.Field == FieldBodySnippet {
			return true
		}
	}
	return false
}

// CombineQueries ANDs a rule query with an optional caller-supplied query,
// parenthesizing both when both are present.
func CombineQueries(ruleQuery, userQuery string) string {
	ruleQuery = strings.TrimSpace(ruleQuery)
	userQuery = strings.TrimSpace(userQuery)
	switch {
	case ruleQuery == "":
		return userQuery
	case userQuery == "":
		return ruleQuery
	default:
		return fmt.Sprintf("(%s) (%s)", ruleQuery, userQuery)
	}
}
