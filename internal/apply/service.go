// Package apply orchestrates one bounded scan-and-apply pass: load rules,
// list candidates per rule, confirm matches, aggregate actions, execute
// batched mutations, and report a best-effort summary.
package apply

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/joshsymonds/mailtriage/internal/gmail"
	"github.com/joshsymonds/mailtriage/internal/rate"
	"github.com/joshsymonds/mailtriage/internal/rules"
)

const defaultPageSize = 100

// RuleSource provides the rule collection for a run.
type RuleSource interface {
	Load() ([]rules.Rule, error)
}

// Service executes rule application against a mailbox.
type Service struct {
	Store   RuleSource
	Client  gmail.Client
	Limiter rate.Limiter
	Log     *slog.Logger
}

// NewService constructs a Service with sane defaults.
func NewService(store RuleSource, client gmail.Client, limiter rate.Limiter, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Service{Store: store, Client: client, Limiter: limiter, Log: logger}
}

// Options controls one run.
type Options struct {
	// Query is an optional caller filter ANDed with every rule query.
	Query string
	// RuleIDs restricts the run to rules matching these ids or names.
	RuleIDs []string
	// ScanLimit caps the number of candidates listed across all rules;
	// zero or negative means unbounded.
	ScanLimit int
	// PageSize is the list page size (defaults to 100, capped at 500).
	PageSize int
	// DryRun scans and matches identically but skips all mutations.
	DryRun bool
}

// RunError is one non-fatal failure recorded during a run.
type RunError struct {
	Stage     string `json:"stage"`
	RuleID    string `json:"rule_id,omitempty"`
	MessageID string `json:"message_id,omitempty"`
	Action    string `json:"action,omitempty"`
	Message   string `json:"message"`
}

// Summary reports what a run scanned, matched, and did. Field names follow
// the persisted report format consumed by automation.
type Summary struct {
	TotalScanned int            `json:"total_emails_scanned"`
	Matched      int            `json:"emails_matching_any_rule"`
	Actions      map[string]int `json:"actions_planned_or_taken"`
	RuleCounts   map[string]int `json:"rules_applied_counts"`
	DryRun       bool           `json:"dry_run"`
	Message      string         `json:"message,omitempty"`
	Errors       []RunError     `json:"errors"`
}

// bucket accumulates the matched ids for one action key.
type bucket struct {
	action rules.Action
	ids    []gmail.MessageID
}

// Run performs one scan-and-apply pass. A rule-load failure aborts the run;
// every other failure is recorded in the summary and the run continues.
func (s *Service) Run(ctx context.Context, opts Options) (Summary, error) {
	sum := Summary{
		DryRun:     opts.DryRun,
		Actions:    map[string]int{},
		RuleCounts: map[string]int{},
		Errors:     []RunError{},
	}

	all, err := s.Store.Load()
	if err != nil {
		sum.Errors = append(sum.Errors, RunError{Stage: "load_rules", Message: err.Error()})
		return sum, fmt.Errorf("load rules: %w", err)
	}
	active := selectRules(all, opts.RuleIDs)
	if len(active) == 0 {
		sum.Message = "no enabled rules to apply"
		s.Log.Info("nothing to do", "rules_total", len(all), "filter", opts.RuleIDs)
		return sum, nil
	}

	pageSize := opts.PageSize
	if pageSize <= 0 || pageSize > 500 {
		pageSize = defaultPageSize
	}

	// Quota and the processed set are shared across rules: list order is an
	// implicit priority order and a message actioned by an earlier rule is
	// never reconsidered by a later one.
	remaining := opts.ScanLimit
	unbounded := opts.ScanLimit <= 0
	processed := map[gmail.MessageID]struct{}{}
	buckets := map[string]*bucket{}

	for _, rule := range active {
		if !unbounded && remaining <= 0 {
			s.Log.Info("scan quota exhausted", "rule", rule.Name)
			break
		}
		scanned := s.applyRule(ctx, rule, opts, pageSize, remaining, unbounded, processed, buckets, &sum)
		sum.TotalScanned += scanned
		if !unbounded {
			remaining -= scanned
		}
	}
	sum.Matched = len(processed)

	s.execute(ctx, buckets, opts.DryRun, &sum)

	s.Log.Info("run complete",
		slog.Int("scanned", sum.TotalScanned),
		slog.Int("matched", sum.Matched),
		slog.Int("errors", len(sum.Errors)),
		slog.Bool("dry_run", opts.DryRun),
	)
	return sum, nil
}

// applyRule scans one rule's candidates and fills the shared aggregation
// state. It returns how many candidates it listed against the quota.
func (s *Service) applyRule(
	ctx context.Context,
	rule rules.Rule,
	opts Options,
	pageSize int,
	remaining int,
	unbounded bool,
	processed map[gmail.MessageID]struct{},
	buckets map[string]*bucket,
	sum *Summary,
) int {
	query := rules.CombineQueries(rules.TranslateQuery(rule), opts.Query)
	needsDetails := rules.NeedsFullDetails(rule)
	format := gmail.FormatMetadata
	if rules.NeedsBodyContent(rule) {
		format = gmail.FormatFull
	}
	s.Log.Debug("scanning rule",
		"rule", rule.Name, "query", query, "verify", needsDetails, "format", format)

	candidates, scanned := s.listCandidates(ctx, rule, query, pageSize, remaining, unbounded, sum)

	for _, id := range candidates {
		if _, done := processed[id]; done {
			continue
		}
		if needsDetails {
			if err := s.wait(ctx); err != nil {
				sum.Errors = append(sum.Errors, RunError{
					Stage: "get", RuleID: rule.ID, MessageID: string(id), Message: err.Error(),
				})
				return scanned
			}
			msg, err := s.Client.Get(ctx, id, format)
			if err != nil {
				sum.Errors = append(sum.Errors, RunError{
					Stage: "get", RuleID: rule.ID, MessageID: string(id), Message: err.Error(),
				})
				continue
			}
			rec := rules.RecordFromMessage(msg, s.labelName(ctx))
			if !rules.RuleMatches(rec, rule) {
				// The server query is a superset filter; a client-side miss
				// is expected, not an error.
				continue
			}
		}

		processed[id] = struct{}{}
		sum.RuleCounts[rule.ID]++
		for _, action := range rule.Actions {
			if err := action.Validate(); err != nil {
				s.Log.Warn("skipping invalid action", "rule", rule.Name, "action", action.Type, "error", err)
				continue
			}
			key := action.Key()
			b := buckets[key]
			if b == nil {
				b = &bucket{action: action}
				buckets[key] = b
			}
			b.ids = append(b.ids, id)
		}
	}
	return scanned
}

// listCandidates paginates message stubs for one rule, capped at the
// remaining global quota. Page fetch errors end the rule's scan early but
// keep whatever was already listed.
func (s *Service) listCandidates(
	ctx context.Context,
	rule rules.Rule,
	query string,
	pageSize int,
	remaining int,
	unbounded bool,
	sum *Summary,
) ([]gmail.MessageID, int) {
	var candidates []gmail.MessageID
	scanned := 0
	pageToken := ""
	for {
		size := pageSize
		if !unbounded {
			left := remaining - scanned
			if left <= 0 {
				break
			}
			if size > left {
				size = left
			}
		}
		if err := s.wait(ctx); err != nil {
			sum.Errors = append(sum.Errors, RunError{Stage: "list", RuleID: rule.ID, Message: err.Error()})
			break
		}
		page, err := s.Client.List(ctx, gmail.Query{Raw: query}, pageToken, size)
		if err != nil {
			sum.Errors = append(sum.Errors, RunError{Stage: "list", RuleID: rule.ID, Message: err.Error()})
			break
		}
		for _, stub := range page.Stubs {
			if !unbounded && scanned >= remaining {
				break
			}
			candidates = append(candidates, stub.ID)
			scanned++
		}
		if page.NextPageToken == "" || (!unbounded && scanned >= remaining) {
			break
		}
		pageToken = page.NextPageToken
	}
	return candidates, scanned
}

// execute converts buckets to counts: dry runs count the deduplicated ids,
// real runs dispatch the batch mutation first and count what was realized.
func (s *Service) execute(ctx context.Context, buckets map[string]*bucket, dryRun bool, sum *Summary) {
	keys := make([]string, 0, len(buckets))
	for key := range buckets {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		b := buckets[key]
		ids := dedupeSorted(b.ids)
		if dryRun {
			sum.Actions[key] = len(ids)
			continue
		}
		if err := s.wait(ctx); err != nil {
			sum.Errors = append(sum.Errors, RunError{Stage: "execute", Action: key, Message: err.Error()})
			sum.Actions[key] = 0
			continue
		}
		if err := s.dispatch(ctx, b.action, ids); err != nil {
			sum.Errors = append(sum.Errors, RunError{Stage: "execute", Action: key, Message: err.Error()})
			sum.Actions[key] = 0
			continue
		}
		sum.Actions[key] = len(ids)
	}
}

func (s *Service) dispatch(ctx context.Context, action rules.Action, ids []gmail.MessageID) error {
	switch action.Type {
	case rules.ActionTrash:
		return s.Client.BatchTrash(ctx, ids)
	case rules.ActionMarkRead:
		return s.Client.BatchMark(ctx, ids, true)
	case rules.ActionMarkUnread:
		return s.Client.BatchMark(ctx, ids, false)
	case rules.ActionAddLabel:
		return s.Client.BatchModifyLabels(ctx, ids, []string{action.LabelName}, nil)
	case rules.ActionRemoveLabel:
		return s.Client.BatchModifyLabels(ctx, ids, nil, []string{action.LabelName})
	default:
		return fmt.Errorf("unknown action type %q", action.Type)
	}
}

// labelName adapts the client's cached lookup into the resolver shape the
// record transform expects; misses fall back to the raw id.
func (s *Service) labelName(ctx context.Context) func(gmail.LabelID) string {
	return func(id gmail.LabelID) string {
		name, err := s.Client.LabelName(ctx, id)
		if err != nil {
			return ""
		}
		return name
	}
}

func (s *Service) wait(ctx context.Context) error {
	if s.Limiter == nil {
		return nil
	}
	if err := s.Limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}
	return nil
}

// selectRules keeps enabled rules, optionally restricted to ids/names in
// filter, preserving list order.
func selectRules(all []rules.Rule, filter []string) []rules.Rule {
	out := make([]rules.Rule, 0, len(all))
	for _, r := range all {
		if !r.Enabled {
			continue
		}
		if len(filter) > 0 && !matchesFilter(r, filter) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func matchesFilter(r rules.Rule, filter []string) bool {
	for _, f := range filter {
		if r.ID == f || strings.EqualFold(r.Name, f) {
			return true
		}
	}
	return false
}

func dedupeSorted(ids []gmail.MessageID) []gmail.MessageID {
	seen := make(map[gmail.MessageID]struct{}, len(ids))
	out := make([]gmail.MessageID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
