package runtime

import (
	"context"
	"strings"

	gc "github.com/joshsymonds/mailtriage/internal/gmail"
)

// systemLabels are identity-mapped: their name is their id, so they never
// need a remote lookup.
var systemLabels = map[string]struct{}{
	"INBOX":               {},
	"SPAM":                {},
	"TRASH":               {},
	"UNREAD":              {},
	"IMPORTANT":           {},
	"STARRED":             {},
	"SENT":                {},
	"DRAFT":               {},
	"CATEGORY_PERSONAL":   {},
	"CATEGORY_SOCIAL":     {},
	"CATEGORY_PROMOTIONS": {},
	"CATEGORY_UPDATES":    {},
	"CATEGORY_FORUMS":     {},
}

// labelCache maps label names to ids and back for one client session. It is
// owned by the client rather than shared module state, and execution is
// single-threaded, so no locking is needed.
type labelCache struct {
	fetch  func(ctx context.Context) (map[string]gc.LabelID, map[gc.LabelID]string, error)
	byName map[string]gc.LabelID // keyed by lowercased name
	byID   map[gc.LabelID]string
}

func newLabelCache(fetch func(ctx context.Context) (map[string]gc.LabelID, map[gc.LabelID]string, error)) *labelCache {
	return &labelCache{fetch: fetch}
}

// invalidate drops the cached mappings; the next lookup refetches.
func (c *labelCache) invalidate() {
	c.byName = nil
	c.byID = nil
}

func (c *labelCache) populate(ctx context.Context) error {
	byName, byID, err := c.fetch(ctx)
	if err != nil {
		return err
	}
	c.byName = make(map[string]gc.LabelID, len(byName))
	for name, id := range byName {
		c.byName[strings.ToLower(name)] = id
	}
	c.byID = byID
	return nil
}

// id resolves a label name or id. Ids already present in the mailbox pass
// through; unknown names force one cache refresh before giving up.
func (c *labelCache) id(ctx context.Context, nameOrID string) (gc.LabelID, bool, error) {
	if _, ok := systemLabels[strings.ToUpper(nameOrID)]; ok {
		return gc.LabelID(strings.ToUpper(nameOrID)), true, nil
	}
	if c.byName == nil {
		if err := c.populate(ctx); err != nil {
			return "", false, err
		}
	}
	if id, ok := c.lookup(nameOrID); ok {
		return id, true, nil
	}
	// Stale cache is the common miss cause (label created since populate).
	if err := c.populate(ctx); err != nil {
		return "", false, err
	}
	if id, ok := c.lookup(nameOrID); ok {
		return id, true, nil
	}
	return "", false, nil
}

func (c *labelCache) lookup(nameOrID string) (gc.LabelID, bool) {
	if _, ok := c.byID[gc.LabelID(nameOrID)]; ok {
		return gc.LabelID(nameOrID), true
	}
	id, ok := c.byName[strings.ToLower(nameOrID)]
	return id, ok
}

// name resolves a label id to its display name. System ids resolve to
// themselves; unknown ids force one cache refresh before giving up, same as
// id lookups.
func (c *labelCache) name(ctx context.Context, id gc.LabelID) (string, bool, error) {
	if _, ok := systemLabels[string(id)]; ok {
		return string(id), true, nil
	}
	if c.byID == nil {
		if err := c.populate(ctx); err != nil {
			return "", false, err
		}
	}
	if name, ok := c.byID[id]; ok {
		return name, true, nil
	}
	if err := c.populate(ctx); err != nil {
		return "", false, err
	}
	name, ok := c.byID[id]
	return name, ok, nil
}
