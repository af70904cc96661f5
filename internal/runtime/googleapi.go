// Package runtime adapts the Google API client to the narrow interface the
// rule engine consumes, and owns process-level wiring (auth, logging).
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/textproto"

	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/joshsymonds/mailtriage/internal/fault"
	gc "github.com/joshsymonds/mailtriage/internal/gmail"
)

// Gmail's batchModify/batchDelete accept at most 1000 ids per call.
const batchChunk = 1000

type googleClient struct {
	svc    *gmailapi.Service
	labels *labelCache
	log    *slog.Logger
}

// NewGoogleAPIClient wraps svc in the gc.Client interface. The label cache is
// scoped to the returned client.
func NewGoogleAPIClient(svc *gmailapi.Service, logger *slog.Logger) gc.Client {
	if logger == nil {
		logger = DefaultLogger()
	}
	g := &googleClient{svc: svc, log: logger}
	g.labels = newLabelCache(g.fetchLabels)
	return g
}

func (g *googleClient) List(ctx context.Context, q gc.Query, pageToken string, pageSize int) (gc.ListPage, error) {
	if g.svc == nil {
		return gc.ListPage{}, fault.New(fault.KindParameter, "gmail service not available")
	}
	call := g.svc.Users.Messages.List("me").MaxResults(int64(pageSize))
	if q.Raw != "" {
		call = call.Q(q.Raw)
	}
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}
	res, err := call.Context(ctx).Do()
	if err != nil {
		return gc.ListPage{}, fault.Wrap(fault.KindAPI, "list messages", err)
	}
	page := gc.ListPage{NextPageToken: res.NextPageToken}
	for _, m := range res.Messages {
		page.Stubs = append(page.Stubs, gc.Stub{ID: gc.MessageID(m.Id), ThreadID: m.ThreadId})
	}
	return page, nil
}

func (g *googleClient) Get(ctx context.Context, id gc.MessageID, format gc.Format) (gc.Message, error) {
	if g.svc == nil {
		return gc.Message{}, fault.New(fault.KindParameter, "gmail service not available")
	}
	if id == "" {
		return gc.Message{}, fault.New(fault.KindParameter, "message id must not be empty")
	}
	switch format {
	case gc.FormatMetadata, gc.FormatFull, gc.FormatRaw:
	default:
		g.log.Warn("invalid message format, using metadata", "format", format)
		format = gc.FormatMetadata
	}
	msg, err := g.svc.Users.Messages.Get("me", string(id)).Format(string(format)).Context(ctx).Do()
	if err != nil {
		return gc.Message{}, fault.Wrap(fault.KindAPI, fmt.Sprintf("get message %s", id), err)
	}
	out := gc.Message{
		ID:       gc.MessageID(msg.Id),
		ThreadID: msg.ThreadId,
		Snippet:  msg.Snippet,
		Headers:  map[string]string{},
	}
	if msg.Payload != nil {
		// Senders control header casing; canonicalize so lookups by
		// "From"/"Subject" always hit.
		for _, h := range msg.Payload.Headers {
			out.Headers[textproto.CanonicalMIMEHeaderKey(h.Name)] = h.Value
		}
	}
	for _, lid := range msg.LabelIds {
		out.LabelIDs = append(out.LabelIDs, gc.LabelID(lid))
	}
	return out, nil
}

func (g *googleClient) LabelID(ctx context.Context, nameOrID string) (gc.LabelID, error) {
	if g.svc == nil {
		return "", fault.New(fault.KindParameter, "gmail service not available")
	}
	if nameOrID == "" {
		return "", fault.New(fault.KindParameter, "label name or id must not be empty")
	}
	id, ok, err := g.labels.id(ctx, nameOrID)
	if err != nil {
		return "", fault.Wrap(fault.KindAPI, "resolve label id", err)
	}
	if !ok {
		return "", fault.Newf(fault.KindNotFound, "label %q not found", nameOrID)
	}
	return id, nil
}

func (g *googleClient) LabelName(ctx context.Context, id gc.LabelID) (string, error) {
	if g.svc == nil {
		return "", fault.New(fault.KindParameter, "gmail service not available")
	}
	name, ok, err := g.labels.name(ctx, id)
	if err != nil {
		return "", fault.Wrap(fault.KindAPI, "resolve label name", err)
	}
	if !ok {
		return "", fault.Newf(fault.KindNotFound, "label id %q not found", id)
	}
	return name, nil
}

// BatchTrash moves messages to Trash by label surgery: add TRASH, drop INBOX
// and UNREAD.
func (g *googleClient) BatchTrash(ctx context.Context, ids []gc.MessageID) error {
	return g.BatchModifyLabels(ctx, ids, []string{"TRASH"}, []string{"INBOX", "UNREAD"})
}

// BatchMark flips the UNREAD system label.
func (g *googleClient) BatchMark(ctx context.Context, ids []gc.MessageID, read bool) error {
	if read {
		return g.BatchModifyLabels(ctx, ids, nil, []string{"UNREAD"})
	}
	return g.BatchModifyLabels(ctx, ids, []string{"UNREAD"}, nil)
}

func (g *googleClient) BatchModifyLabels(ctx context.Context, ids []gc.MessageID, addNames, removeNames []string) error {
	if g.svc == nil {
		return fault.New(fault.KindParameter, "gmail service not available")
	}
	if len(ids) == 0 {
		return nil
	}

	addIDs, err := g.resolveNames(ctx, addNames, "add")
	if err != nil {
		return err
	}
	removeIDs, err := g.resolveNames(ctx, removeNames, "remove")
	if err != nil {
		return err
	}
	if len(addIDs) == 0 && len(removeIDs) == 0 {
		g.log.Info("no resolvable label changes, skipping batch modify")
		return nil
	}

	for start := 0; start < len(ids); start += batchChunk {
		end := min(start+batchChunk, len(ids))
		req := &gmailapi.BatchModifyMessagesRequest{
			Ids:            toStrings(ids[start:end]),
			AddLabelIds:    addIDs,
			RemoveLabelIds: removeIDs,
		}
		if err := g.svc.Users.Messages.BatchModify("me", req).Context(ctx).Do(); err != nil {
			return fault.Wrap(fault.KindAPI, fmt.Sprintf("batch modify %d messages", end-start), err)
		}
	}
	return nil
}

func (g *googleClient) BatchDelete(ctx context.Context, ids []gc.MessageID) error {
	if g.svc == nil {
		return fault.New(fault.KindParameter, "gmail service not available")
	}
	if len(ids) == 0 {
		return nil
	}
	for start := 0; start < len(ids); start += batchChunk {
		end := min(start+batchChunk, len(ids))
		req := &gmailapi.BatchDeleteMessagesRequest{Ids: toStrings(ids[start:end])}
		g.log.Warn("permanently deleting messages", "count", end-start)
		if err := g.svc.Users.Messages.BatchDelete("me", req).Context(ctx).Do(); err != nil {
			return fault.Wrap(fault.KindAPI, fmt.Sprintf("batch delete %d messages", end-start), err)
		}
	}
	return nil
}

// resolveNames maps label names to ids, skipping unresolvable names with a
// warning rather than failing the whole batch.
func (g *googleClient) resolveNames(ctx context.Context, names []string, op string) ([]string, error) {
	if len(names) == 0 {
		return nil, nil
	}
	out := make([]string, 0, len(names))
	for _, name := range names {
		id, ok, err := g.labels.id(ctx, name)
		if err != nil {
			return nil, fault.Wrap(fault.KindAPI, "resolve label id", err)
		}
		if !ok {
			g.log.Warn("label not found, skipping", "label", name, "op", op)
			continue
		}
		out = append(out, string(id))
	}
	return out, nil
}

func (g *googleClient) fetchLabels(ctx context.Context) (map[string]gc.LabelID, map[gc.LabelID]string, error) {
	lr, err := g.svc.Users.Labels.List("me").Context(ctx).Do()
	if err != nil {
		return nil, nil, fmt.Errorf("list labels: %w", err)
	}
	byName := make(map[string]gc.LabelID, len(lr.Labels))
	byID := make(map[gc.LabelID]string, len(lr.Labels))
	for _, l := range lr.Labels {
		byName[l.Name] = gc.LabelID(l.Id)
		byID[gc.LabelID(l.Id)] = l.Name
	}
	return byName, byID, nil
}

func toStrings(ids []gc.MessageID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
