// Package gmail declares the narrow Gmail surface mailtriage consumes.
package gmail

import "context"

// Client is the mailbox surface required by the rule applier and the batch
// email commands. Batch mutations treat empty id slices as successful no-ops.
type Client interface {
	List(ctx context.Context, q Query, pageToken string, pageSize int) (ListPage, error)
	Get(ctx context.Context, id MessageID, format Format) (Message, error)

	// LabelID resolves a label name or id to its id; LabelName is the
	// reverse lookup. Both are cached by the implementation.
	LabelID(ctx context.Context, nameOrID string) (LabelID, error)
	LabelName(ctx context.Context, id LabelID) (string, error)

	BatchTrash(ctx context.Context, ids []MessageID) error
	BatchMark(ctx context.Context, ids []MessageID, read bool) error
	BatchModifyLabels(ctx context.Context, ids []MessageID, addNames, removeNames []string) error
	BatchDelete(ctx context.Context, ids []MessageID) error
}
