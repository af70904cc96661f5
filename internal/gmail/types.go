package gmail

// MessageID identifies a single Gmail message.
type MessageID string

// LabelID identifies a Gmail label (system labels use their name as the id).
type LabelID string

// Format selects how much of a message a Get call retrieves.
type Format string

const (
	// FormatMetadata fetches headers and label ids only.
	FormatMetadata Format = "metadata"
	// FormatFull fetches the complete payload including the body snippet.
	FormatFull Format = "full"
	// FormatRaw fetches the RFC 2822 source.
	FormatRaw Format = "raw"
)

// Stub is the id pair returned by a list call before any detail fetch.
type Stub struct {
	ID       MessageID
	ThreadID string
}

// ListPage is one page of list results.
type ListPage struct {
	Stubs         []Stub
	NextPageToken string
}

// Message is the detail shape the rule engine consumes: resolved headers,
// the snippet, and raw label ids awaiting name resolution.
type Message struct {
	ID       MessageID
	ThreadID string
	Snippet  string
	Headers  map[string]string // From, To, Subject, Date, etc.
	LabelIDs []LabelID
}

// Query is a Gmail search query string, already formed.
type Query struct {
	Raw string
}
