package runtime

import (
	"context"
	"log/slog"
	"os"

	"github.com/mbrt/gmailctl/cmd/gmailctl/localcred"
	gmailapi "google.golang.org/api/gmail/v1"

	gc "github.com/joshsymonds/mailtriage/internal/gmail"
)

// Scope selects the OAuth scope requested from the credential provider.
type Scope int

const (
	// ScopeReadonly suffices for dry runs and listing.
	ScopeReadonly Scope = iota
	// ScopeModify is required to trash, label, or mark messages.
	ScopeModify
)

// NewGmailClient authenticates via the gmailctl credential store in cfgDir
// and returns the adapted client.
func NewGmailClient(ctx context.Context, cfgDir string, scope Scope, logger *slog.Logger) (gc.Client, error) {
	var svc *gmailapi.Service
	var err error
	switch scope {
	case ScopeReadonly:
		svc, err = (localcred.Provider{}).ServiceWithScopes(ctx, cfgDir, gmailapi.GmailReadonlyScope)
	case ScopeModify:
		svc, err = (localcred.Provider{}).ServiceWithScopes(ctx, cfgDir, gmailapi.GmailModifyScope)
	default:
		panic("unknown scope")
	}
	if err != nil {
		return nil, err
	}
	return NewGoogleAPIClient(svc, logger), nil
}

// DefaultLogger returns the process-wide text logger used by the binaries.
func DefaultLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
}
