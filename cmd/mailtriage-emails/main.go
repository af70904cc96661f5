package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/joshsymonds/mailtriage/internal/gmail"
	"github.com/joshsymonds/mailtriage/internal/rate"
	"github.com/joshsymonds/mailtriage/internal/runtime"
)

type emailsConfig struct {
	cfgDir       string
	ids          string
	list         bool
	get          string
	query        string
	pageToken    string
	maxResults   int
	format       string
	trash        bool
	del          bool
	mark         string
	addLabels    string
	removeLabels string
	rps          int
	dryRun       bool
	yes          bool
	output       string
}

func main() {
	cfg := parseEmailsFlags()
	if err := run(cfg); err != nil {
		runtime.DefaultLogger().Error("mailtriage-emails failed", "error", err)
		os.Exit(1)
	}
}

func parseEmailsFlags() emailsConfig {
	cfgDir := flag.String("config", os.ExpandEnv("$HOME/.gmailctl"), "gmailctl auth directory")
	ids := flag.String("ids", "", "comma separated message ids to operate on")
	list := flag.Bool("list", false, "list message stubs matching -query")
	get := flag.String("get", "", "fetch one message by id")
	query := flag.String("query", "", "Gmail search query for -list")
	pageToken := flag.String("page-token", "", "continue a previous -list from this token")
	maxResults := flag.Int("max", 20, "page size for -list (<=500)")
	format := flag.String("format", "metadata", "fetch format for -get: metadata, full, or raw")
	trash := flag.Bool("trash", false, "move messages to trash")
	del := flag.Bool("delete", false, "permanently delete messages (irreversible)")
	mark := flag.String("mark", "", "mark messages: read or unread")
	addLabels := flag.String("add-labels", "", "comma separated label names to add")
	removeLabels := flag.String("remove-labels", "", "comma separated label names to remove")
	rps := flag.Int("rps", 4, "max requests per second")
	dryRun := flag.Bool("dry-run", false, "log only; skip modifications")
	yes := flag.Bool("yes", false, "skip the confirmation prompt for permanent deletion")
	output := flag.String("output", "human", "output format: human or json")
	flag.Parse()

	return emailsConfig{
		cfgDir:       *cfgDir,
		ids:          *ids,
		list:         *list,
		get:          *get,
		query:        *query,
		pageToken:    *pageToken,
		maxResults:   *maxResults,
		format:       *format,
		trash:        *trash,
		del:          *del,
		mark:         *mark,
		addLabels:    *addLabels,
		removeLabels: *removeLabels,
		rps:          *rps,
		dryRun:       *dryRun,
		yes:          *yes,
		output:       *output,
	}
}

func run(cfg emailsConfig) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.output != "human" && cfg.output != "json" {
		return fmt.Errorf("unknown output format %q", cfg.output)
	}
	mode, err := selectMode(cfg)
	if err != nil {
		return err
	}

	logger := runtime.DefaultLogger()

	if mode == modeList || mode == modeGet {
		client, err := runtime.NewGmailClient(ctx, cfg.cfgDir, runtime.ScopeReadonly, logger)
		if err != nil {
			return fmt.Errorf("create gmail client: %w", err)
		}
		if mode == modeList {
			return listMessages(ctx, client, cfg)
		}
		return getMessage(ctx, client, cfg)
	}

	ids := toMessageIDs(splitList(cfg.ids))
	if len(ids) == 0 {
		return fmt.Errorf("at least one message id is required via -ids")
	}
	op, err := selectOperation(cfg)
	if err != nil {
		return err
	}

	if cfg.dryRun {
		fmt.Printf("Dry run: would %s %d message(s).\n", op.describe, len(ids))
		return nil
	}
	if cfg.del && !cfg.yes {
		if !confirmDeletion(len(ids)) {
			return fmt.Errorf("deletion aborted")
		}
	}

	client, err := runtime.NewGmailClient(ctx, cfg.cfgDir, runtime.ScopeModify, logger)
	if err != nil {
		return fmt.Errorf("create gmail client: %w", err)
	}

	var (
		limiter rate.Limiter = rate.Unlimited{}
		bucket  *rate.TokenBucket
	)
	if cfg.rps > 0 {
		bucket = rate.NewTokenBucket(cfg.rps)
		limiter = bucket
		defer bucket.Stop()
	}

	if err := limiter.Wait(ctx); err != nil {
		return err
	}
	if err := op.exec(ctx, client, ids); err != nil {
		return fmt.Errorf("%s: %w", op.describe, err)
	}
	fmt.Printf("Done: %s %d message(s).\n", op.describe, len(ids))
	return nil
}

type mode int

const (
	modeList mode = iota
	modeGet
	modeMutate
)

// selectMode enforces that exactly one command was requested: a read
// (-list / -get) or one mutation group.
func selectMode(cfg emailsConfig) (mode, error) {
	modes := 0
	if cfg.list {
		modes++
	}
	if cfg.get != "" {
		modes++
	}
	if cfg.trash {
		modes++
	}
	if cfg.del {
		modes++
	}
	if cfg.mark != "" {
		modes++
	}
	if cfg.addLabels != "" || cfg.removeLabels != "" {
		modes++
	}
	if modes != 1 {
		return 0, fmt.Errorf("exactly one of -list, -get, -trash, -delete, -mark, or label flags is required")
	}
	switch {
	case cfg.list:
		return modeList, nil
	case cfg.get != "":
		return modeGet, nil
	default:
		return modeMutate, nil
	}
}

// listEnvelope is the JSON shape for -list output.
type listEnvelope struct {
	Messages []stubView `json:"messages"`
	NextPage string     `json:"next_page_token,omitempty"`
}

type stubView struct {
	ID       string `json:"id"`
	ThreadID string `json:"thread_id,omitempty"`
}

func listMessages(ctx context.Context, client gmail.Client, cfg emailsConfig) error {
	size := cfg.maxResults
	if size <= 0 || size > 500 {
		size = 20
	}
	page, err := client.List(ctx, gmail.Query{Raw: cfg.query}, cfg.pageToken, size)
	if err != nil {
		return fmt.Errorf("list messages: %w", err)
	}

	if cfg.output == "json" {
		env := listEnvelope{Messages: make([]stubView, 0, len(page.Stubs)), NextPage: page.NextPageToken}
		for _, s := range page.Stubs {
			env.Messages = append(env.Messages, stubView{ID: string(s.ID), ThreadID: s.ThreadID})
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(env)
	}

	if len(page.Stubs) == 0 {
		fmt.Println("No messages matched.")
		return nil
	}
	for _, s := range page.Stubs {
		fmt.Printf("%s  thread %s\n", s.ID, s.ThreadID)
	}
	if page.NextPageToken != "" {
		fmt.Printf("More available: rerun with -page-token %s\n", page.NextPageToken)
	}
	return nil
}

// messageEnvelope is the JSON shape for -get output.
type messageEnvelope struct {
	ID       string            `json:"id"`
	ThreadID string            `json:"thread_id,omitempty"`
	Headers  map[string]string `json:"headers"`
	Snippet  string            `json:"snippet,omitempty"`
	LabelIDs []string          `json:"label_ids,omitempty"`
}

func getMessage(ctx context.Context, client gmail.Client, cfg emailsConfig) error {
	format, err := parseFormat(cfg.format)
	if err != nil {
		return err
	}
	msg, err := client.Get(ctx, gmail.MessageID(cfg.get), format)
	if err != nil {
		return fmt.Errorf("get message: %w", err)
	}

	if cfg.output == "json" {
		env := messageEnvelope{
			ID:       string(msg.ID),
			ThreadID: msg.ThreadID,
			Headers:  msg.Headers,
			Snippet:  msg.Snippet,
		}
		for _, id := range msg.LabelIDs {
			env.LabelIDs = append(env.LabelIDs, string(id))
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(env)
	}

	fmt.Printf("Message %s (thread %s)\n", msg.ID, msg.ThreadID)
	for _, name := range []string{"From", "To", "Subject", "Date"} {
		if v, ok := msg.Headers[name]; ok {
			fmt.Printf("%s: %s\n", name, v)
		}
	}
	if len(msg.LabelIDs) > 0 {
		labels := make([]string, 0, len(msg.LabelIDs))
		for _, id := range msg.LabelIDs {
			labels = append(labels, string(id))
		}
		sort.Strings(labels)
		fmt.Printf("Labels: %s\n", strings.Join(labels, ", "))
	}
	if msg.Snippet != "" {
		fmt.Printf("\n%s\n", msg.Snippet)
	}
	return nil
}

func parseFormat(s string) (gmail.Format, error) {
	switch gmail.Format(s) {
	case gmail.FormatMetadata, gmail.FormatFull, gmail.FormatRaw:
		return gmail.Format(s), nil
	default:
		return "", fmt.Errorf("-format must be metadata, full, or raw, got %q", s)
	}
}

type operation struct {
	describe string
	exec     func(ctx context.Context, c gmail.Client, ids []gmail.MessageID) error
}

// selectOperation maps the mutation flags to one batch call. Label add and
// remove may be combined; everything else is exclusive (enforced upstream by
// selectMode).
func selectOperation(cfg emailsConfig) (operation, error) {
	add := splitList(cfg.addLabels)
	remove := splitList(cfg.removeLabels)

	switch {
	case cfg.trash:
		return operation{
			describe: "trash",
			exec: func(ctx context.Context, c gmail.Client, ids []gmail.MessageID) error {
				return c.BatchTrash(ctx, ids)
			},
		}, nil
	case cfg.del:
		return operation{
			describe: "permanently delete",
			exec: func(ctx context.Context, c gmail.Client, ids []gmail.MessageID) error {
				return c.BatchDelete(ctx, ids)
			},
		}, nil
	case cfg.mark != "":
		if cfg.mark != "read" && cfg.mark != "unread" {
			return operation{}, fmt.Errorf("-mark must be read or unread, got %q", cfg.mark)
		}
		read := cfg.mark == "read"
		return operation{
			describe: "mark " + cfg.mark,
			exec: func(ctx context.Context, c gmail.Client, ids []gmail.MessageID) error {
				return c.BatchMark(ctx, ids, read)
			},
		}, nil
	case len(add) > 0 || len(remove) > 0:
		return operation{
			describe: "relabel",
			exec: func(ctx context.Context, c gmail.Client, ids []gmail.MessageID) error {
				return c.BatchModifyLabels(ctx, ids, add, remove)
			},
		}, nil
	default:
		return operation{}, fmt.Errorf("no operation selected")
	}
}

// confirmDeletion requires the user to type the exact phrase before a
// permanent deletion proceeds.
func confirmDeletion(count int) bool {
	fmt.Printf("Permanently delete %d message(s)? This cannot be undone.\n", count)
	fmt.Print(`Type "delete" to confirm: `)
	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		return false
	}
	return strings.TrimSpace(scanner.Text()) == "delete"
}

func toMessageIDs(raw []string) []gmail.MessageID {
	out := make([]gmail.MessageID, 0, len(raw))
	for _, r := range raw {
		out = append(out, gmail.MessageID(r))
	}
	return out
}

func splitList(input string) []string {
	if strings.TrimSpace(input) == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
