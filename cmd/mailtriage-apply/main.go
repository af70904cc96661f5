package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/joshsymonds/mailtriage/internal/apply"
	"github.com/joshsymonds/mailtriage/internal/rate"
	"github.com/joshsymonds/mailtriage/internal/rules"
	"github.com/joshsymonds/mailtriage/internal/runtime"
)

type applyConfig struct {
	cfgDir    string
	rulesFile string
	query     string
	ruleIDs   string
	scanLimit int
	pageSize  int
	rps       int
	dryRun    bool
	output    string
}

func main() {
	cfg := parseApplyFlags()
	if err := run(cfg); err != nil {
		runtime.DefaultLogger().Error("mailtriage-apply failed", "error", err)
		os.Exit(1)
	}
}

func parseApplyFlags() applyConfig {
	cfgDir := flag.String("config", os.ExpandEnv("$HOME/.gmailctl"), "gmailctl auth directory")
	rulesFile := flag.String("rules-file", os.ExpandEnv("$HOME/.mailtriage/rules.json"), "rule storage file")
	query := flag.String("query", "", "extra Gmail query ANDed with every rule")
	ruleIDs := flag.String("rules", "", "comma separated rule ids or names to apply (default all enabled)")
	scanLimit := flag.Int("scan-limit", 0, "max candidates scanned across all rules (0 = unbounded)")
	pageSize := flag.Int("page-size", 100, "Gmail list page size (<=500)")
	rps := flag.Int("rps", 4, "max requests per second")
	dryRun := flag.Bool("dry-run", false, "report planned actions; skip modifications")
	output := flag.String("output", "human", "output format: human or json")
	flag.Parse()

	return applyConfig{
		cfgDir:    *cfgDir,
		rulesFile: *rulesFile,
		query:     *query,
		ruleIDs:   *ruleIDs,
		scanLimit: *scanLimit,
		pageSize:  *pageSize,
		rps:       *rps,
		dryRun:    *dryRun,
		output:    *output,
	}
}

func run(cfg applyConfig) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.output != "human" && cfg.output != "json" {
		return fmt.Errorf("unknown output format %q", cfg.output)
	}

	logger := runtime.DefaultLogger()

	scope := runtime.ScopeModify
	if cfg.dryRun {
		scope = runtime.ScopeReadonly
	}
	client, err := runtime.NewGmailClient(ctx, cfg.cfgDir, scope, logger)
	if err != nil {
		return fmt.Errorf("create gmail client: %w", err)
	}

	var (
		limiter rate.Limiter
		bucket  *rate.TokenBucket
	)
	if cfg.rps > 0 {
		bucket = rate.NewTokenBucket(cfg.rps)
		limiter = bucket
		defer bucket.Stop()
	}

	store := rules.NewStore(cfg.rulesFile, logger)
	svc := apply.NewService(store, client, limiter, logger)

	sum, err := svc.Run(ctx, apply.Options{
		Query:     cfg.query,
		RuleIDs:   splitList(cfg.ruleIDs),
		ScanLimit: cfg.scanLimit,
		PageSize:  cfg.pageSize,
		DryRun:    cfg.dryRun,
	})
	if err != nil {
		return fmt.Errorf("apply rules: %w", err)
	}

	if cfg.output == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(sum)
	}
	printSummary(sum)
	return nil
}

func printSummary(sum apply.Summary) {
	mode := "applied"
	if sum.DryRun {
		mode = "planned (dry run)"
	}
	fmt.Printf("Scanned %d messages, %d matched at least one rule.\n", sum.TotalScanned, sum.Matched)
	if sum.Message != "" {
		fmt.Println(sum.Message)
	}
	if len(sum.Actions) > 0 {
		fmt.Printf("Actions %s:\n", mode)
		for _, key := range sortedKeys(sum.Actions) {
			fmt.Printf("  %s: %d\n", key, sum.Actions[key])
		}
	}
	if len(sum.RuleCounts) > 0 {
		fmt.Println("Matches per rule:")
		for _, id := range sortedKeys(sum.RuleCounts) {
			fmt.Printf("  %s: %d\n", id, sum.RuleCounts[id])
		}
	}
	for _, e := range sum.Errors {
		fmt.Printf("error [%s]: %s\n", e.Stage, e.Message)
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
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
