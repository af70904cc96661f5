package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joshsymonds/mailtriage/internal/rules"
	"github.com/joshsymonds/mailtriage/internal/runtime"
)

type rulesConfig struct {
	rulesFile string
	list      bool
	add       string
	del       string
	output    string
}

func main() {
	cfg := parseRulesFlags()
	if err := run(cfg); err != nil {
		runtime.DefaultLogger().Error("mailtriage-rules failed", "error", err)
		os.Exit(1)
	}
}

func parseRulesFlags() rulesConfig {
	rulesFile := flag.String("rules-file", os.ExpandEnv("$HOME/.mailtriage/rules.json"), "rule storage file")
	list := flag.Bool("list", false, "list stored rules")
	add := flag.String("add", "", "add a rule: inline JSON, or a path to a JSON file")
	del := flag.String("delete", "", "delete a rule by id or name")
	output := flag.String("output", "human", "output format: human or json")
	flag.Parse()

	return rulesConfig{
		rulesFile: *rulesFile,
		list:      *list,
		add:       *add,
		del:       *del,
		output:    *output,
	}
}

func run(cfg rulesConfig) error {
	if cfg.output != "human" && cfg.output != "json" {
		return fmt.Errorf("unknown output format %q", cfg.output)
	}
	modes := 0
	if cfg.list {
		modes++
	}
	if cfg.add != "" {
		modes++
	}
	if cfg.del != "" {
		modes++
	}
	if modes != 1 {
		return fmt.Errorf("exactly one of -list, -add, or -delete is required")
	}

	store := rules.NewStore(cfg.rulesFile, runtime.DefaultLogger())

	switch {
	case cfg.list:
		return listRules(store, cfg.output)
	case cfg.add != "":
		return addRule(store, cfg.add, cfg.output)
	default:
		return deleteRule(store, cfg.del)
	}
}

func listRules(store *rules.Store, output string) error {
	all, err := store.Load()
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}
	if output == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(all)
	}
	if len(all) == 0 {
		fmt.Println("No rules stored.")
		return nil
	}
	for _, r := range all {
		state := "enabled"
		if !r.Enabled {
			state = "disabled"
		}
		fmt.Printf("%s  %s (%s)\n", r.ID, r.Name, state)
		if r.Description != "" {
			fmt.Printf("    %s\n", r.Description)
		}
		for _, c := range r.Conditions {
			fmt.Printf("    if %s %s %q\n", c.Field, c.Operator, c.Value)
		}
		if len(r.Conditions) > 1 {
			fmt.Printf("    joined with %s\n", r.Conjunction)
		}
		for _, a := range r.Actions {
			fmt.Printf("    then %s\n", a.Key())
		}
	}
	return nil
}

// addRule accepts either inline JSON or a path to a JSON file; anything that
// does not look like a JSON object is treated as a path.
func addRule(store *rules.Store, spec, output string) error {
	raw := []byte(spec)
	if !strings.HasPrefix(strings.TrimSpace(spec), "{") {
		data, err := os.ReadFile(spec)
		if err != nil {
			return fmt.Errorf("read rule file: %w", err)
		}
		raw = data
	}
	var r rules.Rule
	if err := json.Unmarshal(raw, &r); err != nil {
		return fmt.Errorf("parse rule JSON: %w", err)
	}
	added, err := store.Add(r)
	if err != nil {
		return fmt.Errorf("add rule: %w", err)
	}
	if output == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(added)
	}
	fmt.Printf("Added rule %q with id %s.\n", added.Name, added.ID)
	return nil
}

func deleteRule(store *rules.Store, idOrName string) error {
	if err := store.Delete(idOrName); err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	fmt.Printf("Deleted rule %s.\n", idOrName)
	return nil
}
