package rules

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joshsymonds/mailtriage/internal/fault"
)

// Store persists the rule collection as a single JSON array. Every mutation
// reads the whole file, changes it in memory, and rewrites it atomically.
type Store struct {
	Path string
	Log  *slog.Logger
}

// NewStore returns a store over path with a sane default logger.
func NewStore(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Store{Path: path, Log: logger}
}

// Load reads all rules. A missing file yields an empty slice; unparseable
// JSON yields a storage fault; individual invalid entries are skipped with
// a warning.
func (s *Store) Load() ([]Rule, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			s.Log.Debug("rules file absent, starting empty", "path", s.Path)
			return []Rule{}, nil
		}
		return nil, fault.Wrap(fault.KindStorage, fmt.Sprintf("read rules file %s", s.Path), err)
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fault.Wrap(fault.KindStorage, fmt.Sprintf("decode rules file %s", s.Path), err)
	}

	valid := make([]Rule, 0, len(raw))
	skipped := 0
	for i, entry := range raw {
		var r Rule
		if err := json.Unmarshal(entry, &r); err != nil {
			skipped++
			s.Log.Warn("skipping malformed rule entry", "index", i, "error", err)
			continue
		}
		if err := r.Validate(); err != nil {
			skipped++
			s.Log.Warn("skipping invalid rule entry", "index", i, "name", r.Name, "error", err)
			continue
		}
		valid = append(valid, r)
	}
	if skipped > 0 {
		s.Log.Warn("loaded rules with skips", "valid", len(valid), "skipped", skipped)
	}
	return valid, nil
}

// Save rewrites the whole collection, creating parent directories as needed.
// The write goes to a temp file in the same directory followed by a rename
// so a crash cannot leave a half-written rules file.
func (s *Store) Save(all []Rule) error {
	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fault.Wrap(fault.KindStorage, fmt.Sprintf("create rules dir %s", dir), err)
	}

	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fault.Wrap(fault.KindStorage, "encode rules", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(dir, filepath.Base(s.Path)+".tmp-*")
	if err != nil {
		return fault.Wrap(fault.KindStorage, "create temp rules file", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fault.Wrap(fault.KindStorage, "write temp rules file", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fault.Wrap(fault.KindStorage, "close temp rules file", err)
	}
	if err := os.Rename(tmpName, s.Path); err != nil {
		_ = os.Remove(tmpName)
		return fault.Wrap(fault.KindStorage, fmt.Sprintf("replace rules file %s", s.Path), err)
	}
	s.Log.Info("saved rules", "count", len(all), "path", s.Path)
	return nil
}

// Add validates and appends a rule, rejecting case-insensitive name
// duplicates, and returns the stored rule with defaults filled in.
func (s *Store) Add(r Rule) (Rule, error) {
	r = New(r)
	if err := r.Validate(); err != nil {
		return Rule{}, err
	}
	all, err := s.Load()
	if err != nil {
		return Rule{}, err
	}
	for _, existing := range all {
		if strings.EqualFold(existing.Name, r.Name) {
			return Rule{}, fault.Newf(fault.KindParameter,
				"a rule named %q already exists (id %s)", existing.Name, existing.ID)
		}
	}
	all = append(all, r)
	if err := s.Save(all); err != nil {
		return Rule{}, err
	}
	s.Log.Info("added rule", "name", r.Name, "id", r.ID)
	return r, nil
}

// Delete removes the rule matching idOrName by exact id or case-insensitive
// name. A miss is a not-found fault.
func (s *Store) Delete(idOrName string) error {
	if strings.TrimSpace(idOrName) == "" {
		return fault.New(fault.KindParameter, "rule id or name must be provided")
	}
	all, err := s.Load()
	if err != nil {
		return err
	}
	for i, r := range all {
		if r.ID == idOrName || strings.EqualFold(r.Name, idOrName) {
			all = append(all[:i], all[i+1:]...)
			if err := s.Save(all); err != nil {
				return err
			}
			s.Log.Info("deleted rule", "name", r.Name, "id", r.ID)
			return nil
		}
	}
	return fault.Newf(fault.KindNotFound, "rule %q not found", idOrName)
}
