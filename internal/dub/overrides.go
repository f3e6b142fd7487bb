package dub

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"dubtrack/internal/logging"
)

// Override statuses.
const (
	OverrideDubbed = "DUBBED"
	OverrideNone   = "NONE"
)

// Override pins an entity to a manually curated dub status.
type Override struct {
	ExternalIDs []int64  `json:"external_ids"`
	MalIDs      []int64  `json:"mal_ids"`
	Status      string   `json:"status"`
	Platforms   []string `json:"platforms"`
	Note        string   `json:"note"`
}

// Overrides loads user-authored dub overrides from a JSON file, reloading
// when the file's mtime changes.
type Overrides struct {
	path    string
	logger  *slog.Logger
	mu      sync.RWMutex
	loaded  time.Time
	entries []Override
}

// NewOverrides constructs an override store backed by the provided JSON
// file. An empty path yields a nil store, which never matches.
func NewOverrides(path string, logger *slog.Logger) *Overrides {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Overrides{path: trimmed, logger: logging.WithComponent(logger, "overrides")}
}

// Lookup returns an override matching the external or secondary id.
func (o *Overrides) Lookup(externalID, malID int64) (Override, bool, error) {
	if o == nil || strings.TrimSpace(o.path) == "" {
		return Override{}, false, nil
	}
	if err := o.ensureLoaded(); err != nil {
		return Override{}, false, err
	}

	o.mu.RLock()
	defer o.mu.RUnlock()
	for _, entry := range o.entries {
		if entry.matches(externalID, malID) {
			return entry, true, nil
		}
	}
	return Override{}, false, nil
}

func (o *Overrides) ensureLoaded() error {
	o.mu.RLock()
	path := o.path
	o.mu.RUnlock()

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	o.mu.RLock()
	alreadyLoaded := !o.loaded.IsZero() && o.loaded.Equal(info.ModTime())
	o.mu.RUnlock()
	if alreadyLoaded {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}

	entries, err := parseOverrides(data)
	if err != nil {
		return err
	}

	o.mu.Lock()
	o.entries = entries
	o.loaded = info.ModTime()
	o.mu.Unlock()
	o.logger.Info("loaded dub overrides",
		logging.String("path", path),
		logging.Int("count", len(entries)))
	return nil
}

func parseOverrides(data []byte) ([]Override, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, nil
	}
	var entries []Override
	// Accept either an array or an object with an overrides field.
	if strings.HasPrefix(trimmed, "{") {
		var wrapper struct {
			Overrides []Override `json:"overrides"`
		}
		if err := json.Unmarshal(data, &wrapper); err != nil {
			return nil, err
		}
		entries = wrapper.Overrides
	} else {
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, err
		}
	}
	normalized := make([]Override, 0, len(entries))
	for _, entry := range entries {
		entry.normalize()
		normalized = append(normalized, entry)
	}
	return normalized, nil
}

func (o *Override) matches(externalID, malID int64) bool {
	for _, id := range o.ExternalIDs {
		if id != 0 && id == externalID {
			return true
		}
	}
	if malID == 0 {
		return false
	}
	for _, id := range o.MalIDs {
		if id != 0 && id == malID {
			return true
		}
	}
	return false
}

func (o *Override) normalize() {
	o.Status = strings.ToUpper(strings.TrimSpace(o.Status))
	if o.Status == "" {
		o.Status = OverrideDubbed
	}
	o.Note = strings.TrimSpace(o.Note)
}
