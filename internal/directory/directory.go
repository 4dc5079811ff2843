package directory

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"warden/internal/logging"
	"warden/internal/services"
)

// ErrEmpty reports a source file that parsed to zero usable entries.
var ErrEmpty = errors.New("directory has no usable entries")

// Entry is one resolved identity.
type Entry struct {
	ExternalID    string `json:"external_id"`
	CanonicalName string `json:"canonical_name"`
}

// Directory resolves external identifiers. Lookup fails closed: an unknown
// id yields services.ErrNotFound, never a guess.
type Directory interface {
	Lookup(ctx context.Context, id string) (Entry, error)
}

// Stats summarizes the last load of the source file.
type Stats struct {
	Path              string    `json:"path"`
	Rows              int       `json:"rows"`
	Entries           int       `json:"entries"`
	SkippedNonNumeric int       `json:"skipped_non_numeric"`
	Duplicates        int       `json:"duplicates"`
	LoadedAt          time.Time `json:"loaded_at"`
	ModTime           time.Time `json:"mod_time"`
}

// CSVDirectory serves lookups from a CSV file and reloads it whenever its
// modification time changes.
type CSVDirectory struct {
	path   string
	logger *slog.Logger

	mu      sync.RWMutex
	modTime time.Time
	size    int64
	entries map[string]string
	stats   Stats
}

// NewCSV constructs a directory backed by path. The file is read lazily.
func NewCSV(path string, logger *slog.Logger) *CSVDirectory {
	return &CSVDirectory{
		path:   strings.TrimSpace(path),
		logger: logging.NewComponentLogger(logger, "directory"),
	}
}

// Lookup returns the canonical entry for id.
func (d *CSVDirectory) Lookup(ctx context.Context, id string) (Entry, error) {
	if err := d.ensureLoaded(); err != nil {
		return Entry{}, err
	}
	id = strings.TrimSpace(id)

	d.mu.RLock()
	raw, ok := d.entries[id]
	d.mu.RUnlock()
	if !ok {
		return Entry{}, services.Wrap(services.ErrNotFound, "directory", "lookup", "id "+id, nil)
	}
	name, err := SanitizeName(raw)
	if err != nil {
		logging.ErrorWithContext(logging.WithContext(ctx, d.logger), "directory row has an unusable name", "directory_invalid_name",
			logging.String("external_id", id),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "fix the name in "+d.path),
		)
		return Entry{}, err
	}
	return Entry{ExternalID: id, CanonicalName: name}, nil
}

// Stats reloads if needed and reports the current load summary.
func (d *CSVDirectory) Stats() (Stats, error) {
	if err := d.ensureLoaded(); err != nil {
		return Stats{}, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.stats, nil
}

func (d *CSVDirectory) ensureLoaded() error {
	if d.path == "" {
		return services.Wrap(services.ErrConfiguration, "directory", "load", "directory.path is not set", nil)
	}
	info, err := os.Stat(d.path)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "directory", "load", d.path, err)
	}
	if info.IsDir() {
		return services.Wrap(services.ErrConfiguration, "directory", "load", d.path+" is a directory", nil)
	}

	d.mu.RLock()
	current := d.entries != nil && d.modTime.Equal(info.ModTime()) && d.size == info.Size()
	d.mu.RUnlock()
	if current {
		return nil
	}

	data, err := os.ReadFile(d.path)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "directory", "read", d.path, err)
	}
	entries, stats, err := parseCSV(data)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "directory", "parse", d.path, err)
	}
	// An empty set would turn every lookup into a mismatch. The previous
	// entries stay in memory but are not served until the file is fixed.
	if stats.Entries == 0 {
		logging.ErrorWithContext(d.logger, "identity directory has no usable entries", "directory_empty",
			logging.String("path", d.path),
			logging.Int("rows", stats.Rows),
			logging.Int("skipped_non_numeric", stats.SkippedNonNumeric),
			logging.String(logging.FieldErrorHint, "expected an id,name or Name,ID csv with numeric ids"),
		)
		return services.Wrap(services.ErrConfiguration, "directory", "parse", d.path+" has no usable entries", ErrEmpty)
	}
	stats.Path = d.path
	stats.LoadedAt = time.Now().UTC()
	stats.ModTime = info.ModTime().UTC()

	d.mu.Lock()
	d.entries = entries
	d.stats = stats
	d.modTime = info.ModTime()
	d.size = info.Size()
	d.mu.Unlock()

	d.logger.Info("loaded identity directory",
		logging.String("path", d.path),
		logging.Int("entries", stats.Entries),
		logging.Int("skipped_non_numeric", stats.SkippedNonNumeric),
		logging.Int("duplicates", stats.Duplicates),
	)
	return nil
}

// parseCSV accepts "Name,ID", "id,name" or any header naming both columns;
// without a recognizable header the layout is id,name.
func parseCSV(data []byte) (map[string]string, Stats, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var stats Stats
	entries := make(map[string]string)
	idCol, nameCol := 0, 1
	first := true
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, stats, fmt.Errorf("read csv: %w", err)
		}
		if first {
			first = false
			if i, n, ok := detectHeader(record); ok {
				idCol, nameCol = i, n
				continue
			}
		}
		if len(record) <= max(idCol, nameCol) {
			continue
		}
		stats.Rows++
		id := strings.TrimSpace(record[idCol])
		name := strings.TrimSpace(record[nameCol])
		if !isDigits(id) {
			stats.SkippedNonNumeric++
			continue
		}
		if _, dup := entries[id]; dup {
			stats.Duplicates++
			continue
		}
		entries[id] = name
	}
	stats.Entries = len(entries)
	return entries, stats, nil
}

func detectHeader(record []string) (idCol, nameCol int, ok bool) {
	idCol, nameCol = -1, -1
	for i, cell := range record {
		switch strings.ToLower(strings.TrimSpace(cell)) {
		case "id", "external_id", "governor id", "governor_id":
			if idCol < 0 {
				idCol = i
			}
		case "name", "canonical_name", "governor name":
			if nameCol < 0 {
				nameCol = i
			}
		}
	}
	return idCol, nameCol, idCol >= 0 && nameCol >= 0
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ValidateID trims id and checks it is all ASCII digits with a length in
// minDigits..maxDigits. Non-positive bounds are not enforced.
func ValidateID(id string, minDigits, maxDigits int) (string, error) {
	id = strings.TrimSpace(id)
	switch {
	case !isDigits(id):
		return "", services.Wrap(services.ErrValidation, "directory", "validate id", fmt.Sprintf("id %q must contain only digits", id), nil)
	case minDigits > 0 && len(id) < minDigits, maxDigits > 0 && len(id) > maxDigits:
		return "", services.Wrap(services.ErrValidation, "directory", "validate id", fmt.Sprintf("id %s must have %d to %d digits", id, minDigits, maxDigits), nil)
	}
	return id, nil
}
