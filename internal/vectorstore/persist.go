package vectorstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// collectionFile is the on-disk format for one collection.
type collectionFile struct {
	Entries  []Entry      `json:"entries"`
	Metadata fileMetadata `json:"metadata"`
}

type fileMetadata struct {
	Count      int `json:"count"`
	Dimensions int `json:"dimensions"`
}

// persist writes the collection to <dir>/<name>.json via a temp file and
// rename, so a crash mid-write never corrupts the previous file.
func (s *Store) persist(name string, entries []Entry) error {
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	dims := 0
	if len(entries) > 0 {
		dims = len(entries[0].Embedding)
	}

	data, err := json.Marshal(collectionFile{
		Entries: entries,
		Metadata: fileMetadata{
			Count:      len(entries),
			Dimensions: dims,
		},
	})
	if err != nil {
		return fmt.Errorf("encoding collection: %w", err)
	}

	target := filepath.Join(s.dir, name+".json")
	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing collection file: %w", err)
	}
	return nil
}

// loadAll reads every persisted collection from the data directory.
// Malformed files are skipped with a warning rather than failing startup;
// the collection will simply be rebuilt on the next index run.
func (s *Store) loadAll() error {
	paths, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return fmt.Errorf("globbing %s: %w", s.dir, err)
	}

	for _, path := range paths {
		name := strings.TrimSuffix(filepath.Base(path), ".json")

		data, err := os.ReadFile(path) // #nosec G304 -- path comes from our own data dir glob
		if err != nil {
			s.logger.Warn("skipping unreadable collection file", "path", path, "error", err)
			continue
		}

		var cf collectionFile
		if err := json.Unmarshal(data, &cf); err != nil {
			s.logger.Warn("skipping malformed collection file", "path", path, "error", err)
			continue
		}

		s.collections[name] = cf.Entries
		s.logger.Debug("loaded collection", "collection", name, "entries", len(cf.Entries))
	}
	return nil
}
