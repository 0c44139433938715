package archive

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/teranos/kcore-analytics/errors"
)

// indexFileName returns the .arx filename for a query/filters combination,
// e.g. "index.arx" or, with lang "en", "index-en.arx".
func indexFileName(filters map[string]string) string {
	suffix := filterSuffix(filters)
	return "index" + suffix + ".arx"
}

// filterSuffix produces a filename fragment from filters, so indexes for the
// same query with different lang filters can coexist. Only the "lang" filter
// is used; other filters do not change the name.
func filterSuffix(filters map[string]string) string {
	if lang, ok := filters["lang"]; ok && lang != "" {
		return "-" + lang
	}
	return ""
}

// loadOrCreateArx reads the index file at path, creating an empty one if it
// doesn't exist yet.
func loadOrCreateArx(path, query string, filters map[string]string) (*Arx, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			arx := &Arx{Query: query, Filters: filters}
			if err := writeArxAtomic(path, arx); err != nil {
				return nil, err
			}
			return arx, nil
		}
		return nil, errors.Wrapf(err, "failed to read index %s", path)
	}
	if len(data) == 0 {
		return &Arx{Query: query, Filters: filters}, nil
	}
	var arx Arx
	if err := json.Unmarshal(data, &arx); err != nil {
		return nil, errors.Wrapf(err, "failed to parse index %s", path)
	}
	return &arx, nil
}

// writeArxAtomic serializes arx and writes it via write-then-rename, so a
// crash mid-write can never leave a torn index on disk.
func writeArxAtomic(path string, arx *Arx) error {
	data, err := json.MarshalIndent(arx, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal index")
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".arx-*.tmp")
	if err != nil {
		return errors.Wrapf(err, "failed to create temp index file in %s", dir)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "failed to write temp index file")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(err, "failed to sync temp index file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "failed to close temp index file")
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errors.Wrapf(err, "failed to rename %s to %s", tmpName, path)
	}
	return nil
}
