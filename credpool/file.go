package credpool

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/teranos/kcore-analytics/errors"
	"github.com/teranos/kcore-analytics/upstream"
)

// LoadCredentials reads a JSON array of credential triples from dir/file,
// matching spec.md §6.2's credentials file layout.
func LoadCredentials(dir, file string) ([]upstream.Credential, error) {
	path := filepath.Join(dir, file)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "credpool: failed to read credentials file %s", path)
	}
	var creds []upstream.Credential
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, errors.Wrapf(err, "credpool: failed to parse credentials file %s", path)
	}
	return creds, nil
}
