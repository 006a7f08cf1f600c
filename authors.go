package updates

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadAuthors reads the author registry, a YAML map of author id to
// profile. A missing file yields a nil registry, which disables the
// author check.
func LoadAuthors(path string) (map[string]Author, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read authors file: %w", err)
	}
	var authors map[string]Author
	if err := yaml.Unmarshal(data, &authors); err != nil {
		return nil, fmt.Errorf("parse authors file %s: %w", path, err)
	}
	return authors, nil
}

// authorIDs flattens the registry into the id set the checker consumes.
func authorIDs(authors map[string]Author) map[string]bool {
	if len(authors) == 0 {
		return nil
	}
	ids := make(map[string]bool, len(authors))
	for id := range authors {
		ids[id] = true
	}
	return ids
}
