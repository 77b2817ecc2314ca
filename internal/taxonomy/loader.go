package taxonomy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/evalforge/coverplan/internal/types"
)

// conceptFile is the YAML shape produced by the taxonomy-ingestion
// collaborator. A snapshot identifier travels with the records so plan
// provenance can pin the exact frame version.
type conceptFile struct {
	SnapshotID string    `yaml:"snapshot_id"`
	Concepts   []Concept `yaml:"concepts"`
}

// LoadConcepts parses a concept frame YAML file, validates every record,
// and returns the records together with the snapshot identifier.
func LoadConcepts(path string) ([]Concept, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read concept file %s: %w", path, err)
	}
	return ParseConcepts(data)
}

// ParseConcepts parses a concept frame from YAML bytes.
func ParseConcepts(data []byte) ([]Concept, string, error) {
	var file conceptFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, "", types.WrapError(types.CONCEPT_INVALID, "failed to parse concept YAML", err)
	}

	seen := make(map[string]bool, len(file.Concepts))
	for _, c := range file.Concepts {
		if err := c.Validate(); err != nil {
			return nil, "", err
		}
		if seen[c.ID] {
			return nil, "", types.NewErrorf(types.CONCEPT_DUPLICATE, "duplicate concept id %q", c.ID)
		}
		seen[c.ID] = true
	}

	return file.Concepts, file.SnapshotID, nil
}
