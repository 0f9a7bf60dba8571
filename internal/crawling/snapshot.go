package crawling

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonathan/plan-auditor/internal/types"
	"gopkg.in/yaml.v3"
)

// LoadRatings reads a rating snapshot written by SaveRatings. The format is
// chosen by extension: .yaml/.yml for YAML, anything else JSON. A missing file
// yields an empty set.
func LoadRatings(path string) (*types.RatingSet, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &types.RatingSet{Courses: []types.CourseRating{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read ratings file: %w", err)
	}

	var set types.RatingSet
	if isYAML(path) {
		err = yaml.Unmarshal(data, &set)
	} else {
		err = json.Unmarshal(data, &set)
	}
	if err != nil {
		return nil, &CrawlError{Message: fmt.Sprintf("invalid ratings file %s", path), Cause: err}
	}
	if set.Courses == nil {
		set.Courses = []types.CourseRating{}
	}
	return &set, nil
}

// SaveRatings writes a rating snapshot, creating parent directories.
func SaveRatings(path string, set *types.RatingSet) error {
	if set == nil {
		return &CrawlError{Message: "no ratings to save"}
	}

	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(set)
	} else {
		data, err = json.MarshalIndent(set, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal ratings: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write ratings file: %w", err)
	}
	return nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
