// Package catalog loads task definitions maintained by administrators.
package catalog

import (
	"context"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"linkrewards/internal/models"
)

type file struct {
	Tasks []models.Task `yaml:"tasks"`
}

// Upserter is the write side of the backend used for seeding.
type Upserter interface {
	UpsertTask(ctx context.Context, t models.Task) (models.Task, error)
}

// Parse decodes a YAML catalog of the form `tasks: [...]`.
func Parse(r io.Reader) ([]models.Task, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f file
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	seen := map[int64]bool{}
	for i, t := range f.Tasks {
		if strings.TrimSpace(t.Title) == "" {
			return nil, fmt.Errorf("task #%d: title is required", i+1)
		}
		if strings.TrimSpace(t.Section) == "" {
			return nil, fmt.Errorf("task %q: section is required", t.Title)
		}
		if t.Points <= 0 {
			return nil, fmt.Errorf("task %q: points must be positive", t.Title)
		}
		if t.ID != 0 {
			if seen[t.ID] {
				return nil, fmt.Errorf("task %q: duplicate id %d", t.Title, t.ID)
			}
			seen[t.ID] = true
		}
	}
	return f.Tasks, nil
}

// Seed writes every task to the backend and returns how many were stored.
func Seed(ctx context.Context, dst Upserter, tasks []models.Task) (int, error) {
	for i, t := range tasks {
		if _, err := dst.UpsertTask(ctx, t); err != nil {
			return i, fmt.Errorf("seed %q: %w", t.Title, err)
		}
	}
	return len(tasks), nil
}
