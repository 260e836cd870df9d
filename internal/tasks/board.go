package tasks

import (
	"sort"

	"linkrewards/internal/models"
)

// Group partitions tasks by section. Sections keep the order in which they
// first appear in the input; tasks inside a section are sorted by sort order,
// ties keeping input order.
func Group(tasks []models.Task) []models.Section {
	sections := []models.Section{}
	index := map[string]int{}
	for _, t := range tasks {
		i, ok := index[t.Section]
		if !ok {
			i = len(sections)
			index[t.Section] = i
			sections = append(sections, models.Section{Name: t.Section})
		}
		sections[i].Tasks = append(sections[i].Tasks, t)
	}
	for i := range sections {
		group := sections[i].Tasks
		sort.SliceStable(group, func(a, b int) bool {
			return group[a].SortOrder < group[b].SortOrder
		})
	}
	return sections
}

// Find returns the task with the given id.
func Find(tasks []models.Task, id int64) (models.Task, bool) {
	for _, t := range tasks {
		if t.ID == id {
			return t, true
		}
	}
	return models.Task{}, false
}
