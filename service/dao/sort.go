package dao

import (
	"sort"

	"github.com/viant/intake/model/workflow"
)

// SortInstances orders instances by creation time then id.
func SortInstances(instances []*workflow.Instance) {
	sort.SliceStable(instances, func(i, j int) bool {
		if instances[i].CreatedAt.Equal(instances[j].CreatedAt) {
			return instances[i].ID < instances[j].ID
		}
		return instances[i].CreatedAt.Before(instances[j].CreatedAt)
	})
}
