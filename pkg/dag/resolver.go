// Package dag resolves task dependency graphs into execution orders.
//
// The graph is built once per run over stable integer indices (an arena), so
// resolution itself is allocation-light and testable without any persistence
// in the loop.
package dag

import (
	"fmt"
	"sort"

	"github.com/terrawatch/terrawatch/pkg/models"
)

// CycleError reports that the dependency graph contains a cycle. Blocked
// names at least one task that could never become ready; no partial order is
// returned alongside it.
type CycleError struct {
	Blocked []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected, blocked tasks: %v", e.Blocked)
}

// DanglingDependencyError reports an edge pointing at a task that is not part
// of the graph, typically a disabled task that still has dependents. Dropping
// such edges silently would change execution semantics, so resolution fails
// instead.
type DanglingDependencyError struct {
	TaskID    string
	DependsOn string
}

func (e *DanglingDependencyError) Error() string {
	return fmt.Sprintf("task %s depends on %s which is not part of the resolvable graph", e.TaskID, e.DependsOn)
}

// node is one arena slot. Edges are stored as arena indices.
type node struct {
	task       *models.Task
	inDegree   int
	dependents []int
}

// Resolve orders the given tasks so that every task appears after all tasks
// it depends on (Kahn's algorithm). Ties between simultaneously ready tasks
// are broken by ascending Task.Order, which makes the result stable for a
// fixed input.
//
// Callers pass the active tasks only; an edge referencing a task outside the
// slice yields a DanglingDependencyError. A cyclic graph yields a CycleError
// and no order.
func Resolve(tasks []*models.Task) ([]*models.Task, error) {
	if len(tasks) == 0 {
		return nil, nil
	}

	index := make(map[string]int, len(tasks))
	arena := make([]node, len(tasks))

	for i, task := range tasks {
		index[task.ID] = i
		arena[i] = node{task: task}
	}

	for i, task := range tasks {
		for _, dep := range task.DependsOn {
			j, ok := index[dep]
			if !ok {
				return nil, &DanglingDependencyError{TaskID: task.ID, DependsOn: dep}
			}

			arena[i].inDegree++
			arena[j].dependents = append(arena[j].dependents, i)
		}
	}

	ready := make([]int, 0, len(tasks))
	for i := range arena {
		if arena[i].inDegree == 0 {
			ready = append(ready, i)
		}
	}

	order := make([]*models.Task, 0, len(tasks))

	for len(ready) > 0 {
		// Ascending Order decides between tasks that are ready together.
		sort.Slice(ready, func(a, b int) bool {
			return arena[ready[a]].task.Order < arena[ready[b]].task.Order
		})

		i := ready[0]
		ready = ready[1:]
		order = append(order, arena[i].task)

		for _, dep := range arena[i].dependents {
			arena[dep].inDegree--
			if arena[dep].inDegree == 0 {
				ready = append(ready, dep)
			}
		}
	}

	if len(order) != len(tasks) {
		blocked := make([]string, 0)

		for i := range arena {
			if arena[i].inDegree > 0 {
				blocked = append(blocked, arena[i].task.ID)
			}
		}

		sort.Strings(blocked)

		return nil, &CycleError{Blocked: blocked}
	}

	return order, nil
}
