package graph

import (
	"fmt"

	"github.com/joshharrison/pertsim/internal/taskfile"
)

// Build constructs a Network from task records. Successor lists are derived by
// inverting predecessor lists, and the result is checked for cycles.
func Build(records []taskfile.Record) (*Network, error) {
	if len(records) == 0 {
		return nil, ErrEmptyNetwork
	}

	n := &Network{
		Tasks: make([]*Task, 0, len(records)),
		index: make(map[string]int, len(records)),
	}

	// Index all tasks
	for i := range records {
		rec := &records[i]
		if _, dup := n.index[rec.ID]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateTask, rec.ID)
		}
		category := rec.Category
		if category == "" {
			category = DefaultCategory
		}
		n.index[rec.ID] = len(n.Tasks)
		n.Tasks = append(n.Tasks, &Task{
			ID:          rec.ID,
			Name:        rec.Name,
			Category:    category,
			Resources:   rec.Resources,
			Optimistic:  rec.Optimistic,
			MostLikely:  rec.MostLikely,
			Pessimistic: rec.Pessimistic,
		})
	}

	n.Preds = make([][]int, len(n.Tasks))
	n.Succs = make([][]int, len(n.Tasks))

	// Edges come only from predecessor lists; a repeated predecessor is one edge.
	for i := range records {
		seen := make(map[int]bool, len(records[i].Predecessors))
		for _, pred := range records[i].Predecessors {
			p, ok := n.index[pred]
			if !ok {
				return nil, fmt.Errorf("task %q: %w %q", records[i].ID, ErrUnknownPredecessor, pred)
			}
			if seen[p] {
				continue
			}
			seen[p] = true
			n.Tasks[i].Predecessors = append(n.Tasks[i].Predecessors, pred)
			n.Preds[i] = append(n.Preds[i], p)
			n.Succs[p] = append(n.Succs[p], i)
		}
	}

	for i := range n.Tasks {
		if len(n.Preds[i]) == 0 {
			n.Roots = append(n.Roots, i)
		}
		if len(n.Succs[i]) == 0 {
			n.Leaves = append(n.Leaves, i)
		}
	}

	if cycle := n.DetectCycle(); cycle != nil {
		return nil, &CycleError{Path: cycle}
	}

	return n, nil
}

// DetectCycle returns the ids along a cycle if one exists, or nil if the
// network is acyclic. Depth-first search over successors, tracking which
// nodes are on the current recursion stack.
func (n *Network) DetectCycle() []string {
	visited := make([]bool, len(n.Tasks))
	onStack := make([]bool, len(n.Tasks))
	var stack []int

	var dfs func(node int) []string
	dfs = func(node int) []string {
		visited[node] = true
		onStack[node] = true
		stack = append(stack, node)

		for _, next := range n.Succs[node] {
			if onStack[next] {
				// Cut the stack at the first occurrence of next
				start := len(stack) - 1
				for stack[start] != next {
					start--
				}
				cycle := make([]string, 0, len(stack)-start+1)
				for _, i := range stack[start:] {
					cycle = append(cycle, n.Tasks[i].ID)
				}
				return append(cycle, n.Tasks[next].ID)
			}
			if !visited[next] {
				if cycle := dfs(next); cycle != nil {
					return cycle
				}
			}
		}

		onStack[node] = false
		stack = stack[:len(stack)-1]
		return nil
	}

	for i := range n.Tasks {
		if !visited[i] {
			if cycle := dfs(i); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// TaskCount returns the number of tasks in the network.
func (n *Network) TaskCount() int {
	return len(n.Tasks)
}

// Index returns the position of the task with the given id.
func (n *Network) Index(id string) (int, bool) {
	i, ok := n.index[id]
	return i, ok
}

// Task returns the task with the given id, or nil.
func (n *Network) Task(id string) *Task {
	if i, ok := n.index[id]; ok {
		return n.Tasks[i]
	}
	return nil
}

// IDs returns task ids for the given indices.
func (n *Network) IDs(indices []int) []string {
	ids := make([]string, len(indices))
	for i, idx := range indices {
		ids[i] = n.Tasks[idx].ID
	}
	return ids
}

// Categories returns the distinct task categories in first-seen order.
func (n *Network) Categories() []string {
	seen := make(map[string]bool)
	var cats []string
	for _, t := range n.Tasks {
		if !seen[t.Category] {
			seen[t.Category] = true
			cats = append(cats, t.Category)
		}
	}
	return cats
}
