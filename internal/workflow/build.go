package workflow

import (
	"context"
	"fmt"
	"time"

	"go.lepak.sg/taskgraph/task"
	"go.lepak.sg/taskgraph/taskgroup"
)

// Build constructs one taskgroup.TaskGroup per GroupSpec in doc, wires
// each group's internal edges, then applies every depends_on and
// post_run_dependents relationship in declaration order. It returns
// the groups keyed by name.
func Build(doc *Document) (map[string]*taskgroup.TaskGroup, error) {
	groups := make(map[string]*taskgroup.TaskGroup, len(doc.Groups))

	for _, spec := range doc.Groups {
		if _, exists := groups[spec.Name]; exists {
			return nil, fmt.Errorf("workflow: duplicate group name %q", spec.Name)
		}

		strategy, err := parseStrategy(spec.Strategy)
		if err != nil {
			return nil, fmt.Errorf("workflow: group %q: %w", spec.Name, err)
		}

		g := taskgroup.New(spec.Root.Key, nodeItem(spec.Root), strategy)
		for _, n := range spec.Nodes {
			if err := g.AddEntry(n.Key, nodeItem(n)); err != nil {
				return nil, fmt.Errorf("workflow: group %q: %w", spec.Name, err)
			}
		}
		for _, e := range spec.Edges {
			if err := g.AddEdge(e.From, e.To); err != nil {
				return nil, fmt.Errorf("workflow: group %q: %w", spec.Name, err)
			}
		}

		groups[spec.Name] = g
	}

	for _, spec := range doc.Groups {
		g := groups[spec.Name]

		for _, depName := range spec.DependsOn {
			other, ok := groups[depName]
			if !ok {
				return nil, fmt.Errorf("workflow: group %q depends_on unknown group %q", spec.Name, depName)
			}
			if err := g.AddDependencyTaskGroup(other); err != nil {
				return nil, fmt.Errorf("workflow: group %q depends_on %q: %w", spec.Name, depName, err)
			}
		}

		for _, depName := range spec.PostRunDependents {
			other, ok := groups[depName]
			if !ok {
				return nil, fmt.Errorf("workflow: group %q post_run_dependents unknown group %q", spec.Name, depName)
			}
			if err := g.AddPostRunDependentTaskGroup(other); err != nil {
				return nil, fmt.Errorf("workflow: group %q post_run_dependents %q: %w", spec.Name, depName, err)
			}
		}
	}

	return groups, nil
}

func parseStrategy(s string) (taskgroup.TerminationStrategy, error) {
	switch s {
	case "", "in_progress":
		return taskgroup.TerminateOnInProgressCompletion, nil
	case "hub":
		return taskgroup.TerminateOnHubCompletion, nil
	default:
		return 0, fmt.Errorf("unknown termination strategy %q", s)
	}
}

func nodeItem(n NodeSpec) task.Item {
	key, sleep, fail := n.Key, n.Sleep.asTime(), n.Fail
	return task.NewFunc(func(ctx context.Context) (string, error) {
		if sleep > 0 {
			select {
			case <-time.After(sleep):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
		if fail {
			return "", fmt.Errorf("node %s: simulated failure", key)
		}
		return key, nil
	})
}
