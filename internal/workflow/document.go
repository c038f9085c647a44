// Package workflow loads a YAML document describing one or more task
// groups — their entries, internal edges, and cross-group composition
// — and builds the corresponding taskgroup.TaskGroup graph.
package workflow

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Document is the on-disk shape taskgraphctl loads: a named set of
// task groups plus how they compose with each other.
type Document struct {
	Groups []GroupSpec `yaml:"groups"`
}

// GroupSpec describes one TaskGroup: its root entry, any additional
// entries, the edges linking them, the other groups (by name) it
// depends on, and the groups (by name) registered as its own post-run
// dependents.
type GroupSpec struct {
	Name     string     `yaml:"name"`
	Strategy string     `yaml:"strategy"` // "in_progress" (default) or "hub"
	Root     NodeSpec   `yaml:"root"`
	Nodes    []NodeSpec `yaml:"nodes"`
	Edges    []EdgeSpec `yaml:"edges"`

	DependsOn         []string `yaml:"depends_on"`
	PostRunDependents []string `yaml:"post_run_dependents"`
}

// NodeSpec describes one entry's simulated work: it sleeps for Sleep
// (defaulting to zero) and then either succeeds with its own key as
// the result or, if Fail is set, returns an error.
type NodeSpec struct {
	Key   string   `yaml:"key"`
	Sleep Duration `yaml:"sleep"`
	Fail  bool     `yaml:"fail"`
}

// Duration wraps time.Duration so workflow documents can spell sleep
// times as "50ms" rather than a raw nanosecond count: yaml.v3 has no
// built-in notion of Go's duration strings.
type Duration time.Duration

func (d Duration) asTime() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("workflow: invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// EdgeSpec is one dependency edge within a group: To depends on From.
type EdgeSpec struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// Load reads and parses a workflow document from path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("workflow: read %s: %w", path, err)
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("workflow: parse %s: %w", path, err)
	}

	if len(doc.Groups) == 0 {
		return nil, fmt.Errorf("workflow: %s declares no groups", path)
	}

	return &doc, nil
}
