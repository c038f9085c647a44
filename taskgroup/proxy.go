package taskgroup

import (
	"go.lepak.sg/taskgraph/dag"
	"go.lepak.sg/taskgraph/task"
)

// ProxyWrapper is the late-activated shadow structure that makes
// post-run dependents retroactively correct: once a TaskGroup gains
// its first post-run dependent, a synthetic proxy root is interposed
// above the real root so that every existing parent of the real root
// comes to depend, transitively, on the post-run dependents too.
type ProxyWrapper struct {
	group *TaskGroup // the synthetic proxy task group
	real  *TaskGroup // the task group this proxy shadows
}

// Group returns the synthetic proxy task group.
func (p *ProxyWrapper) Group() *TaskGroup { return p.group }

// Real returns the task group the proxy shadows.
func (p *ProxyWrapper) Real() *TaskGroup { return p.real }

// activateProxyLocked runs the first-call half of the proxy protocol.
// Callers must hold mu and must only call this when g.proxy is nil.
func (g *TaskGroup) activateProxyLocked() error {
	proxyKey := "proxy-" + g.rootKey
	proxyRoot := dag.NewEntry(proxyKey, task.NoOp())
	proxyGroup := &TaskGroup{
		d:        dag.New(proxyRoot),
		rootKey:  proxyKey,
		strategy: g.strategy,
	}
	p := &ProxyWrapper{group: proxyGroup, real: g}
	g.proxy = p

	// Rewire every existing parent: delete F -> Q.root, add P -> Q.root.
	oldParents := g.parentDAGs
	g.parentDAGs = nil

	for _, q := range oldParents {
		if err := dag.Unlink(g.d.Root(), q.d.Root()); err != nil {
			return err
		}
		if err := dag.Link(proxyRoot, q.d.Root()); err != nil {
			return err
		}
		if !containsGroup(proxyGroup.parentDAGs, q) {
			proxyGroup.parentDAGs = append(proxyGroup.parentDAGs, q)
		}
	}

	// The proxy depends on the real root: F -> P.
	if err := dag.Link(g.d.Root(), proxyRoot); err != nil {
		return err
	}

	// g.parentDAGs now contains the proxy task group in place of its
	// old parents; AddPostRunDependentTaskGroup appends the new
	// post-run dependent right after this returns.
	g.parentDAGs = append(g.parentDAGs, proxyGroup)

	return nil
}
