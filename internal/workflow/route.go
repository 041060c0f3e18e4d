package workflow

import (
	"fmt"
	"strings"
)

// routeNode is one node of the path(s) that replay must walk to rebuild a
// captured set of branches. Only leaves carry a state to force.
type routeNode struct {
	spec     TaskSpec
	outgoing []*routeNode
	state    State
}

func (n *routeNode) outgoingFor(spec TaskSpec) *routeNode {
	for _, o := range n.outgoing {
		if o.spec == spec {
			return o
		}
	}
	return nil
}

func (n *routeNode) outgoingSpecs() []TaskSpec {
	specs := make([]TaskSpec, len(n.outgoing))
	for i, o := range n.outgoing {
		specs[i] = o.spec
	}
	return specs
}

// routeBuilder rediscovers, for each serialized branch, a path of specs
// from the process start to the branch target and merges all paths into
// one route tree.
type routeBuilder struct {
	process *Process
	route   *routeNode
}

func newRouteBuilder(p *Process) *routeBuilder {
	return &routeBuilder{process: p}
}

// addBranch resolves one "[name:]*flow-id:(R|W)" descriptor.
func (b *routeBuilder) addBranch(branch string) error {
	parts := strings.Split(branch, ":")
	if len(parts) < 2 {
		return newError(ErrCodeMalformedState, "", "branch %q has no flow id and marker", branch)
	}
	marker := parts[len(parts)-1]
	if marker != markerReady && marker != markerWaiting {
		return newError(ErrCodeMalformedState, "", "branch %q has unknown marker %q", branch, marker)
	}
	flowID := parts[len(parts)-2]

	path := []TaskSpec{b.process.Start()}
	for _, name := range parts[:len(parts)-2] {
		found := breadthFirstSearch(path, func(s TaskSpec) bool {
			return s.Name() == name && s.Subprocess() != nil
		})
		if found == nil {
			return &UnrecoverableChangeError{Branch: branch, Missing: name}
		}
		path = append(found, found[len(found)-1].Subprocess().Start())
	}

	if flowID != "" {
		found := breadthFirstSearch(path, func(s TaskSpec) bool {
			_, ok := s.FlowByID(flowID)
			return ok
		})
		if found == nil {
			return &UnrecoverableChangeError{Branch: branch, Missing: flowID}
		}
		flow, _ := found[len(found)-1].FlowByID(flowID)
		path = append(found, flow.Target)
	}

	state := Ready
	if marker == markerWaiting {
		state = Waiting
	}
	chain := buildChain(path, state)
	if b.route == nil {
		b.route = chain
		return nil
	}
	return mergeRoutes(b.route, chain, branch)
}

// breadthFirstSearch extends start with the shortest path, by edge count,
// to the first spec satisfying match. The last spec of start is checked
// too. Outputs are explored in connection order, so ties resolve the same
// way every time. Each spec is visited at most once, which bounds the
// search on cyclic graphs.
func breadthFirstSearch(start []TaskSpec, match func(TaskSpec) bool) []TaskSpec {
	origin := start[len(start)-1]
	queue := [][]TaskSpec{start}
	visited := map[TaskSpec]bool{origin: true}
	for len(queue) > 0 {
		route := queue[0]
		queue = queue[1:]
		last := route[len(route)-1]
		if match(last) {
			return route
		}
		for _, next := range last.Outputs() {
			if visited[next] {
				continue
			}
			visited[next] = true
			extended := make([]TaskSpec, len(route), len(route)+1)
			copy(extended, route)
			queue = append(queue, append(extended, next))
		}
	}
	return nil
}

// buildChain turns a path into a single-branch route, root first. Only
// the leaf carries state.
func buildChain(path []TaskSpec, state State) *routeNode {
	var next *routeNode
	for i := len(path) - 1; i >= 0; i-- {
		n := &routeNode{spec: path[i]}
		if next != nil {
			n.outgoing = []*routeNode{next}
		} else {
			n.state = state
		}
		next = n
	}
	return next
}

// mergeRoutes folds src into target, sharing common prefixes. A branch
// that ends where another branch passes through cannot be replayed, since
// one task cannot be both finished and alive. Two branches ending on the
// same node would replay as a single task.
func mergeRoutes(target, src *routeNode, branch string) error {
	if target.spec != src.spec {
		return newError(ErrCodeIntegrity, src.spec.Name(), "cannot merge route into %s", target.spec.Name())
	}
	if len(target.outgoing) == 0 && len(src.outgoing) == 0 {
		return newError(ErrCodeIntegrity, src.spec.Name(),
			"branch %q ends on the same task as another branch", branch)
	}
	if (len(target.outgoing) == 0) != (len(src.outgoing) == 0) {
		return newError(ErrCodeIntegrity, src.spec.Name(),
			"branch %q ends where another branch passes through", branch)
	}
	for _, out := range src.outgoing {
		if existing := target.outgoingFor(out.spec); existing != nil {
			if err := mergeRoutes(existing, out, branch); err != nil {
				return err
			}
			continue
		}
		target.outgoing = append(target.outgoing, out)
	}
	return nil
}

// dump renders the route tree for debug logs.
func (n *routeNode) dump() string {
	var sb strings.Builder
	n.dumpTo(&sb, "")
	return sb.String()
}

func (n *routeNode) dumpTo(sb *strings.Builder, indent string) {
	if len(n.outgoing) == 0 {
		fmt.Fprintf(sb, "%s [%s]\n", n.spec.Name(), n.state)
	} else {
		fmt.Fprintf(sb, "%s\n", n.spec.Name())
	}
	for i, o := range n.outgoing {
		sb.WriteString(indent + "   --> ")
		next := indent + "       "
		if i+1 < len(n.outgoing) {
			next = indent + "   |   "
		}
		o.dumpTo(sb, next)
	}
}
