package inventory

import (
	"sort"
)

// graphBuilder turns a merged document into the immutable group graph the
// resolver queries: it materializes implicit groups, rejects children
// cycles, and assigns every group its depth from the root.
type graphBuilder struct {
	rootGroup      string
	ungroupedGroup string

	doc *Document

	// parents maps a group to the groups naming it as a child
	parents map[string][]string

	// depth maps a group to its longest distance from the root group
	depth map[string]int
}

func newGraphBuilder(doc *Document, rootGroup, ungroupedGroup string) *graphBuilder {
	return &graphBuilder{
		rootGroup:      rootGroup,
		ungroupedGroup: ungroupedGroup,
		doc:            doc,
		parents:        make(map[string][]string),
		depth:          make(map[string]int),
	}
}

// build normalizes the document and computes the derived graph structure.
// The document must not be mutated after build returns.
func (b *graphBuilder) build() error {
	b.normalize()
	if err := b.detectCycles(); err != nil {
		return err
	}
	b.buildParents()
	return b.computeDepths()
}

// normalize materializes groups referenced only as children, roots every
// parentless group under the implicit root group, and routes hosts without
// any explicit group into the ungrouped group.
func (b *graphBuilder) normalize() {
	groups := b.doc.Groups

	// Groups named as children but never defined become empty groups.
	for _, group := range groups {
		for _, child := range group.Children {
			if _, ok := groups[child]; !ok {
				groups[child] = &Group{}
			}
		}
	}

	if _, ok := groups[b.rootGroup]; !ok {
		groups[b.rootGroup] = &Group{}
	}

	// Hosts that belong to no group besides the root land in the ungrouped
	// group.
	grouped := make(map[string]bool)
	for name, group := range groups {
		if name == b.rootGroup || name == b.ungroupedGroup {
			continue
		}
		for _, host := range group.Hosts {
			grouped[host] = true
		}
	}

	var ungroupedHosts []string
	for _, host := range b.doc.HostNames() {
		if !grouped[host] {
			ungroupedHosts = append(ungroupedHosts, host)
		}
	}
	if len(ungroupedHosts) > 0 || groups[b.ungroupedGroup] != nil {
		if _, ok := groups[b.ungroupedGroup]; !ok {
			groups[b.ungroupedGroup] = &Group{}
		}
		groups[b.ungroupedGroup].Hosts = unionStrings(groups[b.ungroupedGroup].Hosts, ungroupedHosts)
	}

	// Every parentless group hangs off the root so the root is the top
	// ancestor of the whole graph.
	hasParent := make(map[string]bool)
	for _, group := range groups {
		for _, child := range group.Children {
			hasParent[child] = true
		}
	}

	root := groups[b.rootGroup]
	var orphans []string
	for name := range groups {
		if name == b.rootGroup {
			continue
		}
		if !hasParent[name] {
			orphans = append(orphans, name)
		}
	}
	sort.Strings(orphans)
	root.Children = unionStrings(root.Children, orphans)
}

// detectCycles uses depth-first search to reject children cycles before any
// traversal can loop on them.
func (b *graphBuilder) detectCycles() error {
	visited := make(map[string]bool)
	recStack := make(map[string]bool)
	path := make([]string, 0)

	names := b.doc.GroupNames()
	for _, name := range names {
		if !visited[name] {
			if cycle := b.detectCyclesUtil(name, visited, recStack, path); cycle != nil {
				return NewCycleError(cycle)
			}
		}
	}

	return nil
}

func (b *graphBuilder) detectCyclesUtil(
	name string,
	visited map[string]bool,
	recStack map[string]bool,
	path []string,
) []string {
	visited[name] = true
	recStack[name] = true
	path = append(path, name)

	for _, child := range b.doc.Groups[name].Children {
		if !visited[child] {
			if cycle := b.detectCyclesUtil(child, visited, recStack, path); cycle != nil {
				return cycle
			}
		} else if recStack[child] {
			// Found a cycle - construct the cycle path
			cycleStart := -1
			for i, id := range path {
				if id == child {
					cycleStart = i
					break
				}
			}
			if cycleStart >= 0 {
				return append(path[cycleStart:], child)
			}
		}
	}

	recStack[name] = false
	return nil
}

// buildParents inverts the children relation.
func (b *graphBuilder) buildParents() {
	for name, group := range b.doc.Groups {
		for _, child := range group.Children {
			b.parents[child] = append(b.parents[child], name)
		}
	}
}

// computeDepths assigns every group its longest distance from the root using
// Kahn's algorithm: a group's depth is settled only once all of its parents
// are, so a diamond's lower vertex sits below its deepest parent.
func (b *graphBuilder) computeDepths() error {
	inDegree := make(map[string]int, len(b.doc.Groups))
	for name := range b.doc.Groups {
		inDegree[name] = len(b.parents[name])
	}

	currentLevel := []string{}
	for name, degree := range inDegree {
		if degree == 0 {
			currentLevel = append(currentLevel, name)
		}
	}

	level := 0
	processed := 0
	for len(currentLevel) > 0 {
		nextLevel := []string{}
		for _, name := range currentLevel {
			b.depth[name] = level
			processed++
			for _, child := range b.doc.Groups[name].Children {
				inDegree[child]--
				if inDegree[child] == 0 {
					nextLevel = append(nextLevel, child)
				}
			}
		}
		currentLevel = nextLevel
		level++
	}

	// Unreachable only if cycle detection missed something.
	if processed != len(b.doc.Groups) {
		return NewCycleError(nil)
	}

	return nil
}

// ancestorsOf returns the set of groups from which a group is reachable
// downward, the group itself included. Diamond paths visit each ancestor
// exactly once.
func (b *graphBuilder) ancestorsOf(name string) map[string]bool {
	out := make(map[string]bool)
	queue := []string{name}
	for len(queue) > 0 {
		g := queue[0]
		queue = queue[1:]
		if out[g] {
			continue
		}
		out[g] = true
		queue = append(queue, b.parents[g]...)
	}
	return out
}
