package propagate

import (
	"fmt"

	"github.com/wippyai/effectgen/decl"
	"github.com/wippyai/effectgen/effect"
	"github.com/wippyai/effectgen/errors"
)

// EdgeKind classifies how a declaration obtains its assignment.
type EdgeKind int

const (
	EdgeRoot    EdgeKind = iota // owns its assignment
	EdgeInherit                 // inherits the parent's assignment
	EdgeFixed                   // inherits, and exists only where Fixed kinds are present
)

func (k EdgeKind) String() string {
	switch k {
	case EdgeRoot:
		return "root"
	case EdgeInherit:
		return "inherits"
	case EdgeFixed:
		return "fixed"
	}
	return "unknown"
}

// Edge links a declaration to the parent it takes its assignment from.
type Edge struct {
	Fixed  effect.Set
	Parent decl.ID
	Kind   EdgeKind
}

func (e Edge) String() string {
	switch e.Kind {
	case EdgeInherit:
		return fmt.Sprintf("inherits %s", e.Parent)
	case EdgeFixed:
		return fmt.Sprintf("fixed %s under %s", e.Fixed, e.Parent)
	}
	return "root"
}

// Component is one tree of the propagation forest: a root declaration and
// every declaration that inherits from it.
type Component struct {
	Set     effect.Set
	Root    decl.ID
	Members []decl.ID // root first, parents before children
	Failed  bool
}

// Graph is the propagation forest of a model. Read-only after Build.
type Graph struct {
	model    *decl.Model
	edges    map[decl.ID]Edge
	sets     map[decl.ID]effect.Set
	failed   map[decl.ID]bool
	compOf   map[decl.ID]*Component
	children map[decl.ID][]decl.ID
	comps    []*Component
}

// Build derives the propagation forest from the model, computes every
// declaration's effective set and reports scoping violations.
func Build(m *decl.Model) (*Graph, errors.List) {
	g := &Graph{
		model:    m,
		edges:    make(map[decl.ID]Edge),
		sets:     make(map[decl.ID]effect.Set),
		failed:   make(map[decl.ID]bool),
		compOf:   make(map[decl.ID]*Component),
		children: make(map[decl.ID][]decl.ID),
	}
	var diags errors.List

	all := m.All()
	for _, d := range all {
		e := Edge{Kind: EdgeRoot}
		if d.Parent.IsValid() {
			if _, ok := m.Get(d.Parent); ok {
				e = Edge{Kind: EdgeInherit, Parent: d.Parent}
				if d.IsSpecific() {
					e.Kind, e.Fixed = EdgeFixed, d.Fixed
				}
				g.children[d.Parent] = append(g.children[d.Parent], d.ID)
			} else {
				// unresolved linkage was reported by the model
				g.failed[d.ID] = true
			}
		}
		g.edges[d.ID] = e
	}

	diags.Append(g.detectCycles(all))

	for _, d := range all {
		if g.edges[d.ID].Kind != EdgeRoot {
			continue
		}
		c := &Component{Root: d.ID, Set: d.Effects}
		g.sets[d.ID] = d.Effects
		g.comps = append(g.comps, c)
		g.walk(c, d.ID, &diags)
	}

	// descendants of a cycle belong to no component
	for _, d := range all {
		if _, ok := g.compOf[d.ID]; !ok {
			g.failed[d.ID] = true
		}
	}
	for _, c := range g.comps {
		for _, id := range c.Members {
			if g.failed[id] || m.Failed(id) {
				c.Failed = true
				break
			}
		}
	}
	return g, diags
}

// detectCycles reports every declaration whose parent chain loops.
func (g *Graph) detectCycles(all []*decl.Declaration) errors.List {
	const (
		unvisited = iota
		visiting
		done
	)
	var diags errors.List
	state := make(map[decl.ID]int, len(all))
	for _, d := range all {
		if state[d.ID] != unvisited {
			continue
		}
		var path []decl.ID
		cur := d.ID
		for {
			if state[cur] == done {
				break
			}
			if state[cur] == visiting {
				start := 0
				for i, id := range path {
					if id == cur {
						start = i
						break
					}
				}
				cycle := make([]string, 0, len(path)-start+1)
				for _, id := range path[start:] {
					cycle = append(cycle, string(id))
				}
				cycle = append(cycle, string(cur))
				for _, id := range path[start:] {
					g.failed[id] = true
					member, _ := g.model.Get(id)
					diags.Add(errors.PropagationCycle(member.Span, string(id), cycle))
				}
				break
			}
			state[cur] = visiting
			path = append(path, cur)
			e := g.edges[cur]
			if e.Kind == EdgeRoot {
				break
			}
			cur = e.Parent
		}
		for _, id := range path {
			state[id] = done
		}
	}
	return diags
}

func (g *Graph) walk(c *Component, id decl.ID, diags *errors.List) {
	c.Members = append(c.Members, id)
	g.compOf[id] = c
	parentSet := g.sets[id]

	for _, cid := range g.children[id] {
		if _, seen := g.compOf[cid]; seen {
			continue
		}
		child, _ := g.model.Get(cid)
		set, err := g.effective(child, parentSet)
		if err != nil {
			g.failed[cid] = true
			diags.Add(err)
		}
		g.sets[cid] = set
		g.walk(c, cid, diags)
	}
}

// effective computes a child's effective set from its parent's.
func (g *Graph) effective(child *decl.Declaration, parentSet effect.Set) (effect.Set, *errors.Error) {
	edge := g.edges[child.ID]
	if edge.Kind == EdgeFixed {
		if !child.Fixed.IsSubsetOf(parentSet) {
			return parentSet, errors.Declaration(child.Span, string(child.ID), "fixed-kind",
				fmt.Sprintf("%s is fixed to %s but %s is generic over %s only",
					child.ID, child.Fixed, edge.Parent, parentSet))
		}
		return parentSet, nil
	}
	if !child.Explicit {
		return parentSet, nil
	}

	own := child.Effects
	if outside := own.Minus(parentSet); !outside.IsEmpty() {
		return parentSet, errors.New(errors.PhasePropagate, errors.KindEffectMismatch).
			At(child.Span).Decl(string(child.ID)).Rule("child-subset").
			Effects(kindNames(outside)...).
			Detail("%s is generic over %s, which %s is not generic over", child.ID, outside, edge.Parent).
			Build()
	}
	if own.Equal(parentSet) {
		return own, nil
	}
	if child.Kind != decl.KindImpl {
		return parentSet, errors.New(errors.PhasePropagate, errors.KindEffectMismatch).
			At(child.Span).Decl(string(child.ID)).Rule("child-narrowing").
			Effects(kindNames(parentSet.Minus(own))...).
			Detail("%s declares %s but inherits %s from %s; mark it effect-specific or match the parent",
				child.ID, own, parentSet, edge.Parent).
			Build()
	}
	if own.IsEmpty() {
		return parentSet, errors.New(errors.PhasePropagate, errors.KindEffectMismatch).
			At(child.Span).Decl(string(child.ID)).Rule("impl-unmarked").
			Effects(kindNames(parentSet)...).
			Detail("%s is not generic over %s of %s; add #[maybe] or mark it effect-specific",
				child.ID, parentSet, edge.Parent).
			Build()
	}
	return own, nil
}

func kindNames(s effect.Set) []string {
	out := make([]string, 0, s.Len())
	for _, k := range s.Kinds() {
		out = append(out, string(k))
	}
	return out
}

// Model returns the model the graph was built from.
func (g *Graph) Model() *decl.Model { return g.model }

// Components returns the components in model order.
func (g *Graph) Components() []*Component {
	out := make([]*Component, len(g.comps))
	copy(out, g.comps)
	return out
}

// ComponentOf returns the component a declaration belongs to.
func (g *Graph) ComponentOf(id decl.ID) (*Component, bool) {
	c, ok := g.compOf[id]
	return c, ok
}

// EffectiveSet returns the set a declaration's assignment ranges over.
func (g *Graph) EffectiveSet(id decl.ID) (effect.Set, bool) {
	s, ok := g.sets[id]
	return s, ok
}

func (g *Graph) Edge(id decl.ID) (Edge, bool) {
	e, ok := g.edges[id]
	return e, ok
}

// Failed reports whether a declaration was rejected by the model or by
// propagation.
func (g *Graph) Failed(id decl.ID) bool {
	return g.failed[id] || g.model.Failed(id)
}

// FixedKinds returns the union of the effect-specific kinds on a
// declaration's parent chain, itself included. Every assignment the
// declaration has a variant under sets these kinds present.
func (g *Graph) FixedKinds(id decl.ID) effect.Set {
	var fixed effect.Set
	for cur := id; ; {
		e, ok := g.edges[cur]
		if !ok || e.Kind == EdgeRoot {
			return fixed
		}
		if e.Kind == EdgeFixed {
			fixed = fixed.Union(e.Fixed)
		}
		cur = e.Parent
	}
}

// MemberAssignment derives a member's assignment from the assignment of
// its component root. It returns false when a fixed edge on the chain
// excludes the member under that assignment.
func (g *Graph) MemberAssignment(id decl.ID, root effect.Assignment) (effect.Assignment, bool) {
	set, ok := g.sets[id]
	if !ok {
		return effect.Assignment{}, false
	}
	for _, k := range g.FixedKinds(id).Kinds() {
		if !root.Has(k) {
			return effect.Assignment{}, false
		}
	}
	return root.Project(set)
}

// Assignments enumerates the distinct assignments a member takes across
// every assignment of its component root.
func (g *Graph) Assignments(id decl.ID) []effect.Assignment {
	c, ok := g.compOf[id]
	if !ok {
		return nil
	}
	seen := make(map[string]bool)
	var out []effect.Assignment
	for _, root := range effect.Enumerate(c.Set) {
		a, ok := g.MemberAssignment(id, root)
		if !ok || seen[a.Key()] {
			continue
		}
		seen[a.Key()] = true
		out = append(out, a)
	}
	return out
}
