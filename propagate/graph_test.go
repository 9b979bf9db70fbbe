package propagate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/effectgen/decl"
	"github.com/wippyai/effectgen/effect"
	"github.com/wippyai/effectgen/errors"
)

var async = []effect.Kind{effect.Async}

func fn(name string) decl.Source {
	return decl.Source{Kind: decl.KindFunction, Name: name}
}

func fileModel(t *testing.T, extra ...decl.Source) *decl.Model {
	t.Helper()
	src := []decl.Source{
		{
			Kind: decl.KindType, Name: "File", Maybe: async, HasMaybe: true,
			Members: []decl.Source{fn("open"), {Kind: decl.KindFunction, Name: "poll", Specific: async}},
		},
		{Kind: decl.KindTrait, Name: "Read", Maybe: async, HasMaybe: true, Members: []decl.Source{fn("read")}},
		{
			Kind: decl.KindImpl, Trait: "Read", Self: "File",
			TraitMaybe: async, SelfMaybe: async, TraitHasMaybe: true, SelfHasMaybe: true,
			Members: []decl.Source{fn("read")},
		},
	}
	m, diags := decl.Build(append(src, extra...), decl.Options{})
	require.Empty(t, diags)
	return m
}

func TestBuild_Components(t *testing.T) {
	g, diags := Build(fileModel(t))
	require.Empty(t, diags)

	comps := g.Components()
	require.Len(t, comps, 2)
	assert.Equal(t, decl.ID("File"), comps[0].Root)
	assert.Equal(t, []decl.ID{"File", "File::open", "File::poll", "impl Read for File", "<File as Read>::read"}, comps[0].Members)
	assert.Equal(t, decl.ID("Read"), comps[1].Root)
	for _, c := range comps {
		assert.False(t, c.Failed)
	}

	c, ok := g.ComponentOf("<File as Read>::read")
	require.True(t, ok)
	assert.Same(t, comps[0], c)

	e, ok := g.Edge("File::poll")
	require.True(t, ok)
	assert.Equal(t, EdgeFixed, e.Kind)
	e, _ = g.Edge("impl Read for File")
	assert.Equal(t, EdgeInherit, e.Kind)
	assert.Equal(t, decl.ID("File"), e.Parent)
}

func TestReadMethodsAreTraitChildren(t *testing.T) {
	g, _ := Build(fileModel(t))
	c, ok := g.ComponentOf("Read::read")
	require.True(t, ok)
	assert.Equal(t, decl.ID("Read"), c.Root)
}

func TestPropagationConsistency(t *testing.T) {
	g, diags := Build(fileModel(t))
	require.Empty(t, diags)

	root, _ := g.ComponentOf("File")
	for _, a := range effect.Enumerate(root.Set) {
		for _, id := range root.Members {
			if e, _ := g.Edge(id); e.Kind == EdgeFixed {
				continue
			}
			got, ok := g.MemberAssignment(id, a)
			require.True(t, ok, "%s under %s", id, a)
			assert.True(t, got.Equal(a), "%s: %s != %s", id, got, a)
		}
	}
}

func TestEffectSpecificMember(t *testing.T) {
	g, _ := Build(fileModel(t))
	set := effect.MustSet(effect.Async)

	_, ok := g.MemberAssignment("File::poll", effect.AllAbsent(set))
	assert.False(t, ok)

	a, ok := g.MemberAssignment("File::poll", effect.Of(set, effect.Async))
	require.True(t, ok)
	assert.True(t, a.Has(effect.Async))

	assert.Len(t, g.Assignments("File::poll"), 1)
	assert.Len(t, g.Assignments("File::open"), 2)

	assert.True(t, g.FixedKinds("File::poll").Equal(set))
	assert.True(t, g.FixedKinds("File::open").IsEmpty())
	assert.True(t, g.FixedKinds("File").IsEmpty())
}

func TestSpecificImplChildren(t *testing.T) {
	m := fileModel(t, decl.Source{
		Kind: decl.KindImpl, Self: "File", Specific: async,
		Members: []decl.Source{fn("wake")},
	})
	g, diags := Build(m)
	require.Empty(t, diags)

	set := effect.MustSet(effect.Async)
	_, ok := g.MemberAssignment("File::wake", effect.AllAbsent(set))
	assert.False(t, ok)
	_, ok = g.MemberAssignment("File::wake", effect.Of(set, effect.Async))
	assert.True(t, ok)
	assert.True(t, g.FixedKinds("File::wake").Equal(set), "methods of a specific impl inherit its fixed kinds")
}

func TestBuild_Mismatches(t *testing.T) {
	tests := []struct {
		name string
		src  []decl.Source
		kind errors.Kind
		rule string
		id   decl.ID
	}{
		{
			name: "impl without annotation on generic type",
			src: []decl.Source{
				{Kind: decl.KindType, Name: "File", Maybe: async, HasMaybe: true},
				{Kind: decl.KindTrait, Name: "Close"},
				{Kind: decl.KindImpl, Trait: "Close", Self: "File"},
			},
			kind: errors.KindEffectMismatch,
			rule: "impl-unmarked",
			id:   "impl Close for File",
		},
		{
			name: "method narrows its parent",
			src: []decl.Source{{
				Kind: decl.KindType, Name: "File", Maybe: async, HasMaybe: true,
				Members: []decl.Source{{Kind: decl.KindFunction, Name: "sync_only", HasMaybe: true}},
			}},
			kind: errors.KindEffectMismatch,
			rule: "child-narrowing",
			id:   "File::sync_only",
		},
		{
			name: "method generic over kind parent lacks",
			src: []decl.Source{{
				Kind: decl.KindType, Name: "Path",
				Members: []decl.Source{{Kind: decl.KindFunction, Name: "read", Maybe: async, HasMaybe: true}},
			}},
			kind: errors.KindEffectMismatch,
			rule: "child-subset",
			id:   "Path::read",
		},
		{
			name: "fixed kind parent lacks",
			src: []decl.Source{{
				Kind: decl.KindType, Name: "Path",
				Members: []decl.Source{{Kind: decl.KindFunction, Name: "poll", Specific: async}},
			}},
			kind: errors.KindDeclaration,
			rule: "fixed-kind",
			id:   "Path::poll",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, mdiags := decl.Build(tt.src, decl.Options{})
			require.Empty(t, mdiags)

			g, diags := Build(m)
			require.Len(t, diags, 1, "%v", diags)
			assert.Equal(t, tt.kind, diags[0].Kind)
			assert.Equal(t, tt.rule, diags[0].Rule)
			assert.Equal(t, string(tt.id), diags[0].Decl)
			assert.True(t, g.Failed(tt.id))

			c, ok := g.ComponentOf(tt.id)
			require.True(t, ok)
			assert.True(t, c.Failed)
		})
	}
}

func TestBuild_Cycle(t *testing.T) {
	src := []decl.Source{
		{Kind: decl.KindFunction, Name: "a", Scope: "b"},
		{Kind: decl.KindFunction, Name: "b", Scope: "a"},
		{Kind: decl.KindFunction, Name: "c", Scope: "a"},
		{Kind: decl.KindFunction, Name: "main"},
	}
	m, mdiags := decl.Build(src, decl.Options{})
	require.Empty(t, mdiags)

	g, diags := Build(m)
	require.Len(t, diags, 2)
	for _, d := range diags {
		assert.Equal(t, errors.KindPropagationCycle, d.Kind)
	}
	assert.True(t, g.Failed("a"))
	assert.True(t, g.Failed("b"))
	assert.True(t, g.Failed("c"))
	assert.False(t, g.Failed("main"))

	_, ok := g.ComponentOf("a")
	assert.False(t, ok)
	require.Len(t, g.Components(), 1)
	assert.Equal(t, decl.ID("main"), g.Components()[0].Root)
}
