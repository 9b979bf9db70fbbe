package decl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/effectgen/effect"
	"github.com/wippyai/effectgen/errors"
)

func fileSources() []Source {
	return []Source{
		{
			Kind:     KindType,
			Name:     "File",
			Maybe:    []effect.Kind{effect.Async},
			HasMaybe: true,
			Fields: []FieldSpec{
				{Name: "fd", Type: Named("u32")},
				{Name: "waker", Type: Named("u64"), Cfg: effect.Is{Kind: effect.Async}},
			},
			Members: []Source{
				{Kind: KindFunction, Name: "open", Signature: &Signature{
					Params: []Param{{Name: "path", Type: Named("string")}},
					Result: Named("Self", EffectArg{Kind: effect.Async, Mode: ModeInherit}),
				}},
			},
		},
		{
			Kind:     KindTrait,
			Name:     "Read",
			Maybe:    []effect.Kind{effect.Async},
			HasMaybe: true,
			Assoc:    []AssocItem{{Name: "Output"}},
			Members:  []Source{{Kind: KindFunction, Name: "read"}},
		},
		{
			Kind:          KindImpl,
			Trait:         "Read",
			Self:          "File",
			TraitMaybe:    []effect.Kind{effect.Async},
			SelfMaybe:     []effect.Kind{effect.Async},
			TraitHasMaybe: true,
			SelfHasMaybe:  true,
			Assoc: []AssocItem{{Name: "Output", Defs: []AssocDef{
				{Cfg: effect.Is{Kind: effect.Async}, Type: Ctor("future", Named("u32"))},
				{Cfg: effect.Not{X: effect.Is{Kind: effect.Async}}, Type: Named("u32")},
			}}},
			Members: []Source{{Kind: KindFunction, Name: "read"}},
		},
	}
}

func TestBuild_Valid(t *testing.T) {
	m, diags := Build(fileSources(), Options{})
	require.Empty(t, diags)

	file, ok := m.Get("File")
	require.True(t, ok)
	assert.Equal(t, KindType, file.Kind)
	assert.True(t, file.Effects.Equal(effect.MustSet(effect.Async)))

	open, ok := m.Get("File::open")
	require.True(t, ok)
	assert.Equal(t, ID("File"), open.Parent)
	assert.False(t, open.Explicit)

	impl, ok := m.Get("impl Read for File")
	require.True(t, ok)
	assert.Equal(t, ID("Read"), impl.Trait)
	assert.Equal(t, ID("File"), impl.Self)
	assert.True(t, impl.Explicit)

	_, ok = m.Get("<File as Read>::read")
	assert.True(t, ok)
	_, ok = m.Get("Read::read")
	assert.True(t, ok)

	var children []ID
	for _, c := range m.Children("File") {
		children = append(children, c.ID)
	}
	assert.Equal(t, []ID{"File::open", "impl Read for File"}, children)
}

func TestBuild_Violations(t *testing.T) {
	tests := []struct {
		name   string
		mutate func([]Source) []Source
		kind   errors.Kind
		rule   string
		failed ID
	}{
		{
			name: "unknown kind",
			mutate: func(s []Source) []Source {
				s[0].Maybe = []effect.Kind{"const"}
				return s
			},
			kind:   errors.KindDeclaration,
			rule:   "recognized-kind",
			failed: "File",
		},
		{
			name: "duplicate kind",
			mutate: func(s []Source) []Source {
				s[0].Maybe = []effect.Kind{effect.Async, effect.Async}
				return s
			},
			kind:   errors.KindDeclaration,
			rule:   "duplicate-kind",
			failed: "File",
		},
		{
			name: "impl annotations disagree",
			mutate: func(s []Source) []Source {
				s[2].SelfMaybe = nil
				return s
			},
			kind:   errors.KindDeclaration,
			rule:   "impl-annotations-agree",
			failed: "impl Read for File",
		},
		{
			name: "impl not subset of trait",
			mutate: func(s []Source) []Source {
				s[1].Maybe = nil
				s[1].HasMaybe = false
				s[1].Assoc = []AssocItem{{Name: "Output"}}
				return s
			},
			kind:   errors.KindDeclaration,
			rule:   "impl-subset",
			failed: "impl Read for File",
		},
		{
			name: "unknown trait",
			mutate: func(s []Source) []Source {
				s[2].Trait = "Write"
				return s
			},
			kind:   errors.KindDeclaration,
			rule:   "impl-target",
			failed: "impl Write for File",
		},
		{
			name: "predicate names kind outside set",
			mutate: func(s []Source) []Source {
				s[0].Maybe = nil
				s[0].HasMaybe = false
				s[2].SelfMaybe = nil
				s[2].TraitMaybe = nil
				s[2].SelfHasMaybe = false
				s[2].TraitHasMaybe = false
				return s
			},
			kind:   errors.KindConflictingFieldCfg,
			failed: "File",
		},
		{
			name: "overlapping same-named fields",
			mutate: func(s []Source) []Source {
				s[0].Fields = append(s[0].Fields, FieldSpec{Name: "waker", Type: Named("u32")})
				return s
			},
			kind:   errors.KindConflictingFieldCfg,
			rule:   "cfg-overlap",
			failed: "File",
		},
		{
			name: "overlapping associated definitions",
			mutate: func(s []Source) []Source {
				s[2].Assoc[0].Defs[1].Cfg = nil
				return s
			},
			kind:   errors.KindConflictingFieldCfg,
			rule:   "assoc-overlap",
			failed: "impl Read for File",
		},
		{
			name: "associated item not declared by trait",
			mutate: func(s []Source) []Source {
				s[2].Assoc[0].Name = "Error"
				return s
			},
			kind:   errors.KindDeclaration,
			rule:   "assoc-undeclared",
			failed: "impl Read for File",
		},
		{
			name: "unknown field type",
			mutate: func(s []Source) []Source {
				s[0].Fields[0].Type = Named("Handle")
				return s
			},
			kind:   errors.KindDeclaration,
			rule:   "unknown-type",
			failed: "File",
		},
		{
			name: "duplicate identity",
			mutate: func(s []Source) []Source {
				return append(s, Source{Kind: KindType, Name: "File"})
			},
			kind:   errors.KindDeclaration,
			rule:   "unique-identity",
			failed: "File",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, diags := Build(tt.mutate(fileSources()), Options{})
			require.True(t, diags.HasKind(tt.kind), "diagnostics: %v", diags)
			if tt.rule != "" {
				var rules []string
				for _, d := range diags {
					rules = append(rules, d.Rule)
				}
				assert.Contains(t, rules, tt.rule)
			}
			assert.True(t, m.Failed(tt.failed), "%s should be marked failed", tt.failed)
		})
	}
}

func TestBuild_CollectsAllViolations(t *testing.T) {
	src := []Source{
		{Kind: KindType, Name: "A", Maybe: []effect.Kind{"x"}, HasMaybe: true},
		{Kind: KindType, Name: "B", Maybe: []effect.Kind{"y"}, HasMaybe: true},
	}
	m, diags := Build(src, Options{})
	assert.Len(t, diags, 2)
	assert.True(t, m.Failed("A"))
	assert.True(t, m.Failed("B"))
}

func TestBuild_Externs(t *testing.T) {
	src := []Source{{
		Kind:   KindType,
		Name:   "Socket",
		Fields: []FieldSpec{{Name: "h", Type: Named("Handle")}},
	}}
	_, diags := Build(src, Options{Externs: map[string]TypeExpr{"Handle": Named("u32")}})
	assert.Empty(t, diags)
}

func TestBuild_SpecificImpl(t *testing.T) {
	src := fileSources()
	src = append(src, Source{
		Kind:     KindImpl,
		Self:     "File",
		Specific: []effect.Kind{effect.Async},
		Members:  []Source{{Kind: KindFunction, Name: "poll"}},
	})
	m, diags := Build(src, Options{})
	require.Empty(t, diags)

	impl, ok := m.Get("impl async File")
	require.True(t, ok)
	assert.True(t, impl.IsSpecific())
	assert.False(t, impl.Explicit)

	poll, err := m.ResolveCallee("File::poll")
	require.NoError(t, err)
	assert.Equal(t, ID("File::poll"), poll.ID)
}

func TestModel_ResolveCallee(t *testing.T) {
	m, diags := Build(fileSources(), Options{})
	require.Empty(t, diags)

	d, err := m.ResolveCallee("File::open")
	require.NoError(t, err)
	assert.Equal(t, ID("File::open"), d.ID)

	d, err = m.ResolveCallee("File::read")
	require.NoError(t, err)
	assert.Equal(t, ID("<File as Read>::read"), d.ID)

	_, err = m.ResolveCallee("File::write")
	assert.Error(t, err)

	_, err = m.ResolveCallee("Socket::open")
	assert.Error(t, err)
}

func TestModel_Owner(t *testing.T) {
	m, _ := Build(fileSources(), Options{})
	owner, ok := m.Owner("<File as Read>::read")
	require.True(t, ok)
	assert.Equal(t, ID("File"), owner.ID)

	_, ok = m.Owner("Read::read")
	assert.False(t, ok)
}
