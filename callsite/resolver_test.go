package callsite

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/effectgen/decl"
	"github.com/wippyai/effectgen/effect"
	"github.com/wippyai/effectgen/errors"
	"github.com/wippyai/effectgen/mono"
	"github.com/wippyai/effectgen/propagate"
)

const throws effect.Kind = "throws"

var (
	asyncSet  = effect.MustSet(effect.Async)
	streamSet = effect.MustSet(effect.Async, throws)

	inAsync = Context{Caller: "handler", Assignment: effect.Of(asyncSet, effect.Async)}
	inSync  = Context{Caller: "handler", Assignment: effect.AllAbsent(asyncSet)}
	inMain  = Context{Caller: "main"}
)

func arg(k effect.Kind, present bool) decl.EffectArg {
	if present {
		return decl.EffectArg{Kind: k, Mode: decl.ModePresent}
	}
	return decl.EffectArg{Kind: k, Mode: decl.ModeAbsent}
}

func newResolver(t *testing.T) *Resolver {
	t.Helper()
	reg, err := effect.NewRegistry(effect.Def{Name: effect.Async, Marker: "await"}, effect.Def{Name: throws, Marker: "?"})
	require.NoError(t, err)

	self := decl.Named(decl.SelfType, decl.EffectArg{Kind: effect.Async, Mode: decl.ModeInherit})
	src := []decl.Source{
		{
			Kind: decl.KindType, Name: "Socket", Maybe: []effect.Kind{effect.Async}, HasMaybe: true,
			Fields: []decl.FieldSpec{{Name: "fd", Type: decl.Named("u32")}},
			Members: []decl.Source{
				{
					Kind: decl.KindFunction, Name: "connect",
					Signature: &decl.Signature{
						Params: []decl.Param{{Name: "addr", Type: decl.Named("string")}},
						Result: self,
					},
				},
				{Kind: decl.KindFunction, Name: "register", Specific: []effect.Kind{effect.Async}},
			},
		},
		{
			Kind: decl.KindType, Name: "Stream", Maybe: []effect.Kind{effect.Async, throws}, HasMaybe: true,
			Members: []decl.Source{{Kind: decl.KindFunction, Name: "open"}},
		},
		{Kind: decl.KindFunction, Name: "handler", Maybe: []effect.Kind{effect.Async}, HasMaybe: true},
		{Kind: decl.KindFunction, Name: "main"},
		{Kind: decl.KindFunction, Name: "log"},
	}
	m, diags := decl.Build(src, decl.Options{Registry: reg})
	require.Empty(t, diags)
	g, diags := propagate.Build(m)
	require.Empty(t, diags)
	return NewResolver(g)
}

func connect(markers ...string) decl.CallSite {
	return decl.CallSite{
		Target:  "Socket::connect",
		Text:    "Socket::connect(addr)",
		Markers: markers,
		Span:    errors.Span{File: "net.yaml", Line: 12, Col: 5},
	}
}

func TestResolve_MarkerInGenericCaller(t *testing.T) {
	r := newResolver(t)

	res := r.Resolve(connect("await"), inAsync)
	require.Equal(t, Resolved, res.State, "%v", res.Err)
	assert.True(t, res.Assignment.Equal(effect.Of(asyncSet, effect.Async)))
	assert.Equal(t, mono.Key{Decl: "Socket::connect", Assignment: "async"}, res.Target)
	assert.Equal(t, []Step{{Kind: effect.Async, Value: true, Source: FromMarker}}, res.Steps)
}

func TestResolve_AmbiguousWithoutContext(t *testing.T) {
	r := newResolver(t)

	res := r.Resolve(connect(), inMain)
	require.Equal(t, Ambiguous, res.State)
	require.NotNil(t, res.Err)
	assert.Equal(t, errors.KindAmbiguousEffectInference, res.Err.Kind)
	assert.Equal(t, []string{"async"}, res.Err.Effects)
	assert.Equal(t, []string{"<!async>", "<async>"}, res.Err.Candidates)
	assert.Equal(t, "main", res.Err.Decl)
	assert.Equal(t, 12, res.Err.Span.Line)
	assert.True(t, res.Target.IsZero())
}

func TestResolve_InheritsFromCaller(t *testing.T) {
	r := newResolver(t)

	res := r.Resolve(connect(), inSync)
	require.Equal(t, Resolved, res.State)
	assert.True(t, res.Assignment.IsAllAbsent())
	assert.Equal(t, []Step{{Kind: effect.Async, Value: false, Source: FromContext}}, res.Steps)

	res = r.Resolve(connect(), inAsync)
	require.Equal(t, Resolved, res.State)
	assert.Equal(t, "async", res.Target.Assignment)
}

func TestResolve_ExplicitOverridesContext(t *testing.T) {
	r := newResolver(t)
	site := connect()
	site.Explicit = []decl.EffectArg{arg(effect.Async, true)}

	for _, ctx := range []Context{inSync, inAsync, inMain} {
		res := r.Resolve(site, ctx)
		require.Equal(t, Resolved, res.State)
		assert.Equal(t, "async", res.Target.Assignment)
		assert.Equal(t, FromExplicit, res.Steps[0].Source)
	}
}

func TestResolve_BindingType(t *testing.T) {
	r := newResolver(t)

	t.Run("agrees", func(t *testing.T) {
		site := connect()
		bt := decl.Named("Socket", arg(effect.Async, false))
		site.BindingType = &bt
		site.Explicit = []decl.EffectArg{arg(effect.Async, false)}

		res := r.Resolve(site, inAsync)
		require.Equal(t, Resolved, res.State)
		assert.Equal(t, "!async", res.Target.Assignment)
	})

	t.Run("alone", func(t *testing.T) {
		site := connect()
		bt := decl.Named("Socket", arg(effect.Async, true))
		site.BindingType = &bt

		res := r.Resolve(site, inMain)
		require.Equal(t, Resolved, res.State)
		assert.Equal(t, []Step{{Kind: effect.Async, Value: true, Source: FromBinding}}, res.Steps)
	})

	t.Run("inherits", func(t *testing.T) {
		site := connect()
		bt := decl.Named("Socket", decl.EffectArg{Kind: effect.Async, Mode: decl.ModeInherit})
		site.BindingType = &bt

		res := r.Resolve(site, inAsync)
		require.Equal(t, Resolved, res.State)
		assert.Equal(t, FromBinding, res.Steps[0].Source)
	})

	t.Run("other type is ignored", func(t *testing.T) {
		site := connect()
		bt := decl.Named("Stream", arg(effect.Async, true))
		site.BindingType = &bt

		res := r.Resolve(site, inMain)
		assert.Equal(t, Ambiguous, res.State)
	})
}

func TestResolve_ConflictingExplicit(t *testing.T) {
	r := newResolver(t)
	site := connect()
	bt := decl.Named("Socket", arg(effect.Async, true))
	site.BindingType = &bt
	site.Explicit = []decl.EffectArg{arg(effect.Async, false)}

	res := r.Resolve(site, inAsync)
	require.Equal(t, Failed, res.State)
	assert.Equal(t, errors.KindEffectMismatch, res.Err.Kind)
	assert.Equal(t, errors.PhaseResolve, res.Err.Phase)
	assert.Equal(t, "explicit-agree", res.Err.Rule)
	assert.Equal(t, []string{"<async>", "<!async>"}, res.Err.Assignments)
	assert.True(t, res.Target.IsZero())
}

func TestResolve_Contradictions(t *testing.T) {
	r := newResolver(t)

	tests := []struct {
		name string
		site decl.CallSite
		kind errors.Kind
		rule string
	}{
		{
			name: "marker against explicit",
			site: decl.CallSite{Target: "Socket::connect", Explicit: []decl.EffectArg{arg(effect.Async, false)}, Markers: []string{"await"}},
			kind: errors.KindEffectMismatch,
			rule: "marker",
		},
		{
			name: "explicit against specific",
			site: decl.CallSite{Target: "Socket::register", Explicit: []decl.EffectArg{arg(effect.Async, false)}},
			kind: errors.KindEffectMismatch,
			rule: "explicit-specific",
		},
		{
			name: "explicit kind outside callee",
			site: decl.CallSite{Target: "Socket::connect", Explicit: []decl.EffectArg{arg(throws, true)}},
			kind: errors.KindEffectMismatch,
			rule: "explicit-kind",
		},
		{
			name: "unknown callee",
			site: decl.CallSite{Target: "Socket::close"},
			kind: errors.KindNotFound,
			rule: "callee",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := r.Resolve(tt.site, inAsync)
			require.Equal(t, Failed, res.State)
			require.NotNil(t, res.Err)
			assert.Equal(t, tt.kind, res.Err.Kind)
			assert.Equal(t, tt.rule, res.Err.Rule)
			assert.Equal(t, "handler", res.Err.Decl)
		})
	}
}

func TestResolve_EffectSpecificCallee(t *testing.T) {
	r := newResolver(t)

	res := r.Resolve(decl.CallSite{Target: "Socket::register"}, inMain)
	require.Equal(t, Resolved, res.State)
	assert.Equal(t, "async", res.Target.Assignment)
	assert.Equal(t, FromSpecific, res.Steps[0].Source)
}

func TestResolve_NonGenericCallee(t *testing.T) {
	r := newResolver(t)

	res := r.Resolve(decl.CallSite{Target: "log"}, inMain)
	require.Equal(t, Resolved, res.State)
	assert.Equal(t, mono.Key{Decl: "log"}, res.Target)
	assert.Empty(t, res.Steps)
}

func TestLocal_Partial(t *testing.T) {
	r := newResolver(t)
	site := decl.CallSite{Target: "Stream::open", Markers: []string{"await"}}

	res := r.Local(site, inAsync)
	require.Equal(t, Partial, res.State)
	assert.Equal(t, "<async, ?throws>", res.Known.String())

	res = r.Resolve(site, inAsync)
	require.Equal(t, Ambiguous, res.State)
	assert.Equal(t, []string{"throws"}, res.Err.Effects)
	assert.Equal(t, []string{"<async, !throws>", "<async, throws>"}, res.Err.Candidates)

	site.Markers = append(site.Markers, "?")
	res = r.Resolve(site, inMain)
	require.Equal(t, Resolved, res.State)
	assert.True(t, res.Assignment.Equal(effect.Of(streamSet, effect.Async, throws)))
}

func TestLocal_Unresolved(t *testing.T) {
	r := newResolver(t)
	res := r.Local(connect(), inAsync)
	assert.Equal(t, Unresolved, res.State)
	assert.Nil(t, res.Err)
}

func TestResolve_Deterministic(t *testing.T) {
	r := newResolver(t)
	sites := []decl.CallSite{connect(), connect("await"), {Target: "Stream::open", Markers: []string{"?"}}}

	want := make([]Resolution, len(sites))
	for i, s := range sites {
		want[i] = r.Resolve(s, inSync)
	}

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := len(sites) - 1; i >= 0; i-- {
				got := r.Resolve(sites[i], inSync)
				assert.Equal(t, want[i].State, got.State)
				assert.Equal(t, want[i].Target, got.Target)
				assert.Equal(t, want[i].Steps, got.Steps)
			}
		}()
	}
	wg.Wait()
}
