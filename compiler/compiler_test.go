package compiler

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/effectgen/callsite"
	"github.com/wippyai/effectgen/decl"
	"github.com/wippyai/effectgen/effect"
	"github.com/wippyai/effectgen/errors"
	"github.com/wippyai/effectgen/mono"
)

var (
	async   = []effect.Kind{effect.Async}
	isAsync = effect.Is{Kind: effect.Async}
)

func socket(extra ...decl.FieldSpec) decl.Source {
	return decl.Source{
		Kind: decl.KindType, Name: "Socket", Maybe: async, HasMaybe: true,
		Fields: append([]decl.FieldSpec{
			{Name: "fd", Type: decl.Named("u32")},
			{Name: "waker", Type: decl.Named("u64"), Cfg: isAsync},
		}, extra...),
		Legacy: []decl.LegacyLayout{{
			Version: "1.0.0",
			Fields:  []decl.LegacyField{{Name: "fd", Type: decl.Named("u32")}},
		}},
		Members: []decl.Source{{
			Kind: decl.KindFunction, Name: "connect",
			Signature: &decl.Signature{
				Params: []decl.Param{{Name: "addr", Type: decl.Named("string")}},
				Result: decl.Named(decl.SelfType, decl.EffectArg{Kind: effect.Async, Mode: decl.ModeInherit}),
			},
		}},
	}
}

func fn(name string, generic bool, calls ...decl.CallSite) decl.Source {
	s := decl.Source{Kind: decl.KindFunction, Name: name, Calls: calls}
	if generic {
		s.Maybe, s.HasMaybe = async, true
	}
	return s
}

func call(text, target string, line int, markers ...string) decl.CallSite {
	return decl.CallSite{Target: target, Text: text, Markers: markers, Span: errors.Span{File: "net.yaml", Line: line}}
}

func TestNew_Defaults(t *testing.T) {
	c := New(Config{})
	assert.Positive(t, c.cfg.Workers)
	assert.NotNil(t, c.log)
}

func TestCompile(t *testing.T) {
	src := []decl.Source{
		socket(),
		fn("serve", true, call("Socket::connect(addr)", "Socket::connect", 20)),
		fn("main", false, call("Socket::connect(addr).await", "Socket::connect", 30, "await")),
	}
	res, err := New(Config{Workers: 2}).Compile(context.Background(), src)
	require.NoError(t, err)
	require.NoError(t, res.Err())
	assert.NotEqual(t, uuid.Nil, res.Unit)

	// Socket x2, Socket::connect x2, serve x2, main x1
	assert.Equal(t, 7, res.Catalog.Len())

	require.Len(t, res.Bindings, 3)
	targets := make(map[mono.Key]mono.Key)
	for _, b := range res.Bindings {
		require.Equal(t, callsite.Resolved, b.Resolution.State)
		targets[b.Caller] = b.Resolution.Target
	}
	assert.Equal(t, mono.Key{Decl: "Socket::connect", Assignment: "async"}, targets[mono.Key{Decl: "serve", Assignment: "async"}])
	assert.Equal(t, mono.Key{Decl: "Socket::connect", Assignment: "!async"}, targets[mono.Key{Decl: "serve", Assignment: "!async"}])
	assert.Equal(t, mono.Key{Decl: "Socket::connect", Assignment: "async"}, targets[mono.Key{Decl: "main"}])
}

func TestCompile_Ambiguous(t *testing.T) {
	src := []decl.Source{
		socket(),
		fn("main", false, call("Socket::connect(addr)", "Socket::connect", 30)),
	}
	res, err := New(Config{}).Compile(context.Background(), src)
	require.NoError(t, err)

	require.Len(t, res.Diagnostics, 1)
	d := res.Diagnostics[0]
	assert.Equal(t, errors.KindAmbiguousEffectInference, d.Kind)
	assert.Equal(t, []string{"async"}, d.Effects)
	assert.Equal(t, []string{"<!async>", "<async>"}, d.Candidates)

	var batch *errors.BatchError
	require.ErrorAs(t, res.Err(), &batch)
	assert.Len(t, batch.Items, 1)
}

func TestCompile_IsolatesComponents(t *testing.T) {
	broken := decl.Source{
		Kind: decl.KindType, Name: "Broken", Maybe: async, HasMaybe: true,
		Fields: []decl.FieldSpec{
			{Name: "blocking", Type: decl.Named("u8"), Cfg: effect.Not{X: isAsync}},
			{Name: "blocking", Type: decl.Named("u16"), Cfg: effect.Not{X: isAsync}},
		},
	}
	unknown := decl.Source{Kind: decl.KindType, Name: "Bad", Maybe: []effect.Kind{"io"}, HasMaybe: true}

	res, err := New(Config{}).Compile(context.Background(), []decl.Source{socket(), broken, unknown})
	require.NoError(t, err)

	assert.True(t, res.Diagnostics.HasKind(errors.KindConflictingFieldCfg))
	assert.True(t, res.Diagnostics.HasKind(errors.KindDeclaration))
	assert.Error(t, res.Err())

	_, ok := res.Catalog.Lookup(mono.Key{Decl: "Socket", Assignment: "!async"})
	assert.True(t, ok, "independent component must still lower")
	_, ok = res.Catalog.Lookup(mono.Key{Decl: "Broken", Assignment: "!async"})
	assert.False(t, ok)
}

func TestCompile_LayoutMismatch(t *testing.T) {
	res, err := New(Config{}).Compile(context.Background(), []decl.Source{
		socket(decl.FieldSpec{Name: "flags", Type: decl.Named("u8")}),
	})
	require.NoError(t, err)

	mismatches := res.Diagnostics.OfKind(errors.KindLayoutMismatch)
	require.NotEmpty(t, mismatches)
	assert.Equal(t, "legacy@1.0.0", mismatches[0].Rule)
	assert.True(t, errors.HasKind(res.Err(), errors.KindLayoutMismatch))
}

func TestCompile_DeadFieldIsAdvisory(t *testing.T) {
	dead := decl.FieldSpec{
		Name: "never", Type: decl.Named("u8"),
		Cfg: effect.All{isAsync, effect.Not{X: isAsync}},
	}
	src := []decl.Source{socket(dead)}

	res, err := New(Config{}).Compile(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, errors.KindDeadField, res.Diagnostics[0].Kind)
	assert.NoError(t, res.Err())

	res, err = New(Config{Strict: true}).Compile(context.Background(), src)
	require.NoError(t, err)
	assert.Error(t, res.Err())
}

func TestCompile_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := New(Config{}).Compile(ctx, []decl.Source{socket()})
	assert.Nil(t, res)
	assert.True(t, stderrors.Is(err, context.Canceled))
}

func TestCompile_Concurrent(t *testing.T) {
	c := New(Config{Workers: 4})
	src := []decl.Source{socket(), fn("serve", true, call("Socket::connect(addr)", "Socket::connect", 20))}

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := c.Compile(context.Background(), src)
			if assert.NoError(t, err) {
				assert.Equal(t, 6, res.Catalog.Len())
				assert.NoError(t, res.Err())
			}
		}()
	}
	wg.Wait()
}

func TestCompile_Logs(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	res, err := New(Config{Logger: zap.New(core)}).Compile(context.Background(), []decl.Source{socket()})
	require.NoError(t, err)

	entries := logs.FilterMessage("compilation finished").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, res.Unit.String(), fields["unit"])
	assert.EqualValues(t, 4, fields["variants"])
}

func TestCompile_ComponentLogsCarryUnit(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	res, err := New(Config{Logger: zap.New(core)}).Compile(context.Background(), []decl.Source{socket()})
	require.NoError(t, err)

	entries := logs.FilterMessage("component lowered").All()
	require.NotEmpty(t, entries)
	for _, e := range entries {
		assert.Equal(t, res.Unit.String(), e.ContextMap()["unit"])
	}
}
