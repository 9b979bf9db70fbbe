package compiler

import (
	"context"
	stderrors "errors"
	"runtime"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wippyai/effectgen/abi"
	"github.com/wippyai/effectgen/callsite"
	"github.com/wippyai/effectgen/decl"
	"github.com/wippyai/effectgen/effect"
	"github.com/wippyai/effectgen/errors"
	"github.com/wippyai/effectgen/mono"
	"github.com/wippyai/effectgen/propagate"
)

// Config holds configuration for a compiler.
type Config struct {
	// Registry lists the recognized effect kinds. Nil means async only.
	Registry *effect.Registry

	// Externs maps type names declared elsewhere to their layout.
	Externs map[string]decl.TypeExpr

	// Compat selects the legacy layouts the ABI check compares against.
	// Nil checks every recorded layout.
	Compat *semver.Constraints

	// Logger overrides the package logger.
	Logger *zap.Logger

	// Workers bounds the components processed at once. 0 means GOMAXPROCS.
	Workers int

	// Strict makes advisory diagnostics block compilation.
	Strict bool
}

// Compiler lowers compilation units. It keeps no state between units and
// may be used from several goroutines.
type Compiler struct {
	cfg Config
	log *zap.Logger
}

func New(cfg Config) *Compiler {
	log := cfg.Logger
	if log == nil {
		log = Logger()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	return &Compiler{cfg: cfg, log: log}
}

// Binding is one call site of a function variant and what it resolved to.
type Binding struct {
	Caller     mono.Key
	Site       decl.CallSite
	Resolution callsite.Resolution
}

// Result is the outcome of one compilation unit. Diagnostics are sorted
// and include advisory ones; use Err for the blocking subset.
type Result struct {
	Unit        uuid.UUID
	Model       *decl.Model
	Graph       *propagate.Graph
	Catalog     *mono.Catalog
	Checker     *abi.Checker
	Bindings    []Binding
	Diagnostics errors.List
	strict      bool
}

// Err returns a *errors.BatchError when a diagnostic blocks compilation.
func (r *Result) Err() error {
	return r.Diagnostics.Err(r.strict)
}

// Compile builds the declaration model, lowers every component that
// passed validation, checks legacy layouts and resolves every call site.
// Structural failures stop only the component they occur in; all
// diagnostics are reported together. On cancellation the catalog is
// discarded and ctx.Err() returned.
func (c *Compiler) Compile(ctx context.Context, sources []decl.Source) (*Result, error) {
	unit := uuid.New()
	log := c.log.With(zap.Stringer("unit", unit))

	var diags errors.List
	model, md := decl.Build(sources, decl.Options{Registry: c.cfg.Registry, Externs: c.cfg.Externs})
	diags.Append(md)
	graph, gd := propagate.Build(model)
	diags.Append(gd)

	cat := mono.NewCatalog(graph, log)
	res := &Result{
		Unit:    unit,
		Model:   model,
		Graph:   graph,
		Catalog: cat,
		Checker: abi.NewChecker(cat, c.cfg.Compat, log),
		strict:  c.cfg.Strict,
	}

	cd, err := c.components(ctx, res, log)
	if err != nil {
		cat.Discard()
		return nil, err
	}
	diags.Append(cd)

	bindings, bd, err := c.bindings(ctx, res)
	if err != nil {
		cat.Discard()
		return nil, err
	}
	res.Bindings = bindings
	diags.Append(bd)

	res.Diagnostics = diags.Dedupe().Sorted()
	log.Info("compilation finished",
		zap.Int("declarations", len(model.All())),
		zap.Int("components", len(graph.Components())),
		zap.Int("variants", cat.Len()),
		zap.Int("bindings", len(res.Bindings)),
		zap.Int("errors", len(res.Diagnostics.Fatal())),
		zap.Int("warnings", len(res.Diagnostics.Warnings())),
	)
	return res, nil
}

// components runs field resolution, lowering and the ABI check for each
// component on the worker pool.
func (c *Compiler) components(ctx context.Context, res *Result, log *zap.Logger) (errors.List, error) {
	comps := res.Graph.Components()
	out := make([]errors.List, len(comps))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Workers)
	for i, comp := range comps {
		if comp.Failed {
			if ce := log.Check(zap.DebugLevel, "component skipped"); ce != nil {
				ce.Write(zap.String("root", string(comp.Root)))
			}
			continue
		}
		g.Go(func() error {
			diags, err := c.component(gctx, res, comp, log)
			out[i] = diags
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var diags errors.List
	for _, d := range out {
		diags.Append(d)
	}
	return diags, nil
}

func (c *Compiler) component(ctx context.Context, res *Result, comp *propagate.Component, log *zap.Logger) (errors.List, error) {
	var diags errors.List
	var types []*decl.Declaration
	for _, id := range comp.Members {
		if d, ok := res.Model.Get(id); ok && d.Kind == decl.KindType {
			types = append(types, d)
		}
	}

	for _, d := range types {
		_, fd := res.Catalog.Fields(d.ID)
		diags.Append(fd)
	}
	if diags.HasFatal() {
		return diags, nil
	}

	variants, ld := res.Catalog.LowerComponent(ctx, comp)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	diags.Append(ld)
	if ld.HasFatal() {
		return diags, nil
	}

	for _, d := range types {
		diags.Append(res.Checker.Check(d))
	}
	if ce := log.Check(zap.DebugLevel, "component lowered"); ce != nil {
		ce.Write(zap.String("root", string(comp.Root)), zap.Int("variants", len(variants)), zap.Int("diagnostics", diags.Len()))
	}
	return diags, nil
}

// bindings resolves the call sites of every function variant and demands
// the variant each one binds to.
func (c *Compiler) bindings(ctx context.Context, res *Result) ([]Binding, errors.List, error) {
	resolver := callsite.NewResolver(res.Graph)

	var callers []*mono.Variant
	for _, v := range res.Catalog.Variants() {
		if v.Source.Kind == decl.KindFunction && len(v.Calls) > 0 {
			callers = append(callers, v)
		}
	}

	out := make([][]Binding, len(callers))
	errs := make([]errors.List, len(callers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Workers)
	for i, v := range callers {
		g.Go(func() error {
			cctx := callsite.Context{Caller: v.Source.ID, Assignment: v.Assignment}
			for _, site := range v.Calls {
				if err := gctx.Err(); err != nil {
					return err
				}
				r := resolver.Resolve(site, cctx)
				if r.State == callsite.Resolved {
					if _, err := res.Catalog.Get(r.Target.Decl, r.Assignment); err != nil {
						errs[i].Add(asError(err, r.Target))
					}
				} else if r.Err != nil {
					errs[i].Add(r.Err)
				}
				out[i] = append(out[i], Binding{Caller: v.Key, Site: site, Resolution: r})
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var (
		bindings []Binding
		diags    errors.List
	)
	for i := range callers {
		bindings = append(bindings, out[i]...)
		diags.Append(errs[i])
	}
	return bindings, diags, nil
}

func asError(err error, k mono.Key) *errors.Error {
	var e *errors.Error
	if stderrors.As(err, &e) {
		return e
	}
	return errors.Wrap(errors.PhaseResolve, errors.KindInvalidData, err, "demand "+k.String())
}
