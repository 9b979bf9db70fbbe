package callsite

import (
	"fmt"

	"github.com/wippyai/effectgen/decl"
	"github.com/wippyai/effectgen/effect"
	"github.com/wippyai/effectgen/errors"
	"github.com/wippyai/effectgen/mono"
	"github.com/wippyai/effectgen/propagate"
)

// State is the position of a call site in resolution.
type State int

const (
	Unresolved State = iota
	Partial          // some kinds known
	Resolved         // full assignment, terminal
	Ambiguous        // kinds left unknown, terminal
	Failed           // contradictory or unknown callee, terminal
)

func (s State) String() string {
	switch s {
	case Unresolved:
		return "unresolved"
	case Partial:
		return "partial"
	case Resolved:
		return "resolved"
	case Ambiguous:
		return "ambiguous"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Source says which rule determined a kind.
type Source int

const (
	FromSpecific Source = iota // callee is effect-specific
	FromExplicit               // turbofish on the call
	FromBinding                // declared type of the let binding
	FromMarker                 // postfix marker such as .await
	FromContext                // enclosing function's assignment
)

func (s Source) String() string {
	switch s {
	case FromSpecific:
		return "specific"
	case FromExplicit:
		return "explicit"
	case FromBinding:
		return "binding"
	case FromMarker:
		return "marker"
	case FromContext:
		return "context"
	}
	return "unknown"
}

// Step records one kind fixed during resolution.
type Step struct {
	Kind   effect.Kind
	Value  bool
	Source Source
}

// Context is the enclosing function of a call site. The zero Assignment
// means the caller is not effect-generic.
type Context struct {
	Caller     decl.ID
	Assignment effect.Assignment
}

// Resolution is the outcome of resolving one call site.
type Resolution struct {
	Callee     *decl.Declaration
	Err        *errors.Error
	Known      effect.Partial
	Assignment effect.Assignment
	Target     mono.Key
	Steps      []Step
	State      State
}

// Resolver binds call sites to variants. It only reads the propagation
// graph, so one resolver may serve any number of goroutines.
type Resolver struct {
	graph    *propagate.Graph
	registry *effect.Registry
}

func NewResolver(g *propagate.Graph) *Resolver {
	return &Resolver{graph: g, registry: g.Model().Registry()}
}

// Resolve determines the assignment a call site binds its callee to:
// explicit annotations first, then local markers, then the enclosing
// function's assignment. Kinds still unknown make the call ambiguous.
func (r *Resolver) Resolve(site decl.CallSite, ctx Context) Resolution {
	res := r.Local(site, ctx)
	if res.State != Partial && res.State != Unresolved {
		return res
	}

	for _, k := range res.Known.Unknown() {
		v, ok := ctx.Assignment.Lookup(k)
		if !ok {
			continue
		}
		res.Known, _ = res.Known.With(k, v)
		res.Steps = append(res.Steps, Step{Kind: k, Value: v, Source: FromContext})
	}
	if r.complete(&res) {
		return res
	}

	unknown := res.Known.Unknown()
	kinds := make([]string, len(unknown))
	for i, k := range unknown {
		kinds[i] = string(k)
	}
	cands := res.Known.Candidates()
	names := make([]string, len(cands))
	for i, c := range cands {
		names[i] = c.String()
	}
	res.State = Ambiguous
	res.Err = errors.AmbiguousEffectInference(site.Span, string(ctx.Caller), kinds, names)
	res.Err.Path = []string{site.String()}
	return res
}

// Local evaluates what the call site itself says: the callee's fixed
// kinds, explicit annotations and markers. It never consults the caller's
// assignment, so the result is Partial unless those fix every kind.
func (r *Resolver) Local(site decl.CallSite, ctx Context) Resolution {
	res := Resolution{State: Unresolved}
	fail := func(kind errors.Kind, rule, format string, args ...any) Resolution {
		res.State = Failed
		res.Err = errors.New(errors.PhaseResolve, kind).
			At(site.Span).Decl(string(ctx.Caller)).Rule(rule).Path(site.String()).
			Detail(format, args...).Build()
		return res
	}

	callee, err := r.graph.Model().ResolveCallee(site.Target)
	if err != nil {
		return fail(errors.KindNotFound, "callee", "%v", err)
	}
	res.Callee = callee
	if r.graph.Failed(callee.ID) {
		return fail(errors.KindInvalidInput, "callee-failed", "%s failed validation", callee.ID)
	}
	set, _ := r.graph.EffectiveSet(callee.ID)
	res.Known = effect.NewPartial(set)

	for _, k := range r.graph.FixedKinds(callee.ID).Kinds() {
		res.Known, _ = res.Known.With(k, true)
		res.Steps = append(res.Steps, Step{Kind: k, Value: true, Source: FromSpecific})
	}

	explicit, err := r.partial(site.Explicit, set, false)
	if err != nil {
		return fail(errors.KindEffectMismatch, "explicit-kind", "call %s: %v", site, err)
	}
	binding := effect.NewPartial(set)
	if site.BindingType != nil && r.names(*site.BindingType, callee) {
		bt, err := site.BindingType.Substitute(ctx.Assignment)
		if err != nil {
			return fail(errors.KindEffectMismatch, "binding-kind", "binding type %s: %v", site.BindingType, err)
		}
		binding, err = r.partial(bt.Effects, set, true)
		if err != nil {
			return fail(errors.KindEffectMismatch, "binding-kind", "binding type %s: %v", bt, err)
		}
	}
	for _, k := range explicit.Known() {
		ev, _ := explicit.Lookup(k)
		if bv, known := binding.Lookup(k); known && bv != ev {
			res.State = Failed
			res.Err = errors.EffectMismatch(errors.PhaseResolve, site.Span, string(ctx.Caller),
				fmt.Sprintf("binding type %s and call %s disagree on %s", site.BindingType, site, k),
				binding.String(), explicit.String())
			res.Err.Rule = "explicit-agree"
			res.Err.Path = []string{site.String()}
			return res
		}
	}

	for _, src := range []struct {
		p   effect.Partial
		src Source
	}{{explicit, FromExplicit}, {binding, FromBinding}} {
		for _, k := range src.p.Known() {
			v, _ := src.p.Lookup(k)
			if cur, known := res.Known.Lookup(k); known {
				if cur != v {
					return fail(errors.KindEffectMismatch, "explicit-specific",
						"%s exists only where %s is present", callee.ID, k)
				}
				continue
			}
			res.Known, _ = res.Known.With(k, v)
			res.Steps = append(res.Steps, Step{Kind: k, Value: v, Source: src.src})
		}
	}

	for _, m := range site.Markers {
		k, ok := r.registry.ByMarker(m)
		if !ok || !set.Contains(k) {
			continue
		}
		if v, known := res.Known.Lookup(k); known {
			if !v {
				return fail(errors.KindEffectMismatch, "marker", ".%s implies %s, which the call sets absent", m, k)
			}
			continue
		}
		res.Known, _ = res.Known.With(k, true)
		res.Steps = append(res.Steps, Step{Kind: k, Value: true, Source: FromMarker})
	}

	if !r.complete(&res) && !res.Known.IsEmpty() {
		res.State = Partial
	}
	return res
}

func (r *Resolver) complete(res *Resolution) bool {
	a, ok := res.Known.Complete()
	if !ok {
		return false
	}
	res.Assignment = a
	res.Target = mono.KeyOf(res.Callee.ID, a)
	res.State = Resolved
	return true
}

// partial collects concrete effect arguments over set. Binding types may
// name kinds of the owner the callee is not generic over; those are
// skipped.
func (r *Resolver) partial(args []decl.EffectArg, set effect.Set, lenient bool) (effect.Partial, error) {
	p := effect.NewPartial(set)
	for _, a := range args {
		if a.Mode == decl.ModeInherit {
			return p, fmt.Errorf("%s is not concrete", a)
		}
		if !set.Contains(a.Kind) {
			if lenient {
				continue
			}
			return p, fmt.Errorf("callee is not generic over %s", a.Kind)
		}
		next, err := p.With(a.Kind, a.Mode == decl.ModePresent)
		if err != nil {
			return p, err
		}
		p = next
	}
	return p, nil
}

// names reports whether a binding type annotates the callee, that is
// whether it names the type the callee is a method of.
func (r *Resolver) names(t decl.TypeExpr, callee *decl.Declaration) bool {
	owner, ok := r.graph.Model().Owner(callee.ID)
	return ok && owner.Name == t.Name
}
