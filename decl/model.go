package decl

import (
	"fmt"
	"sort"
	"strings"

	"github.com/wippyai/effectgen/effect"
	"github.com/wippyai/effectgen/errors"
)

// Options configures Build.
type Options struct {
	Registry *effect.Registry
	// Externs are named types declared outside the model, such as a
	// platform handle, given as an alias for a concrete type.
	Externs map[string]TypeExpr
}

// Model is the read-only declaration model of one compilation unit.
type Model struct {
	registry *effect.Registry
	decls    map[ID]*Declaration
	children map[ID][]ID
	failed   map[ID]bool
	externs  map[string]TypeExpr
	types    map[string]ID
	traits   map[string]ID
	order    []ID
}

// Build constructs and validates the model. Every violation is reported;
// declarations with violations stay in the model marked failed so that
// dependent passes can skip their component.
func Build(sources []Source, opts Options) (*Model, errors.List) {
	reg := opts.Registry
	if reg == nil {
		reg = effect.DefaultRegistry()
	}
	b := &builder{
		m: &Model{
			registry: reg,
			decls:    make(map[ID]*Declaration),
			children: make(map[ID][]ID),
			failed:   make(map[ID]bool),
			externs:  make(map[string]TypeExpr, len(opts.Externs)),
			types:    make(map[string]ID),
			traits:   make(map[string]ID),
		},
		sources: make(map[ID]*Source),
	}
	for name, t := range opts.Externs {
		b.m.externs[name] = t
	}

	for i := range sources {
		b.add(&sources[i], nil)
	}
	b.link()
	for _, id := range b.m.order {
		b.validate(b.m.decls[id])
	}
	return b.m, b.diags
}

type builder struct {
	m       *Model
	sources map[ID]*Source
	diags   errors.List
}

func (b *builder) fail(id ID, err *errors.Error) {
	if id.IsValid() {
		b.m.failed[id] = true
	}
	b.diags.Add(err)
}

func (b *builder) add(s *Source, parent *Declaration) {
	d := &Declaration{
		Kind:      s.Kind,
		Name:      s.Name,
		Span:      s.Span,
		Fields:    s.Fields,
		Assoc:     s.Assoc,
		Signature: s.Signature,
		Calls:     s.Calls,
		Legacy:    s.Legacy,
	}

	switch s.Kind {
	case KindType, KindTrait:
		d.ID = ID(s.Name)
		if parent != nil {
			b.fail(parent.ID, errors.Declaration(s.Span, string(parent.ID), "nesting",
				fmt.Sprintf("%s %s cannot be nested in %s", s.Kind, s.Name, parent.ID)))
			return
		}
	case KindImpl:
		d.ID = b.uniqueImplID(implID(s))
		d.Parent = ID(s.Self)
		if parent != nil {
			b.fail(parent.ID, errors.Declaration(s.Span, string(parent.ID), "nesting",
				"impl blocks cannot be nested"))
			return
		}
	case KindFunction:
		if parent == nil {
			d.ID = ID(s.Name)
			d.Parent = s.Scope
		} else {
			d.ID = methodID(parent, s)
			d.Parent = parent.ID
		}
	}

	if _, dup := b.m.decls[d.ID]; dup {
		b.fail(d.ID, errors.Declaration(s.Span, string(d.ID), "unique-identity",
			fmt.Sprintf("%s is declared more than once", d.ID)))
		return
	}

	b.buildEffects(d, s)

	b.m.decls[d.ID] = d
	b.m.order = append(b.m.order, d.ID)
	b.sources[d.ID] = s
	switch d.Kind {
	case KindType:
		b.m.types[d.Name] = d.ID
	case KindTrait:
		b.m.traits[d.Name] = d.ID
	}
	if d.Parent.IsValid() && d.Kind != KindImpl {
		b.m.children[d.Parent] = append(b.m.children[d.Parent], d.ID)
	}

	for i := range s.Members {
		m := &s.Members[i]
		if m.Kind != KindFunction {
			b.fail(d.ID, errors.Declaration(m.Span, string(d.ID), "nesting",
				fmt.Sprintf("only functions can be members of %s", d.ID)))
			continue
		}
		b.add(m, d)
	}
}

func (b *builder) buildEffects(d *Declaration, s *Source) {
	kinds := s.Maybe
	hasMaybe := s.HasMaybe
	if s.Kind == KindImpl {
		hasMaybe = s.TraitHasMaybe || s.SelfHasMaybe
		if s.Trait != "" && s.TraitHasMaybe != s.SelfHasMaybe {
			b.fail(d.ID, errors.Declaration(s.Span, string(d.ID), "impl-annotations-agree",
				"#[maybe] must annotate both the trait and the type of an impl"))
		}
		kinds = s.SelfMaybe
		if s.Trait != "" {
			traitSet, errT := effect.NewSet(s.TraitMaybe...)
			selfSet, errS := effect.NewSet(s.SelfMaybe...)
			if errT == nil && errS == nil && !traitSet.Equal(selfSet) {
				b.fail(d.ID, errors.Declaration(s.Span, string(d.ID), "impl-annotations-agree",
					fmt.Sprintf("trait annotated %s but type annotated %s", traitSet, selfSet)))
			}
			if len(s.TraitMaybe) > len(kinds) {
				kinds = s.TraitMaybe
			}
		}
	}

	d.Effects = b.kindSet(d, s.Span, kinds, "#[maybe]")
	d.Fixed = b.kindSet(d, s.Span, s.Specific, "effect-specific")

	switch {
	case s.Kind == KindImpl:
		d.Explicit = hasMaybe || len(s.Specific) == 0
	case s.Kind == KindFunction && d.Parent.IsValid():
		d.Explicit = hasMaybe
	default:
		d.Explicit = true
	}

	if len(s.Specific) > 0 {
		if hasMaybe {
			b.fail(d.ID, errors.Declaration(s.Span, string(d.ID), "specific-or-maybe",
				"a declaration is either #[maybe] or effect-specific, not both"))
		}
		if !d.Parent.IsValid() {
			b.fail(d.ID, errors.Declaration(s.Span, string(d.ID), "specific-scope",
				"only members of an effect-generic declaration can be effect-specific"))
		}
	}
}

// kindSet enforces rules (a) recognized kinds and (c) no duplicates.
func (b *builder) kindSet(d *Declaration, span errors.Span, kinds []effect.Kind, what string) effect.Set {
	var ok []effect.Kind
	seen := make(map[effect.Kind]bool, len(kinds))
	for _, k := range kinds {
		if !b.m.registry.Has(k) {
			b.fail(d.ID, errors.Declaration(span, string(d.ID), "recognized-kind",
				fmt.Sprintf("%s names unknown effect %q", what, k)))
			continue
		}
		if seen[k] {
			b.fail(d.ID, errors.Declaration(span, string(d.ID), "duplicate-kind",
				fmt.Sprintf("%s lists %s more than once", what, k)))
			continue
		}
		seen[k] = true
		ok = append(ok, k)
	}
	set, err := effect.NewSet(ok...)
	if err != nil {
		b.fail(d.ID, errors.Declaration(span, string(d.ID), "effect-set", err.Error()))
		return effect.Set{}
	}
	return set
}

func implID(s *Source) ID {
	var b strings.Builder
	b.WriteString("impl ")
	for _, k := range s.Specific {
		b.WriteString(string(k))
		b.WriteByte(' ')
	}
	if s.Trait != "" {
		b.WriteString(s.Trait)
		b.WriteString(" for ")
	}
	b.WriteString(s.Self)
	return ID(b.String())
}

func (b *builder) uniqueImplID(id ID) ID {
	if _, dup := b.m.decls[id]; !dup {
		return id
	}
	for n := 2; ; n++ {
		candidate := ID(fmt.Sprintf("%s#%d", id, n))
		if _, dup := b.m.decls[candidate]; !dup {
			return candidate
		}
	}
}

func methodID(parent *Declaration, s *Source) ID {
	if parent.Kind == KindImpl {
		src := parent.Parent
		if tr := implTraitName(parent); tr != "" {
			return ID(fmt.Sprintf("<%s as %s>::%s", src, tr, s.Name))
		}
		return ID(string(src) + "::" + s.Name)
	}
	return ID(string(parent.ID) + "::" + s.Name)
}

// implTraitName recovers the trait name from an impl ID before linking.
func implTraitName(impl *Declaration) string {
	id := strings.TrimPrefix(string(impl.ID), "impl ")
	if i := strings.Index(id, "#"); i >= 0 {
		id = id[:i]
	}
	before, _, found := strings.Cut(id, " for ")
	if !found {
		return ""
	}
	fields := strings.Fields(before)
	return fields[len(fields)-1]
}

func (b *builder) link() {
	for _, id := range b.m.order {
		d := b.m.decls[id]
		s := b.sources[id]
		switch d.Kind {
		case KindImpl:
			if s.Trait != "" {
				tid, ok := b.m.traits[s.Trait]
				if !ok {
					b.fail(d.ID, errors.Declaration(s.Span, string(d.ID), "impl-target",
						fmt.Sprintf("trait %q is not declared", s.Trait)))
				} else {
					d.Trait = tid
				}
			}
			sid, ok := b.m.types[s.Self]
			if !ok {
				b.fail(d.ID, errors.Declaration(s.Span, string(d.ID), "impl-target",
					fmt.Sprintf("type %q is not declared", s.Self)))
				d.Parent = NoID
				continue
			}
			d.Self = sid
			d.Parent = sid
			b.m.children[sid] = append(b.m.children[sid], d.ID)
		case KindFunction:
			if s.Scope.IsValid() {
				if _, ok := b.m.decls[s.Scope]; !ok {
					b.fail(d.ID, errors.Declaration(s.Span, string(d.ID), "unknown-scope",
						fmt.Sprintf("scope %q is not declared", s.Scope)))
				}
			}
		}
	}
}

// scopeSet is the set a declaration's predicates and inherit arguments
// are checked against: its own explicit set, else its parent's.
func (b *builder) scopeSet(d *Declaration) (effect.Set, bool) {
	seen := make(map[ID]bool)
	for cur := d; cur != nil; {
		if seen[cur.ID] {
			return effect.Set{}, false
		}
		seen[cur.ID] = true
		if cur.Explicit || !cur.Parent.IsValid() {
			return cur.Effects, true
		}
		next, ok := b.m.decls[cur.Parent]
		if !ok {
			return effect.Set{}, false
		}
		cur = next
	}
	return effect.Set{}, false
}

func (b *builder) validate(d *Declaration) {
	scope, scopeOK := b.scopeSet(d)

	if d.Kind == KindImpl {
		b.validateImpl(d)
	}
	if len(d.Fields) > 0 && d.Kind != KindType {
		b.fail(d.ID, errors.Declaration(d.Span, string(d.ID), "fields-on-type",
			"only types declare fields"))
	}
	if len(d.Legacy) > 0 && d.Kind != KindType {
		b.fail(d.ID, errors.Declaration(d.Span, string(d.ID), "legacy-on-type",
			"only types carry legacy layouts"))
	}
	if !scopeOK {
		// broken linkage is reported by the propagator
		return
	}

	for i, f := range d.Fields {
		if f.Name == ReservedField {
			b.fail(d.ID, errors.Declaration(f.Span, string(d.ID), "reserved-field",
				fmt.Sprintf("field name %q is reserved for the capability slot", f.Name)))
			continue
		}
		if err := effect.Check(f.Cfg, scope); err != nil {
			b.fail(d.ID, errors.ConflictingFieldCfg(f.Span, string(d.ID), []string{f.Name}, err.Error()))
			continue
		}
		for _, g := range d.Fields[:i] {
			if g.Name != f.Name || effect.Check(g.Cfg, scope) != nil {
				continue
			}
			if asg, overlap := effect.Overlap(g.Cfg, f.Cfg, scope); overlap {
				b.fail(d.ID, errors.New(errors.PhaseModel, errors.KindConflictingFieldCfg).
					At(f.Span).Decl(string(d.ID)).Path(f.Name).Rule("cfg-overlap").
					Assignments(asg.String()).
					Detail("field %s is declared twice under %s", f.Name, asg).
					Build())
			}
		}
		b.validateType(d, f.Span, f.Type, scope, false)
	}

	for _, item := range d.Assoc {
		for i, def := range item.Defs {
			if err := effect.Check(def.Cfg, scope); err != nil {
				b.fail(d.ID, errors.ConflictingFieldCfg(def.Span, string(d.ID), []string{item.Name}, err.Error()))
				continue
			}
			for _, prev := range item.Defs[:i] {
				if effect.Check(prev.Cfg, scope) != nil {
					continue
				}
				if asg, overlap := effect.Overlap(prev.Cfg, def.Cfg, scope); overlap {
					b.fail(d.ID, errors.New(errors.PhaseModel, errors.KindConflictingFieldCfg).
						At(def.Span).Decl(string(d.ID)).Path(item.Name).Rule("assoc-overlap").
						Assignments(asg.String()).
						Detail("associated item %s has two definitions under %s", item.Name, asg).
						Build())
				}
			}
			b.validateType(d, def.Span, def.Type, scope, false)
		}
	}

	for _, t := range d.Signature.Types() {
		b.validateType(d, d.Span, t, scope, false)
	}

	for _, l := range d.Legacy {
		for _, f := range l.Fields {
			b.validateType(d, l.Span, f.Type, scope, true)
		}
	}

	for _, c := range d.Calls {
		if err := effect.Check(c.Cfg, scope); err != nil {
			b.fail(d.ID, errors.New(errors.PhaseModel, errors.KindConflictingFieldCfg).
				At(c.Span).Decl(string(d.ID)).Rule("branch-cfg").Cause(err).
				Detail("effect branch around %s", c).Build())
		}
		for _, a := range c.Explicit {
			if a.Mode == ModeInherit {
				b.fail(d.ID, errors.Declaration(c.Span, string(d.ID), "call-explicit",
					fmt.Sprintf("explicit call assignment %s must be concrete", a)))
			} else if !b.m.registry.Has(a.Kind) {
				b.fail(d.ID, errors.Declaration(c.Span, string(d.ID), "recognized-kind",
					fmt.Sprintf("call names unknown effect %q", a.Kind)))
			}
		}
		if c.BindingType != nil {
			b.validateType(d, c.Span, *c.BindingType, scope, false)
		}
	}
}

func (b *builder) validateImpl(d *Declaration) {
	if tr, ok := b.m.decls[d.Trait]; ok {
		if !d.Effects.IsSubsetOf(tr.Effects) {
			b.fail(d.ID, errors.Declaration(d.Span, string(d.ID), "impl-subset",
				fmt.Sprintf("impl effects %s are not a subset of trait %s effects %s", d.Effects, tr.ID, tr.Effects)))
		}
		for _, item := range d.Assoc {
			if _, declared := tr.AssocItem(item.Name); !declared {
				b.fail(d.ID, errors.Declaration(item.Span, string(d.ID), "assoc-undeclared",
					fmt.Sprintf("trait %s declares no associated item %s", tr.ID, item.Name)))
			}
		}
	} else if len(d.Assoc) > 0 && !d.Trait.IsValid() {
		b.fail(d.ID, errors.Declaration(d.Span, string(d.ID), "assoc-undeclared",
			"inherent impls cannot define associated items"))
	}
	if ty, ok := b.m.decls[d.Self]; ok && !d.Effects.IsSubsetOf(ty.Effects) {
		b.fail(d.ID, errors.Declaration(d.Span, string(d.ID), "impl-subset",
			fmt.Sprintf("impl effects %s are not a subset of type %s effects %s", d.Effects, ty.ID, ty.Effects)))
	}
}

func (b *builder) validateType(d *Declaration, span errors.Span, t TypeExpr, scope effect.Set, legacy bool) {
	t.Walk(func(x TypeExpr) {
		if arity, ok := constructors[x.Name]; ok {
			n := len(x.Args)
			bad := (arity > 0 && n != arity) || (arity == -2 && (n < 1 || n > 2))
			if bad || len(x.Effects) > 0 {
				b.fail(d.ID, errors.Declaration(span, string(d.ID), "type-arity",
					fmt.Sprintf("malformed %s in %s", x.Name, t)))
			}
			return
		}
		if IsPrimitive(x.Name) {
			if len(x.Args) > 0 || len(x.Effects) > 0 {
				b.fail(d.ID, errors.Declaration(span, string(d.ID), "type-arity",
					fmt.Sprintf("%s takes no arguments", x.Name)))
			}
			return
		}

		var target effect.Set
		switch {
		case x.Name == SelfType && d.Kind != KindType && d.Kind != KindTrait:
			target = scope
		default:
			if tid, ok := b.m.types[x.Name]; ok {
				target = b.m.decls[tid].Effects
			} else if _, ok := b.m.externs[x.Name]; !ok {
				b.fail(d.ID, errors.Declaration(span, string(d.ID), "unknown-type",
					fmt.Sprintf("type %q is not declared", x.Name)))
				return
			}
		}
		if len(x.Args) > 0 {
			b.fail(d.ID, errors.Declaration(span, string(d.ID), "type-arity",
				fmt.Sprintf("%s takes effect arguments only", x.Name)))
		}
		for _, e := range x.Effects {
			switch {
			case !target.Contains(e.Kind):
				b.fail(d.ID, errors.Declaration(span, string(d.ID), "type-effect-arg",
					fmt.Sprintf("%s is not generic over %s", x.Name, e.Kind)))
			case e.Mode == ModeInherit && legacy:
				b.fail(d.ID, errors.Declaration(span, string(d.ID), "type-effect-arg",
					fmt.Sprintf("legacy layouts are not effect-generic: %s", x)))
			case e.Mode == ModeInherit && !scope.Contains(e.Kind):
				b.fail(d.ID, errors.Declaration(span, string(d.ID), "type-effect-arg",
					fmt.Sprintf("%s inherits %s, which %s is not generic over", x, e.Kind, d.ID)))
			}
		}
	})
}

func (m *Model) Registry() *effect.Registry { return m.registry }

// Get returns the declaration with the given identity.
func (m *Model) Get(id ID) (*Declaration, bool) {
	d, ok := m.decls[id]
	return d, ok
}

// All returns every declaration in source order.
func (m *Model) All() []*Declaration {
	out := make([]*Declaration, len(m.order))
	for i, id := range m.order {
		out[i] = m.decls[id]
	}
	return out
}

// Children returns the declarations scoped directly to id, in source order.
func (m *Model) Children(id ID) []*Declaration {
	ids := m.children[id]
	out := make([]*Declaration, 0, len(ids))
	for _, c := range ids {
		out = append(out, m.decls[c])
	}
	return out
}

// Failed reports whether id was rejected by validation.
func (m *Model) Failed(id ID) bool { return m.failed[id] }

// Extern returns the alias of an extern type.
func (m *Model) Extern(name string) (TypeExpr, bool) {
	t, ok := m.externs[name]
	return t, ok
}

// Type returns the Type declaration with the given name.
func (m *Model) Type(name string) (*Declaration, bool) {
	id, ok := m.types[name]
	if !ok {
		return nil, false
	}
	return m.decls[id], true
}

// Owner returns the Type a declaration belongs to: itself for a Type,
// the implemented type for an impl, and the owner of the parent for a method.
func (m *Model) Owner(id ID) (*Declaration, bool) {
	seen := make(map[ID]bool)
	for cur, ok := m.decls[id]; ok; cur, ok = m.decls[cur.Parent] {
		if seen[cur.ID] {
			return nil, false
		}
		seen[cur.ID] = true
		if cur.Kind == KindType {
			return cur, true
		}
		if cur.Kind == KindImpl {
			return m.Get(cur.Self)
		}
	}
	return nil, false
}

// ResolveCallee finds the function a call-site path refers to. An exact
// identity wins; otherwise "Type::method" searches the type's inherent
// members first, then its trait impls.
func (m *Model) ResolveCallee(path string) (*Declaration, error) {
	if d, ok := m.decls[ID(path)]; ok {
		return d, nil
	}
	owner, method, found := cutLast(path, "::")
	if !found {
		return nil, fmt.Errorf("function %q is not declared", path)
	}
	tid, ok := m.types[owner]
	if !ok {
		return nil, fmt.Errorf("type %q is not declared", owner)
	}

	var inherent, viaTrait []*Declaration
	for _, c := range m.Children(tid) {
		switch c.Kind {
		case KindFunction:
			if c.Name == method {
				inherent = append(inherent, c)
			}
		case KindImpl:
			for _, fn := range m.Children(c.ID) {
				if fn.Name != method {
					continue
				}
				if c.Trait.IsValid() {
					viaTrait = append(viaTrait, fn)
				} else {
					inherent = append(inherent, fn)
				}
			}
		}
	}
	for _, group := range [][]*Declaration{inherent, viaTrait} {
		switch len(group) {
		case 0:
			continue
		case 1:
			return group[0], nil
		default:
			ids := make([]string, len(group))
			for i, g := range group {
				ids[i] = string(g.ID)
			}
			sort.Strings(ids)
			return nil, fmt.Errorf("%s is ambiguous: %s", path, strings.Join(ids, ", "))
		}
	}
	return nil, fmt.Errorf("%s has no method %q", owner, method)
}

func cutLast(s, sep string) (before, after string, found bool) {
	i := strings.LastIndex(s, sep)
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+len(sep):], true
}
