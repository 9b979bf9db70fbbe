package mono

import (
	"github.com/wippyai/effectgen/decl"
	"github.com/wippyai/effectgen/effect"
	"github.com/wippyai/effectgen/errors"
)

func (c *Catalog) lower(d *decl.Declaration, a effect.Assignment) (*Variant, *errors.Error) {
	v := &Variant{
		Key:        KeyOf(d.ID, a),
		Source:     d,
		Assignment: a,
		Name:       c.name(d, a),
		Parent:     c.parentKey(d, a),
	}

	var err *errors.Error
	switch d.Kind {
	case decl.KindType:
		err = c.lowerType(v)
	case decl.KindTrait:
		err = c.lowerTrait(v)
	case decl.KindImpl:
		err = c.lowerImpl(v)
	case decl.KindFunction:
		err = c.lowerFunc(v)
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (c *Catalog) setOf(id decl.ID) effect.Set {
	if s, ok := c.graph.EffectiveSet(id); ok {
		return s
	}
	if d, ok := c.graph.Model().Get(id); ok {
		return d.Effects
	}
	return effect.Set{}
}

func (c *Catalog) parentKey(d *decl.Declaration, a effect.Assignment) Key {
	if !d.Parent.IsValid() || !c.setOf(d.Parent).Equal(a.Set()) {
		return Key{}
	}
	return KeyOf(d.Parent, a)
}

// name renders a variant name: "File<async>", "File<async>::open",
// "impl Read<async> for File<async>", "<File<async> as Read<async>>::read".
func (c *Catalog) name(d *decl.Declaration, a effect.Assignment) string {
	m := c.graph.Model()
	switch d.Kind {
	case decl.KindImpl:
		self := c.selfName(d) + suffix(a)
		if tr, ok := m.Get(d.Trait); ok {
			return "impl " + tr.Name + suffix(a.Extend(c.setOf(tr.ID))) + " for " + self
		}
		return "impl " + self

	case decl.KindFunction:
		p, ok := m.Get(d.Parent)
		if !ok {
			break
		}
		if p.Kind == decl.KindImpl {
			self := c.selfName(p) + suffix(a)
			if tr, ok := m.Get(p.Trait); ok {
				return "<" + self + " as " + tr.Name + suffix(a.Extend(c.setOf(tr.ID))) + ">::" + d.Name
			}
			return self + "::" + d.Name
		}
		return c.name(p, a.Extend(c.setOf(p.ID))) + "::" + d.Name
	}
	return d.Name + suffix(a)
}

func (c *Catalog) selfName(impl *decl.Declaration) string {
	if self, ok := c.graph.Model().Get(impl.Self); ok {
		return self.Name
	}
	return string(impl.Self)
}

func (c *Catalog) lowerType(v *Variant) *errors.Error {
	d, a := v.Source, v.Assignment
	tab, diags := c.Fields(d.ID)
	if fatal := diags.Fatal(); len(fatal) > 0 {
		return fatal[0]
	}
	capability, ok := tab.For(a)
	if !ok {
		return errors.New(errors.PhaseLower, errors.KindInvalidInput).
			At(d.Span).Decl(string(d.ID)).Assignments(a.String()).
			Detail("no capability for %s", a).Build()
	}
	own, err := tab.Own(a)
	if err != nil {
		return substitutionError(d, a, err)
	}
	v.Fields = append(own, decl.FieldSpec{Name: SlotField, Type: decl.Named(capability.Name), Span: d.Span})
	v.Capability = capability
	return nil
}

func (c *Catalog) lowerTrait(v *Variant) *errors.Error {
	d, a := v.Source, v.Assignment
	for _, item := range d.Assoc {
		if len(item.Defs) == 0 {
			// abstract: every impl defines it
			continue
		}
		t, err := selectDef(d, item, item.Defs, a)
		if err != nil {
			return err
		}
		v.Assoc = append(v.Assoc, AssocBinding{Name: item.Name, Type: t})
	}
	return nil
}

func (c *Catalog) lowerImpl(v *Variant) *errors.Error {
	d, a := v.Source, v.Assignment
	tr, ok := c.graph.Model().Get(d.Trait)
	if !ok {
		return nil
	}
	ta := a.Extend(c.setOf(tr.ID))
	v.Trait = KeyOf(tr.ID, ta)

	for _, item := range tr.Assoc {
		defs, under := item.Defs, ta
		if own, ok := d.AssocItem(item.Name); ok && len(own.Defs) > 0 {
			defs, under = own.Defs, a
		}
		if len(defs) == 0 {
			return errors.New(errors.PhaseLower, errors.KindUnresolvedEffectVariant).
				At(d.Span).Decl(string(d.ID)).Path(item.Name).Assignments(a.String()).
				Detail("%s defines no %s", d.ID, item.Name).Build()
		}
		t, err := selectDef(d, item, defs, under)
		if err != nil {
			return err
		}
		v.Assoc = append(v.Assoc, AssocBinding{Name: item.Name, Type: t})
	}
	return nil
}

// selectDef picks the one definition of an associated item whose cfg
// holds under a.
func selectDef(d *decl.Declaration, item decl.AssocItem, defs []decl.AssocDef, a effect.Assignment) (decl.TypeExpr, *errors.Error) {
	var match []decl.AssocDef
	for _, def := range defs {
		if effect.Eval(def.Cfg, a) {
			match = append(match, def)
		}
	}
	switch len(match) {
	case 0:
		span := item.Span
		if !span.IsValid() {
			span = d.Span
		}
		return decl.TypeExpr{}, errors.UnresolvedEffectVariant(span, string(d.ID), item.Name, a.String())
	case 1:
		t, err := match[0].Type.Substitute(a)
		if err != nil {
			return decl.TypeExpr{}, substitutionError(d, a, err)
		}
		return t, nil
	}
	return decl.TypeExpr{}, errors.New(errors.PhaseLower, errors.KindConflictingFieldCfg).
		At(match[1].Span).Decl(string(d.ID)).Path(item.Name).Rule("assoc-overlap").
		Assignments(a.String()).
		Detail("%d definitions of %s hold under %s", len(match), item.Name, a).Build()
}

func (c *Catalog) lowerFunc(v *Variant) *errors.Error {
	d, a := v.Source, v.Assignment
	owner, hasOwner := c.graph.Model().Owner(d.ID)
	concrete := func(t decl.TypeExpr) (decl.TypeExpr, *errors.Error) {
		out, err := t.Substitute(a)
		if err != nil {
			return decl.TypeExpr{}, substitutionError(d, a, err)
		}
		if hasOwner {
			out = c.replaceSelf(out, owner, a)
		}
		return out, nil
	}

	if d.Signature != nil {
		sig := &decl.Signature{}
		for _, p := range d.Signature.Params {
			t, err := concrete(p.Type)
			if err != nil {
				return err
			}
			sig.Params = append(sig.Params, decl.Param{Name: p.Name, Type: t})
		}
		if !d.Signature.Result.IsZero() {
			t, err := concrete(d.Signature.Result)
			if err != nil {
				return err
			}
			sig.Result = t
		}
		v.Signature = sig
	}

	for _, call := range d.Calls {
		if !effect.Eval(call.Cfg, a) {
			continue
		}
		if call.BindingType != nil {
			t, err := concrete(*call.BindingType)
			if err != nil {
				return err
			}
			call.BindingType = &t
		}
		call.Cfg = nil
		v.Calls = append(v.Calls, call)
	}
	return nil
}

// replaceSelf names the owner type in place of Self. A bare Self takes the
// owner's assignment.
func (c *Catalog) replaceSelf(t decl.TypeExpr, owner *decl.Declaration, a effect.Assignment) decl.TypeExpr {
	if t.Name == decl.SelfType {
		t.Name = owner.Name
		if len(t.Effects) == 0 {
			oa := a.Extend(c.setOf(owner.ID))
			for _, k := range oa.Set().Kinds() {
				mode := decl.ModeAbsent
				if oa.Has(k) {
					mode = decl.ModePresent
				}
				t.Effects = append(t.Effects, decl.EffectArg{Kind: k, Mode: mode})
			}
		}
	}
	if len(t.Args) > 0 {
		args := make([]decl.TypeExpr, len(t.Args))
		for i, arg := range t.Args {
			args[i] = c.replaceSelf(arg, owner, a)
		}
		t.Args = args
	}
	return t
}

func substitutionError(d *decl.Declaration, a effect.Assignment, err error) *errors.Error {
	return errors.New(errors.PhaseLower, errors.KindDeclaration).
		At(d.Span).Decl(string(d.ID)).Rule("substitution").
		Assignments(a.String()).Cause(err).Build()
}
