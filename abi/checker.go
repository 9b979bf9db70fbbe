package abi

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
	"go.bytecodealliance.org/wit"
	"go.uber.org/zap"

	"github.com/wippyai/effectgen/abi/internal/layout"
	"github.com/wippyai/effectgen/decl"
	"github.com/wippyai/effectgen/effect"
	"github.com/wippyai/effectgen/errors"
	"github.com/wippyai/effectgen/mono"
)

// FieldLayout is the placement of one field of a lowered type.
type FieldLayout struct {
	Name   string
	Type   string
	Offset uint32
	Size   uint32
	Align  uint32
}

// Layout is the Canonical ABI layout of a type variant.
type Layout struct {
	Fields []FieldLayout
	Size   uint32
	Align  uint32
}

// Checker verifies that the all-absent variant of each type keeps the
// layout the type had before it became effect-generic.
type Checker struct {
	catalog *mono.Catalog
	compat  *semver.Constraints
	log     *zap.Logger
}

// NewChecker creates a checker. A nil compat checks every legacy layout.
func NewChecker(cat *mono.Catalog, compat *semver.Constraints, log *zap.Logger) *Checker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Checker{catalog: cat, compat: compat, log: log}
}

// Layout computes the layout of a type variant. The capability slot is
// laid out as a record of the capability's fields.
func (c *Checker) Layout(v *mono.Variant) (Layout, error) {
	if v.Source.Kind != decl.KindType {
		return Layout{}, fmt.Errorf("%s is a %s, not a type", v.Name, v.Source.Kind)
	}
	r := newResolver(c.catalog)
	td, err := r.record(v)
	if err != nil {
		return Layout{}, err
	}
	info := layout.NewCalculator().Calculate(td)
	out := Layout{Size: info.Size, Align: info.Align, Fields: make([]FieldLayout, len(info.Fields))}
	for i, f := range info.Fields {
		out.Fields[i] = FieldLayout{
			Name:   f.Name,
			Type:   v.Fields[i].Type.String(),
			Offset: f.Offset,
			Size:   f.Size,
			Align:  f.Align,
		}
	}
	return out, nil
}

// Check compares the all-absent variant of d with every legacy layout
// whose version satisfies the compatibility range. Declarations without
// legacy layouts always pass.
func (c *Checker) Check(d *decl.Declaration) errors.List {
	if d.Kind != decl.KindType || len(d.Legacy) == 0 {
		return nil
	}
	set, ok := c.catalog.Graph().EffectiveSet(d.ID)
	if !ok {
		return nil
	}
	a := effect.AllAbsent(set)
	v, err := c.catalog.Get(d.ID, a)
	if err != nil {
		var diags errors.List
		diags.Add(errors.Wrap(errors.PhaseABI, errors.KindInvalidInput, err, "lowering "+string(d.ID)))
		return diags
	}

	var diags errors.List
	for _, legacy := range d.Legacy {
		ver, err := semver.NewVersion(legacy.Version)
		if err != nil {
			diags.Add(errors.New(errors.PhaseABI, errors.KindInvalidInput).
				At(legacy.Span).Decl(string(d.ID)).Value(legacy.Version).Cause(err).
				Detail("legacy version %q", legacy.Version).Build())
			continue
		}
		if c.compat != nil && !c.compat.Check(ver) {
			if ce := c.log.Check(zap.DebugLevel, "legacy layout outside compat range"); ce != nil {
				ce.Write(zap.String("decl", string(d.ID)), zap.String("version", legacy.Version))
			}
			continue
		}
		diags.Append(c.compare(v, legacy))
	}
	if diags.Len() == 0 {
		c.log.Debug("layout preserved", zap.String("decl", string(d.ID)), zap.String("variant", v.Name))
	}
	return diags
}

func (c *Checker) compare(v *mono.Variant, legacy decl.LegacyLayout) errors.List {
	var diags errors.List
	mismatch := func(path string, format string, args ...any) {
		b := errors.New(errors.PhaseABI, errors.KindLayoutMismatch).
			At(legacy.Span).
			Decl(string(v.Source.ID)).
			Rule("legacy@" + legacy.Version).
			Assignments(v.Assignment.String())
		if path != "" {
			b = b.Path(path)
		}
		diags.Add(b.Detail(format, args...).Build())
	}

	if v.Capability != nil && !v.Capability.IsEmpty() {
		mismatch(mono.SlotField, "capability %s of %s is not empty", v.Capability.Name, v.Name)
	}

	r := newResolver(c.catalog)
	current := v.Fields
	if n := len(current); n > 0 && current[n-1].Name == mono.SlotField {
		current = current[:n-1]
	}
	if len(current) != len(legacy.Fields) {
		mismatch("", "%s has %d fields, legacy layout has %d", v.Name, len(current), len(legacy.Fields))
	}
	for i := 0; i < min(len(current), len(legacy.Fields)); i++ {
		got, want := current[i], legacy.Fields[i]
		if got.Name != want.Name {
			mismatch(want.Name, "field %d is %s, legacy layout has %s", i, got.Name, want.Name)
			continue
		}
		if g, w := r.canonical(got.Type), r.canonical(want.Type); g != w {
			mismatch(want.Name, "type %s, legacy layout has %s", g, w)
		}
	}
	if diags.HasFatal() {
		return diags
	}

	td, err := r.record(v)
	if err != nil {
		mismatch("", "%v", err)
		return diags
	}
	legacyFields := make([]wit.Field, 0, len(legacy.Fields))
	for _, f := range legacy.Fields {
		w, err := r.witType(f.Type)
		if err != nil {
			mismatch(f.Name, "%v", err)
			return diags
		}
		legacyFields = append(legacyFields, wit.Field{Name: f.Name, Type: w})
	}

	calc := layout.NewCalculator()
	got := calc.Calculate(td)
	want := calc.Calculate(&wit.TypeDef{Kind: &wit.Record{Fields: legacyFields}})
	for _, wf := range want.Fields {
		gf, _ := got.Field(wf.Name)
		if gf.Offset != wf.Offset || gf.Size != wf.Size {
			mismatch(wf.Name, "offset %d size %d, legacy layout has offset %d size %d", gf.Offset, gf.Size, wf.Offset, wf.Size)
		}
	}
	if slot, ok := got.Field(mono.SlotField); ok && slot.Size != 0 {
		mismatch(mono.SlotField, "capability slot occupies %d bytes", slot.Size)
	}
	if got.Size != want.Size || got.Align != want.Align {
		mismatch("", "size %d align %d, legacy layout has size %d align %d", got.Size, got.Align, want.Size, want.Align)
	}
	return diags
}
