package fields

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/wippyai/effectgen/decl"
	"github.com/wippyai/effectgen/effect"
	"github.com/wippyai/effectgen/errors"
)

// Capability is the synthesized companion type holding the conditional
// fields present under one or more assignments. Assignments that yield
// the same shape share one Capability.
type Capability struct {
	Name        string
	Fields      []decl.FieldSpec // concrete types
	Assignments []effect.Assignment
	Hash        uint64
}

// IsEmpty reports whether the capability has no fields and so has zero size.
func (c *Capability) IsEmpty() bool { return len(c.Fields) == 0 }

// Table is the field partition of one Type declaration.
type Table struct {
	Set          effect.Set
	Decl         decl.ID
	Always       []decl.FieldSpec // present under every assignment
	Baseline     []decl.FieldSpec // present when no effect is active, but not always
	Conditional  []decl.FieldSpec // present only when some effect is active
	Dead         []decl.FieldSpec // present under none
	Capabilities []*Capability
	own          []decl.FieldSpec // Always and Baseline in declaration order
	byKey        map[string]*Capability
}

// For returns the capability synthesized for a. Assignments over the same
// kinds in a different order find the same capability.
func (t *Table) For(a effect.Assignment) (*Capability, bool) {
	if !a.Set().Equal(t.Set) {
		return nil, false
	}
	c, ok := t.byKey[a.Extend(t.Set).Key()]
	return c, ok
}

// Own lists the fields a variant carries inline under a, with types
// substituted: every Always field and the Baseline fields whose cfg holds,
// in declaration order.
func (t *Table) Own(a effect.Assignment) ([]decl.FieldSpec, error) {
	var out []decl.FieldSpec
	for _, f := range t.own {
		if f.Cfg != nil && !f.Cfg.Eval(a) {
			continue
		}
		typ, err := f.Type.Substitute(a)
		if err != nil {
			return nil, err
		}
		out = append(out, decl.FieldSpec{Name: f.Name, Type: typ, Span: f.Span})
	}
	return out, nil
}

// CapabilityName names the capability of a type: "FileFields" for the
// empty shape, "FileFields1", "FileFields2", ... otherwise.
func CapabilityName(typeName string, n int) string {
	if n == 0 {
		return typeName + "Fields"
	}
	return fmt.Sprintf("%sFields%d", typeName, n)
}

// Resolve partitions the fields of a Type declaration over every assignment
// of its effect set and synthesizes the capabilities.
func Resolve(d *decl.Declaration) (*Table, errors.List) {
	var diags errors.List
	t := &Table{
		Set:   d.Effects,
		Decl:  d.ID,
		byKey: make(map[string]*Capability),
	}

	// Fields present under all-absent stay inline so the pre-generic
	// layout survives; the capability only holds effect-only fields.
	absent := effect.AllAbsent(d.Effects)
	for _, f := range d.Fields {
		switch {
		case f.Cfg == nil || effect.Tautology(f.Cfg, d.Effects):
			t.Always = append(t.Always, f)
			t.own = append(t.own, f)
		case !effect.Satisfiable(f.Cfg, d.Effects):
			t.Dead = append(t.Dead, f)
			diags.Add(errors.DeadField(f.Span, string(d.ID), f.Name, f.Cfg.String()))
		case f.Cfg.Eval(absent):
			t.Baseline = append(t.Baseline, f)
			t.own = append(t.own, f)
		default:
			t.Conditional = append(t.Conditional, f)
		}
	}

	shapes := make(map[uint64][]*Capability)
	numbered := 0
	for _, a := range effect.Enumerate(d.Effects) {
		present, err := t.shape(a)
		if err != nil {
			diags.Add(errors.New(errors.PhaseFields, errors.KindDeclaration).
				Decl(string(d.ID)).Rule("substitution").Cause(err).
				Assignments(a.String()).Build())
			return t, diags
		}
		h := fingerprint(present)

		var c *Capability
		for _, cand := range shapes[h] {
			if sameShape(cand.Fields, present) {
				c = cand
				break
			}
		}
		if c == nil {
			n := 0
			if len(present) > 0 {
				numbered++
				n = numbered
			}
			c = &Capability{Name: CapabilityName(d.Name, n), Fields: present, Hash: h}
			shapes[h] = append(shapes[h], c)
			t.Capabilities = append(t.Capabilities, c)
		}
		c.Assignments = append(c.Assignments, a)
		t.byKey[a.Key()] = c
	}
	return t, diags
}

// shape lists the conditional fields present under a, with types substituted.
func (t *Table) shape(a effect.Assignment) ([]decl.FieldSpec, error) {
	var out []decl.FieldSpec
	for _, f := range t.Conditional {
		if !f.Cfg.Eval(a) {
			continue
		}
		typ, err := f.Type.Substitute(a)
		if err != nil {
			return nil, err
		}
		out = append(out, decl.FieldSpec{Name: f.Name, Type: typ, Span: f.Span})
	}
	return out, nil
}

func fingerprint(fields []decl.FieldSpec) uint64 {
	var b strings.Builder
	for _, f := range fields {
		b.WriteString(f.Name)
		b.WriteByte(':')
		b.WriteString(f.Type.String())
		b.WriteByte(0)
	}
	return xxhash.Sum64String(b.String())
}

func sameShape(a, b []decl.FieldSpec) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name || a[i].Type.String() != b[i].Type.String() {
			return false
		}
	}
	return true
}
