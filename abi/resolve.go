package abi

import (
	"fmt"
	"strings"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/effectgen/decl"
	"github.com/wippyai/effectgen/effect"
	"github.com/wippyai/effectgen/mono"
)

// resolver converts lowered type expressions into WIT types. Type
// references become records of the referenced variant's fields; arguments
// not given are absent. Not safe for concurrent use.
type resolver struct {
	catalog  *mono.Catalog
	model    *decl.Model
	records  map[mono.Key]*wit.TypeDef
	visiting map[string]bool
}

func newResolver(cat *mono.Catalog) *resolver {
	return &resolver{
		catalog:  cat,
		model:    cat.Graph().Model(),
		records:  make(map[mono.Key]*wit.TypeDef),
		visiting: make(map[string]bool),
	}
}

func (r *resolver) witType(t decl.TypeExpr) (wit.Type, error) {
	switch {
	case t.IsZero():
		return nil, fmt.Errorf("empty type")
	case decl.IsPrimitive(t.Name):
		return wit.ParseType(t.Name)
	case decl.IsConstructor(t.Name):
		return r.constructor(t)
	}

	if alias, ok := r.model.Extern(t.Name); ok {
		if r.visiting[t.Name] {
			return nil, fmt.Errorf("extern %s refers to itself", t.Name)
		}
		r.visiting[t.Name] = true
		defer delete(r.visiting, t.Name)
		return r.witType(alias)
	}

	v, err := r.variant(t)
	if err != nil {
		return nil, err
	}
	return r.record(v)
}

func (r *resolver) constructor(t decl.TypeExpr) (wit.Type, error) {
	args := make([]wit.Type, len(t.Args))
	for i, a := range t.Args {
		w, err := r.witType(a)
		if err != nil {
			return nil, err
		}
		args[i] = w
	}

	var kind wit.TypeDefKind
	switch t.Name {
	case "list":
		kind = &wit.List{Type: args[0]}
	case "option":
		kind = &wit.Option{Type: args[0]}
	case "future":
		kind = &wit.Future{Type: args[0]}
	case "own":
		kind = &wit.Own{}
	case "borrow":
		kind = &wit.Borrow{}
	case "tuple":
		kind = &wit.Tuple{Types: args}
	case "result":
		res := &wit.Result{OK: args[0]}
		if len(args) > 1 {
			res.Err = args[1]
		}
		kind = res
	default:
		return nil, fmt.Errorf("unknown constructor %s", t.Name)
	}
	return &wit.TypeDef{Kind: kind}, nil
}

// variant demands the Type variant a reference names.
func (r *resolver) variant(t decl.TypeExpr) (*mono.Variant, error) {
	d, ok := r.model.Type(t.Name)
	if !ok {
		return nil, fmt.Errorf("%s is not a type", t.Name)
	}
	a, err := r.assignment(d, t)
	if err != nil {
		return nil, err
	}
	return r.catalog.Get(d.ID, a)
}

func (r *resolver) assignment(d *decl.Declaration, t decl.TypeExpr) (effect.Assignment, error) {
	set, ok := r.catalog.Graph().EffectiveSet(d.ID)
	if !ok {
		return effect.Assignment{}, fmt.Errorf("%s has no effective set", d.ID)
	}
	values := make(map[effect.Kind]bool, set.Len())
	for _, k := range set.Kinds() {
		values[k] = false
	}
	for _, e := range t.Effects {
		if e.Mode == decl.ModeInherit {
			return effect.Assignment{}, fmt.Errorf("%s is not concrete", t)
		}
		values[e.Kind] = e.Mode == decl.ModePresent
	}
	return effect.FromMap(set, values)
}

func (r *resolver) record(v *mono.Variant) (*wit.TypeDef, error) {
	if td, ok := r.records[v.Key]; ok {
		return td, nil
	}
	name := v.Key.String()
	if r.visiting[name] {
		return nil, fmt.Errorf("%s contains itself", v.Name)
	}
	r.visiting[name] = true
	defer delete(r.visiting, name)

	fields := make([]wit.Field, 0, len(v.Fields))
	for _, f := range v.Fields {
		var (
			w   wit.Type
			err error
		)
		if f.Name == mono.SlotField && v.Capability != nil {
			w, err = r.capability(v.Capability.Fields)
		} else {
			w, err = r.witType(f.Type)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: field %s: %w", v.Name, f.Name, err)
		}
		fields = append(fields, wit.Field{Name: f.Name, Type: w})
	}
	td := &wit.TypeDef{Kind: &wit.Record{Fields: fields}}
	r.records[v.Key] = td
	return td, nil
}

// capability lays out the conditional fields a capability record holds.
func (r *resolver) capability(specs []decl.FieldSpec) (*wit.TypeDef, error) {
	fields := make([]wit.Field, 0, len(specs))
	for _, f := range specs {
		w, err := r.witType(f.Type)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		fields = append(fields, wit.Field{Name: f.Name, Type: w})
	}
	return &wit.TypeDef{Kind: &wit.Record{Fields: fields}}, nil
}

// canonical renders t with externs expanded and every effect argument of
// a reference spelled out, so equal layouts compare equal as text.
func (r *resolver) canonical(t decl.TypeExpr) string {
	if alias, ok := r.model.Extern(t.Name); ok && !r.visiting[t.Name] {
		r.visiting[t.Name] = true
		defer delete(r.visiting, t.Name)
		return r.canonical(alias)
	}
	if len(t.Args) > 0 {
		parts := make([]string, len(t.Args))
		for i, a := range t.Args {
			parts[i] = r.canonical(a)
		}
		return t.Name + "<" + strings.Join(parts, ", ") + ">"
	}
	if d, ok := r.model.Type(t.Name); ok {
		if a, err := r.assignment(d, t); err == nil {
			if a.Set().IsEmpty() {
				return t.Name
			}
			return t.Name + a.String()
		}
	}
	return t.String()
}
