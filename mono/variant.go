package mono

import (
	"github.com/wippyai/effectgen/decl"
	"github.com/wippyai/effectgen/effect"
	"github.com/wippyai/effectgen/fields"
)

// Key identifies a variant: a declaration under one assignment of its
// effective set.
type Key struct {
	Decl       decl.ID
	Assignment string // effect.Assignment.Key()
}

func KeyOf(id decl.ID, a effect.Assignment) Key {
	return Key{Decl: id, Assignment: a.Key()}
}

func (k Key) IsZero() bool { return !k.Decl.IsValid() }

func (k Key) String() string {
	if k.Assignment == "" {
		return string(k.Decl)
	}
	return string(k.Decl) + " @ " + k.Assignment
}

// SlotField is the name of the capability slot appended to type variants.
const SlotField = decl.ReservedField

// AssocBinding is the concrete definition an associated item takes in
// one variant.
type AssocBinding struct {
	Name string
	Type decl.TypeExpr
}

// Variant is a concrete declaration produced by substituting one
// assignment into a generic declaration. Variants are shared and must not
// be modified.
type Variant struct {
	Key        Key
	Source     *decl.Declaration
	Assignment effect.Assignment
	Name       string

	// Types: the inline fields present under this assignment, followed by
	// the capability slot.
	Fields     []decl.FieldSpec
	Capability *fields.Capability

	// Traits and impls.
	Assoc []AssocBinding
	Trait Key

	// Functions.
	Signature *decl.Signature
	Calls     []decl.CallSite

	// Parent is the variant this one was lowered with. It is zero for
	// roots and for impls narrower than the type they implement.
	Parent Key
}

// AssocType returns the definition of an associated item.
func (v *Variant) AssocType(name string) (decl.TypeExpr, bool) {
	for _, a := range v.Assoc {
		if a.Name == name {
			return a.Type, true
		}
	}
	return decl.TypeExpr{}, false
}

func suffix(a effect.Assignment) string {
	if a.Set().IsEmpty() {
		return ""
	}
	return a.String()
}
