package decl

import (
	"github.com/wippyai/effectgen/effect"
	"github.com/wippyai/effectgen/errors"
)

// Declaration is one validated, immutable declaration of the model.
type Declaration struct {
	Signature *Signature // functions only
	Effects   effect.Set // declared #[maybe] kinds; see Explicit
	Fixed     effect.Set // effect-specific kinds, fixed to present
	ID        ID
	Name      string
	Parent    ID // linkage: the declaration this one inherits its assignment from
	Trait     ID // impls only
	Self      ID // impls only
	Fields    []FieldSpec
	Assoc     []AssocItem
	Calls     []CallSite
	Legacy    []LegacyLayout
	Span      errors.Span
	Kind      Kind
	// Explicit is false when the declaration carries no #[maybe] and
	// inherits its effect set from Parent.
	Explicit bool
}

// IsSpecific reports whether the declaration is fixed to one assignment
// of some kinds regardless of its parent.
func (d *Declaration) IsSpecific() bool { return !d.Fixed.IsEmpty() }

// AssocItem returns the associated item with the given name.
func (d *Declaration) AssocItem(name string) (AssocItem, bool) {
	for _, a := range d.Assoc {
		if a.Name == name {
			return a, true
		}
	}
	return AssocItem{}, false
}

// Source is a parsed declaration handed to Build. Members are declarations
// lexically nested in this one (methods of a type, trait or impl).
type Source struct {
	Signature     *Signature
	Name          string
	Scope         ID // explicit parent for out-of-line declarations
	Trait         string
	Self          string
	Maybe         []effect.Kind
	Specific      []effect.Kind
	TraitMaybe    []effect.Kind
	SelfMaybe     []effect.Kind
	Fields        []FieldSpec
	Assoc         []AssocItem
	Calls         []CallSite
	Legacy        []LegacyLayout
	Members       []Source
	Span          errors.Span
	Kind          Kind
	HasMaybe      bool
	TraitHasMaybe bool
	SelfHasMaybe  bool
}
