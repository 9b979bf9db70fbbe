package manifest

import (
	"fmt"
	"os"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/effectgen/decl"
	"github.com/wippyai/effectgen/errors"
	"github.com/wippyai/effectgen/syntax"
)

// Manifest is a YAML document holding engine configuration and the
// annotated declarations of one compilation unit.
type Manifest struct {
	Config       Config  `yaml:"config"`
	Declarations []Entry `yaml:"declarations"`
	path         string
}

type position struct {
	line, col int
}

// Entry is one declaration. Exactly one of Type, Trait, Impl or Fn is set.
type Entry struct {
	// Type and Trait hold the declared name.
	Type  string `yaml:"type,omitempty"`
	Trait string `yaml:"trait,omitempty"`
	// Impl holds the full header: "impl #[maybe(async)] Read for #[maybe(async)] File".
	Impl string `yaml:"impl,omitempty"`
	// Fn holds the full header: "#[maybe(async)] fn open(path: string) -> Self<maybe(async)>".
	Fn string `yaml:"fn,omitempty"`

	// Maybe is the "#[maybe(..)]" attribute of a type or trait.
	Maybe string `yaml:"maybe,omitempty"`
	// Scope places a top-level function under another declaration.
	Scope string `yaml:"scope,omitempty"`

	Fields  []FieldEntry  `yaml:"fields,omitempty"`
	Assoc   []AssocEntry  `yaml:"assoc,omitempty"`
	Methods []Entry       `yaml:"methods,omitempty"`
	Calls   []CallEntry   `yaml:"calls,omitempty"`
	Legacy  []LegacyEntry `yaml:"legacy,omitempty"`

	pos position
}

func (e *Entry) UnmarshalYAML(value *yaml.Node) error {
	type plain Entry
	if err := value.Decode((*plain)(e)); err != nil {
		return err
	}
	e.pos = position{value.Line, value.Column}
	return nil
}

type FieldEntry struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
	Cfg  string `yaml:"cfg,omitempty"`
	pos  position
}

func (f *FieldEntry) UnmarshalYAML(value *yaml.Node) error {
	type plain FieldEntry
	if err := value.Decode((*plain)(f)); err != nil {
		return err
	}
	f.pos = position{value.Line, value.Column}
	return nil
}

// AssocEntry is an associated item. A trait entry without definitions
// requires every impl to define it; Type is shorthand for one
// unconditional definition.
type AssocEntry struct {
	Name string     `yaml:"name"`
	Type string     `yaml:"type,omitempty"`
	Defs []DefEntry `yaml:"defs,omitempty"`
	pos  position
}

func (a *AssocEntry) UnmarshalYAML(value *yaml.Node) error {
	type plain AssocEntry
	if err := value.Decode((*plain)(a)); err != nil {
		return err
	}
	a.pos = position{value.Line, value.Column}
	return nil
}

type DefEntry struct {
	Cfg  string `yaml:"cfg,omitempty"`
	Type string `yaml:"type"`
	pos  position
}

func (d *DefEntry) UnmarshalYAML(value *yaml.Node) error {
	type plain DefEntry
	if err := value.Decode((*plain)(d)); err != nil {
		return err
	}
	d.pos = position{value.Line, value.Column}
	return nil
}

// CallEntry is a call site in a function body, written either as a
// plain string or as a mapping with the effect branch guarding it.
type CallEntry struct {
	Cfg  string `yaml:"cfg,omitempty"`
	Call string `yaml:"call"`
	pos  position
}

func (c *CallEntry) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		c.Call = value.Value
	} else {
		type plain CallEntry
		if err := value.Decode((*plain)(c)); err != nil {
			return err
		}
	}
	c.pos = position{value.Line, value.Column}
	return nil
}

// LegacyEntry is the layout a type had before it became effect-generic.
type LegacyEntry struct {
	Version string       `yaml:"version"`
	Fields  []FieldEntry `yaml:"fields"`
	pos     position
}

func (l *LegacyEntry) UnmarshalYAML(value *yaml.Node) error {
	type plain LegacyEntry
	if err := value.Decode((*plain)(l)); err != nil {
		return err
	}
	l.pos = position{value.Line, value.Column}
	return nil
}

// Load reads and parses a manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}
	return Parse(data, path)
}

// Parse parses manifest content. The path is used for spans and messages.
func Parse(data []byte, path string) (*Manifest, error) {
	m := &Manifest{path: path}
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	m.Config.setDefaults()
	return m, nil
}

// Path returns the file the manifest was read from.
func (m *Manifest) Path() string { return m.path }

func (m *Manifest) validate() error {
	if err := m.Config.validate(m.path); err != nil {
		return err
	}
	for i := range m.Declarations {
		if err := m.Declarations[i].validate(m.path, fmt.Sprintf("declarations[%d]", i), false); err != nil {
			return err
		}
	}
	return nil
}

func (e *Entry) validate(path, where string, member bool) error {
	set := 0
	for _, s := range []string{e.Type, e.Trait, e.Impl, e.Fn} {
		if s != "" {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("%s:%d: %s: exactly one of type, trait, impl or fn is required", path, e.pos.line, where)
	}
	if member && e.Fn == "" {
		return fmt.Errorf("%s:%d: %s: methods must be fn entries", path, e.pos.line, where)
	}
	if len(e.Fields) > 0 && e.Type == "" {
		return fmt.Errorf("%s:%d: %s: only types have fields", path, e.pos.line, where)
	}
	if len(e.Legacy) > 0 && e.Type == "" {
		return fmt.Errorf("%s:%d: %s: only types have legacy layouts", path, e.pos.line, where)
	}
	if len(e.Assoc) > 0 && e.Trait == "" && e.Impl == "" {
		return fmt.Errorf("%s:%d: %s: only traits and impls have associated items", path, e.pos.line, where)
	}
	if len(e.Calls) > 0 && e.Fn == "" {
		return fmt.Errorf("%s:%d: %s: only functions have call sites", path, e.pos.line, where)
	}
	if e.Maybe != "" && e.Type == "" && e.Trait == "" {
		return fmt.Errorf("%s:%d: %s: maybe belongs in the impl or fn header", path, e.pos.line, where)
	}
	if e.Scope != "" && (member || e.Fn == "") {
		return fmt.Errorf("%s:%d: %s: scope applies to top-level functions only", path, e.pos.line, where)
	}
	for i := range e.Methods {
		if err := e.Methods[i].validate(path, fmt.Sprintf("%s.methods[%d]", where, i), true); err != nil {
			return err
		}
	}
	return nil
}

// Sources converts the declarations into model input. Every annotation
// that fails to parse is reported; the corresponding declaration or item
// is left out.
func (m *Manifest) Sources() ([]decl.Source, errors.List) {
	var diags errors.List
	out := make([]decl.Source, 0, len(m.Declarations))
	for i := range m.Declarations {
		if s, ok := m.source(&m.Declarations[i], &diags); ok {
			out = append(out, s)
		}
	}
	return out, diags
}

func (m *Manifest) span(p position) errors.Span {
	return errors.Span{File: m.path, Line: p.line, Col: p.col}
}

func (m *Manifest) source(e *Entry, diags *errors.List) (decl.Source, bool) {
	span := m.span(e.pos)
	s := decl.Source{Span: span}

	switch {
	case e.Type != "" || e.Trait != "":
		s.Kind, s.Name = decl.KindType, e.Type
		if e.Trait != "" {
			s.Kind, s.Name = decl.KindTrait, e.Trait
		}
		if e.Maybe != "" {
			kinds, err := syntax.ParseMaybe(e.Maybe)
			if err != nil {
				diags.Add(errors.ParseFailed(span, "maybe attribute", err))
				return s, false
			}
			s.Maybe, s.HasMaybe = kinds, true
		}

	case e.Impl != "":
		h, err := syntax.ParseImplHeader(e.Impl)
		if err != nil {
			diags.Add(errors.ParseFailed(span, "impl header", err))
			return s, false
		}
		s.Kind = decl.KindImpl
		s.Trait, s.Self, s.Specific = h.Trait, h.Self, h.Specific
		s.TraitMaybe, s.SelfMaybe = h.TraitMaybe, h.SelfMaybe
		s.TraitHasMaybe, s.SelfHasMaybe = h.TraitHasMaybe, h.SelfHasMaybe

	case e.Fn != "":
		h, err := syntax.ParseFn(e.Fn)
		if err != nil {
			diags.Add(errors.ParseFailed(span, "fn header", err))
			return s, false
		}
		s.Kind = decl.KindFunction
		s.Name, s.Signature = h.Name, h.Signature
		s.Maybe, s.HasMaybe, s.Specific = h.Maybe, h.HasMaybe, h.Specific
		s.Scope = decl.ID(e.Scope)
	}

	for _, f := range e.Fields {
		if spec, ok := m.field(f, diags); ok {
			s.Fields = append(s.Fields, spec)
		}
	}
	for _, a := range e.Assoc {
		s.Assoc = append(s.Assoc, m.assoc(a, diags))
	}
	for _, c := range e.Calls {
		if site, ok := m.call(c, diags); ok {
			s.Calls = append(s.Calls, site)
		}
	}
	for _, l := range e.Legacy {
		if layout, ok := m.legacy(l, diags); ok {
			s.Legacy = append(s.Legacy, layout)
		}
	}
	for i := range e.Methods {
		if member, ok := m.source(&e.Methods[i], diags); ok {
			s.Members = append(s.Members, member)
		}
	}
	return s, true
}

func (m *Manifest) field(f FieldEntry, diags *errors.List) (decl.FieldSpec, bool) {
	span := m.span(f.pos)
	spec := decl.FieldSpec{Name: f.Name, Span: span}
	t, err := syntax.ParseType(f.Type)
	if err != nil {
		diags.Add(errors.ParseFailed(span, "type of field "+f.Name, err))
		return spec, false
	}
	spec.Type = t
	if f.Cfg != "" {
		if spec.Cfg, err = syntax.ParseCfg(f.Cfg); err != nil {
			diags.Add(errors.ParseFailed(span, "cfg of field "+f.Name, err))
			return spec, false
		}
	}
	return spec, true
}

func (m *Manifest) assoc(a AssocEntry, diags *errors.List) decl.AssocItem {
	item := decl.AssocItem{Name: a.Name, Span: m.span(a.pos)}
	defs := a.Defs
	if a.Type != "" {
		defs = append([]DefEntry{{Type: a.Type, pos: a.pos}}, defs...)
	}
	for _, d := range defs {
		span := m.span(d.pos)
		t, err := syntax.ParseType(d.Type)
		if err != nil {
			diags.Add(errors.ParseFailed(span, "definition of "+a.Name, err))
			continue
		}
		def := decl.AssocDef{Type: t, Span: span}
		if d.Cfg != "" {
			if def.Cfg, err = syntax.ParseCfg(d.Cfg); err != nil {
				diags.Add(errors.ParseFailed(span, "cfg of "+a.Name, err))
				continue
			}
		}
		item.Defs = append(item.Defs, def)
	}
	return item
}

func (m *Manifest) call(c CallEntry, diags *errors.List) (decl.CallSite, bool) {
	span := m.span(c.pos)
	parsed, err := syntax.ParseCall(c.Call)
	if err != nil {
		diags.Add(errors.ParseFailed(span, "call site", err))
		return decl.CallSite{}, false
	}
	site := decl.CallSite{
		BindingType: parsed.BindingType,
		Target:      parsed.Target,
		Binding:     parsed.Binding,
		Text:        c.Call,
		Explicit:    parsed.Explicit,
		Markers:     parsed.Markers,
		Span:        span,
	}
	if c.Cfg != "" {
		if site.Cfg, err = syntax.ParseCfg(c.Cfg); err != nil {
			diags.Add(errors.ParseFailed(span, "effect branch", err))
			return decl.CallSite{}, false
		}
	}
	return site, true
}

func (m *Manifest) legacy(l LegacyEntry, diags *errors.List) (decl.LegacyLayout, bool) {
	span := m.span(l.pos)
	if _, err := semver.NewVersion(l.Version); err != nil {
		diags.Add(errors.New(errors.PhaseLoad, errors.KindInvalidInput).
			At(span).Cause(err).
			Detail("legacy layout version %q", l.Version).
			Build())
		return decl.LegacyLayout{}, false
	}
	layout := decl.LegacyLayout{Version: l.Version, Span: span}
	for _, f := range l.Fields {
		t, err := syntax.ParseType(f.Type)
		if err != nil {
			diags.Add(errors.ParseFailed(m.span(f.pos), "legacy field "+f.Name, err))
			return decl.LegacyLayout{}, false
		}
		layout.Fields = append(layout.Fields, decl.LegacyField{Name: f.Name, Type: t})
	}
	return layout, true
}
