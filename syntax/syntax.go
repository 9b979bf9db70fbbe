package syntax

import (
	"github.com/wippyai/effectgen/decl"
	"github.com/wippyai/effectgen/effect"
	"github.com/wippyai/effectgen/syntax/internal/token"
)

// ParseMaybe parses "#[maybe(async, ...)]".
func ParseMaybe(src string) ([]effect.Kind, error) {
	p, err := newParser(src)
	if err != nil {
		return nil, err
	}
	kinds, err := p.maybeAttr()
	if err != nil {
		return nil, err
	}
	return kinds, p.done()
}

// ParseCfg parses "#[cfg(<predicate>)]".
func ParseCfg(src string) (effect.Expr, error) {
	p, err := newParser(src)
	if err != nil {
		return nil, err
	}
	if err := p.openAttr("cfg"); err != nil {
		return nil, err
	}
	e, err := p.predicate()
	if err != nil {
		return nil, err
	}
	if err := p.closeAttr(); err != nil {
		return nil, err
	}
	return e, p.done()
}

// ParsePredicate parses the body of a cfg attribute:
// "effect = async", "not(..)", "any(..)", "all(..)".
func ParsePredicate(src string) (effect.Expr, error) {
	p, err := newParser(src)
	if err != nil {
		return nil, err
	}
	e, err := p.predicate()
	if err != nil {
		return nil, err
	}
	return e, p.done()
}

// ParseType parses a type expression such as "u32", "list<u8>",
// "File<async>", "File<!async>" or "Self<maybe(async)>".
func ParseType(src string) (decl.TypeExpr, error) {
	p, err := newParser(src)
	if err != nil {
		return decl.TypeExpr{}, err
	}
	t, err := p.typeExpr()
	if err != nil {
		return decl.TypeExpr{}, err
	}
	return t, p.done()
}

// ImplHeader is a parsed impl block header.
type ImplHeader struct {
	Trait         string // empty for inherent impls
	Self          string
	TraitMaybe    []effect.Kind
	SelfMaybe     []effect.Kind
	Specific      []effect.Kind
	TraitHasMaybe bool
	SelfHasMaybe  bool
}

// ParseImplHeader parses
//
//	impl #[maybe(async)] Read for #[maybe(async)] File
//	impl #[maybe(async)] File
//	impl async File
func ParseImplHeader(src string) (ImplHeader, error) {
	p, err := newParser(src)
	if err != nil {
		return ImplHeader{}, err
	}
	if err := p.expectKeyword("impl"); err != nil {
		return ImplHeader{}, err
	}
	first, maybe, has, specific, err := p.implSide()
	if err != nil {
		return ImplHeader{}, err
	}
	var h ImplHeader
	h.Specific = specific
	if p.accept(token.Ident, "for") {
		h.Trait, h.TraitMaybe, h.TraitHasMaybe = first, maybe, has
		self, selfMaybe, selfHas, selfSpecific, err := p.implSide()
		if err != nil {
			return ImplHeader{}, err
		}
		h.Self, h.SelfMaybe, h.SelfHasMaybe = self, selfMaybe, selfHas
		h.Specific = append(h.Specific, selfSpecific...)
	} else {
		h.Self, h.SelfMaybe, h.SelfHasMaybe = first, maybe, has
	}
	return h, p.done()
}

// FnHeader is a parsed function or method header.
type FnHeader struct {
	Signature *decl.Signature
	Name      string
	Maybe     []effect.Kind
	Specific  []effect.Kind
	HasMaybe  bool
}

// ParseFn parses "[#[maybe(..)]] [kind...] fn name(p: T, ...) [-> T]".
func ParseFn(src string) (FnHeader, error) {
	p, err := newParser(src)
	if err != nil {
		return FnHeader{}, err
	}
	var h FnHeader
	if p.peek().Is(token.Punct, "#") {
		if h.Maybe, err = p.maybeAttr(); err != nil {
			return FnHeader{}, err
		}
		h.HasMaybe = true
	}
	for p.peek().Type == token.Ident && !p.peek().Is(token.Ident, "fn") {
		h.Specific = append(h.Specific, effect.Kind(p.next().Value))
	}
	if err := p.expectKeyword("fn"); err != nil {
		return FnHeader{}, err
	}
	name, err := p.expect(token.Ident)
	if err != nil {
		return FnHeader{}, err
	}
	h.Name = name.Value
	h.Signature = &decl.Signature{}

	if p.accept(token.Punct, "(") {
		for !p.peek().Is(token.Punct, ")") {
			pn, err := p.expect(token.Ident)
			if err != nil {
				return FnHeader{}, err
			}
			if err := p.expectPunct(":"); err != nil {
				return FnHeader{}, err
			}
			pt, err := p.typeExpr()
			if err != nil {
				return FnHeader{}, err
			}
			h.Signature.Params = append(h.Signature.Params, decl.Param{Name: pn.Value, Type: pt})
			if !p.accept(token.Punct, ",") {
				break
			}
		}
		if err := p.expectPunct(")"); err != nil {
			return FnHeader{}, err
		}
	}
	if p.accept(token.Punct, "->") {
		if h.Signature.Result, err = p.typeExpr(); err != nil {
			return FnHeader{}, err
		}
	}
	return h, p.done()
}

// Call is a parsed call-site expression.
type Call struct {
	BindingType *decl.TypeExpr
	Binding     string
	Target      string
	Explicit    []decl.EffectArg
	Markers     []string
}

// ParseCall parses a call expression with its optional binding, for example
//
//	let s: Socket<async> = Socket::connect::<async>(addr).await?
func ParseCall(src string) (Call, error) {
	p, err := newParser(src)
	if err != nil {
		return Call{}, err
	}
	var c Call
	if p.accept(token.Ident, "let") {
		b, err := p.expect(token.Ident)
		if err != nil {
			return Call{}, err
		}
		c.Binding = b.Value
		if p.accept(token.Punct, ":") {
			t, err := p.typeExpr()
			if err != nil {
				return Call{}, err
			}
			c.BindingType = &t
		}
		if err := p.expectPunct("="); err != nil {
			return Call{}, err
		}
	}

	first, err := p.expect(token.Ident)
	if err != nil {
		return Call{}, err
	}
	c.Target = first.Value
	for p.peek().Is(token.Punct, "::") && p.peekAt(1).Type == token.Ident {
		p.next()
		c.Target += "::" + p.next().Value
	}
	if p.accept(token.Punct, "::") {
		if c.Explicit, err = p.effectArgs(); err != nil {
			return Call{}, err
		}
	}
	if err := p.skipGroup(); err != nil {
		return Call{}, err
	}

	for {
		if p.accept(token.Punct, "?") {
			c.Markers = append(c.Markers, "?")
			continue
		}
		if !p.accept(token.Punct, ".") {
			break
		}
		m, err := p.expect(token.Ident)
		if err != nil {
			return Call{}, err
		}
		if p.peek().Is(token.Punct, "(") {
			return Call{}, p.errorf(m, "chained call %s(..) must be its own call site", m.Value)
		}
		c.Markers = append(c.Markers, m.Value)
	}
	return c, p.done()
}
