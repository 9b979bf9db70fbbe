package syntax

import (
	"fmt"

	"github.com/wippyai/effectgen/decl"
	"github.com/wippyai/effectgen/effect"
	"github.com/wippyai/effectgen/syntax/internal/token"
)

type parser struct {
	tokens []token.Token
	pos    int
}

func newParser(src string) (*parser, error) {
	tokens, err := token.Tokenize(src)
	if err != nil {
		return nil, err
	}
	return &parser{tokens: tokens}, nil
}

func (p *parser) peek() token.Token {
	return p.peekAt(0)
}

func (p *parser) peekAt(n int) token.Token {
	if p.pos+n >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos+n]
}

func (p *parser) next() token.Token {
	t := p.tokens[p.pos]
	if t.Type != token.EOF {
		p.pos++
	}
	return t
}

func (p *parser) errorf(t token.Token, format string, args ...any) error {
	return fmt.Errorf("col %d: "+format, append([]any{t.Col}, args...)...)
}

func (p *parser) expect(typ token.Type) (token.Token, error) {
	t := p.next()
	if t.Type != typ {
		return t, p.errorf(t, "expected %v, got %v", typ, t)
	}
	return t, nil
}

func (p *parser) expectPunct(v string) error {
	t := p.next()
	if !t.Is(token.Punct, v) {
		return p.errorf(t, "expected %q, got %v", v, t)
	}
	return nil
}

func (p *parser) expectKeyword(v string) error {
	t := p.next()
	if !t.Is(token.Ident, v) {
		return p.errorf(t, "expected %q, got %v", v, t)
	}
	return nil
}

func (p *parser) accept(typ token.Type, v string) bool {
	if p.peek().Is(typ, v) {
		p.next()
		return true
	}
	return false
}

func (p *parser) done() error {
	p.accept(token.Punct, ";")
	if t := p.peek(); t.Type != token.EOF {
		return p.errorf(t, "unexpected %v", t)
	}
	return nil
}

func (p *parser) openAttr(name string) error {
	if err := p.expectPunct("#"); err != nil {
		return err
	}
	if err := p.expectPunct("["); err != nil {
		return err
	}
	if err := p.expectKeyword(name); err != nil {
		return err
	}
	return p.expectPunct("(")
}

func (p *parser) closeAttr() error {
	if err := p.expectPunct(")"); err != nil {
		return err
	}
	return p.expectPunct("]")
}

func (p *parser) maybeAttr() ([]effect.Kind, error) {
	if err := p.openAttr("maybe"); err != nil {
		return nil, err
	}
	var kinds []effect.Kind
	for {
		t, err := p.expect(token.Ident)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, effect.Kind(t.Value))
		if !p.accept(token.Punct, ",") {
			break
		}
	}
	return kinds, p.closeAttr()
}

func (p *parser) predicate() (effect.Expr, error) {
	t, err := p.expect(token.Ident)
	if err != nil {
		return nil, err
	}
	switch t.Value {
	case "effect":
		if err := p.expectPunct("="); err != nil {
			return nil, err
		}
		k, err := p.expect(token.Ident)
		if err != nil {
			return nil, err
		}
		return effect.Is{Kind: effect.Kind(k.Value)}, nil

	case "not":
		if err := p.expectPunct("("); err != nil {
			return nil, err
		}
		x, err := p.predicate()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return effect.Not{X: x}, nil

	case "any", "all":
		if err := p.expectPunct("("); err != nil {
			return nil, err
		}
		var xs []effect.Expr
		for !p.peek().Is(token.Punct, ")") {
			x, err := p.predicate()
			if err != nil {
				return nil, err
			}
			xs = append(xs, x)
			if !p.accept(token.Punct, ",") {
				break
			}
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		if t.Value == "any" {
			return effect.Any(xs), nil
		}
		return effect.All(xs), nil
	}
	return nil, p.errorf(t, "unknown predicate %q", t.Value)
}

func (p *parser) effectArg() (decl.EffectArg, error) {
	if p.accept(token.Punct, "!") {
		k, err := p.expect(token.Ident)
		if err != nil {
			return decl.EffectArg{}, err
		}
		return decl.EffectArg{Kind: effect.Kind(k.Value), Mode: decl.ModeAbsent}, nil
	}
	t, err := p.expect(token.Ident)
	if err != nil {
		return decl.EffectArg{}, err
	}
	if t.Value == "maybe" && p.accept(token.Punct, "(") {
		k, err := p.expect(token.Ident)
		if err != nil {
			return decl.EffectArg{}, err
		}
		if err := p.expectPunct(")"); err != nil {
			return decl.EffectArg{}, err
		}
		return decl.EffectArg{Kind: effect.Kind(k.Value), Mode: decl.ModeInherit}, nil
	}
	return decl.EffectArg{Kind: effect.Kind(t.Value), Mode: decl.ModePresent}, nil
}

func (p *parser) effectArgs() ([]decl.EffectArg, error) {
	if err := p.expectPunct("<"); err != nil {
		return nil, err
	}
	var args []decl.EffectArg
	for {
		a, err := p.effectArg()
		if err != nil {
			return nil, err
		}
		args = append(args, a)
		if !p.accept(token.Punct, ",") {
			break
		}
	}
	return args, p.expectPunct(">")
}

func (p *parser) typeExpr() (decl.TypeExpr, error) {
	name, err := p.expect(token.Ident)
	if err != nil {
		return decl.TypeExpr{}, err
	}
	t := decl.TypeExpr{Name: name.Value}
	if !p.peek().Is(token.Punct, "<") {
		return t, nil
	}
	if !decl.IsConstructor(t.Name) {
		t.Effects, err = p.effectArgs()
		return t, err
	}
	p.next()
	for {
		arg, err := p.typeExpr()
		if err != nil {
			return decl.TypeExpr{}, err
		}
		t.Args = append(t.Args, arg)
		if !p.accept(token.Punct, ",") {
			break
		}
	}
	return t, p.expectPunct(">")
}

// implSide parses "[#[maybe(..)]] [kind...] Name".
func (p *parser) implSide() (name string, maybe []effect.Kind, hasMaybe bool, specific []effect.Kind, err error) {
	if p.peek().Is(token.Punct, "#") {
		if maybe, err = p.maybeAttr(); err != nil {
			return "", nil, false, nil, err
		}
		hasMaybe = true
	}
	var idents []string
	for p.peek().Type == token.Ident && !p.peek().Is(token.Ident, "for") {
		idents = append(idents, p.next().Value)
	}
	if len(idents) == 0 {
		return "", nil, false, nil, p.errorf(p.peek(), "expected a name, got %v", p.peek())
	}
	for _, k := range idents[:len(idents)-1] {
		specific = append(specific, effect.Kind(k))
	}
	return idents[len(idents)-1], maybe, hasMaybe, specific, nil
}

// skipGroup consumes a balanced parenthesized group.
func (p *parser) skipGroup() error {
	if err := p.expectPunct("("); err != nil {
		return err
	}
	for depth := 1; depth > 0; {
		t := p.next()
		switch {
		case t.Type == token.EOF:
			return p.errorf(t, "unclosed argument list")
		case t.Is(token.Punct, "("):
			depth++
		case t.Is(token.Punct, ")"):
			depth--
		}
	}
	return nil
}
