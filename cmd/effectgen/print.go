package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/wippyai/effectgen/callsite"
	"github.com/wippyai/effectgen/compiler"
	"github.com/wippyai/effectgen/decl"
	"github.com/wippyai/effectgen/mono"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	nameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD866"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// printer writes reports, styled when the output is a terminal.
type printer struct {
	w      io.Writer
	styled bool
}

func newPrinter(f *os.File) *printer {
	return &printer{w: f, styled: term.IsTerminal(int(f.Fd()))}
}

func (p *printer) render(s lipgloss.Style, text string) string {
	if !p.styled {
		return text
	}
	return s.Render(text)
}

func (p *printer) printf(format string, args ...any) {
	fmt.Fprintf(p.w, format, args...)
}

func (p *printer) failure(err error) {
	p.printf("%s %v\n", p.render(errorStyle, "error:"), err)
}

func (p *printer) report(u *unit, opts options) {
	res := u.res
	p.printf("%s %s\n\n", p.render(titleStyle, "effectgen"), opts.manifest)

	diags := u.diagnostics()
	for _, d := range diags {
		label := p.render(errorStyle, "error:")
		if !d.IsFatal() {
			label = p.render(warnStyle, "warning:")
		}
		p.printf("%s %s\n", label, d.Error())
	}
	if len(diags) > 0 {
		p.printf("\n")
	}

	if opts.list {
		p.variants(res)
		p.bindings(res)
	}

	p.printf("%s\n", p.render(helpStyle, fmt.Sprintf(
		"unit %s: %d declarations, %d variants, %d bindings, %d errors, %d warnings",
		res.Unit, len(res.Model.All()), res.Catalog.Len(), len(res.Bindings),
		len(diags.Fatal()), len(diags.Warnings()))))
}

func (p *printer) variants(res *compiler.Result) {
	p.printf("Variants:\n")
	for _, v := range res.Catalog.Variants() {
		p.printf("  %s  %s\n", p.render(nameStyle, v.Name), p.render(helpStyle, v.Source.Kind.String()))
		for _, line := range describe(res, v) {
			p.printf("      %s\n", line)
		}
	}
	p.printf("\n")
}

func (p *printer) bindings(res *compiler.Result) {
	if len(res.Bindings) == 0 {
		return
	}
	p.printf("Bindings:\n")
	for _, b := range res.Bindings {
		target := b.Resolution.State.String()
		if b.Resolution.State == callsite.Resolved {
			target = b.Resolution.Target.String()
		}
		p.printf("  %s: %s -> %s\n", b.Caller, b.Site, p.render(typeStyle, target))
	}
	p.printf("\n")
}

// describe lists the lowered contents of a variant, one line each.
func describe(res *compiler.Result, v *mono.Variant) []string {
	var lines []string
	switch v.Source.Kind {
	case decl.KindType:
		layout, err := res.Checker.Layout(v)
		for i, f := range v.Fields {
			line := f.Name + ": " + f.Type.String()
			if err == nil {
				fl := layout.Fields[i]
				line += fmt.Sprintf("  @%d size %d", fl.Offset, fl.Size)
			}
			lines = append(lines, line)
		}
		if v.Capability != nil && !v.Capability.IsEmpty() {
			names := make([]string, len(v.Capability.Fields))
			for i, f := range v.Capability.Fields {
				names[i] = f.Name + ": " + f.Type.String()
			}
			lines = append(lines, v.Capability.Name+" { "+strings.Join(names, ", ")+" }")
		}
		if err == nil {
			lines = append(lines, fmt.Sprintf("size %d align %d", layout.Size, layout.Align))
		}
	case decl.KindTrait, decl.KindImpl:
		if !v.Trait.IsZero() {
			lines = append(lines, "trait "+v.Trait.String())
		}
		for _, a := range v.Assoc {
			lines = append(lines, "type "+a.Name+" = "+a.Type.String())
		}
	case decl.KindFunction:
		lines = append(lines, "fn"+v.Signature.String())
		for _, c := range v.Calls {
			lines = append(lines, "calls "+c.String())
		}
	}
	if !v.Parent.IsZero() {
		lines = append(lines, "parent "+v.Parent.String())
	}
	return lines
}
