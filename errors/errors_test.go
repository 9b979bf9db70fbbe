package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:       PhaseResolve,
				Kind:        KindEffectMismatch,
				Span:        Span{File: "net.yaml", Line: 12, Col: 5},
				Decl:        "Socket::connect",
				Path:        []string{"let x"},
				Rule:        "explicit-agree",
				Detail:      "binding type and call disagree",
				Assignments: []string{"<async>", "<!async>"},
			},
			contains: []string{"net.yaml:12:5", "[resolve]", "effect_mismatch", "Socket::connect", "let x", "explicit-agree", "disagree", "<async> vs <!async>"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseModel,
				Kind:  KindDeclaration,
			},
			contains: []string{"[model]", "declaration"},
		},
		{
			name:     "ambiguity lists effects and candidates",
			err:      AmbiguousEffectInference(Span{Line: 3}, "File::open", []string{"async"}, []string{"<async>", "<!async>"}),
			contains: []string{"<input>:3", "ambiguous_effect_inference", "unresolved: async", "candidates: <async>, <!async>"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseLoad,
				Kind:   KindInvalidData,
				Detail: "read manifest",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[load]", "invalid_data", "read manifest", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := Wrap(PhaseLoad, KindInvalidData, cause, "decode")

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}
	if !errors.Is(errors.Unwrap(err), cause) {
		t.Error("errors.Unwrap did not return cause")
	}
}

func TestError_Is(t *testing.T) {
	err := &Error{
		Phase: PhaseLower,
		Kind:  KindUnresolvedEffectVariant,
		Decl:  "Read",
	}

	if !err.Is(&Error{Phase: PhaseLower, Kind: KindUnresolvedEffectVariant}) {
		t.Error("Is should match same phase and kind")
	}
	if err.Is(&Error{Phase: PhaseModel, Kind: KindUnresolvedEffectVariant}) {
		t.Error("Is should not match different phase")
	}
	if err.Is(&Error{Phase: PhaseLower, Kind: KindLayoutMismatch}) {
		t.Error("Is should not match different kind")
	}
	if !errors.Is(err, &Error{Phase: PhaseLower, Kind: KindUnresolvedEffectVariant}) {
		t.Error("errors.Is should match")
	}
}

func TestSeverity(t *testing.T) {
	if DeadField(Span{}, "File", "x", "p").IsFatal() {
		t.Error("dead field must be advisory")
	}
	for _, k := range []Kind{KindDeclaration, KindConflictingFieldCfg, KindEffectMismatch,
		KindPropagationCycle, KindUnresolvedEffectVariant, KindLayoutMismatch, KindAmbiguousEffectInference} {
		if k.Severity() != SeverityError {
			t.Errorf("%s must be fatal", k)
		}
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	span := Span{File: "a.yaml", Line: 4, Col: 2}
	err := New(PhaseABI, KindLayoutMismatch).
		At(span).
		Decl("File").
		Rule("legacy@1.0.0").
		Path("fd").
		Value(42).
		Cause(cause).
		Assignments("<!async>").
		Detail("size %d, want %d", 8, 4).
		Build()

	if err.Phase != PhaseABI || err.Kind != KindLayoutMismatch {
		t.Errorf("Phase/Kind = %v/%v", err.Phase, err.Kind)
	}
	if err.Span != span {
		t.Errorf("Span = %v, want %v", err.Span, span)
	}
	if err.Decl != "File" || err.Rule != "legacy@1.0.0" {
		t.Errorf("Decl/Rule = %v/%v", err.Decl, err.Rule)
	}
	if len(err.Path) != 1 || err.Path[0] != "fd" {
		t.Errorf("Path = %v, want [fd]", err.Path)
	}
	if err.Value != 42 {
		t.Errorf("Value = %v, want 42", err.Value)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "size 8, want 4" {
		t.Errorf("Detail = %v", err.Detail)
	}
}

func TestBuilderReturnsIndependentErrors(t *testing.T) {
	b := New(PhaseModel, KindDeclaration).Decl("A")
	first := b.Build()
	second := b.Decl("B").Build()
	if first.Decl != "A" || second.Decl != "B" {
		t.Errorf("builds share state: %q %q", first.Decl, second.Decl)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	t.Run("PropagationCycle", func(t *testing.T) {
		err := PropagationCycle(Span{}, "A", []string{"A", "B", "A"})
		if err.Kind != KindPropagationCycle {
			t.Errorf("Kind = %v", err.Kind)
		}
		if !strings.Contains(err.Detail, "A -> B -> A") {
			t.Errorf("Detail = %v", err.Detail)
		}
	})

	t.Run("UnresolvedEffectVariant", func(t *testing.T) {
		err := UnresolvedEffectVariant(Span{}, "Read", "Output", "<async>")
		if err.Kind != KindUnresolvedEffectVariant || err.Path[0] != "Output" {
			t.Errorf("Kind = %v, Path = %v", err.Kind, err.Path)
		}
	})

	t.Run("DeadField", func(t *testing.T) {
		err := DeadField(Span{}, "File", "waker", "all(effect = async, not(effect = async))")
		if err.Phase != PhaseFields || err.Path[0] != "waker" {
			t.Errorf("Phase = %v, Path = %v", err.Phase, err.Path)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		err := NotFound(PhaseModel, "trait", "Read")
		if err.Kind != KindNotFound || !strings.Contains(err.Detail, `"Read"`) {
			t.Errorf("Kind = %v, Detail = %v", err.Kind, err.Detail)
		}
	})
}

func TestHasKind(t *testing.T) {
	inner := LayoutMismatch(Span{}, "File", "size")
	wrapped := Wrap(PhaseABI, KindInvalidData, inner, "check")
	if !HasKind(wrapped, KindLayoutMismatch) {
		t.Error("HasKind should see wrapped kinds")
	}
	if HasKind(nil, KindLayoutMismatch) {
		t.Error("nil has no kind")
	}
}
