package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestListPartitions(t *testing.T) {
	var l List
	l.Add(
		DeadField(Span{Line: 2}, "File", "x", "p"),
		Declaration(Span{Line: 1}, "File", "duplicate-kind", "async twice"),
		nil,
	)

	if l.Len() != 2 {
		t.Fatalf("Len = %d, want 2", l.Len())
	}
	if len(l.Fatal()) != 1 || len(l.Warnings()) != 1 {
		t.Errorf("Fatal = %d, Warnings = %d", len(l.Fatal()), len(l.Warnings()))
	}
	if !l.HasFatal() || !l.HasKind(KindDeadField) {
		t.Error("expected fatal and dead-field diagnostics")
	}
	if len(l.OfKind(KindDeclaration)) != 1 {
		t.Error("OfKind should filter")
	}
}

func TestListSortedIsDeterministic(t *testing.T) {
	a := Declaration(Span{File: "b.yaml", Line: 1}, "B", "", "")
	b := Declaration(Span{File: "a.yaml", Line: 9}, "A", "", "")
	c := Declaration(Span{File: "a.yaml", Line: 3}, "C", "", "")

	sorted := List{a, b, c}.Sorted()
	if sorted[0] != c || sorted[1] != b || sorted[2] != a {
		t.Errorf("unexpected order: %v", sorted)
	}
}

func TestListDedupe(t *testing.T) {
	first := AmbiguousEffectInference(Span{Line: 4}, "main", []string{"async"}, nil)
	again := AmbiguousEffectInference(Span{Line: 4}, "main", []string{"async"}, nil)
	other := AmbiguousEffectInference(Span{Line: 5}, "main", []string{"async"}, nil)

	got := List{first, again, other}.Dedupe()
	if len(got) != 2 || got[0] != first || got[1] != other {
		t.Errorf("Dedupe = %v", got)
	}
}

func TestListErr(t *testing.T) {
	var l List
	if l.Err(false) != nil {
		t.Error("empty list has no error")
	}

	l.Add(DeadField(Span{}, "File", "x", "p"))
	if l.Err(false) != nil {
		t.Error("warnings alone do not block")
	}
	if l.Err(true) == nil {
		t.Error("strict mode blocks on warnings")
	}

	l.Add(EffectMismatch(PhasePropagate, Span{}, "File::read", "narrows parent"))
	err := l.Err(false)
	if err == nil {
		t.Fatal("expected batch error")
	}

	var batch *BatchError
	if !errors.As(err, &batch) || len(batch.Items) != 1 {
		t.Fatalf("expected one blocking item, got %v", err)
	}
	if !errors.Is(err, &Error{Phase: PhasePropagate, Kind: KindEffectMismatch}) {
		t.Error("errors.Is should reach individual diagnostics")
	}
	if !errors.Is(err, &BatchError{}) {
		t.Error("errors.Is should match BatchError")
	}
}

func TestBatchErrorGroupsByDeclaration(t *testing.T) {
	err := &BatchError{Items: List{
		Declaration(Span{}, "File", "", "one"),
		Declaration(Span{}, "Read", "", "two"),
		Declaration(Span{}, "File", "", "three"),
	}}
	msg := err.Error()
	if !strings.Contains(msg, "3 diagnostic(s)") {
		t.Errorf("missing count: %s", msg)
	}
	if strings.Count(msg, "\n  File:") != 1 || !strings.Contains(msg, "\n  Read:") {
		t.Errorf("expected grouping by declaration: %s", msg)
	}

	empty := &BatchError{}
	if !strings.Contains(empty.Error(), "no diagnostics") {
		t.Errorf("empty batch message: %s", empty.Error())
	}
}
