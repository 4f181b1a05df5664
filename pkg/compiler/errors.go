package compiler

import (
	"fmt"
	"sort"
	"strings"

	"fixshade/pkg/ir"
)

// TypeError is a static rejection: the operation that failed, the class of
// type it needed, what it got, and where.
type TypeError struct {
	Op       string
	Expected string
	Actual   string
	Pos      ir.Pos
}

func (e *TypeError) Error() string {
	loc := ""
	if e.Pos.Line > 0 {
		loc = fmt.Sprintf("%s:%d: ", e.Pos.Where(), e.Pos.Col)
	}
	return fmt.Sprintf("%s%s: expected %s, got %s", loc, e.Op, e.Expected, e.Actual)
}

func typeErr(pos ir.Pos, op string, expected, actual any) *TypeError {
	return &TypeError{Op: op, Expected: fmt.Sprint(expected), Actual: fmt.Sprint(actual), Pos: pos}
}

// ErrorList collects every diagnostic of a compilation. Codegen keeps going
// after a failed statement so one run reports them all.
type ErrorList []error

func (l ErrorList) Error() string {
	msgs := make([]string, len(l))
	for i, e := range l {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "\n")
}

// Err returns nil for an empty list and the list itself otherwise.
func (l ErrorList) Err() error {
	if len(l) == 0 {
		return nil
	}
	return l
}

func (l ErrorList) Unwrap() []error { return l }

// sortByPos orders type errors by source position; other errors keep their
// relative order at the end.
func (l ErrorList) sortByPos() {
	sort.SliceStable(l, func(i, j int) bool {
		a, aok := l[i].(*TypeError)
		b, bok := l[j].(*TypeError)
		if !aok || !bok {
			return aok && !bok
		}
		if a.Pos.Line != b.Pos.Line {
			return a.Pos.Line < b.Pos.Line
		}
		return a.Pos.Col < b.Pos.Col
	})
}
