package test

import (
	"fmt"
	"runtime"
	"testing"

	"github.com/ava12/prx"
	"github.com/ava12/prx/tree"
)

func fatalf(t *testing.T, message string, params ...any) {
	if len(params) > 0 {
		message = fmt.Sprintf(message, params...)
	}
	_, thisFile, _, _ := runtime.Caller(0)
	file := thisFile
	line := 0
	for i := 2; file == thisFile; i++ {
		_, file, line, _ = runtime.Caller(i)
	}
	t.Fatalf("%s at %s:%d", message, file, line)
}

func Assert(t *testing.T, cond bool, message string, params ...any) {
	if !cond {
		fatalf(t, message, params...)
	}
}

func Expect(t *testing.T, cond bool, expected, got any) {
	if !cond {
		fatalf(t, "expecting %v, got %v", expected, got)
	}
}

func ExpectInt(t *testing.T, expected, got int) {
	Expect(t, expected == got, expected, got)
}

func ExpectString(t *testing.T, expected, got string) {
	Expect(t, expected == got, expected, got)
}

// ExpectNode compares a syntax tree against its expected S-expression form.
func ExpectNode(t *testing.T, expected string, n *tree.Node) {
	if n == nil {
		fatalf(t, "expecting node %s, got nil", expected)
		return
	}
	if n.Sexpr() != expected {
		fatalf(t, "expecting node %s, got %s", expected, n.Sexpr())
	}
}

// ExpectErrorCode checks that at least one collected diagnostic carries the
// given code.
func ExpectErrorCode(t *testing.T, expected int, es []*prx.Error) {
	for _, e := range es {
		if e.Code == expected {
			return
		}
	}
	fatalf(t, "expecting error code %d among %v", expected, es)
}

// ExpectError checks that an error value is (or aggregates) a *prx.Error
// with the given code.
func ExpectError(t *testing.T, expected int, e error) {
	if e != nil {
		pe, valid := e.(*prx.Error)
		if valid && pe.Code == expected {
			return
		}
	}
	fatalf(t, "expecting error code %d, got %v", expected, e)
}
