package query

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ShangDanLuXian/clp/collab"
)

type fakeLiteral struct {
	value     string
	isVarStr  bool
	wildcards bool
}

func (l fakeLiteral) AsVarString(op collab.FilterOperation) (string, bool) {
	if op != collab.Equals || !l.isVarStr {
		return "", false
	}
	return l.value, true
}
func (l fakeLiteral) HasUnescapedWildcards() bool { return l.wildcards }
func (l fakeLiteral) Unescape() string            { return l.value }

type fakeFilter struct {
	inverted  bool
	operation collab.FilterOperation
	operand   collab.Literal
}

func (f fakeFilter) IsInverted() bool                  { return f.inverted }
func (f fakeFilter) Kind() collab.ExpressionKind       { return collab.KindFilter }
func (f fakeFilter) Operation() collab.FilterOperation { return f.operation }
func (f fakeFilter) Operand() collab.Literal           { return f.operand }

type fakeAnd struct {
	inverted bool
	operands []collab.Expression
}

func (a fakeAnd) IsInverted() bool             { return a.inverted }
func (a fakeAnd) Kind() collab.ExpressionKind  { return collab.KindAnd }
func (a fakeAnd) Operands() []collab.Expression { return a.operands }

type fakeOr struct {
	inverted bool
	operands []collab.Expression
}

func (o fakeOr) IsInverted() bool              { return o.inverted }
func (o fakeOr) Kind() collab.ExpressionKind   { return collab.KindOr }
func (o fakeOr) Operands() []collab.Expression { return o.operands }

func eqTerm(value string) fakeFilter {
	return fakeFilter{operation: collab.Equals, operand: fakeLiteral{value: value, isVarStr: true}}
}

func TestExtractSingleEqualityTerm(t *testing.T) {
	result := ExtractTerms(eqTerm("ERROR"))
	require.True(t, result.Supported)
	require.Equal(t, []string{"ERROR"}, result.Terms)
}

func TestExtractAndOfEqualities(t *testing.T) {
	expr := fakeAnd{operands: []collab.Expression{eqTerm("ERROR"), eqTerm("disk")}}
	result := ExtractTerms(expr)
	require.True(t, result.Supported)
	require.ElementsMatch(t, []string{"ERROR", "disk"}, result.Terms)
}

func TestExtractRejectsInversion(t *testing.T) {
	expr := fakeFilter{inverted: true, operation: collab.Equals, operand: fakeLiteral{value: "x", isVarStr: true}}
	result := ExtractTerms(expr)
	require.False(t, result.Supported)
	require.Equal(t, "inverted-expression", result.Reason)
}

func TestExtractRejectsOr(t *testing.T) {
	expr := fakeOr{operands: []collab.Expression{eqTerm("a"), eqTerm("b")}}
	result := ExtractTerms(expr)
	require.False(t, result.Supported)
	require.Equal(t, "or-expression", result.Reason)
}

func TestExtractIgnoresNonEqualityLeaf(t *testing.T) {
	expr := fakeFilter{operation: collab.Other, operand: fakeLiteral{value: "x", isVarStr: true}}
	result := ExtractTerms(expr)
	require.True(t, result.Supported)
	require.Empty(t, result.Terms)
}

func TestExtractIgnoresWildcardLiteral(t *testing.T) {
	expr := fakeFilter{operation: collab.Equals, operand: fakeLiteral{value: "err*", isVarStr: true, wildcards: true}}
	result := ExtractTerms(expr)
	require.True(t, result.Supported)
	require.Empty(t, result.Terms)
}

func TestExtractNestedAndIsSupported(t *testing.T) {
	inner := fakeAnd{operands: []collab.Expression{eqTerm("x"), eqTerm("y")}}
	outer := fakeAnd{operands: []collab.Expression{inner, eqTerm("z")}}
	result := ExtractTerms(outer)
	require.True(t, result.Supported)
	require.ElementsMatch(t, []string{"x", "y", "z"}, result.Terms)
}

func TestExtractInvertedChildInsideAndIsUnsupported(t *testing.T) {
	inner := fakeFilter{inverted: true, operation: collab.Equals, operand: fakeLiteral{value: "x", isVarStr: true}}
	outer := fakeAnd{operands: []collab.Expression{inner, eqTerm("y")}}
	result := ExtractTerms(outer)
	require.False(t, result.Supported)
	require.Equal(t, "inverted-expression", result.Reason)
}

func TestDedupedTerms(t *testing.T) {
	asTyped, lower := DedupedTerms([]string{"ERROR", "error", "ERROR"})
	require.Equal(t, []string{"ERROR", "error"}, asTyped)
	require.Equal(t, []string{"error", "error"}, lower)
}
