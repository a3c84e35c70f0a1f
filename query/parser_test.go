package query

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseSimpleEquality(t *testing.T) {
	expr, err := ParseExpression(`level="ERROR"`)
	require.NoError(t, err)
	result := ExtractTerms(expr)
	require.True(t, result.Supported)
	require.Equal(t, []string{"ERROR"}, result.Terms)
}

func TestParseImplicitAnd(t *testing.T) {
	expr, err := ParseExpression(`level="ERROR" service="disk"`)
	require.NoError(t, err)
	result := ExtractTerms(expr)
	require.True(t, result.Supported)
	require.ElementsMatch(t, []string{"ERROR", "disk"}, result.Terms)
}

func TestParseExplicitAnd(t *testing.T) {
	expr, err := ParseExpression(`level="ERROR" AND service="disk"`)
	require.NoError(t, err)
	result := ExtractTerms(expr)
	require.True(t, result.Supported)
	require.ElementsMatch(t, []string{"ERROR", "disk"}, result.Terms)
}

func TestParseOrIsUnsupported(t *testing.T) {
	expr, err := ParseExpression(`level="ERROR" OR level="WARN"`)
	require.NoError(t, err)
	result := ExtractTerms(expr)
	require.False(t, result.Supported)
	require.Equal(t, "or-expression", result.Reason)
}

func TestParseNotIsUnsupported(t *testing.T) {
	expr, err := ParseExpression(`NOT level="ERROR"`)
	require.NoError(t, err)
	result := ExtractTerms(expr)
	require.False(t, result.Supported)
	require.Equal(t, "inverted-expression", result.Reason)
}

func TestParseWildcardLiteralYieldsNoTerm(t *testing.T) {
	expr, err := ParseExpression(`level="ERR*"`)
	require.NoError(t, err)
	result := ExtractTerms(expr)
	require.True(t, result.Supported)
	require.Empty(t, result.Terms)
}

func TestParseParenthesizedGroup(t *testing.T) {
	expr, err := ParseExpression(`(level="ERROR" AND service="disk")`)
	require.NoError(t, err)
	result := ExtractTerms(expr)
	require.True(t, result.Supported)
	require.ElementsMatch(t, []string{"ERROR", "disk"}, result.Terms)
}

func TestParseUnbalancedParenthesesIsError(t *testing.T) {
	_, err := ParseExpression(`(level="ERROR"`)
	require.Error(t, err)
}
