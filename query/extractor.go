// Package query implements the two query-time components that decide what
// can be skipped before touching an archive's data: TermExtractor
// (spec.md §4.L) and Pipeline (spec.md §4.M).
package query

import (
	"strings"

	"github.com/ShangDanLuXian/clp/collab"
)

// TermResult is the outcome of extracting equality terms from an AST.
type TermResult struct {
	Supported bool
	Reason    string
	Terms     []string
}

// ExtractTerms walks expr looking for AND-composed equality terms that a
// filter could rule out. Any inversion or OR anywhere in the tree makes the
// whole query unsupported: a filter absence on one branch does not rule out
// a match on another, and a filter presence under negation says nothing
// about the negated outcome.
func ExtractTerms(expr collab.Expression) TermResult {
	result := TermResult{Supported: true}
	collectTerms(expr, false, &result)
	return result
}

func collectTerms(expr collab.Expression, invertedContext bool, result *TermResult) {
	if !result.Supported || expr == nil {
		return
	}

	inverted := invertedContext != expr.IsInverted()
	if inverted {
		result.Supported = false
		result.Reason = "inverted-expression"
		return
	}

	switch expr.Kind() {
	case collab.KindOr:
		result.Supported = false
		result.Reason = "or-expression"
		return
	case collab.KindAnd:
		and, ok := expr.(collab.AndExpr)
		if !ok {
			result.Supported = false
			result.Reason = "non-expression-operand"
			return
		}
		for _, child := range and.Operands() {
			collectTerms(child, inverted, result)
			if !result.Supported {
				return
			}
		}
		return
	}

	filter, ok := expr.(collab.FilterExpr)
	if !ok || expr.Kind() != collab.KindFilter {
		result.Supported = false
		result.Reason = "unsupported-expression"
		return
	}

	if filter.Operation() != collab.Equals {
		return
	}

	literal := filter.Operand()
	if literal == nil {
		return
	}
	_, ok = literal.AsVarString(filter.Operation())
	if !ok {
		return
	}
	if literal.HasUnescapedWildcards() {
		return
	}
	result.Terms = append(result.Terms, literal.Unescape())
}

// DedupedTerms deduplicates terms and produces the as-typed and lower-cased
// variants a filter lookup needs (spec.md §4.L: filters are byte-exact, so a
// normalize-flagged filter must be queried with the lower-cased variant).
func DedupedTerms(terms []string) (asTyped, lowerCased []string) {
	seen := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		asTyped = append(asTyped, t)
	}
	lowerCased = make([]string, len(asTyped))
	for i, t := range asTyped {
		lowerCased[i] = strings.ToLower(t)
	}
	return asTyped, lowerCased
}
