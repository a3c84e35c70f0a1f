// Package collab defines the contract-level types this module depends on
// but does not own: AST nodes produced by a query parser, and the
// dictionary/column/compression collaborators an archive reader would wire
// in. None of these are implemented here; they are the seams a caller
// plugs real parser/storage code into (spec.md §6).
package collab

// FilterOperation enumerates the comparison operators a FilterExpr leaf can
// carry. Only Equals is understood by QueryTermExtractor; every other
// operation is treated as "no term to extract" rather than an error.
type FilterOperation int

const (
	// Equals is the only operation QueryTermExtractor extracts a term from.
	Equals FilterOperation = iota
	// Other covers every comparison a real parser would emit (substring,
	// regex, range, wildcard, ...) that this module has no opinion on.
	Other
)

// ExpressionKind tags which concrete node shape an Expression has.
// AndExpr and OrExpr expose the identical Operands()/IsInverted() method
// set, so Go's structural typing alone cannot tell them apart at a type
// assertion; QueryTermExtractor dispatches on Kind() first and only then
// asserts the matching interface.
type ExpressionKind int

const (
	// KindOther covers any node that is none of the three kinds below.
	KindOther ExpressionKind = iota
	KindAnd
	KindOr
	KindFilter
)

// Expression is the minimal AST node contract QueryTermExtractor traverses.
// A real query parser's node types should satisfy this (directly, or via a
// thin adapter) without this module knowing their concrete shape.
type Expression interface {
	// IsInverted reports whether this node negates its own subtree, before
	// composing with any ancestor's inversion.
	IsInverted() bool
	// Kind reports which of AndExpr/OrExpr/FilterExpr this node is, so
	// callers can assert the right interface instead of guessing from an
	// ambiguous method set.
	Kind() ExpressionKind
}

// AndExpr conjoins its operands. Every operand must itself satisfy
// Expression; a caller whose AST encodes non-expression operands should not
// implement this interface for such nodes.
type AndExpr interface {
	Expression
	Operands() []Expression
}

// OrExpr disjoins its operands. QueryTermExtractor treats any OrExpr as
// unsupported regardless of contents, since a filter could rule out one
// disjunct while another still matches.
type OrExpr interface {
	Expression
	Operands() []Expression
}

// Literal is the operand of a FilterExpr leaf.
type Literal interface {
	// AsVarString returns the literal's value as a variable-string operand
	// for op, and false if the literal cannot be interpreted that way (e.g.
	// it is numeric, or op does not support string comparison).
	AsVarString(op FilterOperation) (string, bool)
	// HasUnescapedWildcards reports whether the literal contains wildcard
	// metacharacters not preceded by an escape.
	HasUnescapedWildcards() bool
	// Unescape returns the literal's value with escape sequences resolved.
	Unescape() string
}

// FilterExpr is a leaf comparison: operation applied to operand.
type FilterExpr interface {
	Expression
	Operation() FilterOperation
	Operand() Literal
}
