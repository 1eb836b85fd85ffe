// Package keyword scores chunks lexically with an in-memory Bleve index. It backs the
// "lexical" rerank provider.
package keyword

// SearchOptions optional parameters for keyword search. Nil means use defaults.
type SearchOptions struct {
	// SectionBoost multiplies the score contribution from matches in the section path field.
	// Use 1.0 for no boost.
	SectionBoost float64
	// PhraseBoost multiplies the score when the query terms appear as a phrase.
	// Use 1.0 for no boost.
	PhraseBoost float64
	// FuzzyEnabled matches terms within Fuzziness edits (typos like "revenu").
	FuzzyEnabled bool
	// Fuzziness is the maximum Levenshtein edit distance (1 or 2). Default 1.
	Fuzziness int
}

// Result is a single keyword search hit.
type Result struct {
	ID    string
	Score float64
}
