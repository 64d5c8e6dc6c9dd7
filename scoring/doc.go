// Package scoring grades claims against the rest of the manuscript corpus.
//
// A claim's strength grows with the number of independent claims (from
// other sources) whose embeddings are similar to it, with logarithmic
// damping beyond the second corroborator. Contradictions between similar
// claims are detected lexically, using configurable negation, antonym and
// sentiment word lists.
package scoring
