// Package model contains the shared value types exchanged between the
// embedding cache, the vector index, the similarity scorer and the citation
// validator, plus the read-only collaborator interfaces the engine consumes.
package model
