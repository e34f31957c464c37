// Package types defines the shared value types of the fusionflow retrieval
// engine: queries, per-strategy results, fused and reranked results, quality
// assessments, corrective actions, the collaborator interfaces the engine
// consumes, and the unified error model.
//
// All entities here are created fresh per Retrieve invocation and are
// immutable once produced. Rescoring stages build new records instead of
// mutating earlier ones.
package types
