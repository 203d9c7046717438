// Package stages owns the scene-building pipeline.
//
// Ownership boundary:
// - stage metadata and the stage registry
// - default pipeline order
// - pipeline execution, per-stage results and the run journal hook
package stages
