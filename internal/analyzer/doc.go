// Package analyzer scores and classifies raw content before narrative
// generation. It combines deterministic text statistics with guarded
// text-backend calls; every backend failure degrades to a conservative
// default instead of failing the pipeline stage.
package analyzer
