// Package logging provides rotating, structured JSON logging for GeoRAG.
// Build stage transitions, repair counts, and query stage timings are
// logged as structured fields rather than free-form strings, so an
// operator can grep or pipe logs into a JSON-aware tool.
package logging
