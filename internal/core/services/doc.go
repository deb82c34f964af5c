// Package services implements the driving port interfaces.
// Services contain the ingest and query pipelines and orchestrate
// calls to driven ports (adapters).
package services
