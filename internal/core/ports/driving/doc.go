// Package driving declares what the CLI and the MCP server may ask of the
// core: suggestions, retrieval inspection, ingestion and settings.
//
// internal/core/services implements every interface here.
package driving
