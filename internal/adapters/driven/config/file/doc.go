// Package file provides filesystem-backed driven adapters: the TOML
// ConfigStore and the PromptStore for editable LLM prompt templates.
package file
