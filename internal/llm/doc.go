// Package llm contains adapters for invoking large language models to phrase
// outcome replies. It abstracts away provider-specific APIs; deterministic
// templates remain the fallback when no provider is configured.
package llm
