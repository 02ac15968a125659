// Package defaults provides embedded default assets (prompt templates and config).
package defaults

import _ "embed"

// DefaultPrompt is the retrieval-augmented answer prompt template.
//
//go:embed default_prompt.md
var DefaultPrompt string

// OneSentencePrompt is the system prompt for direct one-sentence answers.
//
//go:embed one_sentence_prompt.md
var OneSentencePrompt string

//go:embed config.toml
var DefaultConfigTOML []byte
