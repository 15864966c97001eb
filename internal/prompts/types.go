// Package prompts provides prompt management with embedded defaults and
// operator overrides.
//
// Embedded .tmpl files in code are the source of truth for defaults. An
// override file named <key>.tmpl in the configured prompts directory
// replaces the default of the same key. Every LLM call records the hash of
// the prompt texts it was built from, so a call can be traced back to the
// exact prompt version.
package prompts

// EmbeddedPrompt represents a prompt loaded from an embedded .tmpl file.
type EmbeddedPrompt struct {
	Key         string   `json:"key"`  // Hierarchical key: refine.system
	Text        string   `json:"text"` // The prompt text (Go template)
	Description string   `json:"description,omitempty"`
	Variables   []string `json:"variables,omitempty"`
	Hash        string   `json:"hash"` // SHA256 of the text
}

// ResolvedPrompt is the text a caller should use for a key.
type ResolvedPrompt struct {
	Key        string   `json:"key"`
	Text       string   `json:"text"`
	Variables  []string `json:"variables,omitempty"`
	Hash       string   `json:"hash"`
	IsOverride bool     `json:"is_override"`
}
