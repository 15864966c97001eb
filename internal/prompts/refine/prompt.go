// Package refine holds the prompts for taxonomy refinement calls.
package refine

import (
	_ "embed"
	"fmt"

	"github.com/jackzampolin/semtag/internal/prompts"
)

//go:embed system.tmpl
var systemPrompt string

//go:embed user.tmpl
var userPromptTmpl string

// Prompt keys
const (
	SystemPromptKey = "refine.system"
	UserPromptKey   = "refine.user"
)

// NoContext marks an entry for which no usage context was found.
const NoContext = "(no context available)"

// Item is one entry as shown to the model.
type Item struct {
	SurfaceForm  string
	Lemma        string
	PartOfSpeech string
	Code         string
	Occurrences  int
	Context      string
}

// Data fills the user prompt.
type Data struct {
	Domain   string
	Taxonomy string
	Items    []Item
}

// Built is a rendered prompt pair.
type Built struct {
	System string
	User   string
	// Hash identifies the template versions the prompt was built from.
	Hash string
}

// SystemPrompt returns the embedded system prompt.
func SystemPrompt() string {
	return systemPrompt
}

// RegisterPrompts registers the refinement prompts with the resolver.
func RegisterPrompts(r *prompts.Resolver) {
	r.Register(prompts.EmbeddedPrompt{
		Key:         SystemPromptKey,
		Text:        systemPrompt,
		Description: "Refinement system prompt - output contract and confidence convention",
	})
	r.Register(prompts.EmbeddedPrompt{
		Key:         UserPromptKey,
		Text:        userPromptTmpl,
		Description: "Refinement user prompt template - taxonomy and entry batch",
	})
}

// Build renders both prompts through the resolver.
func Build(r *prompts.Resolver, data Data) (*Built, error) {
	sys, err := r.Resolve(SystemPromptKey)
	if err != nil {
		return nil, err
	}
	usr, err := r.Resolve(UserPromptKey)
	if err != nil {
		return nil, err
	}

	system, err := prompts.Render(sys.Text, data)
	if err != nil {
		return nil, fmt.Errorf("system prompt: %w", err)
	}
	user, err := prompts.Render(usr.Text, struct {
		Data
		NoContext string
	}{data, NoContext})
	if err != nil {
		return nil, fmt.Errorf("user prompt: %w", err)
	}
	return &Built{System: system, User: user, Hash: prompts.HashText(sys.Hash + usr.Hash)}, nil
}
