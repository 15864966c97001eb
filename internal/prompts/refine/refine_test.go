package refine

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/jackzampolin/semtag/internal/prompts"
)

func TestBuild(t *testing.T) {
	r := prompts.NewResolver(nil)
	RegisterPrompts(r)

	built, err := Build(r, Data{
		Domain:   "A",
		Taxonomy: "A  Animals\n  A.1  Mammals\n",
		Items: []Item{
			{SurfaceForm: "dog", Code: "A", Occurrences: 12, Lemma: "dog", PartOfSpeech: "NOUN", Context: "...the dog barked..."},
			{SurfaceForm: "wren", Occurrences: 1},
		},
	})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	for _, want := range []string{"restricted to A", "A.1  Mammals", "1. dog", "lemma: dog", "part of speech: NOUN",
		"...the dog barked...", "2. wren", "current code: none", NoContext} {
		if !strings.Contains(built.User, want) {
			t.Errorf("user prompt missing %q:\n%s", want, built.User)
		}
	}
	if strings.Count(built.User, NoContext) != 1 {
		t.Errorf("marker should appear once:\n%s", built.User)
	}
	if !strings.Contains(built.System, "0.70") || !strings.Contains(built.System, "0.98") {
		t.Errorf("system prompt lost the confidence convention")
	}
	if built.Hash == "" {
		t.Error("Build() hash empty")
	}

	r.Override(UserPromptKey, "{{range .Items}}{{.SurfaceForm}};{{end}}")
	again, err := Build(r, Data{Items: []Item{{SurfaceForm: "x"}}})
	if err != nil {
		t.Fatal(err)
	}
	if again.User != "x;" || again.Hash == built.Hash {
		t.Errorf("override not applied: %+v", again)
	}
}

func TestReplySchema(t *testing.T) {
	valid := `[{"surfaceForm": "dog", "proposedCode": "A.1", "confidence": 0.9}]`
	if err := ReplySchema.Validate(json.RawMessage(valid)); err != nil {
		t.Errorf("Validate(valid) error = %v", err)
	}
	invalid := []string{
		`{"surfaceForm": "dog", "proposedCode": "A.1", "confidence": 0.9}`,
		`[{"surfaceForm": "dog", "confidence": 0.9}]`,
		`[{"surfaceForm": "dog", "proposedCode": 3, "confidence": 0.9}]`,
		`[{"surfaceForm": "dog", "proposedCode": "A", "confidence": 1.5}]`,
	}
	for _, doc := range invalid {
		if err := ReplySchema.Validate(json.RawMessage(doc)); err == nil {
			t.Errorf("Validate(%s) expected error", doc)
		}
	}
}
