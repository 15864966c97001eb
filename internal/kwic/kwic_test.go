package kwic

import (
	"strings"
	"testing"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		token  string
		window int
		want   string
	}{
		{
			name:   "window inside text",
			text:   "the quick brown fox jumps",
			token:  "brown",
			window: 4,
			want:   "...ick brown fox...",
		},
		{
			name:   "case insensitive",
			text:   "Hello World",
			token:  "world",
			window: 10,
			want:   "Hello World",
		},
		{
			name:   "truncated only at end",
			text:   "fox at the start of a long sentence",
			token:  "fox",
			window: 3,
			want:   "fox at...",
		},
		{
			name:   "newlines collapse",
			text:   "line one\n\nnext word here",
			token:  "next",
			window: 20,
			want:   "line one next word here",
		},
		{
			name:   "absent token",
			text:   "nothing to see",
			token:  "fox",
			window: 10,
			want:   "",
		},
		{
			name:   "empty token",
			text:   "anything",
			token:  "  ",
			window: 10,
			want:   "",
		},
		{
			name:   "empty text",
			text:   "",
			token:  "fox",
			window: 10,
			want:   "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Extract(tt.text, tt.token, tt.window); got != tt.want {
				t.Errorf("Extract() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtract_FoldingChangesLength(t *testing.T) {
	// "İ" lowercases to a longer byte sequence.
	text := "İstanbul has a harbour near the strait"
	got := Extract(text, "HARBOUR", 5)
	if !strings.Contains(got, "harbour") {
		t.Fatalf("Extract() = %q, want match on harbour", got)
	}
	if !strings.HasPrefix(got, "...") || !strings.HasSuffix(got, "...") {
		t.Errorf("Extract() = %q, want ellipsis on both sides", got)
	}
}

func TestExtract_SubstringAfterWideFolding(t *testing.T) {
	for _, text := range []string{"the dogs ran home", "İ the dogs ran home", "\u212A the dogs ran home"} {
		got := Extract(text, "dog", 5)
		if !strings.Contains(got, "dogs") {
			t.Errorf("Extract(%q, dog) = %q, want match inside dogs", text, got)
		}
	}
}

func TestExtract_RuneBoundaries(t *testing.T) {
	text := "ééééé token ééééé"
	got := Extract(text, "token", 2)
	if !strings.Contains(got, "token") {
		t.Fatalf("Extract() = %q", got)
	}
	for _, r := range got {
		if r == '\uFFFD' {
			t.Fatalf("Extract() split a rune: %q", got)
		}
	}
}

func TestPlainText(t *testing.T) {
	t.Run("html body", func(t *testing.T) {
		body := `<html><head><style>p{}</style></head><body><p>The bank</p><p>of the river</p><script>x()</script></body></html>`
		got := PlainText(body, "text/html")
		if strings.Contains(got, "<") || strings.Contains(got, "x()") || strings.Contains(got, "p{}") {
			t.Errorf("PlainText() = %q, still contains markup", got)
		}
		if !strings.Contains(got, "The bank") || !strings.Contains(got, "of the river") {
			t.Errorf("PlainText() = %q, lost text", got)
		}
	})

	t.Run("plain body", func(t *testing.T) {
		body := "a < b and c > d"
		if got := PlainText(body, "text/plain"); got != body {
			t.Errorf("PlainText() = %q, want unchanged", got)
		}
	})

	t.Run("sniffed html", func(t *testing.T) {
		got := PlainText("<p>hello</p>", "")
		if got != "hello" {
			t.Errorf("PlainText() = %q, want hello", got)
		}
	})
}
