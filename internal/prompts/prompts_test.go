package prompts

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestExtractVariables(t *testing.T) {
	got := ExtractVariables("{{ .B }} and {{.A}} then {{.B}} and {{.Entry.Lemma}}")
	want := []string{"A", "B", "Entry.Lemma"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExtractVariables() = %v, want %v", got, want)
	}
}

func TestRender(t *testing.T) {
	got, err := Render("{{range $i, $v := .}}{{inc $i}}={{$v}} {{end}}", []string{"a", "b"})
	if err != nil {
		t.Fatal(err)
	}
	if got != "1=a 2=b " {
		t.Errorf("Render() = %q", got)
	}
	if _, err := Render("{{.Missing", nil); err == nil {
		t.Error("Render() expected parse error")
	}
}

func TestResolver(t *testing.T) {
	r := NewResolver(nil)
	r.Register(EmbeddedPrompt{Key: "k.system", Text: "hello {{.Name}}"})

	p, err := r.Resolve("k.system")
	if err != nil {
		t.Fatal(err)
	}
	if p.IsOverride || p.Hash != HashText("hello {{.Name}}") || len(p.Variables) != 1 {
		t.Errorf("Resolve() = %+v", p)
	}

	if _, err := r.Resolve("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Resolve(nope) error = %v, want ErrNotFound", err)
	}

	t.Run("overrides from dir", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, "k.system.tmpl"), []byte("custom"), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, "unknown.tmpl"), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		n, err := r.LoadOverrides(dir)
		if err != nil {
			t.Fatal(err)
		}
		if n != 1 {
			t.Errorf("LoadOverrides() = %d, want 1", n)
		}
		p, _ := r.Resolve("k.system")
		if !p.IsOverride || p.Text != "custom" {
			t.Errorf("Resolve() after override = %+v", p)
		}
		if all := r.All(); len(all) != 1 || !all[0].IsOverride {
			t.Errorf("All() = %+v", all)
		}
	})

	t.Run("missing dir", func(t *testing.T) {
		if n, err := r.LoadOverrides(filepath.Join(t.TempDir(), "absent")); err != nil || n != 0 {
			t.Errorf("LoadOverrides(absent) = %d, %v", n, err)
		}
	})
}
