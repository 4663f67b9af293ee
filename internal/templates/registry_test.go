package templates

import (
	"errors"
	"testing"
)

func TestRegistryRender(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(Template{
		Kind:      "lembrete",
		Variables: []string{"nome", "valor"},
		Body:      "Olá {nome}, seu boleto de {valor} vence em {data}.",
	}); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	body, err := reg.Render("lembrete", map[string]string{"nome": "Ana", "valor": "R$ 10,00"})
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if want := "Olá Ana, seu boleto de R$ 10,00 vence em ."; body != want {
		t.Fatalf("unexpected body %q, want %q", body, want)
	}
}

func TestTemplateRenderRepeatedAndUnclosedTags(t *testing.T) {
	tmpl := Template{Kind: "k", Body: "{nome}, {nome}! valor {valor"}
	got := tmpl.Render(map[string]string{"nome": "Ana", "valor": "R$ 1,00"})
	if want := "Ana, Ana! valor {valor"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestRegistryUnknownKind(t *testing.T) {
	reg := NewRegistry()
	if _, err := reg.Render("missing", nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := reg.Resolve("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(Template{Body: "x"}); err == nil {
		t.Fatal("expected error for empty kind")
	}
	if err := reg.Register(Template{Kind: "empty"}); err == nil {
		t.Fatal("expected error for template without body or content sid")
	}
}

func TestPositional(t *testing.T) {
	tmpl := Template{
		Kind:       "k",
		Variables:  []string{"nome", "valor", "data_vencimento"},
		ContentSID: "HX123",
	}
	got := tmpl.Positional(map[string]string{"nome": "Ana", "data_vencimento": "20/10/2026", "extra": "x"})
	want := map[string]string{"1": "Ana", "2": "", "3": "20/10/2026"}
	if len(got) != len(want) {
		t.Fatalf("unexpected positional map %v", got)
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("slot %s = %q, want %q", k, got[k], v)
		}
	}
}

func TestUsesApproved(t *testing.T) {
	cases := []struct {
		tmpl Template
		want bool
	}{
		{Template{ContentSID: "HX1"}, true},
		{Template{ContentSID: "HX1", PlainText: true}, false},
		{Template{Body: "hi"}, false},
	}
	for _, tc := range cases {
		if got := tc.tmpl.UsesApproved(); got != tc.want {
			t.Fatalf("UsesApproved(%+v) = %v, want %v", tc.tmpl, got, tc.want)
		}
	}
}
