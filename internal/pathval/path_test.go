package pathval

import (
	"os"
	"testing"
)

func TestExpandTildeForms(t *testing.T) {
	t.Setenv("HOME", "/home/agent")

	cases := map[string]string{
		"~":            "/home/agent",
		"~/":           "/home/agent/",
		"~/projects":   "/home/agent/projects",
		"~alice/x":     "~alice/x",
		"/already/abs": "/already/abs",
		"":             "",
	}
	for in, want := range cases {
		if got := Expand(in); got != want {
			t.Errorf("Expand(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestExpandWithoutHomeLeavesTildeUnexpanded(t *testing.T) {
	os.Unsetenv("HOME")
	if got := Expand("~"); got != "~" {
		t.Fatalf("expected unexpanded tilde without HOME, got %q", got)
	}
	if got := Expand("~/x"); got != "~/x" {
		t.Fatalf("expected unexpanded ~/ without HOME, got %q", got)
	}
}

func TestDecodeAcceptsStringAndBytes(t *testing.T) {
	t.Setenv("HOME", "/home/agent")

	got, err := Decode("~/foo")
	if err != nil || got != "/home/agent/foo" {
		t.Fatalf("Decode(string): got (%q, %v)", got, err)
	}

	got, err = Decode([]byte("/raw/bytes"))
	if err != nil || got != "/raw/bytes" {
		t.Fatalf("Decode([]byte): got (%q, %v)", got, err)
	}
}

func TestDecodeRejectsMissingOrWrongType(t *testing.T) {
	if _, err := Decode(nil); err == nil {
		t.Fatal("expected error for nil path value")
	}
	if _, err := Decode(42); err == nil {
		t.Fatal("expected error for unsupported type")
	}
}
