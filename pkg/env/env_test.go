package env

import "testing"

func TestGetFallsBackOnBlank(t *testing.T) {
	t.Setenv("PF_TEST_VALUE", "   ")
	if got := Get("PF_TEST_VALUE", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback for blank value, got %q", got)
	}
	t.Setenv("PF_TEST_VALUE", " console ")
	if got := Get("PF_TEST_VALUE", "json"); got != "console" {
		t.Fatalf("expected trimmed value, got %q", got)
	}
}

func TestBool(t *testing.T) {
	t.Setenv("PF_TEST_FLAG", "true")
	if !Bool("PF_TEST_FLAG", false) {
		t.Fatalf("expected true")
	}
	t.Setenv("PF_TEST_FLAG", "nope")
	if !Bool("PF_TEST_FLAG", true) {
		t.Fatalf("malformed value should return fallback")
	}
}
