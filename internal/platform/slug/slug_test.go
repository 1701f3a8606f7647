package slug_test

import (
	"testing"

	"habitsync/internal/platform/slug"
)

func TestMake(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"2026-03-02 0815 s-1": "2026-03-02-0815-s-1",
		"  Café Crème  ":      "cafe-creme",
		"Deep work / focus!!": "deep-work-focus",
		"---":                 "untitled",
		"":                    "untitled",
		"9b2c…e1f0 (retry)":   "9b2c-e1f0-retry",
	}
	for in, want := range cases {
		if got := slug.Make(in); got != want {
			t.Fatalf("Make(%q) = %q, want %q", in, got, want)
		}
	}
}
