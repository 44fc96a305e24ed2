package gitworkspace

import "testing"

func TestSanitizeSegmentIdempotent(t *testing.T) {
	inputs := []string{"My Repo!!", "already-clean", "UPPER_Case.123", ""}
	for _, in := range inputs {
		once := sanitizeSegment(in)
		twice := sanitizeSegment(once)
		if once != twice {
			t.Fatalf("sanitizeSegment not idempotent for %q: %q != %q", in, once, twice)
		}
	}
}

func TestRepoDirNamePrefersProjectHint(t *testing.T) {
	got := RepoDirName("Widgets App", "https://github.com/acme/widgets-app.git")
	if got != "widgetsapp" {
		t.Fatalf("got %q", got)
	}
}

func TestRepoDirNameRejectsUUIDHint(t *testing.T) {
	got := RepoDirName("123e4567-e89b-12d3-a456-426614174000", "https://github.com/acme/widgets.git")
	if got != "widgets" {
		t.Fatalf("expected fallback to remote URL, got %q", got)
	}
}

func TestRepoDirNameRejectsNumericHint(t *testing.T) {
	got := RepoDirName("42", "git@github.com:acme/widgets.git")
	if got != "widgets" {
		t.Fatalf("expected fallback to remote URL, got %q", got)
	}
}

func TestLastPathSegmentStripsHostAndSuffix(t *testing.T) {
	cases := map[string]string{
		"https://github.com/acme/widgets.git": "widgets",
		"git@github.com:acme/widgets.git":     "widgets",
		"https://github.com/acme/widgets/":    "widgets",
	}
	for in, want := range cases {
		if got := lastPathSegment(in); got != want {
			t.Fatalf("lastPathSegment(%q) = %q, want %q", in, got, want)
		}
	}
}
