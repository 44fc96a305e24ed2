package gitworkspace

import "testing"

func TestValidateRemoteURLAllowsHTTPSAndSSH(t *testing.T) {
	cases := []string{
		"https://github.com/acme/widgets.git",
		"git@github.com:acme/widgets.git",
		"ssh://git@github.com/acme/widgets.git",
	}
	for _, c := range cases {
		if err := ValidateRemoteURL(c); err != nil {
			t.Fatalf("ValidateRemoteURL(%q): %v", c, err)
		}
	}
}

func TestValidateRemoteURLRejectsFileScheme(t *testing.T) {
	if err := ValidateRemoteURL("file:///etc/passwd"); err == nil {
		t.Fatal("expected file:// to be rejected")
	}
}

func TestValidateRepoPathRejectsTraversal(t *testing.T) {
	if err := ValidateRepoPath("/base", "/base/../etc"); err == nil {
		t.Fatal("expected traversal to be rejected")
	}
}

func TestValidateConventionalCommit(t *testing.T) {
	if !ValidateConventionalCommit("feat(workspace): add checkout") {
		t.Fatal("expected conventional commit to pass")
	}
	if ValidateConventionalCommit("did a thing") {
		t.Fatal("expected non-conventional message to fail")
	}
}
