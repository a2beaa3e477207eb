package github

import "testing"

func TestCheckName(t *testing.T) {
	valid := []string{
		"repo",
		"my-repo",
		"my.repo",
		"my_repo",
		"a",
		"1repo",
		"_repo",
		"repo-2.0_final",
	}
	for _, name := range valid {
		t.Run("valid/"+name, func(t *testing.T) {
			got, err := CheckName(name)
			if err != nil {
				t.Fatalf("CheckName(%q) returned error: %v", name, err)
			}
			if got != name {
				t.Errorf("CheckName(%q) = %q, want unchanged", name, got)
			}
		})
	}

	invalid := []string{
		"",
		".hidden",
		"..",
		"-flag",
		"--force",
		"a/b",
		`a\b`,
		"a b",
		"a\tb",
		"a;rm",
		"a|b",
		"a$b",
		"a`b",
		"répo",
	}
	for _, name := range invalid {
		t.Run("invalid", func(t *testing.T) {
			_, err := CheckName(name)
			if err == nil {
				t.Fatalf("CheckName(%q) accepted unsafe name", name)
			}
			vErr, ok := err.(*ValidationError)
			if !ok {
				t.Fatalf("CheckName(%q) returned %T, want *ValidationError", name, err)
			}
			if vErr.Value != name {
				t.Errorf("ValidationError.Value = %q, want %q", vErr.Value, name)
			}
		})
	}
}
