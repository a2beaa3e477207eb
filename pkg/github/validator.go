package github

import "regexp"

// namePattern accepts one leading word character followed by word
// characters, dots, or hyphens. Names can never start with "." or "-",
// which keeps them safe as path segments and command arguments.
var namePattern = regexp.MustCompile(`^\w[-.\w]*$`)

// CheckName validates an owner or repository name received from the API.
// It returns the name unchanged when it matches the safe-name pattern and
// a *ValidationError naming the offending value otherwise.
func CheckName(name string) (string, error) {
	if !namePattern.MatchString(name) {
		return "", &ValidationError{Value: name}
	}
	return name, nil
}
