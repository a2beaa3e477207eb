package github

// Repository is the subset of a GitHub repository record the backup uses.
// All fields originate from the API and are untrusted until validated.
type Repository struct {
	Name     string `json:"name"`
	Owner    string `json:"owner"`
	CloneURL string `json:"clone_url"`
	Private  bool   `json:"private"`
}

// User represents the authenticated GitHub user. The login doubles as the
// HTTP Basic username for git network operations.
type User struct {
	Login string `json:"login"`
}
