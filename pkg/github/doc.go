// Package github provides the GitHub API access used by the backup run.
// It wraps the go-github client with a layered HTTP transport (conditional
// request caching, bounded retries for transient server errors, secondary
// rate limit handling) and exposes a lazy pager over the authenticated
// user's repository listing.
//
// The package includes:
// - Client for authenticated API access with a fixed per-request timeout
// - RepoPager implementing the retry/backoff/rate-limit state machine
// - An error taxonomy classifying API failures into the classes the
//   backup run reacts to
// - Name validation for untrusted repository and owner names
package github
