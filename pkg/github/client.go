package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"
	"github.com/google/go-github/v69/github"
	"github.com/gregjones/httpcache"
	"golang.org/x/oauth2"
)

// requestTimeout bounds every individual request attempt; retried attempts
// each get a fresh budget.
const requestTimeout = 10 * time.Second

// Client provides authenticated access to the GitHub REST API.
type Client struct {
	gh  *github.Client
	cfg *PagerConfig
}

// NewClient creates a GitHub API client with the following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. bounded retries for 500/502/503/504 with exponential backoff, each
//     attempt bounded by its own requestTimeout
//  3. go-github-ratelimit (secondary rate limit middleware)
//  4. oauth2 static token source
func NewClient(token string) *Client {
	base := newRetryTransport(httpcache.NewMemoryCacheTransport())
	rl := github_ratelimit.NewClient(base)

	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, rl)
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(ctx, ts)

	return &Client{
		gh:  github.NewClient(tc),
		cfg: DefaultPagerConfig(),
	}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and
// base URL. This constructor is intended for testing, allowing injection
// of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string) (*Client, error) {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}

	client := github.NewClient(httpClient)
	client.BaseURL = u

	return &Client{
		gh:  client,
		cfg: DefaultPagerConfig(),
	}, nil
}

// WithConfig returns a shallow copy of the client using cfg for the
// retry/backoff behavior of subsequent calls. A nil cfg keeps the defaults.
func (c *Client) WithConfig(cfg *PagerConfig) *Client {
	if cfg == nil {
		return c
	}
	return &Client{gh: c.gh, cfg: cfg.withDefaults()}
}

// AuthenticatedUser fetches the identity behind the configured token. The
// login is reused as the HTTP Basic username for all git network
// operations. Rate limit exhaustion and transient server errors are
// absorbed by the same wait-and-retry machinery the repository pager uses;
// anything else is fatal, since nothing works without an identity.
func (c *Client) AuthenticatedUser(ctx context.Context) (*User, error) {
	var user *github.User

	err := c.cfg.retry(ctx, "authenticated user", func(ctx context.Context) error {
		var err error
		user, _, err = c.gh.Users.Get(ctx, "")
		return err
	})
	if err != nil {
		return nil, err
	}

	return &User{Login: user.GetLogin()}, nil
}
