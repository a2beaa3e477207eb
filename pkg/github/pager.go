package github

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/go-github/v69/github"
)

// listPageSize is the number of repositories requested per API page.
const listPageSize = 100

// EndReason reports why a page sequence stopped.
type EndReason int

const (
	// EndOfList means the listing was exhausted normally: the last
	// response carried no next-page link.
	EndOfList EndReason = iota
	// EndClientError means a non-rate-limit 4xx response ended the
	// sequence early.
	EndClientError
	// EndTransportError means a connection-level failure, or exhausted
	// server-error retries, ended the sequence early.
	EndTransportError
)

func (r EndReason) String() string {
	switch r {
	case EndOfList:
		return "end of list"
	case EndClientError:
		return "client error"
	case EndTransportError:
		return "transport error"
	}
	return "unknown"
}

// PagerConfig controls the retry/backoff behavior of API calls. The Sleep
// and Now hooks exist so tests can run the waiting branches
// deterministically.
type PagerConfig struct {
	// Strict surfaces client and transport errors through Err instead of
	// silently truncating the listing.
	Strict bool

	// MaxServerRetries bounds the slow retry loop for 5xx responses.
	// Zero keeps it unbounded.
	MaxServerRetries int

	// RateLimitBuffer is added to the reported rate limit reset to avoid
	// retrying marginally too early.
	RateLimitBuffer time.Duration

	// ServerRetryDelay is the fixed wait between 5xx retries.
	ServerRetryDelay time.Duration

	Logger *slog.Logger
	Sleep  func(time.Duration)
	Now    func() time.Time
}

// DefaultPagerConfig returns the production configuration: unbounded slow
// retries, a 10s rate limit safety buffer, and a 5s server error delay.
func DefaultPagerConfig() *PagerConfig {
	return &PagerConfig{
		RateLimitBuffer:  10 * time.Second,
		ServerRetryDelay: 5 * time.Second,
		Logger:           slog.Default(),
		Sleep:            time.Sleep,
		Now:              time.Now,
	}
}

func (cfg *PagerConfig) withDefaults() *PagerConfig {
	if cfg == nil {
		return DefaultPagerConfig()
	}
	out := *cfg
	if out.RateLimitBuffer == 0 {
		out.RateLimitBuffer = 10 * time.Second
	}
	if out.ServerRetryDelay == 0 {
		out.ServerRetryDelay = 5 * time.Second
	}
	if out.Logger == nil {
		out.Logger = slog.Default()
	}
	if out.Sleep == nil {
		out.Sleep = time.Sleep
	}
	if out.Now == nil {
		out.Now = time.Now
	}
	return &out
}

// retry runs call until it succeeds or fails in a way waiting cannot fix.
// Rate limit exhaustion sleeps until the reported reset plus the safety
// buffer and reissues the identical request, so no page is lost or
// skipped. Server errors sleep a fixed delay between attempts, bounded by
// MaxServerRetries when set. The returned error is always a classified
// *Error.
//
// Requests carry BypassRateLimitCheck so go-github's client-side rate
// limit caches never short-circuit a retry: waiting is solely this loop's
// responsibility, which keeps the injected Sleep and Now authoritative.
func (cfg *PagerConfig) retry(ctx context.Context, resource string, call func(context.Context) error) error {
	reqCtx := context.WithValue(ctx, github.BypassRateLimitCheck, true)
	serverRetries := 0
	for {
		if err := ctx.Err(); err != nil {
			return wrapAPIError(err, resource)
		}

		err := call(reqCtx)
		if err == nil {
			return nil
		}

		classified := wrapAPIError(err, resource)
		switch classified.Type {
		case ErrorTypeRateLimit:
			wait := cfg.rateLimitWait(err)
			cfg.Logger.Warn("rate limit exceeded, waiting",
				"resource", resource, "wait", wait)
			cfg.Sleep(wait)
		case ErrorTypeServer:
			serverRetries++
			if cfg.MaxServerRetries > 0 && serverRetries > cfg.MaxServerRetries {
				return classified
			}
			cfg.Logger.Warn("server error, retrying",
				"resource", resource, "error", classified.Message,
				"delay", cfg.ServerRetryDelay)
			cfg.Sleep(cfg.ServerRetryDelay)
		default:
			return classified
		}
	}
}

// rateLimitWait computes how long to sleep before reissuing a rate-limited
// request.
func (cfg *PagerConfig) rateLimitWait(err error) time.Duration {
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) && abuseErr.RetryAfter != nil {
		return *abuseErr.RetryAfter
	}

	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		if wait := rateErr.Rate.Reset.Time.Sub(cfg.Now()) + cfg.RateLimitBuffer; wait > 0 {
			return wait
		}
	}
	return cfg.RateLimitBuffer
}

// RepoPager lazily walks the authenticated user's repository listing one
// API page at a time, following the next-page link relation until the
// listing is exhausted or an unrecoverable error ends it early.
type RepoPager struct {
	client *Client
	cfg    *PagerConfig

	page     []Repository
	nextPage int
	fetched  bool
	done     bool
	reason   EndReason
	err      error
}

// Repos returns a pager over the authenticated user's repositories
// (GET /user/repos).
func (c *Client) Repos() *RepoPager {
	return &RepoPager{client: c, cfg: c.cfg}
}

// Next fetches the next page. It returns false when the sequence is
// exhausted, after which End reports whether exhaustion was natural and,
// in strict mode, Err carries the terminating error.
func (p *RepoPager) Next(ctx context.Context) bool {
	if p.done {
		return false
	}
	if p.fetched && p.nextPage == 0 {
		p.done = true
		p.reason = EndOfList
		return false
	}

	opts := &github.RepositoryListByAuthenticatedUserOptions{
		ListOptions: github.ListOptions{PerPage: listPageSize, Page: p.nextPage},
	}

	var (
		repos []*github.Repository
		resp  *github.Response
	)
	err := p.cfg.retry(ctx, "repository listing", func(ctx context.Context) error {
		var err error
		repos, resp, err = p.client.gh.Repositories.ListByAuthenticatedUser(ctx, opts)
		return err
	})
	if err != nil {
		p.terminate(err)
		return false
	}

	p.page = make([]Repository, 0, len(repos))
	for _, r := range repos {
		p.page = append(p.page, Repository{
			Name:     r.GetName(),
			Owner:    r.GetOwner().GetLogin(),
			CloneURL: r.GetCloneURL(),
			Private:  r.GetPrivate(),
		})
	}
	p.fetched = true
	p.nextPage = resp.NextPage
	return true
}

// Page returns the most recently fetched page.
func (p *RepoPager) Page() []Repository {
	return p.page
}

// End reports why the sequence stopped. Meaningful once Next has returned
// false.
func (p *RepoPager) End() EndReason {
	return p.reason
}

// Err returns the terminating error in strict mode. In best-effort mode an
// early termination is indistinguishable from natural exhaustion here;
// consult End for the reason.
func (p *RepoPager) Err() error {
	return p.err
}

func (p *RepoPager) terminate(err error) {
	p.done = true

	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Type == ErrorTypeClient {
		p.reason = EndClientError
	} else {
		p.reason = EndTransportError
	}

	if p.cfg.Strict {
		p.err = err
		return
	}
	p.cfg.Logger.Error("repository listing ended early",
		"reason", p.reason.String(), "error", err.Error())
}
