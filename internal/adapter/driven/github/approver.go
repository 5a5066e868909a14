// Package github implements the ApprovalClient and IdentityClient ports
// using the go-github library and GitHub's OAuth token endpoint.
package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"
	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/efisher/swapreview/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ApprovalClient = (*Approver)(nil)

// Approver implements driven.ApprovalClient. Each approval is submitted with
// the pledging user's own access token, so a fresh go-github client is built
// per call; the transport stack matches the rest of the app:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. go-github (GitHub REST API client with token auth)
type Approver struct {
	baseURL string // Empty in production; set to an httptest URL in tests.
}

// NewApprover creates an Approver targeting the public GitHub API.
func NewApprover() *Approver {
	return &Approver{}
}

// NewApproverWithBaseURL creates an Approver targeting the given API base
// URL. Intended for testing against an httptest server.
func NewApproverWithBaseURL(baseURL string) *Approver {
	return &Approver{baseURL: baseURL}
}

// SubmitApproval submits an APPROVE review on itemScope#itemNumber on behalf
// of the token's owner. Failures are not retried.
func (a *Approver) SubmitApproval(ctx context.Context, access, itemScope string, itemNumber int) error {
	owner, repo, err := splitRepo(itemScope)
	if err != nil {
		return err
	}

	client, err := a.newClient(access)
	if err != nil {
		return err
	}

	review := &gh.PullRequestReviewRequest{
		Event: gh.Ptr("APPROVE"),
	}

	_, resp, err := client.PullRequests.CreateReview(ctx, owner, repo, itemNumber, review)
	if err != nil {
		var ghErr *gh.ErrorResponse
		if errors.As(err, &ghErr) && ghErr.Response != nil {
			return fmt.Errorf("approving %s#%d: status %d: %w", itemScope, itemNumber, ghErr.Response.StatusCode, err)
		}
		return fmt.Errorf("approving %s#%d: %w", itemScope, itemNumber, err)
	}

	logRateLimit(resp, itemScope, itemNumber)
	return nil
}

// newClient builds a per-call go-github client authenticated with the given
// user access token.
func (a *Approver) newClient(access string) (*gh.Client, error) {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)
	client := gh.NewClient(rateLimitClient).WithAuthToken(access)

	if a.baseURL != "" {
		u, err := url.Parse(a.baseURL)
		if err != nil {
			return nil, fmt.Errorf("parsing base URL: %w", err)
		}
		client.BaseURL = u
	}

	return client, nil
}

// splitRepo splits "owner/repo" into its components.
func splitRepo(fullName string) (owner, repo string, err error) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository name %q, expected owner/repo", fullName)
	}
	return parts[0], parts[1], nil
}

// logRateLimit logs remaining rate limit headroom when it is getting low.
func logRateLimit(resp *gh.Response, itemScope string, itemNumber int) {
	if resp == nil {
		return
	}
	if resp.Rate.Remaining < 100 {
		slog.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"limit", resp.Rate.Limit,
			"reset", resp.Rate.Reset.Time,
			"item", fmt.Sprintf("%s#%d", itemScope, itemNumber),
		)
	}
}
