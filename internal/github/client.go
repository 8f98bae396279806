// Package github provides a minimal GitHub client for fetching the
// Public Suffix List source file at a given git ref, so that the
// Checker can compare a local PSL file against the upstream original.
package github

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/go-github/v63/github"
)

// Client fetches public_suffix_list.dat from a GitHub repository. The
// zero value talks to the official publicsuffix/list repository.
type Client struct {
	// Owner is the github account of the repository to query. If
	// empty, defaults to "publicsuffix".
	Owner string
	// Repo is the repository to query. If empty, defaults to "list".
	Repo string

	client *github.Client
}

func (c *Client) owner() string {
	if c.Owner != "" {
		return c.Owner
	}
	return "publicsuffix"
}

func (c *Client) repo() string {
	if c.Repo != "" {
		return c.Repo
	}
	return "list"
}

func (c *Client) apiClient() *github.Client {
	if c.client == nil {
		c.client = github.NewClient(nil)
		if token := os.Getenv("GITHUB_TOKEN"); token != "" {
			c.client = c.client.WithAuthToken(token)
		}
	}
	return c.client
}

// PSLForRef returns the contents of public_suffix_list.dat at the
// given git ref (branch, tag, or commit hash).
func (c *Client) PSLForRef(ctx context.Context, ref string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts := &github.RepositoryContentGetOptions{Ref: ref}
	content, _, _, err := c.apiClient().Repositories.GetContents(ctx, c.owner(), c.repo(), "public_suffix_list.dat", opts)
	if err != nil {
		return nil, fmt.Errorf("getting PSL at ref %q: %w", ref, err)
	}
	ret, err := content.GetContent()
	if err != nil {
		return nil, err
	}
	return []byte(ret), nil
}
