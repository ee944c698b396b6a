package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/meridian-erp/meridian-erp/internal/auth"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// KeyIssuer issues and revokes API keys.
type KeyIssuer interface {
	Issue(ctx context.Context, name string) (auth.APIKey, string, error)
	Revoke(ctx context.Context, id int64) error
}

// APIKeyCLI exposes operational helpers for managing API keys.
type APIKeyCLI struct {
	issuer KeyIssuer
}

// NewAPIKeyCLI constructs the helper around the given issuer.
func NewAPIKeyCLI(issuer KeyIssuer) (*APIKeyCLI, error) {
	if issuer == nil {
		return nil, errors.New("apikey cli: issuer required")
	}
	return &APIKeyCLI{issuer: issuer}, nil
}

// APIKeyIssueOptions configures the issue command.
type APIKeyIssueOptions struct {
	Name       string
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// APIKeyIssueSummary is the JSON shape printed on success. Token is shown
// exactly once; only its hash is stored.
type APIKeyIssueSummary struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Token string `json:"token"`
}

// IssueCommand creates a key and prints the one-time token.
func (c *APIKeyCLI) IssueCommand(ctx context.Context, opts APIKeyIssueOptions) int {
	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	if strings.TrimSpace(opts.Name) == "" {
		fmt.Fprintln(stderr, "apikey issue: name required")
		return 1
	}

	key, token, err := c.issuer.Issue(ctx, opts.Name)
	if err != nil {
		if errors.Is(err, shared.ErrValidation) {
			fmt.Fprintf(stderr, "apikey issue: %v\n", err)
			return 1
		}
		fmt.Fprintf(stderr, "apikey issue failed: %v\n", err)
		return 2
	}

	if opts.JSONOutput {
		summary := APIKeyIssueSummary{ID: key.ID, Name: key.Name, Token: token}
		if err := json.NewEncoder(stdout).Encode(summary); err != nil {
			fmt.Fprintf(stderr, "apikey issue: encode output: %v\n", err)
			return 2
		}
		return 0
	}
	fmt.Fprintf(stdout, "issued key %d (%s)\ntoken: %s\n", key.ID, key.Name, token)
	return 0
}

// RevokeCommand withdraws a key by id.
func (c *APIKeyCLI) RevokeCommand(ctx context.Context, id int64, stderr io.Writer) int {
	if stderr == nil {
		stderr = os.Stderr
	}
	if err := c.issuer.Revoke(ctx, id); err != nil {
		fmt.Fprintf(stderr, "apikey revoke failed: %v\n", err)
		return 2
	}
	return 0
}
