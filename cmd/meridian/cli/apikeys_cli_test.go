package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/auth"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

type stubIssuer struct {
	nextID  int64
	revoked []int64
	fail    error
}

func (s *stubIssuer) Issue(_ context.Context, name string) (auth.APIKey, string, error) {
	if s.fail != nil {
		return auth.APIKey{}, "", s.fail
	}
	s.nextID++
	return auth.APIKey{ID: s.nextID, Name: name}, fmt.Sprintf("%d.secret", s.nextID), nil
}

func (s *stubIssuer) Revoke(_ context.Context, id int64) error {
	if s.fail != nil {
		return s.fail
	}
	s.revoked = append(s.revoked, id)
	return nil
}

func TestIssueCommandJSON(t *testing.T) {
	cli, err := NewAPIKeyCLI(&stubIssuer{})
	require.NoError(t, err)

	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	exitCode := cli.IssueCommand(context.Background(), APIKeyIssueOptions{
		Name:       "warehouse-app",
		JSONOutput: true,
		Stdout:     stdout,
		Stderr:     stderr,
	})
	require.Zero(t, exitCode)
	require.Empty(t, stderr.String())

	var summary APIKeyIssueSummary
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &summary))
	require.Equal(t, int64(1), summary.ID)
	require.Equal(t, "warehouse-app", summary.Name)
	require.Equal(t, "1.secret", summary.Token)
}

func TestIssueCommandRequiresName(t *testing.T) {
	cli, err := NewAPIKeyCLI(&stubIssuer{})
	require.NoError(t, err)

	stderr := new(bytes.Buffer)
	exitCode := cli.IssueCommand(context.Background(), APIKeyIssueOptions{Name: "  ", Stderr: stderr})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "name required")
}

func TestIssueCommandValidationFailure(t *testing.T) {
	cli, err := NewAPIKeyCLI(&stubIssuer{fail: fmt.Errorf("%w: bad name", shared.ErrValidation)})
	require.NoError(t, err)

	stderr := new(bytes.Buffer)
	exitCode := cli.IssueCommand(context.Background(), APIKeyIssueOptions{Name: "x", Stderr: stderr, Stdout: new(bytes.Buffer)})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "bad name")
}

func TestRevokeCommand(t *testing.T) {
	issuer := &stubIssuer{}
	cli, err := NewAPIKeyCLI(issuer)
	require.NoError(t, err)

	require.Zero(t, cli.RevokeCommand(context.Background(), 7, new(bytes.Buffer)))
	require.Equal(t, []int64{7}, issuer.revoked)

	issuer.fail = errors.New("gone")
	stderr := new(bytes.Buffer)
	require.Equal(t, 2, cli.RevokeCommand(context.Background(), 7, stderr))
	require.Contains(t, stderr.String(), "gone")
}
