package email

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	sent [][]byte
	err  error
}

func (r *recordingSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	r.sent = append(r.sent, rawMessage)
	return r.err
}

func TestCompositeEmailSender_FansOut(t *testing.T) {
	primary := &recordingSender{}
	secondary := &recordingSender{}

	composite := NewCompositeEmailSender(primary)
	composite.AddSender(secondary)

	err := composite.Send(context.Background(), []string{"a@example.com"}, "Hi", []byte("raw"))
	require.NoError(t, err)
	assert.Len(t, primary.sent, 1)
	assert.Len(t, secondary.sent, 1)
}

func TestCompositeEmailSender_PrimaryFailureWins(t *testing.T) {
	primary := &recordingSender{err: errors.New("smtp down")}
	secondary := &recordingSender{}

	composite := NewCompositeEmailSender(primary)
	composite.AddSender(secondary)

	err := composite.Send(context.Background(), []string{"a@example.com"}, "Hi", []byte("raw"))
	assert.Error(t, err)
	// Secondary sinks still receive the message.
	assert.Len(t, secondary.sent, 1)
}

func TestFileEmailSender_AppendsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "emails", "out.log")
	sender, err := NewFileEmailSender(path)
	require.NoError(t, err)

	require.NoError(t, sender.Send(context.Background(), []string{"a@example.com"}, "First", []byte("one")))
	require.NoError(t, sender.Send(context.Background(), []string{"b@example.com"}, "Second", []byte("two")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "one")
	assert.Contains(t, string(data), "two")
	assert.Contains(t, string(data), "Subject: Second")
}

func TestNewFileEmailSender_EmptyPath(t *testing.T) {
	_, err := NewFileEmailSender("  ")
	assert.Error(t, err)
}
