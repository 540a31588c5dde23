package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ivanoskov/finchat_bot/internal/repository"
	"github.com/ivanoskov/finchat_bot/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func offline(t *testing.T) {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("STORAGE_DRIVER", "")
}

func TestRun_CreatesUserAndReplies(t *testing.T) {
	offline(t)
	dbPath := filepath.Join(t.TempDir(), "chat.db")

	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	stdin := strings.NewReader("hola, qué puedes hacer?\n\nsalir\nesto no se procesa\n")

	err := run([]string{"-email", "Ana@Example.com", "-db", dbPath}, stdin, stdout, stderr)
	require.NoError(t, err)

	output := stdout.String()
	assert.Contains(t, output, "Cuenta creada para ana@example.com")
	assert.Contains(t, output, service.HelpText)
	assert.Equal(t, 1, strings.Count(output, service.HelpText))

	repo, err := repository.NewSQLiteRepository(dbPath)
	require.NoError(t, err)
	defer repo.Close()

	user, err := repo.FindUserByEmail(context.Background(), "ana@example.com")
	require.NoError(t, err)
	history, err := repo.GetRecentChatHistory(context.Background(), user.ID, 10)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestRun_ReusesExistingUser(t *testing.T) {
	offline(t)
	dbPath := filepath.Join(t.TempDir(), "chat.db")
	args := []string{"-email", "ana@example.com", "-db", dbPath}

	require.NoError(t, run(args, strings.NewReader(""), new(bytes.Buffer), new(bytes.Buffer)))

	stdout := new(bytes.Buffer)
	require.NoError(t, run(args, strings.NewReader(""), stdout, new(bytes.Buffer)))
	assert.NotContains(t, stdout.String(), "Cuenta creada")
}

func TestRun_MissingEmailFlag(t *testing.T) {
	stdout := new(bytes.Buffer)
	err := run(nil, strings.NewReader(""), stdout, new(bytes.Buffer))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required flags: email")
	assert.Contains(t, stdout.String(), "Usage: chat")
}
