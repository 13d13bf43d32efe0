package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"followup-bot/internal/models"
	"followup-bot/internal/repositories"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCommand(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func fileStoreEnv(t *testing.T) *repositories.FileStore {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("DATA_DIR", dir)
	t.Setenv("DATABASE_URL", "")
	return repositories.NewFileStore(filepath.Join(dir, "database.json"))
}

func TestAutopilotCmd_Global(t *testing.T) {
	store := fileStoreEnv(t)

	out, err := runCommand(t, newAutopilotCmd(), "on")
	require.NoError(t, err)
	assert.Contains(t, out, "Automação global: on")

	settings, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, settings.ServerAutomationEnabled)

	_, err = runCommand(t, newAutopilotCmd(), "talvez")
	assert.Error(t, err)
}

func TestAutopilotAndAckCmd_Contact(t *testing.T) {
	store := fileStoreEnv(t)
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, &models.Contact{
		ID: "c1", Name: "Maria", Phone: "11987654321", Category: models.CategoryOwner,
		AutoPilotEnabled: true, HasUnreadReply: true,
	}))

	out, err := runCommand(t, newAutopilotCmd(), "off", "--contact", "c1")
	require.NoError(t, err)
	assert.Contains(t, out, "Piloto automático de Maria: off")

	out, err = runCommand(t, newAckCmd(), "c1")
	require.NoError(t, err)
	assert.Contains(t, out, "Resposta de Maria marcada como lida")

	c, err := store.LoadOne(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, c.AutoPilotEnabled)
	assert.False(t, c.HasUnreadReply)

	_, err = runCommand(t, newAckCmd(), "missing")
	assert.ErrorIs(t, err, models.ErrContactNotFound)
}

func TestContactsCmd(t *testing.T) {
	store := fileStoreEnv(t)
	require.NoError(t, store.Create(context.Background(), &models.Contact{
		ID: "c1", Name: "Maria", Phone: "11987654321", Category: models.CategoryOwner,
		AutomationStage: models.StageWaitingReply1,
	}))

	out, err := runCommand(t, newContactsCmd())
	require.NoError(t, err)
	assert.Contains(t, out, "Maria")
	assert.Contains(t, out, "WAITING_REPLY_1")
}
