package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yplo6403/rcsjta-sub005/internal/settings"
	"github.com/yplo6403/rcsjta-sub005/internal/testutil"
)

func env(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestLoadSettings(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr bool
	}{
		{
			name: "all variables set",
			env: map[string]string{
				"CMS_IMAP_SERVER":   "cms.example.com:993",
				"CMS_IMAP_USERNAME": "+33600000001",
				"CMS_IMAP_PASSWORD": "secret",
			},
		},
		{
			name:    "missing server",
			env:     map[string]string{"CMS_IMAP_USERNAME": "u", "CMS_IMAP_PASSWORD": "p"},
			wantErr: true,
		},
		{
			name:    "missing password",
			env:     map[string]string{"CMS_IMAP_SERVER": "cms.example.com:993", "CMS_IMAP_USERNAME": "u"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			account, err := loadSettings(env(tt.env), true, "Default", "/")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			cfg, err := account.Settings(context.Background())
			require.NoError(t, err)
			assert.Equal(t, "cms.example.com:993", cfg.ServerAddress)
			assert.True(t, cfg.UseTLS)
		})
	}
}

func TestRun(t *testing.T) {
	server := testutil.NewScriptedIMAPServer(t)
	server.On("LIST ", []string{
		`* LIST (\HasNoChildren) "/" "Default/tel:+33600000001"`,
		`* STATUS "Default/tel:+33600000001" (MESSAGES 3 UIDNEXT 4 UIDVALIDITY 7 HIGHESTMODSEQ 12)`,
		`* LIST (\HasNoChildren) "/" "INBOX"`,
		`* STATUS "INBOX" (MESSAGES 0 UIDNEXT 1 UIDVALIDITY 1 HIGHESTMODSEQ 1)`,
	}, "OK LIST completed")
	server.On("SELECT ", []string{
		`* 3 EXISTS`,
		`* OK [UIDVALIDITY 7] UIDs valid`,
		`* OK [UIDNEXT 4] Predicted next UID`,
		`* OK [HIGHESTMODSEQ 12] Highest`,
	}, "OK [READ-WRITE] SELECT completed")

	account, err := settings.NewStatic(testutil.TestSettings(server.Address, "user", "secret"))
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), account, "Default/tel:+33600000001", &out, logrus.New()))

	report := out.String()
	assert.Contains(t, report, "  - CONDSTORE\n")
	assert.Contains(t, report, "Default/tel:+33600000001 messages=3 uidnext=4 uidvalidity=7 highestmodseq=12")
	assert.NotContains(t, report, "INBOX", "folders outside the root are not listed")
	assert.Contains(t, report, "Selected Default/tel:+33600000001: messages=3")
}

func TestRun_WithoutCondstore(t *testing.T) {
	server := testutil.NewScriptedIMAPServer(t)
	server.Capabilities = []string{"IMAP4rev1"}

	account, err := settings.NewStatic(testutil.TestSettings(server.Address, "user", "secret"))
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), account, "", &out, logrus.New()))
	assert.Contains(t, out.String(), "CONDSTORE is not supported")
	assert.Empty(t, server.Commands())
}
