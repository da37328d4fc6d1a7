package settings_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yplo6403/rcsjta-sub005/internal/config"
	"github.com/yplo6403/rcsjta-sub005/internal/models"
	"github.com/yplo6403/rcsjta-sub005/internal/settings"
	"github.com/yplo6403/rcsjta-sub005/internal/testutil"
)

func validSettings() *models.CMSSettings {
	return &models.CMSSettings{
		ServerAddress:          "imap.example.com:993",
		Username:               "+33600000001",
		Password:               "secret",
		UseTLS:                 true,
		RootDirectory:          "Default",
		FolderSeparator:        "/",
		SyncInterval:           6 * time.Hour,
		DataConnectionInterval: 15 * time.Minute,
	}
}

type rowStore struct {
	row *models.StoredCMSSettings
	err error
}

func (s *rowStore) GetCMSSettings(context.Context) (*models.StoredCMSSettings, error) {
	return s.row, s.err
}

func (s *rowStore) SaveCMSSettings(_ context.Context, row *models.StoredCMSSettings) error {
	s.row = row
	return s.err
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*models.CMSSettings)
		wantErr string
	}{
		{name: "valid", modify: func(*models.CMSSettings) {}},
		{name: "missing port", modify: func(s *models.CMSSettings) { s.ServerAddress = "imap.example.com" }, wantErr: "ServerAddress"},
		{name: "missing password", modify: func(s *models.CMSSettings) { s.Password = "" }, wantErr: "Password"},
		{name: "long separator", modify: func(s *models.CMSSettings) { s.FolderSeparator = "//" }, wantErr: "FolderSeparator"},
		{name: "zero interval", modify: func(s *models.CMSSettings) { s.SyncInterval = 0 }, wantErr: "SyncInterval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSettings()
			tt.modify(s)
			err := settings.Validate(s)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	assert.ErrorIs(t, settings.Validate(nil), settings.ErrNotConfigured)
}

func TestStatic(t *testing.T) {
	static, err := settings.NewStatic(validSettings())
	require.NoError(t, err)

	got, err := static.Settings(context.Background())
	require.NoError(t, err)
	got.Password = "changed"

	again, err := static.Settings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "secret", again.Password)
}

func TestFromConfig(t *testing.T) {
	t.Run("no server configured", func(t *testing.T) {
		static, err := settings.FromConfig(&config.Config{})
		assert.NoError(t, err)
		assert.Nil(t, static)
	})

	t.Run("server configured", func(t *testing.T) {
		static, err := settings.FromConfig(&config.Config{
			IMAPServer:                "127.0.0.1:1143",
			IMAPUsername:              "user",
			IMAPPassword:              "pass",
			RootDirectory:             "Default",
			FolderSeparator:           "/",
			SyncInterval:              time.Hour,
			DataConnectionMinInterval: time.Minute,
			IMAPDialTimeout:           2 * time.Second,
		})
		require.NoError(t, err)

		got, err := static.Settings(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "127.0.0.1:1143", got.ServerAddress)
		assert.Equal(t, time.Minute, got.DataConnectionInterval)
		assert.Equal(t, 2*time.Second, got.DialTimeout)
	})
}

func TestDBProvider(t *testing.T) {
	ctx := context.Background()
	cipher := testutil.GetTestCipher(t)

	t.Run("round trip", func(t *testing.T) {
		store := &rowStore{}
		provider := settings.NewDBProvider(store, cipher, 0)
		require.NoError(t, provider.Save(ctx, validSettings()))

		assert.NotEqual(t, []byte("secret"), store.row.EncryptedPassword)
		assert.Equal(t, 21600, store.row.SyncIntervalSeconds)

		got, err := provider.Settings(ctx)
		require.NoError(t, err)
		assert.Equal(t, "secret", got.Password)
		assert.Equal(t, 6*time.Hour, got.SyncInterval)
		assert.Equal(t, 5*time.Second, got.DialTimeout)
	})

	t.Run("not configured", func(t *testing.T) {
		_, err := settings.NewDBProvider(&rowStore{}, cipher, 0).Settings(ctx)
		assert.ErrorIs(t, err, settings.ErrNotConfigured)
	})

	t.Run("store failure", func(t *testing.T) {
		_, err := settings.NewDBProvider(&rowStore{err: errors.New("db down")}, cipher, 0).Settings(ctx)
		assert.ErrorContains(t, err, "db down")
	})

	t.Run("invalid settings are not stored", func(t *testing.T) {
		store := &rowStore{}
		s := validSettings()
		s.Username = ""
		assert.Error(t, settings.NewDBProvider(store, cipher, 0).Save(ctx, s))
		assert.Nil(t, store.row)
	})
}

func TestFolderNamer(t *testing.T) {
	namer := settings.NewFolderNamer("Default", "/")

	assert.Equal(t, "Default/tel:+33600000001", namer.FolderFor("tel:+33600000001"))

	id, ok := namer.IDFor("Default/chat-42")
	assert.True(t, ok)
	assert.Equal(t, "chat-42", id)

	assert.True(t, namer.Manages("Default/tel:+33600000001"))
	assert.False(t, namer.Manages("Default/"))
	assert.False(t, namer.Manages("Default"))
	assert.False(t, namer.Manages("INBOX"))
}
