package models

import "time"

// CMSSettings holds the message store account and sync pacing.
// The password is only held in clear text in memory.
type CMSSettings struct {
	ServerAddress          string        `json:"server_address" validate:"required,hostname_port"`
	Username               string        `json:"username" validate:"required"`
	Password               string        `json:"-" validate:"required"`
	UseTLS                 bool          `json:"use_tls"`
	RootDirectory          string        `json:"root_directory" validate:"required"`
	FolderSeparator        string        `json:"folder_separator" validate:"required,len=1"`
	SyncInterval           time.Duration `json:"sync_interval" validate:"gt=0"`
	DataConnectionInterval time.Duration `json:"data_connection_interval" validate:"gte=0"`
	DialTimeout            time.Duration `json:"dial_timeout" validate:"gte=0"`
}

// StoredCMSSettings is the cms_settings row, password still encrypted.
type StoredCMSSettings struct {
	ServerAddress                 string    `json:"server_address"`
	Username                      string    `json:"username"`
	EncryptedPassword             []byte    `json:"-"`
	UseTLS                        bool      `json:"use_tls"`
	RootDirectory                 string    `json:"root_directory"`
	FolderSeparator               string    `json:"folder_separator"`
	SyncIntervalSeconds           int       `json:"sync_interval_seconds"`
	DataConnectionIntervalSeconds int       `json:"data_connection_interval_seconds"`
	CreatedAt                     time.Time `json:"created_at"`
	UpdatedAt                     time.Time `json:"updated_at"`
}
