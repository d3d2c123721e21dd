package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

const (
	EnvFTPHost     = "MOCAP_FTP_HOST"
	EnvFTPUser     = "MOCAP_FTP_USER"
	EnvFTPPassword = "MOCAP_FTP_PASSWORD"
)

// Credentials for the remote store
type Credentials struct {
	Host     string
	User     string
	Password string
}

// Validate checks that a host was supplied. User and password may be empty for anonymous servers.
func (c Credentials) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("remote host is required (set host= in the credentials file or %s)", EnvFTPHost)
	}
	return nil
}

// LoadCredentials reads host=, user= and passwd= lines from the given file.
// Environment variables take precedence over file values. A missing file is not an error.
func LoadCredentials(filename string) (Credentials, error) {
	var creds Credentials

	if filename != "" {
		values, err := godotenv.Read(filename)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return creds, fmt.Errorf("failed to read credentials file %s: %w", filename, err)
		}
		creds.Host = values["host"]
		creds.User = values["user"]
		creds.Password = values["passwd"]
	}

	if v := os.Getenv(EnvFTPHost); v != "" {
		creds.Host = v
	}
	if v := os.Getenv(EnvFTPUser); v != "" {
		creds.User = v
	}
	if v := os.Getenv(EnvFTPPassword); v != "" {
		creds.Password = v
	}

	return creds, nil
}
