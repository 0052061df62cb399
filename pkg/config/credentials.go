package config

import "os"

// Environment variables holding Earthdata logins. They override any
// credentials stored in the configuration source.
const (
	EnvUsername       = "EARTHDATA_USERNAME"
	EnvPassword       = "EARTHDATA_PASSWORD"
	EnvBackupUsername = "EARTHDATA_USERNAME_BACKUP"
	EnvBackupPassword = "EARTHDATA_PASSWORD_BACKUP"
)

// ApplyCredentialsFromEnv sets the primary and backup logins from the
// environment when both the username and password variables are present.
func ApplyCredentialsFromEnv(e *EarthdataData) {
	if c := credentialFromEnv(EnvUsername, EnvPassword); c != nil {
		e.Primary = c
	}
	if c := credentialFromEnv(EnvBackupUsername, EnvBackupPassword); c != nil {
		e.Backup = c
	}
}

func credentialFromEnv(userVar, passVar string) *CredentialData {
	user, pass := os.Getenv(userVar), os.Getenv(passVar)
	if user == "" || pass == "" {
		return nil
	}
	return &CredentialData{Username: user, Password: pass}
}

// Valid reports whether both fields of the login are set.
func (c *CredentialData) Valid() bool {
	return c != nil && c.Username != "" && c.Password != ""
}
