package model

import "github.com/google/uuid"

// ImportRecord is the normalized record an import parser hands the core.
type ImportRecord struct {
	URL      string
	Username string
	Password string
	Notes    string
}

// Secret is the encrypted payload of a credential.
type Secret struct {
	URL      string `json:"url"`
	Username string `json:"username"`
	Password string `json:"password"`
	Notes    string `json:"notes,omitempty"`
}

// Credential is a decrypted credential as surfaced to callers.
type Credential struct {
	ID       uuid.UUID
	Server   string
	Account  string
	Protocol int32
	Port     int32
	Path     string
	Label    string
	Secret   Secret
	GenCount int64
}
