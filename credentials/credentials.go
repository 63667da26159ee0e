// Package credentials loads the Google service account used to mint FCM
// access tokens.
package credentials

import (
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenURI is Google's OAuth2 token endpoint.
const DefaultTokenURI = "https://oauth2.googleapis.com/token"

// Credential is the identity material used to mint access tokens. It is
// immutable once loaded.
type Credential struct {
	ProjectID    string
	ClientEmail  string
	PrivateKeyID string
	TokenURI     string

	privateKey *rsa.PrivateKey
}

type serviceAccountFile struct {
	Type         string `json:"type"`
	ProjectID    string `json:"project_id"`
	PrivateKeyID string `json:"private_key_id"`
	PrivateKey   string `json:"private_key"`
	ClientEmail  string `json:"client_email"`
	TokenURI     string `json:"token_uri"`
}

// Parse decodes a service account JSON document.
func Parse(data []byte) (*Credential, error) {
	var sa serviceAccountFile
	if err := json.Unmarshal(data, &sa); err != nil {
		return nil, fmt.Errorf("failed to decode service account: %w", err)
	}

	if sa.Type != "" && sa.Type != "service_account" {
		return nil, fmt.Errorf("unsupported credential type %q", sa.Type)
	}
	if sa.ProjectID == "" {
		return nil, errors.New("service account is missing project_id")
	}
	if sa.ClientEmail == "" {
		return nil, errors.New("service account is missing client_email")
	}
	if sa.PrivateKey == "" {
		return nil, errors.New("service account is missing private_key")
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(sa.PrivateKey))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private_key: %w", err)
	}

	tokenURI := sa.TokenURI
	if tokenURI == "" {
		tokenURI = DefaultTokenURI
	}

	return &Credential{
		ProjectID:    sa.ProjectID,
		ClientEmail:  sa.ClientEmail,
		PrivateKeyID: sa.PrivateKeyID,
		TokenURI:     tokenURI,
		privateKey:   key,
	}, nil
}

// LoadFile reads and parses a service account JSON file.
func LoadFile(path string) (*Credential, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}
	return Parse(data)
}

// Load parses inline JSON when present, otherwise reads path.
func Load(path, inline string) (*Credential, error) {
	if inline != "" {
		return Parse([]byte(inline))
	}
	if path == "" {
		return nil, errors.New("no service account configured")
	}
	return LoadFile(path)
}

// PrivateKey returns the signing key.
func (c *Credential) PrivateKey() *rsa.PrivateKey {
	return c.privateKey
}

// String identifies the credential without revealing key material.
func (c *Credential) String() string {
	return fmt.Sprintf("service account %s (project %s)", c.ClientEmail, c.ProjectID)
}

// WithTokenURI returns a copy of c that exchanges tokens at uri.
func (c *Credential) WithTokenURI(uri string) *Credential {
	cp := *c
	cp.TokenURI = uri
	return &cp
}

// New builds a Credential from its parts.
func New(projectID, clientEmail, keyID string, key *rsa.PrivateKey) *Credential {
	return &Credential{
		ProjectID:    projectID,
		ClientEmail:  clientEmail,
		PrivateKeyID: keyID,
		TokenURI:     DefaultTokenURI,
		privateKey:   key,
	}
}
