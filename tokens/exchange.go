package tokens

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"push-relay/credentials"

	"github.com/golang-jwt/jwt/v5"
)

// MessagingScope grants access to the FCM send API.
const MessagingScope = "https://www.googleapis.com/auth/firebase.messaging"

const (
	jwtBearerGrant = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	assertionTTL   = time.Hour
	maxTokenBody   = 1 << 20
)

// Exchanger trades credential material for a fresh access token.
type Exchanger interface {
	Exchange(ctx context.Context) (AccessToken, error)
}

// JWTExchanger implements the OAuth2 JWT-bearer grant used by Google
// service accounts: it signs an RS256 assertion and posts it to the token URI.
type JWTExchanger struct {
	cred   *credentials.Credential
	client *http.Client
	scopes []string
	now    func() time.Time
}

// NewJWTExchanger creates an exchanger for cred. A nil client uses
// http.DefaultClient; deadlines come from the context.
func NewJWTExchanger(cred *credentials.Credential, client *http.Client, scopes ...string) *JWTExchanger {
	if client == nil {
		client = http.DefaultClient
	}
	if len(scopes) == 0 {
		scopes = []string{MessagingScope}
	}
	return &JWTExchanger{
		cred:   cred,
		client: client,
		scopes: scopes,
		now:    time.Now,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

type tokenErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// Exchange signs an assertion and exchanges it for an access token.
func (e *JWTExchanger) Exchange(ctx context.Context) (AccessToken, error) {
	now := e.now()

	assertion, err := e.signAssertion(now)
	if err != nil {
		return AccessToken{}, err
	}

	form := url.Values{
		"grant_type": {jwtBearerGrant},
		"assertion":  {assertion},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cred.TokenURI, strings.NewReader(form.Encode()))
	if err != nil {
		return AccessToken{}, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := e.client.Do(req)
	if err != nil {
		return AccessToken{}, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenBody))
	if err != nil {
		return AccessToken{}, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var oerr tokenErrorResponse
		if json.Unmarshal(body, &oerr) == nil && oerr.Error != "" {
			return AccessToken{}, fmt.Errorf("token endpoint returned %d: %s: %s", resp.StatusCode, oerr.Error, oerr.ErrorDescription)
		}
		return AccessToken{}, fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return AccessToken{}, fmt.Errorf("malformed token response: %w", err)
	}
	if tr.AccessToken == "" {
		return AccessToken{}, errors.New("malformed token response: missing access_token")
	}
	if tr.ExpiresIn <= 0 {
		return AccessToken{}, fmt.Errorf("malformed token response: invalid expires_in %d", tr.ExpiresIn)
	}

	return AccessToken{
		Value:     tr.AccessToken,
		ExpiresAt: now.Add(time.Duration(tr.ExpiresIn) * time.Second),
	}, nil
}

func (e *JWTExchanger) signAssertion(now time.Time) (string, error) {
	claims := jwt.MapClaims{
		"iss":   e.cred.ClientEmail,
		"sub":   e.cred.ClientEmail,
		"aud":   e.cred.TokenURI,
		"scope": strings.Join(e.scopes, " "),
		"iat":   now.Unix(),
		"exp":   now.Add(assertionTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if e.cred.PrivateKeyID != "" {
		token.Header["kid"] = e.cred.PrivateKeyID
	}

	signed, err := token.SignedString(e.cred.PrivateKey())
	if err != nil {
		return "", fmt.Errorf("failed to sign assertion: %w", err)
	}
	return signed, nil
}
