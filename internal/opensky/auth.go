package opensky

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/yegors/flightrec/pkg/logger"
)

// DefaultTokenURL is the OpenSky OAuth2 token endpoint
const DefaultTokenURL = "https://auth.opensky-network.org/auth/realms/opensky-network/protocol/openid-connect/token"

// tokenSource obtains bearer tokens from a credentials JSON file.
//
// The file may hold an access_token directly, or client_id/client_secret
// for a client_credentials grant. Without a file requests are anonymous.
type tokenSource struct {
	path       string
	httpClient *http.Client
	logger     *logger.Logger
	now        func() time.Time

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
	warned      bool
}

func newTokenSource(path string, httpClient *http.Client, log *logger.Logger) *tokenSource {
	return &tokenSource{
		path:       path,
		httpClient: httpClient,
		logger:     log,
		now:        time.Now,
	}
}

// Token returns a valid token, or "" for anonymous access
func (ts *tokenSource) Token(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.token != "" && ts.now().Before(ts.tokenExpiry) {
		return ts.token, nil
	}
	if ts.path == "" {
		return "", nil
	}

	b, err := os.ReadFile(ts.path)
	if os.IsNotExist(err) {
		if !ts.warned {
			ts.logger.Warn("OpenSky credentials file not found - proceeding as anonymous (rate limits may apply)",
				logger.String("path", ts.path))
			ts.warned = true
		}
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read opensky credentials: %w", err)
	}

	var creds map[string]interface{}
	if err := json.Unmarshal(b, &creds); err != nil {
		return "", fmt.Errorf("invalid opensky credentials JSON: %w", err)
	}

	if token := firstString(creds, "access_token", "access-token", "accessToken"); token != "" {
		ts.token = token
		ts.tokenExpiry = ts.now().Add(tokenTTLFallback)
		return ts.token, nil
	}

	clientID := firstString(creds, "client_id", "client-id", "clientId")
	clientSecret := firstString(creds, "client_secret", "client-secret", "clientSecret")
	if clientID == "" || clientSecret == "" {
		return "", fmt.Errorf("opensky credentials must contain access_token or client_id+client_secret")
	}
	tokenURL := firstString(creds, "token_url", "token-url", "tokenUrl")
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}

	token, expiresIn, err := ts.requestToken(ctx, tokenURL, clientID, clientSecret)
	if err != nil {
		return "", err
	}

	ts.token = token
	if expiresIn > 60 {
		// Refresh a little before the server-side expiry
		ts.tokenExpiry = ts.now().Add(time.Duration(expiresIn-30) * time.Second)
	} else {
		ts.tokenExpiry = ts.now().Add(tokenTTLFallback)
	}
	return ts.token, nil
}

func (ts *tokenSource) requestToken(ctx context.Context, tokenURL, clientID, clientSecret string) (string, int, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", clientID)
	form.Set("client_secret", clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	ts.logger.Debug("Requesting OpenSky OAuth2 token", logger.String("token_url", tokenURL))
	resp, err := ts.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("failed to request opensky token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		ts.logger.Error("OpenSky token endpoint returned non-200",
			logger.Int("status", resp.StatusCode),
			logger.String("body", string(body)))
		return "", 0, fmt.Errorf("opensky token endpoint error: %d", resp.StatusCode)
	}

	var tokResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokResp); err != nil {
		return "", 0, fmt.Errorf("failed to decode opensky token response: %w", err)
	}
	if tokResp.AccessToken == "" {
		return "", 0, fmt.Errorf("opensky token response did not contain access_token")
	}
	return tokResp.AccessToken, tokResp.ExpiresIn, nil
}

// firstString returns the first non-empty string value among keys
func firstString(m map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
