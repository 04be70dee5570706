// services/auth_service_client.go
package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
)

// AuthServiceClient validates socket logins against the external auth
// service. It is used instead of the player table when AUTH_SERVICE_URL is set.
type AuthServiceClient struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

type ValidateResponse struct {
	UserID string   `json:"user_id"`
	Roles  []string `json:"roles"`
}

func NewAuthServiceClient(baseURL, token string, client *http.Client) *AuthServiceClient {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &AuthServiceClient{
		BaseURL: baseURL,
		Token:   token,
		Client:  client,
	}
}

// ValidateToken calls /auth/validate. A rejected token or a token issued to
// another user is a failed login, not an error.
func (c *AuthServiceClient) ValidateToken(ctx context.Context, playerID, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	url := fmt.Sprintf("%s/auth/validate", c.BaseURL)

	jsonData, err := json.Marshal(map[string]string{"access_token": token})
	if err != nil {
		return false, eris.Wrap(err, "encode validate request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return false, eris.Wrap(err, "build validate request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.Token) // service → auth service token

	resp, err := c.Client.Do(req)
	if err != nil {
		return false, eris.Wrap(err, "call auth service")
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return false, nil
	default:
		logrus.WithField("status", resp.StatusCode).Warnf("auth service /validate returned: %s", string(body))
		return false, eris.Errorf("auth validation failed: %d", resp.StatusCode)
	}

	var out ValidateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return false, eris.Wrap(err, "decode validate response")
	}
	return out.UserID == playerID, nil
}
