package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"scoutlink/internal/domain"
)

// Directory define la interfaz hacia el proveedor de identidad externo:
// resuelve un id opaco de usuario a sus datos de presentacion. El core
// nunca autentica; solo consume perfiles ya verificados.
type Directory interface {
	Lookup(ctx context.Context, userID string) (domain.Profile, error)
}

var ErrUnknownUser = errors.New("unknown user")

// HTTPClient implementa Directory contra la API HTTP del proveedor.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPClient construye un cliente apuntando al directorio de usuarios.
func NewHTTPClient(baseURL, apiKey string, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  httpClient,
	}
}

func (c *HTTPClient) Lookup(ctx context.Context, userID string) (domain.Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/users/"+userID, nil)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return domain.Profile{}, ErrUnknownUser
	}
	if resp.StatusCode >= 400 {
		return domain.Profile{}, fmt.Errorf("identity http error: status=%d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("read response: %w", err)
	}

	var profile domain.Profile
	if err := json.Unmarshal(body, &profile); err != nil {
		return domain.Profile{}, fmt.Errorf("unmarshal profile: %w", err)
	}
	if profile.ID == "" {
		profile.ID = userID
	}
	return profile, nil
}
