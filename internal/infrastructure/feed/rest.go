package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zono819/tickpulse/internal/domain/entity"
)

// RESTClient queries the feed server's HTTP API
type RESTClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewRESTClient creates a new feed REST client
func NewRESTClient(baseURL string, timeout time.Duration) *RESTClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RESTClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// doRequest performs a GET request and returns the body
func (c *RESTClient) doRequest(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error: status=%d, body=%s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

// GetSnapshot retrieves the latest quote of every symbol
func (c *RESTClient) GetSnapshot(ctx context.Context) (entity.MarketSnapshot, error) {
	respBody, err := c.doRequest(ctx, "/api/snapshot")
	if err != nil {
		return nil, err
	}

	var result entity.MarketSnapshot
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	return result, nil
}

// GetSymbols retrieves the instrument catalogue
func (c *RESTClient) GetSymbols(ctx context.Context) ([]entity.SymbolConfig, error) {
	respBody, err := c.doRequest(ctx, "/api/symbols")
	if err != nil {
		return nil, err
	}

	var result []entity.SymbolConfig
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	return result, nil
}
