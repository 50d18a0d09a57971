package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/DoyleJ11/blackjack-client/internal/clienterr"
)

type HealthResponse struct {
	Status string `json:"status"`
}

// CheckHealth performs the one-shot GET /health probe. Any answer other than
// {"status":"ok"} is a connectivity failure.
func CheckHealth(ctx context.Context, client *http.Client, baseURL string) error {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+"/health", nil)
	if err != nil {
		return clienterr.Wrap(clienterr.KindConnectivity, "Unable to reach the server", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return clienterr.Wrap(clienterr.KindConnectivity, "Unable to reach the server", err)
	}
	defer resp.Body.Close()

	var hr HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&hr); err != nil {
		return clienterr.Wrap(clienterr.KindConnectivity, "Server health check failed",
			fmt.Errorf("status %d: %w", resp.StatusCode, err))
	}
	if hr.Status != "ok" {
		return clienterr.Wrap(clienterr.KindConnectivity, "Server health check failed",
			fmt.Errorf("status %d, reported %q", resp.StatusCode, hr.Status))
	}
	return nil
}
