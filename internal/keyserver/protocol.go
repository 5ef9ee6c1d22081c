package keyserver

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"memvault/go-backend/internal/seal"
)

const fetchKeyPath = "/v1/fetch_key"

var (
	errServerDenied      = errors.New("key server denied the request")
	errServerUnavailable = errors.New("key server unavailable")
)

// fetchKeyRequest is the share-release request. The authorization transaction
// bytes and the session proof travel together so the server can dry-run the
// on-chain predicate and verify wallet control in one step.
type fetchKeyRequest struct {
	Identity     string    `json:"identity"`
	TxBytes      string    `json:"tx_bytes"`
	Owner        string    `json:"owner"`
	PackageScope string    `json:"package_scope"`
	Challenge    string    `json:"challenge"`
	Signature    string    `json:"signature"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type fetchKeyResponse struct {
	Share string `json:"share"`
}

func buildFetchKeyRequest(identity []byte, proof seal.CredentialProof, txBytes []byte) fetchKeyRequest {
	return fetchKeyRequest{
		Identity:     string(identity),
		TxBytes:      base64.StdEncoding.EncodeToString(txBytes),
		Owner:        proof.Owner,
		PackageScope: proof.PackageScope,
		Challenge:    base64.StdEncoding.EncodeToString(proof.Challenge),
		Signature:    base64.StdEncoding.EncodeToString(proof.Signature),
		ExpiresAt:    proof.ExpiresAt,
	}
}

// fetchShare performs one share-release round trip against one server.
// Denial and unavailability come back as distinct sentinels so the caller
// can count them separately.
func (c *Client) fetchShare(ctx context.Context, server ServerInfo, req fetchKeyRequest) ([]byte, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, server.URL+fetchKeyPath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errServerUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized:
		return nil, fmt.Errorf("%w: %s returned %d", errServerDenied, server.Name, resp.StatusCode)
	default:
		return nil, fmt.Errorf("%w: %s returned %d", errServerUnavailable, server.Name, resp.StatusCode)
	}

	var parsed fetchKeyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: %s sent unreadable response: %v", errServerUnavailable, server.Name, err)
	}
	derived, err := base64.StdEncoding.DecodeString(parsed.Share)
	if err != nil {
		return nil, fmt.Errorf("%w: %s sent undecodable share: %v", errServerUnavailable, server.Name, err)
	}
	return derived, nil
}
