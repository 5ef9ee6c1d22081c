// Package keyserver implements the client side of the threshold key-server
// protocol: the DEM envelope around the payload, fan-out share fetching with
// retry, and classification of partial failure. The threshold-IBE math itself
// stays behind the Scheme interface.
package keyserver

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"memvault/go-backend/internal/platform/metrics"
	"memvault/go-backend/internal/platform/retry"
	"memvault/go-backend/internal/seal"
)

var (
	ErrBadThreshold = errors.New("threshold out of range for configured servers")
	ErrNoServers    = errors.New("no key servers configured")
)

const demInfoPrefix = "memvault/seal/dem/v1|"

// ServerInfo describes one configured key server. Key is the scheme-specific
// key material used to encapsulate and verify shares for this server.
type ServerInfo struct {
	Name string
	Key  []byte
	URL  string
}

// Options tunes a Client beyond its server set.
type Options struct {
	// Verify enables per-share verification against each server's key
	// material. This is the default profile; disabling it is the
	// explicitly insecure open mode and the two are never merged.
	Verify     bool
	HTTPClient *http.Client
	Retry      retry.Policy
	Metrics    *metrics.Metrics
}

// Client implements seal.ThresholdCrypto against a set of HTTP key servers.
type Client struct {
	servers []ServerInfo
	scheme  Scheme
	verify  bool
	httpc   *http.Client
	retry   retry.Policy
	metrics *metrics.Metrics
}

func NewClient(servers []ServerInfo, scheme Scheme, opts Options) (*Client, error) {
	if len(servers) == 0 {
		return nil, ErrNoServers
	}
	httpc := opts.HTTPClient
	if httpc == nil {
		httpc = &http.Client{Timeout: 15 * time.Second}
	}
	pol := opts.Retry
	if pol.MaxAttempts == 0 {
		pol = retry.Default()
	}
	pol.Retryable = func(err error) bool {
		return errors.Is(err, errServerUnavailable)
	}
	return &Client{
		servers: append([]ServerInfo(nil), servers...),
		scheme:  scheme,
		verify:  opts.Verify,
		httpc:   httpc,
		retry:   pol,
		metrics: opts.Metrics,
	}, nil
}

// Encrypt seals data to the identity. No key server is contacted: the base
// key is generated locally, encapsulated per server by the scheme, and also
// returned as the disaster-recovery backup key.
func (c *Client) Encrypt(ctx context.Context, threshold int, packageID string, identity seal.Identity, data []byte) ([]byte, []byte, error) {
	if threshold < 1 || threshold > len(c.servers) {
		return nil, nil, fmt.Errorf("%w: %d of %d", ErrBadThreshold, threshold, len(c.servers))
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	baseKey := make([]byte, shareSize)
	if _, err := rand.Read(baseKey); err != nil {
		return nil, nil, err
	}
	shares, err := c.scheme.Encapsulate(identity, c.servers, baseKey)
	if err != nil {
		return nil, nil, err
	}

	sealed, nonce, err := demSeal(baseKey, identity, packageID, data)
	if err != nil {
		return nil, nil, err
	}
	ciphertext, err := seal.EncodeObject(seal.EncryptedObject{
		PackageID:  packageID,
		Threshold:  threshold,
		Identity:   append([]byte(nil), identity...),
		Shares:     shares,
		DEMNonce:   nonce,
		Ciphertext: sealed,
	})
	if err != nil {
		return nil, nil, err
	}
	return ciphertext, baseKey, nil
}

// Decrypt fetches at least threshold agreeing shares, recombines the base
// key, and opens the payload. Failure classification follows the release
// protocol: any explicit denial means the on-chain predicate rejected the
// transaction and retrying cannot help; too few reachable servers is
// transient; reachable servers that disagree are reported distinctly so the
// caller can reset cached client state before retrying.
func (c *Client) Decrypt(ctx context.Context, ciphertext []byte, proof seal.CredentialProof, txBytes []byte) ([]byte, error) {
	obj, err := seal.DecodeObject(ciphertext)
	if err != nil {
		return nil, err
	}

	responses, denied, unavailable := c.fetchShares(ctx, obj, proof, txBytes)
	if denied > 0 {
		return nil, fmt.Errorf("%w: %d server(s) rejected the authorization", seal.ErrAuthorizationDenied, denied)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(responses) < obj.Threshold {
		return nil, fmt.Errorf("%w: %d of %d responded (%d unreachable)",
			seal.ErrKeyServerUnavailable, len(responses), obj.Threshold, unavailable)
	}

	if c.verify {
		verified := responses[:0]
		for _, resp := range responses {
			srv, ok := c.serverByName(resp.Server)
			if !ok {
				continue
			}
			if err := c.scheme.Verify(obj.Identity, srv, resp.Derived); err != nil {
				slog.Default().Warn("key server share failed verification", "server", resp.Server)
				continue
			}
			verified = append(verified, resp)
		}
		if len(verified) < obj.Threshold {
			return nil, fmt.Errorf("%w: only %d of %d shares verified",
				seal.ErrInconsistentKeyServerResponses, len(verified), obj.Threshold)
		}
		responses = verified
	}

	baseKey, err := c.scheme.Combine(obj.Identity, obj.Shares, responses)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", seal.ErrInconsistentKeyServerResponses, err)
	}

	plaintext, err := demOpen(baseKey, obj)
	if err != nil {
		return nil, fmt.Errorf("%w: payload authentication failed: %v", seal.ErrMalformedCiphertext, err)
	}
	return plaintext, nil
}

func (c *Client) fetchShares(ctx context.Context, obj seal.EncryptedObject, proof seal.CredentialProof, txBytes []byte) (responses []ShareResponse, denied, unavailable int) {
	req := buildFetchKeyRequest(obj.Identity, proof, txBytes)

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, server := range c.servers {
		wg.Add(1)
		go func(server ServerInfo) {
			defer wg.Done()
			started := time.Now()

			var derived []byte
			err := c.retry.Do(ctx, func() error {
				var fetchErr error
				derived, fetchErr = c.fetchShare(ctx, server, req)
				return fetchErr
			})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				responses = append(responses, ShareResponse{Server: server.Name, Derived: derived})
				c.metrics.ObserveKeyServerRequest(server.Name, "ok", time.Since(started))
			case errors.Is(err, errServerDenied):
				denied++
				c.metrics.ObserveKeyServerRequest(server.Name, "denied", time.Since(started))
			default:
				unavailable++
				c.metrics.ObserveKeyServerRequest(server.Name, "unavailable", time.Since(started))
				slog.Default().Warn("key server unreachable", "server", server.Name, "cause", err.Error())
			}
		}(server)
	}
	wg.Wait()
	return responses, denied, unavailable
}

func (c *Client) serverByName(name string) (ServerInfo, bool) {
	for _, srv := range c.servers {
		if srv.Name == name {
			return srv, true
		}
	}
	return ServerInfo{}, false
}

func demSeal(baseKey []byte, identity seal.Identity, packageID string, data []byte) (sealed, nonce []byte, err error) {
	aead, err := demAEAD(baseKey, identity)
	if err != nil {
		return nil, nil, err
	}
	nonce = make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, err
	}
	return aead.Seal(nil, nonce, data, demAAD(identity, packageID)), nonce, nil
}

func demOpen(baseKey []byte, obj seal.EncryptedObject) ([]byte, error) {
	aead, err := demAEAD(baseKey, seal.Identity(obj.Identity))
	if err != nil {
		return nil, err
	}
	if len(obj.DEMNonce) != chacha20poly1305.NonceSizeX {
		return nil, errors.New("bad dem nonce size")
	}
	return aead.Open(nil, obj.DEMNonce, obj.Ciphertext, demAAD(obj.Identity, obj.PackageID))
}

func demAEAD(baseKey []byte, identity seal.Identity) (cipher.AEAD, error) {
	reader := hkdf.New(sha256.New, baseKey, nil, append([]byte(demInfoPrefix), identity...))
	demKey := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(reader, demKey); err != nil {
		return nil, err
	}
	return chacha20poly1305.NewX(demKey)
}

func demAAD(identity []byte, packageID string) []byte {
	aad := make([]byte, 0, len(identity)+len(packageID)+1)
	aad = append(aad, identity...)
	aad = append(aad, 0)
	aad = append(aad, []byte(packageID)...)
	return aad
}
