package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"memvault/go-backend/internal/platform/ratelimiter"
	"memvault/go-backend/internal/seal"
	"memvault/go-backend/pkg/models"
)

type fakeService struct {
	requestErr error
	bindErr    error
	encryptErr error
	decryptErr error

	lastPolicy seal.AccessPolicy
	lastOwner  string
}

func (f *fakeService) RequestSession(_ context.Context, owner, packageScope string) (models.SessionChallenge, error) {
	if f.requestErr != nil {
		return models.SessionChallenge{}, f.requestErr
	}
	f.lastOwner = owner
	return models.SessionChallenge{
		Challenge: []byte("sign me"),
		ExpiresAt: time.Now().Add(30 * time.Minute),
	}, nil
}

func (f *fakeService) BindSessionSignature(_ context.Context, owner, packageScope string, signature []byte) error {
	return f.bindErr
}

func (f *fakeService) SessionStatus(_ context.Context, owner, packageScope string) (models.SessionStatus, error) {
	return models.SessionStatus{Owner: owner, PackageScope: packageScope, State: "signed"}, nil
}

func (f *fakeService) Encrypt(_ context.Context, plaintext []byte, policy seal.AccessPolicy) (models.EncryptReply, error) {
	if f.encryptErr != nil {
		return models.EncryptReply{}, f.encryptErr
	}
	f.lastPolicy = policy
	return models.EncryptReply{Ciphertext: []byte("sealed"), BackupKey: []byte("backup"), Identity: "self:0xu"}, nil
}

func (f *fakeService) Decrypt(_ context.Context, ciphertext []byte, policy seal.AccessPolicy, owner, packageScope string) (models.DecryptReply, error) {
	if f.decryptErr != nil {
		return models.DecryptReply{}, f.decryptErr
	}
	f.lastPolicy = policy
	return models.DecryptReply{Plaintext: []byte("hello")}, nil
}

func (f *fakeService) BackupMnemonic(_ context.Context, backupKey []byte) (models.BackupMnemonicReply, error) {
	return models.BackupMnemonicReply{Mnemonic: "word word word"}, nil
}

func newTestServer(t *testing.T, svc Service, opts Options) *httptest.Server {
	t.Helper()
	s := NewServer(svc, opts)
	ts := httptest.NewServer(s.httpServer.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func callRPC(t *testing.T, ts *httptest.Server, body string, header http.Header) rpcResponse {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/rpc", strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	var parsed rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return parsed
}

func TestHealthCheckMethod(t *testing.T) {
	ts := newTestServer(t, &fakeService{}, Options{})
	resp := callRPC(t, ts, `{"jsonrpc":"2.0","id":1,"method":"health_check"}`, nil)
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	result, ok := resp.Result.(map[string]any)
	if !ok || result["status"] != "ok" {
		t.Fatalf("unexpected result: %v", resp.Result)
	}
}

func TestMalformedRequests(t *testing.T) {
	ts := newTestServer(t, &fakeService{}, Options{})
	cases := []struct {
		body string
		code int
	}{
		{`{not json`, -32700},
		{`{"jsonrpc":"1.0","id":1,"method":"health_check"}`, -32600},
		{`{"jsonrpc":"2.0","id":1}`, -32600},
		{`{"jsonrpc":"2.0","id":1,"method":"no.such.method"}`, -32601},
		{`{"jsonrpc":"2.0","id":1,"method":"session.request"}`, -32602},
	}
	for _, tc := range cases {
		resp := callRPC(t, ts, tc.body, nil)
		if resp.Error == nil || resp.Error.Code != tc.code {
			t.Fatalf("body %q: expected code %d, got %+v", tc.body, tc.code, resp.Error)
		}
	}
}

func TestSessionRequestMethod(t *testing.T) {
	svc := &fakeService{}
	ts := newTestServer(t, svc, Options{})
	resp := callRPC(t, ts, `{"jsonrpc":"2.0","id":1,"method":"session.request","params":{"owner":"0xo","package_scope":"0xp"}}`, nil)
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	if svc.lastOwner != "0xo" {
		t.Fatalf("owner not forwarded: %q", svc.lastOwner)
	}
	result, ok := resp.Result.(map[string]any)
	if !ok || result["challenge"] == nil {
		t.Fatalf("challenge missing from result: %v", resp.Result)
	}
}

func TestBindSignatureRequiresSignature(t *testing.T) {
	ts := newTestServer(t, &fakeService{}, Options{})
	resp := callRPC(t, ts, `{"jsonrpc":"2.0","id":1,"method":"session.bindSignature","params":{"owner":"0xo","package_scope":"0xp"}}`, nil)
	if resp.Error == nil || resp.Error.Code != -32602 {
		t.Fatalf("expected invalid params, got %+v", resp.Error)
	}
}

func TestEncryptMethodParsesPolicy(t *testing.T) {
	svc := &fakeService{}
	ts := newTestServer(t, svc, Options{})
	body := `{"jsonrpc":"2.0","id":1,"method":"seal.encrypt","params":{"plaintext":"aGVsbG8=","policy":{"kind":"self","user_address":"0xu"}}}`
	resp := callRPC(t, ts, body, nil)
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	self, ok := svc.lastPolicy.(seal.SelfPolicy)
	if !ok || self.UserAddress != "0xu" {
		t.Fatalf("policy not decoded: %#v", svc.lastPolicy)
	}

	bad := `{"jsonrpc":"2.0","id":1,"method":"seal.encrypt","params":{"plaintext":"aGVsbG8=","policy":{"kind":"nonsense"}}}`
	resp = callRPC(t, ts, bad, nil)
	if resp.Error == nil || resp.Error.Code != -32602 {
		t.Fatalf("unknown policy kind: expected invalid params, got %+v", resp.Error)
	}
}

func TestServiceErrorCodes(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{seal.ErrSignatureRequired, codeSignatureRequired},
		{seal.ErrSessionExpired, codeSessionExpired},
		{seal.ErrNoSessionFound, codeNoSessionFound},
		{seal.ErrAuthorizationDenied, codeAuthorizationDenied},
		{seal.ErrKeyServerUnavailable, codeKeyServerUnavailable},
		{seal.ErrInconsistentKeyServerResponses, codeInconsistentServers},
		{seal.ErrMalformedCiphertext, codeMalformedCiphertext},
	}
	body := `{"jsonrpc":"2.0","id":1,"method":"seal.decrypt","params":{"ciphertext":"eA==","policy":{"kind":"self","user_address":"0xu"},"owner":"0xu","package_scope":"0xp"}}`
	for _, tc := range cases {
		svc := &fakeService{decryptErr: tc.err}
		ts := newTestServer(t, svc, Options{})
		resp := callRPC(t, ts, body, nil)
		if resp.Error == nil || resp.Error.Code != tc.code {
			t.Fatalf("%v: expected code %d, got %+v", tc.err, tc.code, resp.Error)
		}
	}

	svc := &fakeService{decryptErr: seal.ErrInvalidPolicy}
	resp := callRPC(t, newTestServer(t, svc, Options{}), body, nil)
	if resp.Error == nil || resp.Error.Code != -32602 {
		t.Fatalf("invalid policy: expected invalid params, got %+v", resp.Error)
	}
}

func TestSessionRequestRateLimit(t *testing.T) {
	limiter := ratelimiter.New(0.001, 1, time.Minute)
	ts := newTestServer(t, &fakeService{}, Options{SessionLimiter: limiter})
	body := `{"jsonrpc":"2.0","id":1,"method":"session.request","params":{"owner":"0xo","package_scope":"0xp"}}`

	if resp := callRPC(t, ts, body, nil); resp.Error != nil {
		t.Fatalf("first request limited: %+v", resp.Error)
	}
	resp := callRPC(t, ts, body, nil)
	if resp.Error == nil || resp.Error.Code != codeRateLimited {
		t.Fatalf("expected rate limit, got %+v", resp.Error)
	}
}

func TestRPCTokenAuth(t *testing.T) {
	s := NewServer(&fakeService{}, Options{Token: "sekrit"})
	ts := httptest.NewServer(s.httpServer.Handler)
	t.Cleanup(ts.Close)

	body := `{"jsonrpc":"2.0","id":1,"method":"health_check"}`
	resp, err := http.Post(ts.URL+"/rpc", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("missing token: expected 401, got %d", resp.StatusCode)
	}

	for _, header := range []http.Header{
		{"X-Memvault-Rpc-Token": []string{"sekrit"}},
		{"Authorization": []string{"Bearer sekrit"}},
	} {
		parsed := callRPC(t, ts, body, header)
		if parsed.Error != nil {
			t.Fatalf("authorized call failed: %+v", parsed.Error)
		}
	}
}

func TestRequestBodyTooLarge(t *testing.T) {
	ts := newTestServer(t, &fakeService{}, Options{})
	huge := `{"jsonrpc":"2.0","id":1,"method":"health_check","params":{"pad":"` +
		strings.Repeat("a", int(maxRPCBodyBytes)) + `"}}`
	resp, err := http.Post(ts.URL+"/rpc", "application/json", bytes.NewReader([]byte(huge)))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", resp.StatusCode)
	}
}

func TestHealthzEndpoint(t *testing.T) {
	ts := newTestServer(t, &fakeService{}, Options{})
	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}
