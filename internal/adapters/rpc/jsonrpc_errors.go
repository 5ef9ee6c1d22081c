package rpc

import (
	"errors"

	"memvault/go-backend/internal/seal"
)

// Stable RPC codes per taxonomy kind. The -3200x block is the normal re-auth
// protocol (not user-facing errors); -3201x is permanent authorization
// failure; -3202x is transient infrastructure; -3203x is unsupported
// operations. Clients branch on codes, never on message text.
const (
	codeSignatureRequired    = -32001
	codeSessionExpired       = -32002
	codeNoSessionFound       = -32003
	codeAuthorizationDenied  = -32010
	codeKeyServerUnavailable = -32020
	codeInconsistentServers  = -32021
	codeMalformedCiphertext  = -32022
	codeBackupNotImplemented = -32030
	codeRateLimited          = -32040
	codeInternal             = -32050
)

var kindCodes = map[string]int{
	"signature_required":       codeSignatureRequired,
	"session_expired":          codeSessionExpired,
	"no_session_found":         codeNoSessionFound,
	"authorization_denied":     codeAuthorizationDenied,
	"key_server_unavailable":   codeKeyServerUnavailable,
	"inconsistent_key_servers": codeInconsistentServers,
	"malformed_ciphertext":     codeMalformedCiphertext,
	"backup_not_implemented":   codeBackupNotImplemented,
}

func rpcInvalidParams() *rpcError {
	return &rpcError{Code: -32602, Message: "invalid params"}
}

func rpcRateLimited() *rpcError {
	return &rpcError{Code: codeRateLimited, Message: "rate limited"}
}

func mapServiceError(err error) *rpcError {
	if errors.Is(err, seal.ErrInvalidPolicy) || errors.Is(err, seal.ErrNonceTooShort) {
		return rpcInvalidParams()
	}
	if code, ok := kindCodes[seal.Kind(err)]; ok {
		return &rpcError{Code: code, Message: err.Error()}
	}
	return &rpcError{Code: codeInternal, Message: err.Error()}
}
