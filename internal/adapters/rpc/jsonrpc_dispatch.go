package rpc

import (
	"encoding/json"
	"net/http"
	"time"
)

func (s *Server) dispatchRPC(r *http.Request, method string, rawParams json.RawMessage) (any, *rpcError) {
	ctx := r.Context()
	switch method {
	case "health_check":
		return map[string]string{"status": "ok"}, nil

	case "session.request":
		params, err := decodeParams[sessionKeyParams](rawParams)
		if err != nil {
			return nil, rpcInvalidParams()
		}
		if !s.sessionLimiter.Allow(params.Owner, time.Now()) {
			return nil, rpcRateLimited()
		}
		reply, err := s.service.RequestSession(ctx, params.Owner, params.PackageScope)
		if err != nil {
			return nil, mapServiceError(err)
		}
		return reply, nil

	case "session.bindSignature":
		params, err := decodeParams[sessionKeyParams](rawParams)
		if err != nil || len(params.Signature) == 0 {
			return nil, rpcInvalidParams()
		}
		if err := s.service.BindSessionSignature(ctx, params.Owner, params.PackageScope, params.Signature); err != nil {
			return nil, mapServiceError(err)
		}
		return map[string]bool{"bound": true}, nil

	case "session.status":
		params, err := decodeParams[sessionKeyParams](rawParams)
		if err != nil {
			return nil, rpcInvalidParams()
		}
		reply, err := s.service.SessionStatus(ctx, params.Owner, params.PackageScope)
		if err != nil {
			return nil, mapServiceError(err)
		}
		return reply, nil

	case "seal.encrypt":
		params, err := decodeParams[encryptParams](rawParams)
		if err != nil {
			return nil, rpcInvalidParams()
		}
		policy, err := params.Policy.toPolicy()
		if err != nil {
			return nil, rpcInvalidParams()
		}
		reply, err := s.service.Encrypt(ctx, params.Plaintext, policy)
		if err != nil {
			return nil, mapServiceError(err)
		}
		return reply, nil

	case "seal.decrypt":
		params, err := decodeParams[decryptParams](rawParams)
		if err != nil {
			return nil, rpcInvalidParams()
		}
		policy, err := params.Policy.toPolicy()
		if err != nil {
			return nil, rpcInvalidParams()
		}
		reply, err := s.service.Decrypt(ctx, params.Ciphertext, policy, params.Owner, params.PackageScope)
		if err != nil {
			return nil, mapServiceError(err)
		}
		return reply, nil

	case "backup.exportMnemonic":
		params, err := decodeParams[backupParams](rawParams)
		if err != nil {
			return nil, rpcInvalidParams()
		}
		reply, err := s.service.BackupMnemonic(ctx, params.BackupKey)
		if err != nil {
			return nil, mapServiceError(err)
		}
		return reply, nil

	default:
		return nil, &rpcError{Code: -32601, Message: "method not found"}
	}
}
