// Package chain builds the transaction bytes that key servers dry-run
// against the on-chain approval predicate. It assembles and encodes calls
// only; evaluating them is the chain's job.
package chain

import (
	"context"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"memvault/go-backend/internal/seal"
)

var ErrEmptyCall = errors.New("authorization call has no target")

const txVersion = 1

var txPrefix = []byte("MVTX1\n")

// wireCall is the canonical transaction form. Deterministic encoding matters:
// every key server must see byte-identical transaction bytes for the same
// call, or their dry-run results cannot be compared.
type wireCall struct {
	Version   uint8     `cbor:"1,keyasint"`
	PackageID string    `cbor:"2,keyasint"`
	Target    string    `cbor:"3,keyasint"`
	Args      []wireArg `cbor:"4,keyasint"`
}

type wireArg struct {
	Kind  uint8  `cbor:"1,keyasint"`
	Bytes []byte `cbor:"2,keyasint,omitempty"`
	Text  string `cbor:"3,keyasint,omitempty"`
}

// Client encodes authorization calls for one on-chain access-control package.
type Client struct {
	packageID string
	enc       cbor.EncMode
}

func NewClient(packageID string) (*Client, error) {
	if packageID == "" {
		return nil, errors.New("chain: empty package id")
	}
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, err
	}
	return &Client{packageID: packageID, enc: enc}, nil
}

// BuildTransaction produces the canonical bytes for a call against the
// package's policy module.
func (c *Client) BuildTransaction(ctx context.Context, call seal.AuthorizationCall) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if call.Target == "" {
		return nil, ErrEmptyCall
	}

	wire := wireCall{
		Version:   txVersion,
		PackageID: c.packageID,
		Target:    fmt.Sprintf("%s::policy::%s", c.packageID, call.Target),
		Args:      make([]wireArg, 0, len(call.Args)),
	}
	for _, arg := range call.Args {
		encoded, err := encodeArg(arg)
		if err != nil {
			return nil, err
		}
		wire.Args = append(wire.Args, encoded)
	}

	raw, err := c.enc.Marshal(wire)
	if err != nil {
		return nil, err
	}
	return append(append([]byte(nil), txPrefix...), raw...), nil
}

func encodeArg(arg seal.CallArg) (wireArg, error) {
	switch arg.Kind {
	case seal.ArgIdentity:
		return wireArg{Kind: uint8(arg.Kind), Bytes: arg.Bytes}, nil
	case seal.ArgObject:
		return wireArg{Kind: uint8(arg.Kind), Text: string(arg.Object)}, nil
	case seal.ArgAddress, seal.ArgString:
		return wireArg{Kind: uint8(arg.Kind), Text: arg.Value}, nil
	default:
		return wireArg{}, fmt.Errorf("chain: unknown call argument kind %d", arg.Kind)
	}
}
