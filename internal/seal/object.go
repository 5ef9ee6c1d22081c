package seal

import (
	"bytes"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

const objectVersion = 1

var objectPrefix = []byte("MVSEAL1\n")

// EncryptedObject is the wire form of a sealed item. The identity is embedded
// so decryption can recover it without re-deriving (nonce-bearing identities
// cannot be re-derived at all); the shares are the per-server key
// encapsulations produced by the threshold scheme.
type EncryptedObject struct {
	Version    uint8              `cbor:"1,keyasint"`
	PackageID  string             `cbor:"2,keyasint"`
	Threshold  int                `cbor:"3,keyasint"`
	Identity   []byte             `cbor:"4,keyasint"`
	Shares     []EncapsulatedShare `cbor:"5,keyasint"`
	DEMNonce   []byte             `cbor:"6,keyasint"`
	Ciphertext []byte             `cbor:"7,keyasint"`
}

// EncapsulatedShare is one key server's opaque share of the wrapped base key.
type EncapsulatedShare struct {
	Server  string `cbor:"1,keyasint"`
	Payload []byte `cbor:"2,keyasint"`
}

var objectEncMode cbor.EncMode

func init() {
	mode, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	objectEncMode = mode
}

// EncodeObject serializes an encrypted object into its transportable form.
func EncodeObject(obj EncryptedObject) ([]byte, error) {
	if obj.Version == 0 {
		obj.Version = objectVersion
	}
	raw, err := objectEncMode.Marshal(obj)
	if err != nil {
		return nil, err
	}
	return append(append([]byte(nil), objectPrefix...), raw...), nil
}

// DecodeObject parses wire bytes back into an encrypted object. Every failure
// is ErrMalformedCiphertext: corruption is permanent and must never be
// retried.
func DecodeObject(data []byte) (EncryptedObject, error) {
	if !bytes.HasPrefix(data, objectPrefix) {
		return EncryptedObject{}, fmt.Errorf("%w: missing object prefix", ErrMalformedCiphertext)
	}
	var obj EncryptedObject
	if err := cbor.Unmarshal(bytes.TrimPrefix(data, objectPrefix), &obj); err != nil {
		return EncryptedObject{}, fmt.Errorf("%w: %v", ErrMalformedCiphertext, err)
	}
	if obj.Version != objectVersion {
		return EncryptedObject{}, fmt.Errorf("%w: unsupported version %d", ErrMalformedCiphertext, obj.Version)
	}
	if len(obj.Identity) == 0 || len(obj.Ciphertext) == 0 || obj.Threshold < 1 {
		return EncryptedObject{}, fmt.Errorf("%w: incomplete object", ErrMalformedCiphertext)
	}
	return obj, nil
}
