// Package orderhash implements the deterministic digest and RSV signature
// verification for signed orders: a pure, side-effect-free function from a
// fixed tuple of order fields to a 32-byte SHA-256 digest, and a verifier
// for the maker's recoverable secp256k1 signature over it.
package orderhash

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"strconv"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	exerrors "github.com/abdoElHodaky/clobcore/pkg/errors"
)

// Fields are the inputs to the order hash, listed in the exact order the
// digest concatenates them.
type Fields struct {
	Maker           string
	Taker           string
	MakerPositionID string // 32 bytes hex
	TakerPositionID string // 32 bytes hex
	MakerAmount     int64
	TakerAmount     int64
	Salt            string // numeric string
	Expiration      int64
}

// consensusPrincipal encodes a principal the way the chain's consensus
// serialization would: a one-byte version tag followed by the UTF-8 bytes
// of the principal, length-prefixed so concatenation stays unambiguous.
func consensusPrincipal(p string) []byte {
	b := make([]byte, 0, 5+len(p))
	b = append(b, 0x05) // standard-principal version tag
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(p)))
	b = append(b, lenBuf[:]...)
	b = append(b, p...)
	return b
}

// consensusUint encodes a non-negative integer as the chain's consensus
// buffer would: a one-byte type tag followed by an 8-byte big-endian
// value.
func consensusUint(tag byte, v int64) []byte {
	b := make([]byte, 9)
	b[0] = tag
	binary.BigEndian.PutUint64(b[1:], uint64(v))
	return b
}

func positionBytes(hexID string) ([]byte, error) {
	if len(hexID) != 64 {
		return nil, exerrors.New(exerrors.InvalidArgument, "position id must be 32 bytes hex")
	}
	b, err := hex.DecodeString(hexID)
	if err != nil {
		return nil, exerrors.Wrap(err, exerrors.InvalidArgument, "position id is not valid hex")
	}
	return b, nil
}

// Hash concatenates, in order, the consensus encodings of maker, taker,
// makerPositionId, takerPositionId, makerAmount, takerAmount, salt and
// expiration, and returns the single SHA-256 digest over the result.
func Hash(f Fields) ([32]byte, error) {
	var zero [32]byte

	if _, err := strconv.ParseInt(f.Salt, 10, 64); err != nil {
		return zero, exerrors.Wrap(err, exerrors.InvalidArgument, "salt must be numeric")
	}
	if f.MakerAmount < 0 || f.TakerAmount < 0 || f.Expiration < 0 {
		return zero, exerrors.New(exerrors.InvalidArgument, "amounts and expiration must be non-negative integers")
	}

	makerPos, err := positionBytes(f.MakerPositionID)
	if err != nil {
		return zero, err
	}
	takerPos, err := positionBytes(f.TakerPositionID)
	if err != nil {
		return zero, err
	}
	salt, err := strconv.ParseInt(f.Salt, 10, 64)
	if err != nil {
		return zero, exerrors.Wrap(err, exerrors.InvalidArgument, "salt must be numeric")
	}

	buf := make([]byte, 0, 256)
	buf = append(buf, consensusPrincipal(f.Maker)...)
	buf = append(buf, consensusPrincipal(f.Taker)...)
	buf = append(buf, makerPos...)
	buf = append(buf, takerPos...)
	buf = append(buf, consensusUint(0x01, f.MakerAmount)...)
	buf = append(buf, consensusUint(0x01, f.TakerAmount)...)
	buf = append(buf, consensusUint(0x01, salt)...)
	buf = append(buf, consensusUint(0x01, f.Expiration)...)

	return sha256.Sum256(buf), nil
}

// DerivePositionID computes a market's outcome position id:
// SHA-256(conditionId ‖ consensusSerialize(uint(outcomeIndex))),
// outcomeIndex ∈ {0, 1}.
func DerivePositionID(conditionIDHex string, outcomeIndex int) (string, error) {
	conditionBytes, err := positionBytes(conditionIDHex)
	if err != nil {
		return "", err
	}
	buf := append(append([]byte{}, conditionBytes...), consensusUint(0x01, int64(outcomeIndex))...)
	digest := sha256.Sum256(buf)
	return hex.EncodeToString(digest[:]), nil
}

// Verify checks that signatureHex (130 hex chars, RSV) is a valid
// recoverable secp256k1 signature over hash, and that the recovered
// public key matches publicKeyHex (compressed, hex-encoded). It does NOT
// bind the recovered key to any maker principal; callers who need that
// binding must compare it themselves.
func Verify(hash [32]byte, signatureHex, publicKeyHex string) error {
	if len(signatureHex) != 130 {
		return exerrors.New(exerrors.InvalidArgument, "signature must be 130 hex chars")
	}
	sigBytes, err := hex.DecodeString(signatureHex)
	if err != nil {
		return exerrors.Wrap(err, exerrors.InvalidArgument, "signature is not valid hex")
	}

	wantPub, err := hex.DecodeString(publicKeyHex)
	if err != nil {
		return exerrors.Wrap(err, exerrors.InvalidArgument, "public key is not valid hex")
	}

	// RSV -> compact recoverable signature: libsecp256k1's recover format
	// is [recoveryID+27 || R || S], so rotate the trailing V byte to the
	// front.
	r := sigBytes[0:32]
	s := sigBytes[32:64]
	v := sigBytes[64]
	compact := make([]byte, 65)
	compact[0] = v + 27
	copy(compact[1:33], r)
	copy(compact[33:], s)

	recoveredPub, _, err := ecdsa.RecoverCompact(compact, hash[:])
	if err != nil {
		return exerrors.Wrap(err, exerrors.BadSignature, "signature does not recover a valid public key")
	}

	recoveredCompressed := recoveredPub.SerializeCompressed()
	if !bytesEqual(recoveredCompressed, wantPub) {
		// The supplied key may be in uncompressed form; fall back to
		// comparing against the parsed supplied key's own compressed
		// serialization.
		parsedWant, perr := secp256k1.ParsePubKey(wantPub)
		if perr != nil || !bytesEqual(recoveredCompressed, parsedWant.SerializeCompressed()) {
			return exerrors.New(exerrors.BadSignature, "recovered public key does not match supplied key")
		}
	}
	return nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
