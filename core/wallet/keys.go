package wallet

import (
	"github.com/btcsuite/btcutil/base58"
	"github.com/pkg/errors"
	"go.dedis.ch/kyber/v3/group/edwards25519"
	"go.dedis.ch/kyber/v3/sign/eddsa"
	"go.dedis.ch/kyber/v3/util/random"
)

// SeedSize is the length of an Ed25519 key seed.
const SeedSize = 32

var suite = edwards25519.NewBlakeSHA256Ed25519()

// seedStream replays a fixed seed as a key stream, so key generation from a
// seed is deterministic.
type seedStream []byte

func (s seedStream) XORKeyStream(dst, src []byte) {
	for i := range src {
		dst[i] = src[i] ^ s[i%len(s)]
	}
}

// keyPair holds an identity's signing key.
type keyPair struct {
	key    *eddsa.EdDSA
	verkey string
}

func newKeyPair(seed string) (*keyPair, error) {
	var key *eddsa.EdDSA
	switch len(seed) {
	case 0:
		key = eddsa.NewEdDSA(random.New())
	case SeedSize:
		key = eddsa.NewEdDSA(seedStream(seed))
	default:
		return nil, errors.Errorf("seed must be %d bytes, got %d", SeedSize, len(seed))
	}

	pub, err := key.Public.MarshalBinary()
	if err != nil {
		return nil, errors.Wrap(err, "marshal public key")
	}

	return &keyPair{key: key, verkey: base58.Encode(pub)}, nil
}

func (k *keyPair) sign(msg []byte) ([]byte, error) {
	return k.key.Sign(msg)
}

// did derives the short DID from a verkey: the first 16 bytes, base58 encoded.
func did(verkey string, cid bool) string {
	if cid {
		return verkey
	}
	raw := base58.Decode(verkey)
	if len(raw) > 16 {
		raw = raw[:16]
	}
	return base58.Encode(raw)
}

// Verify checks a base58 signature over msg against a base58 verkey.
func Verify(verkey string, msg []byte, signature string) error {
	raw := base58.Decode(verkey)
	if len(raw) == 0 {
		return errors.New("invalid verkey")
	}

	pub := suite.Point()
	if err := pub.UnmarshalBinary(raw); err != nil {
		return errors.Wrap(err, "invalid verkey")
	}

	sig := base58.Decode(signature)
	if len(sig) == 0 {
		return errors.New("invalid signature encoding")
	}

	return eddsa.Verify(pub, msg, sig)
}
