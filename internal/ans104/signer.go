package ans104

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
)

// Signer produces ANS-104 signatures over a deep-hash message.
type Signer interface {
	// SignatureType is the wire value written into the envelope.
	SignatureType() uint16
	// Owner is the raw public key written into the envelope.
	Owner() []byte
	// SignMessage signs the deep-hash message.
	SignMessage(msg []byte) ([]byte, error)
}

// Sign populates SignatureType, Owner and Signature on d using the given
// signer. The remaining fields must be final before calling: the signature
// covers all of them.
func Sign(d *DataItem, s Signer) error {
	d.SignatureType = s.SignatureType()
	d.Owner = s.Owner()
	sig, err := s.SignMessage(d.signaturePayload())
	if err != nil {
		return fmt.Errorf("dataitem signing: %w", err)
	}
	d.Signature = sig
	return nil
}

// Verify recomputes the deep-hash over the non-signature fields and checks
// the signature against the owner key. A signature that simply does not
// match yields (false, nil); structurally broken envelopes yield
// ErrMalformed or ErrUnsupportedVersion.
func Verify(d *DataItem) (bool, error) {
	p, ok := sigParamsByType[d.SignatureType]
	if !ok {
		return false, fmt.Errorf("%w: %d", ErrUnsupportedVersion, d.SignatureType)
	}
	if len(d.Signature) != p.sigLen || len(d.Owner) != p.ownerLen {
		return false, ErrMalformed
	}

	msg := d.signaturePayload()
	switch d.SignatureType {
	case SignatureTypeArweave:
		pub := &rsa.PublicKey{N: new(big.Int).SetBytes(d.Owner), E: 65537}
		digest := sha256.Sum256(msg)
		err := rsa.VerifyPSS(pub, crypto.SHA256, digest[:], d.Signature, pssOpts)
		return err == nil, nil
	case SignatureTypeEd25519:
		return ed25519.Verify(ed25519.PublicKey(d.Owner), msg, d.Signature), nil
	default:
		return false, fmt.Errorf("%w: %d", ErrUnsupportedVersion, d.SignatureType)
	}
}

var pssOpts = &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthAuto, Hash: crypto.SHA256}

// ArweaveSigner signs with an RSA-4096 key in Arweave JWK form
// (RSA-PSS over the SHA-256 digest of the deep-hash message).
type ArweaveSigner struct {
	key *rsa.PrivateKey
}

type arweaveJWK struct {
	Kty string `json:"kty"`
	N   string `json:"n"`
	E   string `json:"e"`
	D   string `json:"d"`
	P   string `json:"p"`
	Q   string `json:"q"`
}

// NewArweaveSigner parses an Arweave JWK (the UPLOADER_JWK of the original
// agent) into a signer. Fails with ErrSigningKey on any malformed field.
func NewArweaveSigner(jwk []byte) (*ArweaveSigner, error) {
	var k arweaveJWK
	if err := json.Unmarshal(jwk, &k); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigningKey, err)
	}
	if k.Kty != "RSA" {
		return nil, fmt.Errorf("%w: key type %q", ErrSigningKey, k.Kty)
	}

	n, err := jwkInt(k.N)
	if err != nil {
		return nil, err
	}
	e, err := jwkInt(k.E)
	if err != nil {
		return nil, err
	}
	d, err := jwkInt(k.D)
	if err != nil {
		return nil, err
	}
	p, err := jwkInt(k.P)
	if err != nil {
		return nil, err
	}
	q, err := jwkInt(k.Q)
	if err != nil {
		return nil, err
	}

	key := &rsa.PrivateKey{
		PublicKey: rsa.PublicKey{N: n, E: int(e.Int64())},
		D:         d,
		Primes:    []*big.Int{p, q},
	}
	key.Precompute()
	if err := key.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigningKey, err)
	}
	return &ArweaveSigner{key: key}, nil
}

func (s *ArweaveSigner) SignatureType() uint16 { return SignatureTypeArweave }

// Owner returns the RSA modulus, left-padded to the fixed 512-byte owner
// field width.
func (s *ArweaveSigner) Owner() []byte {
	return s.key.PublicKey.N.FillBytes(make([]byte, sigParamsByType[SignatureTypeArweave].ownerLen))
}

// Address returns the base64url SHA-256 of the owner key, the form Arweave
// uses as a wallet address.
func (s *ArweaveSigner) Address() string {
	h := sha256.Sum256(s.Owner())
	return base64.RawURLEncoding.EncodeToString(h[:])
}

func (s *ArweaveSigner) SignMessage(msg []byte) ([]byte, error) {
	digest := sha256.Sum256(msg)
	return rsa.SignPSS(rand.Reader, s.key, crypto.SHA256, digest[:], pssOpts)
}

func jwkInt(field string) (*big.Int, error) {
	if field == "" {
		return nil, fmt.Errorf("%w: missing jwk field", ErrSigningKey)
	}
	raw, err := base64.RawURLEncoding.DecodeString(field)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigningKey, err)
	}
	return new(big.Int).SetBytes(raw), nil
}

// Ed25519Signer signs the deep-hash message directly with an Ed25519 key.
// Used by tests and by deployments that prefer small keys over Arweave JWKs.
type Ed25519Signer struct {
	key ed25519.PrivateKey
}

func NewEd25519Signer(key ed25519.PrivateKey) (*Ed25519Signer, error) {
	if len(key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: ed25519 key is %d bytes", ErrSigningKey, len(key))
	}
	return &Ed25519Signer{key: key}, nil
}

func (s *Ed25519Signer) SignatureType() uint16 { return SignatureTypeEd25519 }

func (s *Ed25519Signer) Owner() []byte {
	return []byte(s.key.Public().(ed25519.PublicKey))
}

func (s *Ed25519Signer) SignMessage(msg []byte) ([]byte, error) {
	return ed25519.Sign(s.key, msg), nil
}
