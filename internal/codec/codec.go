package codec

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"math/big"
)

// CryptoError signals a malformed key or an impossible encode request. It is
// distinct from the service error taxonomy so callers can map it to a client error.
type CryptoError struct {
	Msg   string
	Cause error
}

func (e *CryptoError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("codec: %s: %v", e.Msg, e.Cause)
	}
	return "codec: " + e.Msg
}

func (e *CryptoError) Unwrap() error { return e.Cause }

func cryptoErr(msg string, cause error) error {
	return &CryptoError{Msg: msg, Cause: cause}
}

// Encode binds plaintext to the device's RSA public key. The plaintext is
// placed in a fixed PKCS#1 v1.5 block (00 02 FF..FF 00 <data>) and encrypted
// raw, without randomized padding. Because the plaintext is itself a fresh
// random value, the fixed template keeps the scheme secure while making the
// ciphertext a pure function of (key, plaintext): verification re-encrypts a
// candidate and compares, so the server never needs to decrypt or store the
// plaintext. Devices decrypt with ordinary PKCS#1 v1.5 padding.
func Encode(pubkeyPEM string, plaintext []byte) (string, error) {
	pub, err := ParsePublicKey(pubkeyPEM)
	if err != nil {
		return "", err
	}

	k := pub.Size()
	if len(plaintext) > k-11 {
		return "", cryptoErr(fmt.Sprintf("plaintext of %d bytes does not fit %d-byte modulus", len(plaintext), k), nil)
	}

	em := make([]byte, k)
	em[1] = 0x02
	for i := 2; i < k-len(plaintext)-1; i++ {
		em[i] = 0xFF
	}
	copy(em[k-len(plaintext):], plaintext)

	c := new(big.Int).Exp(new(big.Int).SetBytes(em), big.NewInt(int64(pub.E)), pub.N)
	out := make([]byte, k)
	c.FillBytes(out)
	return base64.StdEncoding.EncodeToString(out), nil
}

// ParsePublicKey accepts a PEM-encoded RSA public key in PKIX ("PUBLIC KEY")
// or PKCS#1 ("RSA PUBLIC KEY") form.
func ParsePublicKey(pubkeyPEM string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pubkeyPEM))
	if block == nil {
		return nil, cryptoErr("no PEM block in public key", nil)
	}

	if key, err := x509.ParsePKCS1PublicKey(block.Bytes); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, cryptoErr("unparseable public key", err)
	}
	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, cryptoErr("public key is not RSA", nil)
	}
	return key, nil
}

// VerifySignedString checks an RSA PKCS#1 v1.5 SHA-256 signature over data,
// as presented by a mobile device on the signed trigger path.
func VerifySignedString(pubkeyPEM, data, signatureB64 string) error {
	pub, err := ParsePublicKey(pubkeyPEM)
	if err != nil {
		return err
	}
	sig, err := base64.StdEncoding.DecodeString(signatureB64)
	if err != nil {
		return cryptoErr("signature is not valid base64", err)
	}
	digest := sha256.Sum256([]byte(data))
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], sig); err != nil {
		return cryptoErr("signature verification failed", err)
	}
	return nil
}

// RandomSecret returns n cryptographically random bytes, the plaintext for the
// secure code regime.
func RandomSecret(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// RandomDecimal returns n random ASCII decimal digits, used for plain codes
// and for the low-assurance secure code regime.
func RandomDecimal(n int) (string, error) {
	digits := make([]byte, n)
	for i := range digits {
		v, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		digits[i] = byte('0' + v.Int64())
	}
	return string(digits), nil
}
