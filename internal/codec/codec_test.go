package codec

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pubPEM := string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
	return key, pubPEM
}

func TestEncodeDeterministic(t *testing.T) {
	_, pubPEM := testKey(t)

	secret, err := RandomSecret(6)
	require.NoError(t, err)

	first, err := Encode(pubPEM, secret)
	require.NoError(t, err)
	second, err := Encode(pubPEM, secret)
	require.NoError(t, err)

	assert.Equal(t, first, second, "same key and plaintext must produce identical ciphertext")

	other, err := Encode(pubPEM, []byte("abcdef"))
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}

func TestEncodeDecryptsWithStandardPadding(t *testing.T) {
	key, pubPEM := testKey(t)

	secret := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06}
	ct, err := Encode(pubPEM, secret)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(ct)
	require.NoError(t, err)
	assert.Len(t, raw, key.PublicKey.Size(), "ciphertext must be size-stable")

	// the fixed template is a valid PKCS#1 v1.5 block, so a device using the
	// standard decrypt primitive gets the plaintext back
	pt, err := rsa.DecryptPKCS1v15(nil, key, raw)
	require.NoError(t, err)
	assert.Equal(t, secret, pt)

	// the server-side check: re-encrypting the decrypted value reproduces the
	// stored ciphertext
	again, err := Encode(pubPEM, pt)
	require.NoError(t, err)
	assert.Equal(t, ct, again)
}

func TestEncodeBadKey(t *testing.T) {
	var cerr *CryptoError

	_, err := Encode("not a key", []byte("secret"))
	require.Error(t, err)
	assert.True(t, errors.As(err, &cerr))

	_, err = Encode("-----BEGIN PUBLIC KEY-----\nAAAA\n-----END PUBLIC KEY-----", []byte("secret"))
	require.Error(t, err)
	assert.True(t, errors.As(err, &cerr))
}

func TestEncodePlaintextTooLong(t *testing.T) {
	_, pubPEM := testKey(t)
	_, err := Encode(pubPEM, make([]byte, 2048/8-10))
	require.Error(t, err)
	var cerr *CryptoError
	assert.True(t, errors.As(err, &cerr))
}

func TestVerifySignedString(t *testing.T) {
	key, pubPEM := testKey(t)

	data := "triggercode+radiocode"
	digest := sha256.Sum256([]byte(data))
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
	require.NoError(t, err)

	require.NoError(t, VerifySignedString(pubPEM, data, base64.StdEncoding.EncodeToString(sig)))

	err = VerifySignedString(pubPEM, "tampered", base64.StdEncoding.EncodeToString(sig))
	assert.Error(t, err)

	err = VerifySignedString(pubPEM, data, "!!!")
	assert.Error(t, err)
}

func TestRandomDecimal(t *testing.T) {
	for i := 0; i < 20; i++ {
		code, err := RandomDecimal(6)
		require.NoError(t, err)
		require.Len(t, code, 6)
		for _, c := range code {
			assert.True(t, c >= '0' && c <= '9')
		}
	}
}
