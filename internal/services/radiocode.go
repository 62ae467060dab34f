package services

import (
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

const uuidLen = 36

// radioCode is the parsed wire value a cash device presents: the token
// identity plus the decrypted secure code.
type radioCode struct {
	// exactly one of TokenUUID / PlainCode identifies the token
	TokenUUID *uuid.UUID
	PlainCode string
	// Secret is the decrypted secure-code plaintext to re-encrypt and compare
	Secret []byte
}

// parseRadioCode handles both wire forms: the long form is a 36-character
// token UUID followed by the hex-encoded secret bytes; the short form is the
// fixed-length decimal plain code followed by the ASCII decimal secret.
func parseRadioCode(code string, plainCodeLen int) (*radioCode, error) {
	if len(code) > uuidLen {
		if uid, err := uuid.Parse(code[:uuidLen]); err == nil {
			secret, err := hex.DecodeString(code[uuidLen:])
			if err != nil {
				return nil, fmt.Errorf("%w: malformed secure code suffix", ErrValidation)
			}
			return &radioCode{TokenUUID: &uid, Secret: secret}, nil
		}
	}

	if len(code) <= plainCodeLen {
		return nil, fmt.Errorf("%w: radio code too short", ErrValidation)
	}
	plain := code[:plainCodeLen]
	for _, c := range plain {
		if c < '0' || c > '9' {
			return nil, fmt.Errorf("%w: malformed plain code", ErrValidation)
		}
	}
	return &radioCode{PlainCode: plain, Secret: []byte(code[plainCodeLen:])}, nil
}
