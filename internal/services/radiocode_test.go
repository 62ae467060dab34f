package services

import (
	"encoding/hex"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestParseRadioCodeLongForm(t *testing.T) {
	uid := uuid.New()
	secret := []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x01, 0x02}
	code := uid.String() + hex.EncodeToString(secret)

	parsed, err := parseRadioCode(code, 6)
	if err != nil {
		t.Fatalf("parseRadioCode(%q) failed: %v", code, err)
	}
	if parsed.TokenUUID == nil || *parsed.TokenUUID != uid {
		t.Errorf("uuid = %v, want %v", parsed.TokenUUID, uid)
	}
	if parsed.PlainCode != "" {
		t.Errorf("plain code = %q, want empty", parsed.PlainCode)
	}
	if string(parsed.Secret) != string(secret) {
		t.Errorf("secret = %x, want %x", parsed.Secret, secret)
	}
}

func TestParseRadioCodeShortForm(t *testing.T) {
	parsed, err := parseRadioCode("123456654321", 6)
	if err != nil {
		t.Fatalf("parseRadioCode failed: %v", err)
	}
	if parsed.TokenUUID != nil {
		t.Errorf("uuid = %v, want nil", parsed.TokenUUID)
	}
	if parsed.PlainCode != "123456" {
		t.Errorf("plain code = %q, want 123456", parsed.PlainCode)
	}
	if string(parsed.Secret) != "654321" {
		t.Errorf("secret = %q, want 654321", parsed.Secret)
	}
}

func TestParseRadioCodeErrors(t *testing.T) {
	tests := []struct {
		name string
		code string
	}{
		{"empty", ""},
		{"plain code only, no secret", "123456"},
		{"non-decimal plain code", "12a456654321"},
		{"uuid with bad hex suffix", uuid.New().String() + "zz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseRadioCode(tt.code, 6)
			if !errors.Is(err, ErrValidation) {
				t.Errorf("parseRadioCode(%q) = %v, want ErrValidation", tt.code, err)
			}
		})
	}
}
