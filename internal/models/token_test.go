package models

import "testing"

func TestIsValidTransition(t *testing.T) {
	tests := []struct {
		from     string
		to       string
		expected bool
	}{
		// Happy path
		{TokenStateOpen, TokenStateLocked, true},
		{TokenStateLocked, TokenStateCompleted, true},
		{TokenStateLocked, TokenStateCanceled, true},
		{TokenStateLocked, TokenStateFailed, true},
		{TokenStateLocked, TokenStateRejected, true},
		{TokenStateLocked, TokenStateRetracted, true},

		// Exits out of OPEN without a lock
		{TokenStateOpen, TokenStateRejected, true},
		{TokenStateOpen, TokenStateDeleted, true},
		{TokenStateOpen, TokenStateExpired, true},

		// Terminal states absorb
		{TokenStateCompleted, TokenStateOpen, false},
		{TokenStateRejected, TokenStateOpen, false},
		{TokenStateRejected, TokenStateLocked, false},
		{TokenStateExpired, TokenStateLocked, false},
		{TokenStateDeleted, TokenStateOpen, false},
		{TokenStateCanceled, TokenStateCompleted, false},

		// No shortcuts
		{TokenStateOpen, TokenStateCompleted, false},
		{TokenStateOpen, TokenStateCanceled, false},
		{TokenStateLocked, TokenStateOpen, false},
		{TokenStateLocked, TokenStateDeleted, false},
		{TokenStateLocked, TokenStateExpired, false},
		{"nonexistent", TokenStateLocked, false},
		{TokenStateOpen, "nonexistent", false},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			result := IsValidTransition(tt.from, tt.to)
			if result != tt.expected {
				t.Errorf("IsValidTransition(%q, %q) = %v, want %v", tt.from, tt.to, result, tt.expected)
			}
		})
	}
}

func TestIsConfirmState(t *testing.T) {
	confirmable := []string{TokenStateCompleted, TokenStateCanceled, TokenStateFailed, TokenStateRejected, TokenStateRetracted}
	for _, s := range confirmable {
		if !IsConfirmState(s) {
			t.Errorf("IsConfirmState(%q) = false, want true", s)
		}
	}
	for _, s := range []string{TokenStateOpen, TokenStateLocked, TokenStateDeleted, TokenStateExpired} {
		if IsConfirmState(s) {
			t.Errorf("IsConfirmState(%q) = true, want false", s)
		}
	}
}

func TestTerminalStates(t *testing.T) {
	terminal := []string{TokenStateCompleted, TokenStateCanceled, TokenStateFailed,
		TokenStateRejected, TokenStateRetracted, TokenStateDeleted, TokenStateExpired}
	for _, s := range terminal {
		if !IsTerminalState(s) {
			t.Errorf("IsTerminalState(%q) = false, want true", s)
		}
	}
	if IsTerminalState(TokenStateOpen) || IsTerminalState(TokenStateLocked) {
		t.Error("OPEN and LOCKED must not be terminal")
	}
}

func TestStripSecrets(t *testing.T) {
	code := "ciphertext"
	plain := "123456"
	tok := Token{SecureCode: &code, PlainCode: &plain}
	tok.StripSecrets()
	if tok.SecureCode != nil || tok.PlainCode != nil {
		t.Error("StripSecrets must clear both code fields")
	}
}
