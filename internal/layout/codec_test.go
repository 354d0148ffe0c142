package layout

import (
	"strings"
	"testing"
)

func TestCodec_RoundTrip(t *testing.T) {
	cards, err := Generate(DefaultPairCount)
	if err != nil {
		t.Fatal(err)
	}
	key := DeriveKey("server-secret", "session-1")

	payload, err := Encode(cards, key)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !strings.Contains(payload, ":") {
		t.Fatalf("payload missing separator: %q", payload)
	}

	got, err := Decode(payload, key, DefaultPairCount)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !equalInts(got, cards) {
		t.Fatalf("round trip mismatch: got %v, want %v", got, cards)
	}
}

func TestCodec_FreshIVPerEncode(t *testing.T) {
	cards := []int{1, 2, 1, 2}
	key := DeriveKey("secret", "s")
	a, err := Encode(cards, key)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Encode(cards, key)
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Fatal("two encodes of the same layout produced identical payloads")
	}
}

func TestDecode_WrongKeyFails(t *testing.T) {
	cards, _ := Generate(DefaultPairCount)
	payload, err := Encode(cards, DeriveKey("secret", "session-a"))
	if err != nil {
		t.Fatal(err)
	}

	got, err := Decode(payload, DeriveKey("secret", "session-b"), DefaultPairCount)
	if err != ErrDecryptionFailed {
		t.Fatalf("expected ErrDecryptionFailed, got err=%v layout=%v", err, got)
	}
	if got != nil {
		t.Fatalf("wrong key returned a layout: %v", got)
	}
}

func TestDecode_Malformed(t *testing.T) {
	key := DeriveKey("secret", "s")
	tests := []struct {
		name    string
		payload string
	}{
		{"no separator", "deadbeef"},
		{"not hex", "zz:zz"},
		{"empty iv", ":deadbeef"},
		{"empty ct", "00112233445566778899aabbccddeeff:"},
		{"short iv", "dead:beefbeefbeefbeefbeefbeefbeef"},
		{"ct not block aligned", "00112233445566778899aabbccddeeff:dead"},
		{"too many parts", "aa:bb:cc"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Decode(tc.payload, key, DefaultPairCount); err != ErrMalformedPayload {
				t.Errorf("expected ErrMalformedPayload, got %v", err)
			}
		})
	}
}

func TestDecode_TamperedCiphertext(t *testing.T) {
	cards, _ := Generate(DefaultPairCount)
	key := DeriveKey("secret", "s")
	payload, err := Encode(cards, key)
	if err != nil {
		t.Fatal(err)
	}

	// Flip one hex digit of the ciphertext.
	b := []byte(payload)
	i := len(b) - 1
	if b[i] == '0' {
		b[i] = '1'
	} else {
		b[i] = '0'
	}

	got, err := Decode(string(b), key, DefaultPairCount)
	if err != ErrDecryptionFailed {
		t.Fatalf("expected ErrDecryptionFailed, got err=%v layout=%v", err, got)
	}
}

func TestDecode_RejectsWrongPairCount(t *testing.T) {
	key := DeriveKey("secret", "s")
	payload, err := Encode([]int{1, 2, 1, 2}, key)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Decode(payload, key, DefaultPairCount); err != ErrDecryptionFailed {
		t.Fatalf("expected ErrDecryptionFailed for 2-pair layout on 8-pair board, got %v", err)
	}
}

func TestDeriveKey_PerSession(t *testing.T) {
	a := DeriveKey("secret", "session-a")
	b := DeriveKey("secret", "session-b")
	if len(a) != 32 || len(b) != 32 {
		t.Fatalf("expected 32-byte keys, got %d and %d", len(a), len(b))
	}
	if string(a) == string(b) {
		t.Fatal("different sessions derived the same key")
	}
}
