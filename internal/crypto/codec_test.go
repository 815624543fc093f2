package crypto

import (
	"strings"
	"testing"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	codec, err := NewCodec(testSecret, "k1")
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}
	return codec
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	codec := newTestCodec(t)

	cases := []string{
		"hello",
		"",
		"a message with spaces and symbols: !@#$%^&*()",
		"multi\nline\ntext",
		strings.Repeat("long content ", 100),
		"non-ascii: héllo wörld 你好",
	}

	for _, plaintext := range cases {
		stored, err := codec.Encrypt(plaintext)
		if err != nil {
			t.Fatalf("Encrypt(%q) failed: %v", plaintext, err)
		}
		if !strings.HasPrefix(stored, "k1:") {
			t.Fatalf("expected key id prefix, got %q", stored)
		}
		if got := codec.Decrypt(stored); got != plaintext {
			t.Fatalf("round trip mismatch: got %q, want %q", got, plaintext)
		}
	}
}

func TestEncryptUsesFreshIV(t *testing.T) {
	codec := newTestCodec(t)

	first, err := codec.Encrypt("same plaintext")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	second, err := codec.Encrypt("same plaintext")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if first == second {
		t.Fatal("two encryptions of the same plaintext produced identical output")
	}
}

func TestDecryptLegacyPlaintextPassthrough(t *testing.T) {
	codec := newTestCodec(t)

	cases := []string{
		"plain old message",
		"",
		"one:colon but not hex at all",
	}
	for _, stored := range cases {
		if got := codec.Decrypt(stored); got != stored {
			t.Fatalf("Decrypt(%q) = %q, want passthrough", stored, got)
		}
	}
}

func TestDecryptCorruptFallback(t *testing.T) {
	codec := newTestCodec(t)

	stored, err := codec.Encrypt("original")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	cases := []string{
		"k1:zzzz:" + strings.Split(stored, ":")[2],        // bad IV hex
		"k1:" + strings.Split(stored, ":")[1] + ":deadbe", // truncated ciphertext
		"unknown:" + strings.Split(stored, ":")[1] + ":" + strings.Split(stored, ":")[2], // unknown key id
	}
	for _, corrupt := range cases {
		if got := codec.Decrypt(corrupt); got != corrupt {
			t.Fatalf("Decrypt(%q) = %q, want the stored value back", corrupt, got)
		}
	}

	// Wrong key also degrades to passthrough.
	other, err := NewCodec("fedcba9876543210fedcba9876543210", "k1")
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}
	if got := other.Decrypt(stored); got != stored {
		t.Fatalf("decrypt with wrong key returned %q, want stored value", got)
	}
}

func TestDecryptPreVersioningFormat(t *testing.T) {
	codec := newTestCodec(t)

	stored, err := codec.Encrypt("kept across migrations")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	// Strip the key id: older records are "iv_hex:ciphertext_hex".
	legacy := strings.TrimPrefix(stored, "k1:")
	if got := codec.Decrypt(legacy); got != "kept across migrations" {
		t.Fatalf("pre-versioning decrypt returned %q", got)
	}
}

func TestDecryptWithRotatedKeyRing(t *testing.T) {
	oldCodec, err := NewCodec(testSecret, "k1")
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}
	stored, err := oldCodec.Encrypt("written before rotation")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	newCodec, err := NewCodec("fedcba9876543210fedcba9876543210", "k2")
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}
	if err := newCodec.AddKey("k1", testSecret); err != nil {
		t.Fatalf("AddKey failed: %v", err)
	}

	if got := newCodec.Decrypt(stored); got != "written before rotation" {
		t.Fatalf("rotated ring decrypt returned %q", got)
	}

	fresh, err := newCodec.Encrypt("written after rotation")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if !strings.HasPrefix(fresh, "k2:") {
		t.Fatalf("expected new writes under k2, got %q", fresh)
	}
}

func TestNewCodecRejectsBadSecrets(t *testing.T) {
	if _, err := NewCodec("short", "k1"); err == nil {
		t.Fatal("expected error for undersized secret")
	}
	if _, err := NewCodec(testSecret+"extra", "k1"); err == nil {
		t.Fatal("expected error for oversized secret")
	}
	if _, err := NewCodec(testSecret, "bad:id"); err == nil {
		t.Fatal("expected error for key id containing separator")
	}
}
