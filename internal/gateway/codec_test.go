package gateway

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

const testKeyHex = "5A7134743777217A25432A462D4A614E" // 16 bytes

func TestEncryptDecryptRoundTrip(t *testing.T) {
	tests := []struct {
		name      string
		plaintext string
	}{
		{
			name:      "small xml",
			plaintext: `<?xml version="1.0" encoding="UTF-8"?><TRANSACTION3DS><transaction><tx_reference>RM1-ABC</tx_reference></transaction></TRANSACTION3DS>`,
		},
		{
			name:      "utf8 content",
			plaintext: `<?xml version="1.0"?><r><bl_name>José Peña Ordoñez</bl_name><bl_city>Cancún</bl_city></r>`,
		},
		{
			name:      "exact block multiple",
			plaintext: strings.Repeat("A", 64),
		},
		{
			name:      "one byte",
			plaintext: "x",
		},
		{
			name:      "typical document size",
			plaintext: `<?xml version="1.0"?><doc>` + strings.Repeat("<item>value</item>", 200) + `</doc>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encrypted, err := Encrypt(tt.plaintext, testKeyHex)
			if err != nil {
				t.Fatalf("Encrypt failed: %v", err)
			}
			decrypted, err := Decrypt(encrypted, testKeyHex)
			if err != nil {
				t.Fatalf("Decrypt failed: %v", err)
			}
			if decrypted != tt.plaintext {
				t.Errorf("round trip mismatch: got %q, want %q", decrypted, tt.plaintext)
			}
		})
	}
}

func TestEncryptProducesFreshIV(t *testing.T) {
	a, err := Encrypt("same plaintext", testKeyHex)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Encrypt("same plaintext", testKeyHex)
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Error("two encryptions of the same plaintext produced identical output")
	}
}

func TestDecryptMalformedPayload(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{name: "not base64", payload: "%%%not-base64%%%"},
		{name: "empty", payload: ""},
		{name: "shorter than iv", payload: base64.StdEncoding.EncodeToString([]byte("short"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decrypt(tt.payload, testKeyHex)
			if !errors.Is(err, ErrMalformedPayload) {
				t.Errorf("got %v, want ErrMalformedPayload", err)
			}
		})
	}
}

func TestDecryptRejectsUnalignedCiphertext(t *testing.T) {
	// 16-byte IV plus 17 bytes of ciphertext: unframeable for a block cipher
	raw := make([]byte, 33)
	payload := base64.StdEncoding.EncodeToString(raw)

	_, err := Decrypt(payload, testKeyHex)
	if !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("got %v, want ErrDecryptionFailed", err)
	}
}

func TestDecryptRejectsEmptyCiphertext(t *testing.T) {
	// IV only, no ciphertext blocks at all
	raw := make([]byte, 16)
	payload := base64.StdEncoding.EncodeToString(raw)

	_, err := Decrypt(payload, testKeyHex)
	if !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("got %v, want ErrDecryptionFailed", err)
	}
}

func TestDecryptWrongKeyLength(t *testing.T) {
	if _, err := Decrypt("aGVsbG8=", "zz"); err == nil {
		t.Error("expected error for invalid hex key")
	}
}

func TestExtractXML(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{
			name:  "clean document",
			input: `<?xml version="1.0"?><r/>`,
			want:  `<?xml version="1.0"?><r/>`,
			ok:    true,
		},
		{
			name:  "leading binary garbage",
			input: "\x00\x1f\xfegarbage\x7f" + `<?xml version="1.0"?><r/>`,
			want:  `<?xml version="1.0"?><r/>`,
			ok:    true,
		},
		{
			name:  "no xml at all",
			input: "nothing here",
			want:  "",
			ok:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractXML(tt.input)
			if ok != tt.ok || got != tt.want {
				t.Errorf("ExtractXML(%q) = (%q, %v), want (%q, %v)", tt.input, got, ok, tt.want, tt.ok)
			}
		})
	}
}
