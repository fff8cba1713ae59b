package crypto

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/btcsuite/btcutil/bech32"
)

func TestAddressRoundTrip(t *testing.T) {
	addr := Address{0xA1, 0x02, 0x03}
	encoded := addr.String()
	if !strings.HasPrefix(encoded, "ldp1") {
		t.Fatalf("expected ldp1 prefix, got %s", encoded)
	}
	parsed, err := ParseAddress(encoded)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed != addr {
		t.Fatalf("round trip mismatch: %x != %x", parsed, addr)
	}
	hexParsed, err := ParseAddress("0xa102030000000000000000000000000000000000")
	if err != nil {
		t.Fatalf("parse hex: %v", err)
	}
	if hexParsed != addr {
		t.Fatalf("hex mismatch: %x", hexParsed)
	}
}

func TestParseAddressRejects(t *testing.T) {
	other, err := encodeWithPrefix("xyz", Address{0x01})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	for _, raw := range []string{"", "ldp1invalid", "0x1234", other} {
		if _, err := ParseAddress(raw); err == nil {
			t.Fatalf("expected %q to be rejected", raw)
		}
	}
}

func TestAddressJSON(t *testing.T) {
	type payload struct {
		User Address `json:"user"`
	}
	in := payload{User: Address{0xB0}}
	raw, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out payload
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.User != in.User {
		t.Fatalf("json mismatch")
	}
}

func TestPrivateKeyAddressStable(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	restored, err := PrivateKeyFromBytes(key.Bytes())
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored.Address() != key.Address() || key.Address().IsZero() {
		t.Fatalf("address mismatch")
	}
}

func encodeWithPrefix(prefix string, addr Address) (string, error) {
	conv, err := bech32.ConvertBits(addr[:], 8, 5, true)
	if err != nil {
		return "", err
	}
	return bech32.Encode(prefix, conv)
}
