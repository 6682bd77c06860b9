package text

import (
	"bytes"
	"encoding/hex"
	"strings"
	"testing"
)

// Reference encoding of the join message the client renders, byte-for-byte.
func TestEncode_TranslateWithArgs(t *testing.T) {
	msg := Translatef("multiplayer.player.joined", Literal("NAME")).WithColor(ColorYellow)

	wantHex := strings.ReplaceAll(
		"0A 08 00 09 74 72 61 6E 73 6C 61 74 65 00 19 6D 75 6C 74 69 70 6C 61 79 65"+
			" 72 2E 70 6C 61 79 65 72 2E 6A 6F 69 6E 65 64 09 00 04 77 69 74 68 0A 00 00"+
			" 00 01 08 00 04 74 65 78 74 00 04 4E 41 4D 45 00 08 00 05 63 6F 6C 6F 72 00"+
			" 06 79 65 6C 6C 6F 77 00", " ", "")
	want, err := hex.DecodeString(wantHex)
	if err != nil {
		t.Fatalf("bad fixture: %v", err)
	}
	got := msg.Encode()
	if len(got) != len(want) {
		t.Fatalf("encoded length = %d, want %d", len(got), len(want))
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("encoding mismatch\n got % X\nwant % X", got, want)
	}
}

func TestEncode_Literal(t *testing.T) {
	got := Literal("hi").Encode()
	want := []byte{
		0x0A,
		0x08, 0x00, 0x04, 't', 'e', 'x', 't', 0x00, 0x02, 'h', 'i',
		0x00,
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("got % X, want % X", got, want)
	}
}

func TestEncode_LiteralColored(t *testing.T) {
	got := Literal("no").WithColor(ColorRed).Encode()
	want := []byte{
		0x0A,
		0x08, 0x00, 0x04, 't', 'e', 'x', 't', 0x00, 0x02, 'n', 'o',
		0x08, 0x00, 0x05, 'c', 'o', 'l', 'o', 'r', 0x00, 0x03, 'r', 'e', 'd',
		0x00,
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("got % X, want % X", got, want)
	}
}
