package record

import (
	"testing"
)

// buildRecord assembles a payload from a list of (serialType, body) pairs,
// encoding the header length and serial-type list itself.
func buildRecord(t *testing.T, cols []struct {
	serialType byte
	body       []byte
}) []byte {
	t.Helper()
	var serialTypes []byte
	var body []byte
	for _, c := range cols {
		serialTypes = append(serialTypes, c.serialType)
		body = append(body, c.body...)
	}
	headerSize := 1 + len(serialTypes) // header-size varint is 1 byte here
	if headerSize > 127 {
		t.Fatalf("test helper only supports single-byte header varint")
	}
	out := append([]byte{byte(headerSize)}, serialTypes...)
	out = append(out, body...)
	return out
}

func TestDecodeNullAndInteger(t *testing.T) {
	payload := buildRecord(t, []struct {
		serialType byte
		body       []byte
	}{
		{0, nil},       // NULL
		{1, []byte{42}}, // int8 = 42
		{8, nil},        // constant 0
		{9, nil},        // constant 1
	})

	vals, err := Decode(payload)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if !vals[0].IsNull() {
		t.Error("col 0 should be NULL")
	}
	if i, ok := vals[1].Int(); !ok || i != 42 {
		t.Errorf("col 1 = %v, want 42", vals[1])
	}
	if i, ok := vals[2].Int(); !ok || i != 0 {
		t.Errorf("col 2 = %v, want 0", vals[2])
	}
	if i, ok := vals[3].Int(); !ok || i != 1 {
		t.Errorf("col 3 = %v, want 1", vals[3])
	}
}

func TestDecodeSignExtension(t *testing.T) {
	payload := buildRecord(t, []struct {
		serialType byte
		body       []byte
	}{
		{1, []byte{0xFF}}, // int8 = -1
	})
	vals, err := Decode(payload)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if i, _ := vals[0].Int(); i != -1 {
		t.Errorf("sign extension: got %d, want -1", i)
	}
}

func TestDecodeTextAndBlob(t *testing.T) {
	text := []byte("hi")
	blob := []byte{0xDE, 0xAD}
	payload := buildRecord(t, []struct {
		serialType byte
		body       []byte
	}{
		{byte(13 + len(text)*2), text}, // odd >=13: text
		{byte(12 + len(blob)*2), blob}, // even >=12: blob
	})
	vals, err := Decode(payload)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if s, ok := vals[0].Text(); !ok || s != "hi" {
		t.Errorf("text col = %v, want hi", vals[0])
	}
	if b, ok := vals[1].Blob(); !ok || string(b) != string(blob) {
		t.Errorf("blob col = %v, want %v", vals[1], blob)
	}
}

func TestDecodeTruncatedBodyPadsNull(t *testing.T) {
	// Header declares an int32 column (4 bytes) but the body only has 2.
	payload := []byte{0x02, 0x04, 0x00, 0x00} // headerSize=2, serialType=4(int32), 2 body bytes
	vals, err := Decode(payload)
	if err != nil {
		t.Fatalf("Decode() should not fail on truncated body: %v", err)
	}
	if len(vals) != 1 || !vals[0].IsNull() {
		t.Errorf("truncated column should pad to NULL, got %v", vals)
	}
}

func TestDecodeOversizedHeaderFails(t *testing.T) {
	// A header-size varint claiming more than 64KiB.
	big := make([]byte, 9)
	big[0] = 0xFF
	big[1] = 0xFF
	big[2] = 0xFF
	big[3] = 0xFF
	big[4] = 0xFF
	big[5] = 0xFF
	big[6] = 0xFF
	big[7] = 0xFF
	big[8] = 0xFF
	if _, err := Decode(big); err == nil {
		t.Error("expected ErrInvalidFormat for oversized header")
	}
}

func TestWidthTable(t *testing.T) {
	cases := map[int64]int{0: 0, 1: 1, 2: 2, 3: 3, 4: 4, 5: 6, 6: 8, 7: 8, 8: 0, 9: 0, 12: 0, 13: 0, 14: 1, 15: 1}
	for st, want := range cases {
		if got := Width(st); got != want {
			t.Errorf("Width(%d) = %d, want %d", st, got, want)
		}
	}
}
