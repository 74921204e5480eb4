package types

import (
	"encoding/binary"
	"testing"
)

func entry(order binary.ByteOrder, strOff uint32, kind Kind, desc int16, value uint32) []byte {
	b := make([]byte, 12)
	order.PutUint32(b, strOff)
	b[4] = byte(kind)
	order.PutUint16(b[6:], uint16(desc))
	order.PutUint32(b[8:], value)
	return b
}

func TestDecodeSection(t *testing.T) {
	// Two compilation units, each introduced by a kind-0 header whose
	// value is the size of that unit's slice of the string table.
	unit1 := []byte("\x00main.c\x00x:1\x00")
	unit2 := []byte("\x00b.c\x00")
	stabstr := append(append([]byte{}, unit1...), unit2...)

	var stab []byte
	stab = append(stab, entry(binary.LittleEndian, 0, 0, 0, uint32(len(unit1)))...)
	stab = append(stab, entry(binary.LittleEndian, 1, N_SO, 0, 0x1000)...)
	stab = append(stab, entry(binary.LittleEndian, 8, N_LSYM, -1, 4)...)
	stab = append(stab, entry(binary.LittleEndian, 0, 0, 0, uint32(len(unit2)))...)
	stab = append(stab, entry(binary.LittleEndian, 1, N_SO, 0, 0x2000)...)

	recs, err := DecodeSection(stab, stabstr, binary.LittleEndian)
	if err != nil {
		t.Fatalf("DecodeSection failed: %v", err)
	}
	if len(recs) != 5 {
		t.Fatalf("got %d records, want 5", len(recs))
	}
	if recs[1].Kind != N_SO || recs[1].Text != "main.c" || recs[1].Value != 0x1000 {
		t.Errorf("record 1 = %s, want N_SO main.c", recs[1])
	}
	if recs[2].Text != "x:1" || recs[2].Desc != -1 || recs[2].Value != 4 {
		t.Errorf("record 2 = %s, want x:1 desc=-1", recs[2])
	}
	// The second unit's string offsets are relative to its own base.
	if recs[4].Text != "b.c" {
		t.Errorf("record 4 = %s, want b.c from the second unit", recs[4])
	}
}

func TestDecodeSectionBigEndian(t *testing.T) {
	stabstr := []byte("\x00f\x00")
	stab := entry(binary.BigEndian, 1, N_FUN, 7, 0xdeadbeef)

	recs, err := DecodeSection(stab, stabstr, binary.BigEndian)
	if err != nil {
		t.Fatalf("DecodeSection failed: %v", err)
	}
	if len(recs) != 1 || recs[0].Text != "f" || recs[0].Desc != 7 || recs[0].Value != 0xdeadbeef {
		t.Fatalf("got %v", recs)
	}
}

func TestDecodeSectionErrors(t *testing.T) {
	le := binary.LittleEndian
	cases := []struct {
		name    string
		stab    []byte
		stabstr []byte
	}{
		{name: "ShortEntry", stab: make([]byte, 10), stabstr: nil},
		{name: "OffsetBeyondTable", stab: entry(le, 99, N_SO, 0, 0), stabstr: []byte("\x00a\x00")},
		{name: "Unterminated", stab: entry(le, 1, N_SO, 0, 0), stabstr: []byte("\x00abc")},
		{name: "HeaderBeyondTable", stab: entry(le, 0, 0, 0, 100), stabstr: []byte("\x00a\x00")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := DecodeSection(tc.stab, tc.stabstr, le); err == nil {
				t.Fatal("malformed section decoded without error")
			}
		})
	}
}

func TestKindString(t *testing.T) {
	if got := N_GSYM.String(); got != "GSYM" {
		t.Errorf("N_GSYM = %q", got)
	}
	if got := Kind(0x03).String(); got != "Kind(0x3)" {
		t.Errorf("unknown kind = %q", got)
	}
}
