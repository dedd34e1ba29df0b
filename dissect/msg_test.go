package dissect

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestBitRoundTripAllWidths(t *testing.T) {
	for width := 1; width <= 32; width++ {
		max := uint64(1)<<width - 1
		values := []uint64{0, 1, max, max / 2, max - 1}
		for _, v := range values {
			m := NewMsg(64)
			if err := m.WriteBits(uint32(v), width); err != nil {
				t.Fatalf("width %d value %d: write: %v", width, v, err)
			}
			got, err := m.ReadBits(width)
			if err != nil {
				t.Fatalf("width %d value %d: read: %v", width, v, err)
			}
			if uint64(got) != v {
				t.Fatalf("width %d: wrote %d, read %d", width, v, got)
			}
		}
	}
}

func TestSignedBitExtension(t *testing.T) {
	for width := 2; width <= 32; width++ {
		min := -(int64(1) << (width - 1))
		max := int64(1)<<(width-1) - 1
		for _, v := range []int64{min, -1, 0, 1, max} {
			m := NewMsg(64)
			if err := m.WriteBits(uint32(v), width); err != nil {
				t.Fatalf("width %d: write: %v", width, err)
			}
			got, err := m.ReadBitsSigned(width)
			if err != nil {
				t.Fatalf("width %d: read: %v", width, err)
			}
			if int64(got) != v {
				t.Fatalf("width %d: wrote %d, read back %d", width, v, got)
			}
		}
	}
}

func TestTypedReadsLittleEndian(t *testing.T) {
	m := NewMsg(64)
	if err := m.WriteLong(0x12345678); err != nil {
		t.Fatal(err)
	}
	want := []byte{0x78, 0x56, 0x34, 0x12}
	if !bytes.Equal(m.Bytes(), want) {
		t.Fatalf("long layout = %x, want %x", m.Bytes(), want)
	}

	m = NewMsg(64)
	m.WriteByte(0xAB)
	m.WriteShort(0xCDEF)
	m.WriteLong(-5)
	m.WriteFloat(1.5)

	if b, _ := m.ReadByte(); b != 0xAB {
		t.Fatalf("byte = %#x", b)
	}
	if s, _ := m.ReadShort(); s != 0xCDEF {
		t.Fatalf("short = %#x", s)
	}
	if l, _ := m.ReadLong(); l != -5 {
		t.Fatalf("long = %d", l)
	}
	if f, _ := m.ReadFloat(); f != 1.5 {
		t.Fatalf("float = %v", f)
	}
}

func TestUnalignedFieldSequence(t *testing.T) {
	m := NewMsg(64)
	m.WriteBits(1, 1)
	m.WriteBits(0x2AB, 10)
	m.WriteBits(5, 3)
	m.WriteLong(123456789)

	if v, _ := m.ReadBits(1); v != 1 {
		t.Fatalf("bit = %d", v)
	}
	if v, _ := m.ReadBits(10); v != 0x2AB {
		t.Fatalf("10-bit = %#x", v)
	}
	if v, _ := m.ReadBits(3); v != 5 {
		t.Fatalf("3-bit = %d", v)
	}
	if v, _ := m.ReadLong(); v != 123456789 {
		t.Fatalf("long = %d", v)
	}
}

func TestStringRoundTrip(t *testing.T) {
	m := NewMsg(4096)
	for _, s := range []string{"", "mapname\\ctf_yavin\\", "hello world"} {
		m.Reset()
		if err := m.WriteString(s); err != nil {
			t.Fatalf("write %q: %v", s, err)
		}
		got, err := m.ReadString()
		if err != nil {
			t.Fatalf("read %q: %v", s, err)
		}
		if got != s {
			t.Fatalf("round trip %q -> %q", s, got)
		}
	}
}

func TestStringTooLong(t *testing.T) {
	m := NewMsg(MaxMsgLen)
	long := strings.Repeat("x", MaxStringChars+10)
	if err := m.WriteString(long); !errors.Is(err, ErrStringTooLong) {
		t.Fatalf("write error = %v, want ErrStringTooLong", err)
	}

	m = NewMsg(MaxMsgLen)
	for i := 0; i < MaxStringChars+10; i++ {
		m.WriteByte('y')
	}
	m.WriteByte(0)
	if _, err := m.ReadString(); !errors.Is(err, ErrStringTooLong) {
		t.Fatalf("read error = %v, want ErrStringTooLong", err)
	}
}

func TestBigStringAllowsMore(t *testing.T) {
	m := NewMsg(MaxMsgLen)
	s := strings.Repeat("k", MaxStringChars+100)
	if err := m.WriteBigString(s); err != nil {
		t.Fatalf("WriteBigString: %v", err)
	}
	got, err := m.ReadBigString()
	if err != nil {
		t.Fatalf("ReadBigString: %v", err)
	}
	if got != s {
		t.Fatal("big string round trip mismatch")
	}
}

func TestOverflowAndUnderflow(t *testing.T) {
	m := NewMsg(1)
	if err := m.WriteBits(0, 8); err != nil {
		t.Fatalf("first byte: %v", err)
	}
	if err := m.WriteBits(0, 1); !errors.Is(err, ErrOverflow) {
		t.Fatalf("overflow error = %v, want ErrOverflow", err)
	}

	if _, err := m.ReadBits(9); !errors.Is(err, ErrUnderflow) {
		t.Fatalf("underflow error = %v, want ErrUnderflow", err)
	}
}

func TestHuffByteTunnel(t *testing.T) {
	h := NewHuffman()
	m := NewMsg(1024)
	payload := []byte{7, 7, 7, 42, 0, 255, 7}
	for _, b := range payload {
		if err := m.WriteHuffByte(h, b); err != nil {
			t.Fatalf("WriteHuffByte(%d): %v", b, err)
		}
	}
	for i, want := range payload {
		got, err := m.ReadHuffByte(h)
		if err != nil {
			t.Fatalf("ReadHuffByte #%d: %v", i, err)
		}
		if got != want {
			t.Fatalf("tunneled byte #%d = %d, want %d", i, got, want)
		}
	}
	if !treesEqual(h.enc.tree, h.dec.tree) {
		t.Fatal("tunnel trees diverged")
	}
}
