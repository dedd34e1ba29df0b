package dissect

import (
	"bytes"
	"errors"
	"math/rand"
	"testing"
)

const huffTestSeed = 0x1b27c4d9

func treesEqual(a, b *huffNode) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.symbol != b.symbol || a.weight != b.weight {
		return false
	}
	return treesEqual(a.left, b.left) && treesEqual(a.right, b.right)
}

func TestHuffmanRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(huffTestSeed))

	cases := [][]byte{
		{},
		{0},
		{0xFF},
		{1, 1, 1, 1, 1, 1, 1, 1},
		[]byte("the quick brown fox jumps over the lazy dog"),
	}
	all := make([]byte, 0, 1024)
	for i := 0; i < 4; i++ {
		for s := 0; s < 256; s++ {
			all = append(all, byte(s))
		}
	}
	cases = append(cases, all)
	random := make([]byte, 4096)
	rng.Read(random)
	cases = append(cases, random)

	for i, in := range cases {
		h := NewHuffman()
		enc, err := h.Compress(in)
		if err != nil {
			t.Fatalf("case %d: Compress: %v", i, err)
		}
		out, err := h.Decompress(enc, len(in))
		if err != nil {
			t.Fatalf("case %d: Decompress: %v", i, err)
		}
		if !bytes.Equal(in, out) {
			t.Fatalf("case %d: round trip mismatch: %d in, %d out", i, len(in), len(out))
		}
		if !treesEqual(h.enc.tree, h.dec.tree) {
			t.Fatalf("case %d: encoder and decoder trees diverged", i)
		}
	}
}

func TestHuffmanSkewedTorture(t *testing.T) {
	rng := rand.New(rand.NewSource(huffTestSeed))
	in := make([]byte, 65535)
	for i := range in {
		if rng.Float64() < 0.9 {
			in[i] = 0
		} else {
			in[i] = byte(1 + rng.Intn(255))
		}
	}

	h := NewHuffman()
	enc, err := h.Compress(in)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if len(enc) >= len(in) {
		t.Fatalf("skewed input did not compress: %d -> %d", len(in), len(enc))
	}
	out, err := h.Decompress(enc, len(in))
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if !bytes.Equal(in, out) {
		t.Fatal("torture round trip mismatch")
	}
	if !treesEqual(h.enc.tree, h.dec.tree) {
		t.Fatal("trees diverged after torture stream")
	}
}

func TestHuffmanSymbolBudget(t *testing.T) {
	h := NewHuffman()
	in := []byte{10, 20, 30, 40, 50}
	enc, err := h.Compress(in)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	out, err := h.Decompress(enc, 3)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if !bytes.Equal(out, in[:3]) {
		t.Fatalf("budgeted decode = %v, want %v", out, in[:3])
	}
}

func TestHuffmanReset(t *testing.T) {
	h := NewHuffman()
	first, err := h.Compress([]byte("abcabc"))
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	h.Reset()
	if h.enc.tree == nil || h.enc.tree.symbol == huffInternal {
		t.Fatal("reset tree should start as the NYT leaf")
	}
	second, err := h.Compress([]byte("abcabc"))
	if err != nil {
		t.Fatalf("Compress after reset: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatal("reset did not restore the initial encoder state")
	}
}

func TestHuffmanPoolBounds(t *testing.T) {
	// Feeding every symbol exercises the full node pool without
	// exhausting it; the split budget is sized for exactly 256 leaves.
	h := NewHuffman()
	in := make([]byte, 256)
	for i := range in {
		in[i] = byte(i)
	}
	if _, err := h.Compress(in); err != nil {
		t.Fatalf("Compress over full alphabet: %v", err)
	}
	if h.enc.poolUsed > huffNodes {
		t.Fatalf("pool overran: %d nodes", h.enc.poolUsed)
	}

	tree := &huffTree{}
	tree.reset()
	tree.poolUsed = huffNodes
	if _, err := tree.newNode(); !errors.Is(err, ErrHuffmanStream) {
		t.Fatalf("exhausted pool error = %v, want ErrHuffmanStream", err)
	}
}
