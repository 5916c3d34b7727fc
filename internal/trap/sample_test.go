package trap

import (
	"math/big"
	"testing"
	"time"
)

func TestSampleCodecRoundTrip(t *testing.T) {
	in := Sample{
		PrimaryPrice:  e16(105),
		FallbackPrice: e16(100),
		Volume:        big.NewInt(50),
		CapturedAt:    time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}

	blob, err := EncodeSample(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	out, err := DecodeSample(blob)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if out.PrimaryPrice.Cmp(in.PrimaryPrice) != 0 ||
		out.FallbackPrice.Cmp(in.FallbackPrice) != 0 ||
		out.Volume.Cmp(in.Volume) != 0 ||
		!out.CapturedAt.Equal(in.CapturedAt) {
		t.Fatalf("round trip mismatch: %+v vs %+v", out, in)
	}
}

func TestDecodeSampleFillsMissingFields(t *testing.T) {
	out, err := DecodeSample([]byte(`{"capturedAt":"2026-08-01T12:00:00Z"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.PrimaryPrice == nil || out.FallbackPrice == nil || out.Volume == nil {
		t.Fatalf("missing numeric fields must decode to zero, got %+v", out)
	}
}

func TestDecodeWindowPreservesOrder(t *testing.T) {
	newest, _ := EncodeSample(Sample{PrimaryPrice: big.NewInt(2), FallbackPrice: big.NewInt(2), Volume: big.NewInt(0)})
	older, _ := EncodeSample(Sample{PrimaryPrice: big.NewInt(1), FallbackPrice: big.NewInt(1), Volume: big.NewInt(0)})

	window, err := DecodeWindow([][]byte{newest, older})
	if err != nil {
		t.Fatalf("decode window: %v", err)
	}
	if len(window) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(window))
	}
	if window[0].PrimaryPrice.Int64() != 2 || window[1].PrimaryPrice.Int64() != 1 {
		t.Fatal("window order must be preserved")
	}
}

func TestDecodeWindowBadEntry(t *testing.T) {
	if _, err := DecodeWindow([][]byte{[]byte(`{`)}); err == nil {
		t.Fatal("malformed entry must fail decoding")
	}
}

func TestWindowBoundsAndOrder(t *testing.T) {
	w := NewWindow(3)
	for i := int64(1); i <= 5; i++ {
		w.Push(Sample{PrimaryPrice: big.NewInt(i), FallbackPrice: big.NewInt(i), Volume: big.NewInt(0)})
	}

	if w.Len() != 3 {
		t.Fatalf("window must hold at most 3 samples, got %d", w.Len())
	}

	snap := w.Snapshot()
	want := []int64{5, 4, 3}
	for i, expected := range want {
		if snap[i].PrimaryPrice.Int64() != expected {
			t.Fatalf("snapshot[%d] = %d, want %d (newest first)", i, snap[i].PrimaryPrice.Int64(), expected)
		}
	}

	// Mutating the snapshot must not touch the window.
	snap[0] = Sample{}
	if w.Snapshot()[0].PrimaryPrice.Int64() != 5 {
		t.Fatal("snapshot must be a copy")
	}
}
