package trap

import (
	"math/big"
	"testing"
)

func TestNormalizePriceClampsNegative(t *testing.T) {
	got := NormalizePrice(big.NewInt(-42))
	if got.Sign() != 0 {
		t.Fatalf("negative reading must clamp to zero, got %s", got)
	}
}

func TestNormalizePriceKeepsNonNegative(t *testing.T) {
	if got := NormalizePrice(big.NewInt(0)); got.Sign() != 0 {
		t.Fatalf("zero must stay zero, got %s", got)
	}

	in := big.NewInt(12345)
	got := NormalizePrice(in)
	if got.Cmp(in) != 0 {
		t.Fatalf("positive reading must pass through unchanged, got %s", got)
	}

	// The result must be a copy, not an alias of the raw reading.
	in.SetInt64(99)
	if got.Int64() != 12345 {
		t.Fatal("normalized price must not alias the input")
	}
}

func TestNormalizePriceNilReading(t *testing.T) {
	if got := NormalizePrice(nil); got == nil || got.Sign() != 0 {
		t.Fatalf("nil reading must normalize to zero, got %v", got)
	}
}
