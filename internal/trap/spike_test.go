package trap

import (
	"errors"
	"math/big"
	"testing"
)

func prices(values ...int64) []*big.Int {
	out := make([]*big.Int, len(values))
	for i, v := range values {
		out[i] = big.NewInt(v)
	}
	return out
}

func TestSpikeDetectorRejectsZeroThreshold(t *testing.T) {
	if _, err := NewSpikeDetector(0); !errors.Is(err, ErrZeroSpikeThreshold) {
		t.Fatalf("expected ErrZeroSpikeThreshold, got %v", err)
	}
}

func TestSpikeFiresOnLargeDeviation(t *testing.T) {
	d, err := NewSpikeDetector(2000)
	if err != nil {
		t.Fatal(err)
	}

	// avg=100, latest=130: 3000 bp >= 2000 bp.
	if !d.Evaluate(prices(100, 100, 100, 130)) {
		t.Fatal("30% deviation should fire at a 20% threshold")
	}
}

func TestSpikeStaysQuietOnSmallDeviation(t *testing.T) {
	d, err := NewSpikeDetector(2000)
	if err != nil {
		t.Fatal(err)
	}

	// avg=100, latest=105: 500 bp < 2000 bp.
	if d.Evaluate(prices(100, 100, 100, 105)) {
		t.Fatal("5% deviation should not fire at a 20% threshold")
	}
}

func TestSpikeNeedsThreeSamples(t *testing.T) {
	d, err := NewSpikeDetector(1)
	if err != nil {
		t.Fatal(err)
	}

	if d.Evaluate(nil) {
		t.Fatal("empty series must not fire")
	}
	if d.Evaluate(prices(100)) {
		t.Fatal("single price must not fire")
	}
	if d.Evaluate(prices(100, 1_000_000)) {
		t.Fatal("two prices must not fire regardless of threshold")
	}
}

func TestSpikeZeroDataIsNotASpike(t *testing.T) {
	d, err := NewSpikeDetector(1)
	if err != nil {
		t.Fatal(err)
	}

	if d.Evaluate(prices(0, 0, 100)) {
		t.Fatal("zero average must evaluate false, not divide")
	}
	if d.Evaluate(prices(100, 100, 0)) {
		t.Fatal("zero latest price must evaluate false")
	}
}

func TestSpikeDownwardMoveAlsoFires(t *testing.T) {
	d, err := NewSpikeDetector(2000)
	if err != nil {
		t.Fatal(err)
	}

	// avg=100, latest=70: |100-70|*10000/100 = 3000 bp.
	if !d.Evaluate(prices(100, 100, 100, 70)) {
		t.Fatal("spike detection uses the absolute deviation")
	}
}

func TestSpikeAverageTruncates(t *testing.T) {
	d, err := NewSpikeDetector(10_000)
	if err != nil {
		t.Fatal(err)
	}

	// sum=100+101=201, avg=floor(201/2)=100; latest=200 -> exactly 10000 bp.
	if !d.Evaluate(prices(100, 101, 200)) {
		t.Fatal("truncated average of 100 against latest 200 is exactly 10000 bp")
	}
}
