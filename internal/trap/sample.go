package trap

import (
	"encoding/json"
	"fmt"
	"math/big"
	"time"
)

// Sample is one immutable observation of both feeds plus the volume metric.
// Prices are unsigned fixed-point (1e18) by construction; see NormalizePrice.
type Sample struct {
	PrimaryPrice  *big.Int  `json:"primaryPrice"`
	FallbackPrice *big.Int  `json:"fallbackPrice"`
	Volume        *big.Int  `json:"volume"`
	CapturedAt    time.Time `json:"capturedAt"`
}

// EncodeSample serialises a sample for transport across the
// collect/evaluate boundary and for raw persistence.
func EncodeSample(s Sample) ([]byte, error) {
	blob, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode sample: %w", err)
	}
	return blob, nil
}

// DecodeSample is the inverse of EncodeSample. Missing numeric fields
// decode as zero values, which the evaluator already treats as no-data.
func DecodeSample(blob []byte) (Sample, error) {
	var s Sample
	if err := json.Unmarshal(blob, &s); err != nil {
		return Sample{}, fmt.Errorf("decode sample: %w", err)
	}
	if s.PrimaryPrice == nil {
		s.PrimaryPrice = big.NewInt(0)
	}
	if s.FallbackPrice == nil {
		s.FallbackPrice = big.NewInt(0)
	}
	if s.Volume == nil {
		s.Volume = big.NewInt(0)
	}
	return s, nil
}

// DecodeWindow decodes an ordered set of encoded samples, preserving order.
func DecodeWindow(blobs [][]byte) ([]Sample, error) {
	samples := make([]Sample, 0, len(blobs))
	for i, blob := range blobs {
		s, err := DecodeSample(blob)
		if err != nil {
			return nil, fmt.Errorf("decode window entry %d: %w", i, err)
		}
		samples = append(samples, s)
	}
	return samples, nil
}
