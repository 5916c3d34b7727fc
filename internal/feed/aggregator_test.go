package feed

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestAggregatorMissingConfig(t *testing.T) {
	agg := NewAggregator(AggregatorOptions{}, noopLogger())
	if _, err := agg.ReadLatest(context.Background()); err == nil {
		t.Fatal("未配置 RPC 时应报错")
	}

	agg = NewAggregator(AggregatorOptions{RPCURL: "http://localhost"}, noopLogger())
	if _, err := agg.ReadLatest(context.Background()); err == nil {
		t.Fatal("缺少合约地址应报错")
	}
}
