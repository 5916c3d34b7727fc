package feed

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestZeroVolumeAlwaysZero(t *testing.T) {
	v, err := ZeroVolume{}.ReadVolume(context.Background(), "ETH-USD")
	if err != nil {
		t.Fatalf("零成交量源不应报错: %v", err)
	}
	if v.Sign() != 0 {
		t.Fatalf("期望 0, 实际 %s", v)
	}
}

func TestHTTPVolumeMissingConfig(t *testing.T) {
	src := NewHTTPVolume(HTTPVolumeOptions{}, noopLogger())
	if _, err := src.ReadVolume(context.Background(), "ETH-USD"); err == nil {
		t.Fatal("缺少 base url 时应返回错误")
	}

	src = NewHTTPVolume(HTTPVolumeOptions{BaseURL: "http://localhost"}, noopLogger())
	if _, err := src.ReadVolume(context.Background(), ""); err == nil {
		t.Fatal("缺少 pair 时应返回错误")
	}
}

func TestHTTPVolumeHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"errorType": "bad"})
	}))
	defer srv.Close()

	src := NewHTTPVolume(HTTPVolumeOptions{
		BaseURL:   srv.URL,
		Timeout:   time.Second,
		UserAgent: "test",
	}, noopLogger())

	if _, err := src.ReadVolume(context.Background(), "ETH-USD"); err == nil {
		t.Fatal("HTTP 400 应返回错误")
	}
}

func TestHTTPVolumeSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("pair"); got != "ETH-USD" {
			t.Fatalf("pair 参数不正确: %s", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"pair":   "ETH-USD",
			"volume": "1234.9",
		})
	}))
	defer srv.Close()

	src := NewHTTPVolume(HTTPVolumeOptions{
		BaseURL:   srv.URL,
		Timeout:   time.Second,
		UserAgent: "test",
	}, noopLogger())

	v, err := src.ReadVolume(context.Background(), "ETH-USD")
	if err != nil {
		t.Fatalf("成功响应不应报错: %v", err)
	}
	// 小数部分截断。
	if v.Cmp(big.NewInt(1234)) != 0 {
		t.Fatalf("期望 1234, 实际 %s", v)
	}
}

func TestHTTPVolumeNegativeRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"pair": "ETH-USD", "volume": "-5"})
	}))
	defer srv.Close()

	src := NewHTTPVolume(HTTPVolumeOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	if _, err := src.ReadVolume(context.Background(), "ETH-USD"); err == nil {
		t.Fatal("负成交量应返回错误")
	}
}
