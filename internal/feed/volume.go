package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const volumePath = "/v1/volume"

// ZeroVolume is the default volume binding: always zero. The divergence
// trigger degenerates to price-only whenever the volume threshold is also
// zero; supplying a real metric is an explicit deployment choice.
type ZeroVolume struct{}

// ReadVolume 始终返回 0，等待外部数据管道补充真实成交量。
func (ZeroVolume) ReadVolume(ctx context.Context, pair string) (*big.Int, error) {
	return big.NewInt(0), nil
}

// HTTPVolumeOptions parameterise the HTTP volume source.
type HTTPVolumeOptions struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// HTTPVolume queries a JSON stats endpoint for per-pair traded volume.
type HTTPVolume struct {
	opts    HTTPVolumeOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewHTTPVolume constructs an HTTP volume source.
func NewHTTPVolume(opts HTTPVolumeOptions, logger zerolog.Logger) *HTTPVolume {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &HTTPVolume{
		opts:    opts,
		logger:  logger.With().Str("component", "volume_http").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
	}
}

// ReadVolume fetches the pair's volume and truncates it to an integer
// count. Fractional units below the integer base are discarded.
func (v *HTTPVolume) ReadVolume(ctx context.Context, pair string) (*big.Int, error) {
	if v.baseURL == "" {
		return nil, errors.New("volume base url not configured")
	}
	if pair == "" {
		return nil, errors.New("pair identifier required")
	}

	endpoint := v.baseURL + volumePath + "?pair=" + url.QueryEscape(pair)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(v.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "feedwatcher/1.0")
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, parseVolumeError(resp)
	}

	var payload volumeResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode volume response: %w", err)
	}

	amount, err := decimal.NewFromString(payload.Volume)
	if err != nil {
		return nil, fmt.Errorf("parse volume: %w", err)
	}
	if amount.IsNegative() {
		return nil, fmt.Errorf("volume returned negative: %s", payload.Volume)
	}

	return amount.BigInt(), nil
}

type volumeResponse struct {
	Pair   string `json:"pair"`
	Volume string `json:"volume"`
}

type volumeErrorResponse struct {
	ErrorType   string `json:"errorType"`
	Description string `json:"description"`
	Message     string `json:"message"`
}

func parseVolumeError(resp *http.Response) error {
	var apiErr volumeErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil {
		if apiErr.Description != "" {
			return fmt.Errorf("volume api error (%d): %s", resp.StatusCode, apiErr.Description)
		}
		if apiErr.Message != "" {
			return fmt.Errorf("volume api error (%d): %s", resp.StatusCode, apiErr.Message)
		}
		if apiErr.ErrorType != "" {
			return fmt.Errorf("volume api error (%d): %s", resp.StatusCode, apiErr.ErrorType)
		}
	}
	return fmt.Errorf("volume api error (%d)", resp.StatusCode)
}

var _ VolumeSource = ZeroVolume{}
var _ VolumeSource = (*HTTPVolume)(nil)
