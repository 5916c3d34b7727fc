package feed

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
)

const (
	aggregatorABIJSON = `[{"inputs":[],"name":"latestRoundData","outputs":[{"internalType":"uint80","name":"roundId","type":"uint80"},{"internalType":"int256","name":"answer","type":"int256"},{"internalType":"uint256","name":"startedAt","type":"uint256"},{"internalType":"uint256","name":"updatedAt","type":"uint256"},{"internalType":"uint80","name":"answeredInRound","type":"uint80"}],"stateMutability":"view","type":"function"}]`
)

var aggregatorABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(aggregatorABIJSON))
	if err != nil {
		panic("failed to parse aggregator ABI: " + err.Error())
	}
	aggregatorABI = parsed
}

// AggregatorOptions parameterise one on-chain feed reader.
type AggregatorOptions struct {
	RPCURL  string
	Address string
	Name    string
	Timeout time.Duration
}

// Aggregator reads a Chainlink-style aggregator contract via Ethereum RPC.
type Aggregator struct {
	opts      AggregatorOptions
	logger    zerolog.Logger
	client    *ethclient.Client
	clientMux sync.Mutex
}

// NewAggregator builds a feed reader. The RPC connection is dialled lazily
// on first read.
func NewAggregator(opts AggregatorOptions, logger zerolog.Logger) *Aggregator {
	name := opts.Name
	if name == "" {
		name = "aggregator"
	}
	return &Aggregator{
		opts:   opts,
		logger: logger.With().Str("component", "feed_"+name).Logger(),
	}
}

// ReadLatest fetches latestRoundData and returns the raw signed answer.
// Clamping of negative answers is the caller's concern, not the reader's.
func (a *Aggregator) ReadLatest(ctx context.Context) (Reading, error) {
	if a.opts.RPCURL == "" {
		return Reading{}, errors.New("ethereum rpc url not configured")
	}
	if a.opts.Address == "" {
		return Reading{}, errors.New("aggregator contract address not configured")
	}

	timeout := a.opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	var cancel context.CancelFunc
	ctx, cancel = context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := a.getClient(ctx)
	if err != nil {
		return Reading{}, err
	}

	addr := common.HexToAddress(a.opts.Address)

	payload, err := aggregatorABI.Pack("latestRoundData")
	if err != nil {
		return Reading{}, err
	}

	res, err := client.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: payload}, nil)
	if err != nil {
		return Reading{}, err
	}

	outputs, err := aggregatorABI.Unpack("latestRoundData", res)
	if err != nil {
		return Reading{}, err
	}

	if len(outputs) != 5 {
		return Reading{}, errors.New("unexpected latestRoundData response")
	}

	answer, ok := outputs[1].(*big.Int)
	if !ok {
		return Reading{}, errors.New("failed to decode latestRoundData answer")
	}

	updatedAt, ok := outputs[3].(*big.Int)
	if !ok {
		return Reading{}, errors.New("failed to decode latestRoundData updatedAt")
	}

	reading := Reading{
		Answer:    answer,
		UpdatedAt: time.Unix(updatedAt.Int64(), 0).UTC(),
	}

	a.logger.Debug().
		Str("answer", answer.String()).
		Time("updated_at", reading.UpdatedAt).
		Msg("latest round read")

	return reading, nil
}

func (a *Aggregator) getClient(ctx context.Context) (*ethclient.Client, error) {
	a.clientMux.Lock()
	defer a.clientMux.Unlock()

	if a.client != nil {
		return a.client, nil
	}

	client, err := ethclient.DialContext(ctx, a.opts.RPCURL)
	if err != nil {
		return nil, err
	}
	a.client = client
	return client, nil
}

var _ Source = (*Aggregator)(nil)
