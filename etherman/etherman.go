package etherman

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/0xPolygonHermez/zkevm-node/log"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/lockburn/bridge-relayer/metrics"
	"github.com/sethvargo/go-retry"
)

const (
	defaultConfirmationTimeout = 2 * time.Minute
	defaultPollInterval        = 3 * time.Second

	readRetryBase = 200 * time.Millisecond
	readRetryMax  = 3
	readRetryCap  = 2 * time.Second

	// nodes only accept a replacement that outbids the pending tx by this much
	minReplacementBumpPercent = 110
	// bump over the suggested price when the replaced tx price is unknown
	replacementBumpPercent = 125
)

var (
	// ErrReadOnly is returned when a submission is attempted without a configured signer
	ErrReadOnly = errors.New("chain client has no signer")
	// ErrProcessedLookupDisabled is returned when the processed view is not available on the contract
	ErrProcessedLookupDisabled = errors.New("processed lookup disabled")
)

type ethClienter interface {
	ethereum.ContractCaller
	ethereum.GasEstimator
	ethereum.GasPricer
	ethereum.LogFilterer
	ethereum.TransactionSender
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Client is the endpoint of one chain: an RPC connection plus the relayer signing identity
type Client struct {
	side      ChainSide
	cfg       ChainConfig
	ethClient ethClienter
	auth      *bind.TransactOpts

	nonceCache *NonceCache
	// submitMu serializes every submission of the signer on this chain
	submitMu sync.Mutex
}

// NewClient dials the chain and loads the signer from the keystore
func NewClient(ctx context.Context, side ChainSide, cfg ChainConfig) (*Client, error) {
	ethClient, err := ethclient.Dial(cfg.URL)
	if err != nil {
		log.Errorf("error connecting to %s: %+v", cfg.URL, err)
		return nil, err
	}
	chainID, err := ethClient.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read chain id of %s: %w", cfg.Name, err)
	}
	if cfg.ChainID != 0 && chainID.Uint64() != cfg.ChainID {
		return nil, fmt.Errorf("chain %s: configured chain id %d, node reports %d", cfg.Name, cfg.ChainID, chainID.Uint64())
	}
	cfg.ChainID = chainID.Uint64()

	var auth *bind.TransactOpts
	if cfg.Keystore.Path != "" {
		auth, err = signerFromKeystore(cfg, chainID)
		if err != nil {
			return nil, err
		}
		log.Infof("chain %s: relayer address %s", cfg.Name, auth.From.String())
	} else {
		log.Warnf("chain %s: no keystore configured, client is read only", cfg.Name)
	}
	return NewClientWithBackend(side, cfg, ethClient, auth)
}

// NewClientWithBackend creates a client on top of an existing backend
func NewClientWithBackend(side ChainSide, cfg ChainConfig, backend ethClienter, auth *bind.TransactOpts) (*Client, error) {
	nonceCache, err := NewNonceCache(backend)
	if err != nil {
		return nil, err
	}
	if cfg.ConfirmationTimeout.Duration <= 0 {
		cfg.ConfirmationTimeout.Duration = defaultConfirmationTimeout
	}
	if cfg.PollInterval.Duration <= 0 {
		cfg.PollInterval.Duration = defaultPollInterval
	}
	return &Client{
		side:       side,
		cfg:        cfg,
		ethClient:  backend,
		auth:       auth,
		nonceCache: nonceCache,
	}, nil
}

func signerFromKeystore(cfg ChainConfig, chainID *big.Int) (*bind.TransactOpts, error) {
	keystoreEncrypted, err := os.ReadFile(filepath.Clean(cfg.Keystore.Path))
	if err != nil {
		return nil, err
	}
	key, err := keystore.DecryptKey(keystoreEncrypted, cfg.Keystore.Password)
	if err != nil {
		return nil, err
	}
	return bind.NewKeyedTransactorWithChainID(key.PrivateKey, chainID)
}

// Side returns which chain this client manages
func (c *Client) Side() ChainSide { return c.side }

// Name returns the configured chain name
func (c *Client) Name() string { return c.cfg.Name }

// ChainID returns the chain id
func (c *Client) ChainID() uint64 { return c.cfg.ChainID }

// SettlementAddr returns the contract settling transfers arriving on this chain
func (c *Client) SettlementAddr() common.Address { return c.cfg.SettlementAddr }

// OriginAddr returns the contract emitting transfers leaving this chain
func (c *Client) OriginAddr() common.Address { return c.cfg.OriginAddr }

// From returns the relayer address, zero when read only
func (c *Client) From() common.Address {
	if c.auth == nil {
		return common.Address{}
	}
	return c.auth.From
}

// CurrentRoot reads the root held by the settlement contract
func (c *Client) CurrentRoot(ctx context.Context, contract common.Address) (common.Hash, error) {
	// both settlement contracts expose the same view
	out, err := c.callView(ctx, bridgeABI, contract, methodMerkleRoot)
	if err != nil {
		return common.Hash{}, err
	}
	root, ok := out[0].([32]byte)
	if !ok {
		return common.Hash{}, fmt.Errorf("unexpected %s output type %T", methodMerkleRoot, out[0])
	}
	return common.Hash(root), nil
}

// IsProcessed reads whether the settlement contract already settled the transfer id
func (c *Client) IsProcessed(ctx context.Context, direction Direction, id common.Hash) (bool, error) {
	if !c.cfg.ProcessedLookup {
		return false, ErrProcessedLookupDisabled
	}
	method := methodProcessedLocks
	if direction == DirectionBurn {
		method = methodProcessedBurns
	}
	out, err := c.callView(ctx, settlementABI(direction), c.cfg.SettlementAddr, method, id)
	if err != nil {
		return false, err
	}
	processed, ok := out[0].(bool)
	if !ok {
		return false, fmt.Errorf("unexpected %s output type %T", method, out[0])
	}
	return processed, nil
}

func (c *Client) callView(ctx context.Context, contractABI abi.ABI, contract common.Address, method string, args ...interface{}) ([]interface{}, error) {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, err
	}
	backoff, err := retry.NewExponential(readRetryBase)
	if err != nil {
		return nil, err
	}
	backoff = retry.WithCappedDuration(readRetryCap, retry.WithMaxRetries(readRetryMax, backoff))

	var raw []byte
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		var callErr error
		raw, callErr = c.ethClient.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
		if callErr == nil {
			return nil
		}
		if reason, reverted := decodeRevert(callErr); reverted {
			return NewRevertError(reason, common.Hash{})
		}
		log.Warnf("chain %s: %s call failed, retrying: %v", c.cfg.Name, method, callErr)
		return retry.RetryableError(callErr)
	})
	metrics.RecordChainCall(c.cfg.Name, method, err == nil)
	if err != nil {
		return nil, err
	}
	return contractABI.Unpack(method, raw)
}

// PublishRoot submits updateMerkleRoot on the settlement contract.
// A non-nil replace sends the tx with the nonce of an earlier pending transaction.
func (c *Client) PublishRoot(ctx context.Context, direction Direction, root common.Hash, replace *Replacement) (*PendingTx, error) {
	data, err := PackPublishRoot(direction, root)
	if err != nil {
		return nil, err
	}
	return c.submit(ctx, methodUpdateMerkleRoot, data, replace)
}

// PackPublishRoot builds the calldata of a root publication
func PackPublishRoot(direction Direction, root common.Hash) ([]byte, error) {
	return settlementABI(direction).Pack(methodUpdateMerkleRoot, root)
}

// Settle submits the mint (lock direction) or unlock (burn direction) of a transfer with its proof
func (c *Client) Settle(ctx context.Context, record *TransferRecord, proof []common.Hash, replace *Replacement) (*PendingTx, error) {
	data, method, err := PackSettle(record, proof)
	if err != nil {
		return nil, err
	}
	return c.submit(ctx, method, data, replace)
}

// PackSettle builds the calldata of the settlement call of a transfer
func PackSettle(record *TransferRecord, proof []common.Hash) ([]byte, string, error) {
	proofArg := make([][32]byte, len(proof))
	for i, p := range proof {
		proofArg[i] = p
	}
	switch record.Direction {
	case DirectionLock:
		data, err := bridgeABI.Pack(methodMint, record.ID, record.Actor, record.Recipient, record.Amount, record.Nonce, record.Timestamp, proofArg)
		return data, methodMint, err
	case DirectionBurn:
		data, err := vaultABI.Pack(methodUnlock, record.ID, record.Recipient, record.Amount, new(big.Int).SetUint64(record.SrcChainID),
			record.Nonce, record.Timestamp, record.OriginContract, record.Actor, proofArg)
		return data, methodUnlock, err
	}
	return nil, "", fmt.Errorf("unknown direction %q", record.Direction)
}

func (c *Client) submit(ctx context.Context, method string, data []byte, replace *Replacement) (*PendingTx, error) {
	if c.auth == nil {
		return nil, ErrReadOnly
	}
	c.submitMu.Lock()
	defer c.submitMu.Unlock()

	to := c.cfg.SettlementAddr
	from := c.auth.From
	txLog := log.WithFields("chain", c.cfg.Name, "method", method)

	gas, err := c.ethClient.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &to, Data: data})
	if err != nil {
		metrics.RecordChainCall(c.cfg.Name, method, false)
		if reason, reverted := decodeRevert(err); reverted {
			revertErr := NewRevertError(reason, common.Hash{})
			txLog.Warnf("call rejected at estimation: %v", revertErr)
			return nil, revertErr
		}
		return nil, fmt.Errorf("failed to estimate gas of %s: %w", method, err)
	}
	gas += gas * c.cfg.GasLimitMargin / 100 //nolint:gomnd

	gasPrice, err := c.ethClient.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}

	var txNonce uint64
	if replace != nil {
		txNonce = replace.Nonce
		gasPrice = ReplacementGasPrice(gasPrice, replace.GasPrice)
		txLog.Infof("replacing transaction with nonce %d, gas price %s", txNonce, gasPrice.String())
	} else {
		txNonce, err = c.nonceCache.GetNextNonce(ctx, from)
		if err != nil {
			return nil, fmt.Errorf("failed to get nonce: %w", err)
		}
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    txNonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       &to,
		Value:    big.NewInt(0),
		Data:     data,
	})
	signedTx, err := c.auth.Signer(from, tx)
	if err != nil {
		return nil, err
	}
	if err := c.ethClient.SendTransaction(ctx, signedTx); err != nil {
		metrics.RecordChainCall(c.cfg.Name, method, false)
		// the nonce was not consumed, resync it from the chain next time
		c.nonceCache.Remove(from)
		if strings.Contains(err.Error(), "already known") {
			txLog.Warnf("tx %s already in the pool", signedTx.Hash().String())
		} else {
			return nil, fmt.Errorf("failed to send %s tx: %w", method, err)
		}
	}
	metrics.RecordChainCall(c.cfg.Name, method, true)
	txLog.Infof("sent tx %s nonce %d gas %d", signedTx.Hash().String(), txNonce, gas)
	return &PendingTx{
		Hash:     signedTx.Hash(),
		From:     from,
		To:       to,
		Nonce:    txNonce,
		Gas:      gas,
		GasPrice: gasPrice,
		Data:     data,
		SentAt:   time.Now(),
	}, nil
}

// ReplacementGasPrice is the gas price of a tx replacing one sent at sent. It outbids sent by the
// minimum bump nodes accept and never goes below the suggested price. Without a known sent price
// the suggested price is bumped instead.
func ReplacementGasPrice(suggested, sent *big.Int) *big.Int {
	if sent == nil {
		return percentOf(suggested, replacementBumpPercent)
	}
	bumped := percentOf(sent, minReplacementBumpPercent)
	if bumped.Cmp(sent) <= 0 {
		bumped = new(big.Int).Add(sent, big.NewInt(1))
	}
	if suggested.Cmp(bumped) > 0 {
		return new(big.Int).Set(suggested)
	}
	return bumped
}

func percentOf(v *big.Int, percent int64) *big.Int {
	return new(big.Int).Div(new(big.Int).Mul(v, big.NewInt(percent)), big.NewInt(100)) //nolint:gomnd
}

// CheckTxWasMined check if a tx was already mined
func (c *Client) CheckTxWasMined(ctx context.Context, txHash common.Hash) (bool, *types.Receipt, error) {
	receipt, err := c.ethClient.TransactionReceipt(ctx, txHash)
	if errors.Is(err, ethereum.NotFound) {
		return false, nil, nil
	} else if err != nil {
		return false, nil, err
	}

	return true, receipt, nil
}

// AwaitConfirmation polls the receipt of the transaction until it is mined or the bounded wait expires.
// A mined but failed transaction is reported as a RevertError with the replayed reason.
func (c *Client) AwaitConfirmation(ctx context.Context, pending *PendingTx) (*types.Receipt, error) {
	timeout := c.cfg.ConfirmationTimeout.Duration
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ticker := time.NewTicker(c.cfg.PollInterval.Duration)
	defer ticker.Stop()

	for {
		mined, receipt, err := c.CheckTxWasMined(waitCtx, pending.Hash)
		if err != nil && waitCtx.Err() == nil {
			log.Warnf("chain %s: failed to get receipt of %s: %v", c.cfg.Name, pending.Hash.String(), err)
		}
		if mined {
			if receipt.Status == types.ReceiptStatusSuccessful {
				return receipt, nil
			}
			reason := c.replayRevert(ctx, pending, receipt.BlockNumber)
			return receipt, NewRevertError(reason, pending.Hash)
		}
		select {
		case <-ticker.C:
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, &TimeoutError{TxHash: pending.Hash, Waited: timeout}
		}
	}
}

// replayRevert re-executes a failed transaction at its block to recover the revert reason
func (c *Client) replayRevert(ctx context.Context, pending *PendingTx, blockNumber *big.Int) string {
	to := pending.To
	_, err := c.ethClient.CallContract(ctx, ethereum.CallMsg{
		From: pending.From,
		To:   &to,
		Gas:  pending.Gas,
		Data: pending.Data,
	}, blockNumber)
	if reason, ok := decodeRevert(err); ok {
		return reason
	}
	if err != nil {
		return err.Error()
	}
	return "reverted without reason"
}

// BlockNumber returns the latest block number
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	return c.ethClient.BlockNumber(ctx)
}
