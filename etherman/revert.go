package etherman

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/0xPolygonHermez/zkevm-node/state/runtime"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/lockburn/bridge-relayer/utils/gerror"
)

// RevertKind classifies why a destination call was rejected
type RevertKind string

const (
	// RevertUnauthorized means the signer is not a configured relayer
	RevertUnauthorized RevertKind = "unauthorized"
	// RevertStaleRoot means the contract root is unset or does not cover the leaf
	RevertStaleRoot RevertKind = "stale_root"
	// RevertInvalidProof means the proof does not verify against the contract root
	RevertInvalidProof RevertKind = "invalid_proof"
	// RevertAlreadyProcessed means the transfer id was settled before
	RevertAlreadyProcessed RevertKind = "already_processed"
	// RevertUnknown is any other reason
	RevertUnknown RevertKind = "unknown"
)

var revertPatterns = []struct {
	kind     RevertKind
	patterns []string
}{
	{RevertAlreadyProcessed, []string{"already_processed", "already processed", "already minted", "already unlocked", "already claimed", "already settled"}},
	{RevertUnauthorized, []string{"not_relayer", "not relayer", "unauthorized", "accesscontrol", "caller is not", "only relayer", "not owner"}},
	{RevertInvalidProof, []string{"invalid_proof", "invalid proof", "invalid merkle proof", "bad proof"}},
	{RevertStaleRoot, []string{"root not set", "stale root", "invalid root", "unknown root", "root_not_set"}},
}

// ClassifyRevert maps a revert reason to its kind. Matching is case insensitive.
func ClassifyRevert(reason string) RevertKind {
	lower := strings.ToLower(reason)
	for _, p := range revertPatterns {
		for _, s := range p.patterns {
			if strings.Contains(lower, s) {
				return p.kind
			}
		}
	}
	return RevertUnknown
}

// RevertError is an on-chain rejection of a call, either at estimation or in a mined receipt
type RevertError struct {
	Kind   RevertKind
	Reason string
	TxHash common.Hash
}

// NewRevertError classifies the reason and builds the error
func NewRevertError(reason string, txHash common.Hash) *RevertError {
	return &RevertError{Kind: ClassifyRevert(reason), Reason: reason, TxHash: txHash}
}

func (e *RevertError) Error() string {
	if e.TxHash != (common.Hash{}) {
		return fmt.Sprintf("%v: %s (%s), tx %s", gerror.ErrChainCallReverted, e.Kind, e.Reason, e.TxHash.String())
	}
	return fmt.Sprintf("%v: %s (%s)", gerror.ErrChainCallReverted, e.Kind, e.Reason)
}

// Unwrap lets errors.Is match gerror.ErrChainCallReverted
func (e *RevertError) Unwrap() error {
	return gerror.ErrChainCallReverted
}

// TimeoutError means a submitted transaction was not observed mined within the bounded wait.
// The transaction may still land later.
type TimeoutError struct {
	TxHash common.Hash
	Waited time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%v: tx %s not mined after %s", gerror.ErrChainCallTimeout, e.TxHash.String(), e.Waited)
}

// Unwrap lets errors.Is match gerror.ErrChainCallTimeout
func (e *TimeoutError) Unwrap() error {
	return gerror.ErrChainCallTimeout
}

// AsRevert returns the RevertError wrapped in err, if any
func AsRevert(err error) (*RevertError, bool) {
	var revertErr *RevertError
	if errors.As(err, &revertErr) {
		return revertErr, true
	}
	return nil, false
}

// decodeRevert extracts the revert reason from a node error.
// ok is false when the error is not an execution revert.
func decodeRevert(err error) (reason string, ok bool) {
	if err == nil {
		return "", false
	}
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if data, isString := dataErr.ErrorData().(string); isString && data != "" {
			raw := common.FromHex(data)
			if unpacked, uerr := abi.UnpackRevert(raw); uerr == nil {
				return unpacked, true
			}
			if len(raw) >= 4 { //nolint:gomnd
				return fmt.Sprintf("custom error 0x%x", raw[:4]), true
			}
		}
	}
	msg := err.Error()
	reverted := runtime.ErrExecutionReverted.Error()
	if i := strings.Index(msg, reverted); i >= 0 {
		reason = strings.TrimSpace(strings.TrimPrefix(msg[i+len(reverted):], ":"))
		return reason, true
	}
	return "", false
}
