package types

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/lockburn/bridge-relayer/etherman"
)

const (
	// TaskStateReceived means the record was accepted and the task created
	TaskStateReceived = TaskState("Received")
	// TaskStateLeafComputed means the leaf digest was computed
	TaskStateLeafComputed = TaskState("LeafComputed")
	// TaskStateAccumulated means the leaf is part of the direction's accumulator
	TaskStateAccumulated = TaskState("Accumulated")
	// TaskStateRootPublishSubmitted means the root update tx was broadcast on the destination chain
	TaskStateRootPublishSubmitted = TaskState("RootPublishSubmitted")
	// TaskStateRootPublishConfirmed means the destination chain holds a root that includes the leaf
	TaskStateRootPublishConfirmed = TaskState("RootPublishConfirmed")
	// TaskStateSettlementSubmitted means the mint or unlock tx was broadcast
	TaskStateSettlementSubmitted = TaskState("SettlementSubmitted")
	// TaskStateSettled is the terminal success state
	TaskStateSettled = TaskState("Settled")
	// TaskStateFailed is terminal after a submitted call reverted or was not confirmed in time
	TaskStateFailed = TaskState("Failed")
	// TaskStateRejected is terminal for records that never reached submission
	TaskStateRejected = TaskState("Rejected")
)

const (
	ResultNone          = TaskResult("")
	ResultSettled       = TaskResult("settled")
	ResultFailed        = TaskResult("failed")
	ResultIndeterminate = TaskResult("indeterminate")
)

const (
	FailureNone     = FailureKind("")
	FailureReverted = FailureKind("Reverted")
	FailureTimeout  = FailureKind("Timeout")
	FailureCodec    = FailureKind("Codec")
	FailureHalted   = FailureKind("DirectionHalted")
)

// TaskState is a settlement task lifecycle state
type TaskState string

func (s TaskState) String() string {
	return string(s)
}

// IsTerminal reports whether no further transition happens without an explicit retry
func (s TaskState) IsTerminal() bool {
	return s == TaskStateSettled || s == TaskStateFailed || s == TaskStateRejected
}

// TaskResult is the outcome reported for a terminal task
type TaskResult string

// FailureKind classifies why a task failed or was rejected
type FailureKind string

// SettlementTask tracks one transfer record from ingestion to settlement
type SettlementTask struct {
	Record    etherman.TransferRecord
	Leaf      common.Hash
	LeafIndex uint64
	// Root is the destination root the proof was derived for
	Root  common.Hash
	Proof []common.Hash

	State         TaskState
	Result        TaskResult
	FailureKind   FailureKind
	FailureReason string

	RootPublishTxHash *common.Hash
	RootPublishNonce  *uint64
	// RootPublishGasPrice is the price of the pending publish tx, a replacement outbids it
	RootPublishGasPrice *big.Int
	SettlementTxHash    *common.Hash
	SettlementNonce     *uint64
	SettlementGasPrice  *big.Int

	Attempts  uint
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewSettlementTask creates a task in the Received state
func NewSettlementTask(record etherman.TransferRecord, now time.Time) *SettlementTask {
	return &SettlementTask{
		Record:    record,
		State:     TaskStateReceived,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Direction of the underlying record
func (t *SettlementTask) Direction() etherman.Direction {
	return t.Record.Direction
}

// ID of the underlying record
func (t *SettlementTask) ID() common.Hash {
	return t.Record.ID
}

// Fail moves the task to Failed. Timeouts are reported as indeterminate since the call may still land.
func (t *SettlementTask) Fail(kind FailureKind, reason string) {
	t.State = TaskStateFailed
	t.FailureKind = kind
	t.FailureReason = reason
	t.Result = ResultFailed
	if kind == FailureTimeout {
		t.Result = ResultIndeterminate
	}
}

// Reject moves the task to Rejected
func (t *SettlementTask) Reject(kind FailureKind, reason string) {
	t.State = TaskStateRejected
	t.FailureKind = kind
	t.FailureReason = reason
	t.Result = ResultFailed
}

// Settle moves the task to Settled and clears any earlier failure
func (t *SettlementTask) Settle() {
	t.State = TaskStateSettled
	t.Result = ResultSettled
	t.FailureKind = FailureNone
	t.FailureReason = ""
}

// ProofBytes returns the proof as fixed size arrays
func (t *SettlementTask) ProofBytes() [][32]byte {
	proof := make([][32]byte, len(t.Proof))
	for i, p := range t.Proof {
		proof[i] = p
	}
	return proof
}

// View is the status surface exposed to callers
type View struct {
	ID                string   `json:"id"`
	Direction         string   `json:"direction"`
	Recipient         string   `json:"recipient"`
	Amount            string   `json:"amount"`
	State             string   `json:"state"`
	Result            string   `json:"result,omitempty"`
	RootPublishTxHash string   `json:"rootPublishTxHash,omitempty"`
	SettlementTxHash  string   `json:"settlementTxHash,omitempty"`
	Root              string   `json:"root,omitempty"`
	Leaf              string   `json:"leaf,omitempty"`
	LeafIndex         uint64   `json:"leafIndex"`
	Proof             []string `json:"proof"`
	Failure           *Failure `json:"failure,omitempty"`
	Attempts          uint     `json:"attempts"`
	UpdatedAt         int64    `json:"updatedAt"`
}

// Failure details of a failed or rejected task
type Failure struct {
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
}

// View renders the task status
func (t *SettlementTask) View() View {
	v := View{
		ID:        t.Record.ID.Hex(),
		Direction: string(t.Record.Direction),
		Recipient: t.Record.Recipient.Hex(),
		State:     t.State.String(),
		Result:    string(t.Result),
		LeafIndex: t.LeafIndex,
		Proof:     make([]string, len(t.Proof)),
		Attempts:  t.Attempts,
		UpdatedAt: t.UpdatedAt.Unix(),
	}
	if t.Record.Amount != nil {
		v.Amount = t.Record.Amount.String()
	}
	if t.Leaf != (common.Hash{}) {
		v.Leaf = t.Leaf.Hex()
	}
	if t.State != TaskStateReceived && t.State != TaskStateLeafComputed {
		v.Root = t.Root.Hex()
	}
	for i, p := range t.Proof {
		v.Proof[i] = p.Hex()
	}
	if t.RootPublishTxHash != nil {
		v.RootPublishTxHash = t.RootPublishTxHash.Hex()
	}
	if t.SettlementTxHash != nil {
		v.SettlementTxHash = t.SettlementTxHash.Hex()
	}
	if t.FailureKind != FailureNone {
		v.Failure = &Failure{Kind: string(t.FailureKind), Reason: t.FailureReason}
	}
	return v
}
