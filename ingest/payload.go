package ingest

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/lockburn/bridge-relayer/etherman"
	"github.com/lockburn/bridge-relayer/utils/gerror"
)

const maxUintBits = 256

// ValidationError reports the first missing or malformed payload field
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s %s", gerror.ErrValidation.Error(), e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return gerror.ErrValidation
}

// Payload is the transfer event pushed by an external observer.
// Lock events name the fields lockId/sender/to, burn events burnId/burner/to;
// the generic id/actor/recipient names are accepted for both.
type Payload struct {
	ID        string `json:"id"`
	LockID    string `json:"lockId"`
	BurnID    string `json:"burnId"`
	Actor     string `json:"actor"`
	Sender    string `json:"sender"`
	Burner    string `json:"burner"`
	Recipient string `json:"recipient"`
	To        string `json:"to"`

	// string or number
	Amount    json.RawMessage `json:"amount"`
	Nonce     json.RawMessage `json:"nonce"`
	Timestamp json.RawMessage `json:"timestamp"`

	// optional source chain position, not part of the leaf
	BlockNumber json.RawMessage `json:"blockNumber,omitempty"`
	TxHash      string          `json:"txHash,omitempty"`
}

// Route is what the relayer knows about a direction, the payload cannot override it
type Route struct {
	OriginContract common.Address
	SrcChainID     uint64
	DstChainID     uint64
}

// Routes builds the route of each direction from the chain configs
func Routes(cfg etherman.Config) map[etherman.Direction]Route {
	return map[etherman.Direction]Route{
		etherman.DirectionLock: {OriginContract: cfg.ChainA.OriginAddr, SrcChainID: cfg.ChainA.ChainID, DstChainID: cfg.ChainB.ChainID},
		etherman.DirectionBurn: {OriginContract: cfg.ChainB.OriginAddr, SrcChainID: cfg.ChainB.ChainID, DstChainID: cfg.ChainA.ChainID},
	}
}

// DecodePayload parses a JSON payload. Unknown fields are ignored.
func DecodePayload(data []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, &ValidationError{Field: "body", Reason: "is not a JSON object: " + err.Error()}
	}
	return &p, nil
}

// Record validates the payload and builds the transfer record of the given direction
func (p *Payload) Record(direction etherman.Direction, route Route) (*etherman.TransferRecord, error) {
	idValue, idField := p.ID, "id"
	actorValue, actorField := p.Actor, "actor"
	switch direction {
	case etherman.DirectionLock:
		idValue, idField = pick(p.LockID, "lockId", p.ID, "id")
		actorValue, actorField = pick(p.Sender, "sender", p.Actor, "actor")
	case etherman.DirectionBurn:
		idValue, idField = pick(p.BurnID, "burnId", p.ID, "id")
		actorValue, actorField = pick(p.Burner, "burner", p.Actor, "actor")
	default:
		return nil, fmt.Errorf("%w: %q", gerror.ErrUnknownDirection, direction)
	}
	recipientValue, recipientField := pick(p.To, "to", p.Recipient, "recipient")

	record := &etherman.TransferRecord{
		Direction:      direction,
		OriginContract: route.OriginContract,
		SrcChainID:     route.SrcChainID,
		DstChainID:     route.DstChainID,
	}
	var err error
	if record.ID, err = ParseID(idField, idValue); err != nil {
		return nil, err
	}
	if record.Actor, err = parseAddress(actorField, actorValue); err != nil {
		return nil, err
	}
	if record.Recipient, err = parseAddress(recipientField, recipientValue); err != nil {
		return nil, err
	}
	if record.Amount, err = parseUint("amount", p.Amount); err != nil {
		return nil, err
	}
	if record.Nonce, err = parseUint("nonce", p.Nonce); err != nil {
		return nil, err
	}
	if record.Timestamp, err = parseUint("timestamp", p.Timestamp); err != nil {
		return nil, err
	}
	if len(p.BlockNumber) > 0 {
		block, err := parseUint("blockNumber", p.BlockNumber)
		if err != nil {
			return nil, err
		}
		if !block.IsUint64() {
			return nil, &ValidationError{Field: "blockNumber", Reason: "does not fit in 64 bits"}
		}
		record.BlockNumber = block.Uint64()
	}
	if p.TxHash != "" {
		if record.TxHash, err = ParseID("txHash", p.TxHash); err != nil {
			return nil, err
		}
	}
	return record, nil
}

// NewPayload renders a record as the payload that decodes back to it
func NewPayload(record *etherman.TransferRecord) *Payload {
	p := &Payload{
		ID:          record.ID.Hex(),
		Actor:       record.Actor.Hex(),
		Recipient:   record.Recipient.Hex(),
		Amount:      quoted(record.Amount),
		Nonce:       quoted(record.Nonce),
		Timestamp:   quoted(record.Timestamp),
		BlockNumber: json.RawMessage(strconv.FormatUint(record.BlockNumber, 10)),
	}
	if record.TxHash != (common.Hash{}) {
		p.TxHash = record.TxHash.Hex()
	}
	return p
}

func quoted(v *big.Int) json.RawMessage {
	if v == nil {
		return nil
	}
	return json.RawMessage(strconv.Quote(v.String()))
}

func pick(value, field, fallback, fallbackField string) (string, string) {
	if value != "" || fallback == "" {
		return value, field
	}
	return fallback, fallbackField
}

// ParseID checks a transfer id is 32 bytes of 0x prefixed hex
func ParseID(field, value string) (common.Hash, error) {
	if value == "" {
		return common.Hash{}, &ValidationError{Field: field, Reason: "is missing"}
	}
	if !has0xPrefix(value) || len(value) != 2+2*common.HashLength || !isHex(value[2:]) {
		return common.Hash{}, &ValidationError{Field: field, Reason: "must be 32 bytes of 0x prefixed hex"}
	}
	return common.HexToHash(value), nil
}

func parseAddress(field, value string) (common.Address, error) {
	if value == "" {
		return common.Address{}, &ValidationError{Field: field, Reason: "is missing"}
	}
	if !has0xPrefix(value) || !common.IsHexAddress(value) {
		return common.Address{}, &ValidationError{Field: field, Reason: "must be a 0x prefixed hex address"}
	}
	return common.HexToAddress(value), nil
}

func parseUint(field string, raw json.RawMessage) (*big.Int, error) {
	text := strings.TrimSpace(string(raw))
	if text == "" || text == "null" {
		return nil, &ValidationError{Field: field, Reason: "is missing"}
	}
	if strings.HasPrefix(text, `"`) {
		unquoted, err := strconv.Unquote(text)
		if err != nil {
			return nil, &ValidationError{Field: field, Reason: "is not a valid string"}
		}
		text = strings.TrimSpace(unquoted)
	}
	base := 10
	if has0xPrefix(text) {
		text, base = text[2:], 16
	}
	if text == "" {
		return nil, &ValidationError{Field: field, Reason: "is missing"}
	}
	for _, c := range text {
		if !isDigit(c, base) {
			return nil, &ValidationError{Field: field, Reason: "must be an unsigned integer"}
		}
	}
	v, ok := new(big.Int).SetString(text, base)
	if !ok {
		return nil, &ValidationError{Field: field, Reason: "must be an unsigned integer"}
	}
	if v.BitLen() > maxUintBits {
		return nil, &ValidationError{Field: field, Reason: "does not fit in 256 bits"}
	}
	return v, nil
}

func has0xPrefix(s string) bool {
	return len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}

func isHex(s string) bool {
	for _, c := range s {
		if !isDigit(c, 16) {
			return false
		}
	}
	return true
}

func isDigit(c rune, base int) bool {
	switch {
	case c >= '0' && c <= '9':
		return true
	case base == 16 && ((c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')):
		return true
	}
	return false
}
