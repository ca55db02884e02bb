package etherman

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	cacheSize = 1000
)

type nonceReader interface {
	NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error)
}

// NonceCache hands out monotonic nonces per sender on top of the confirmed account nonce
type NonceCache struct {
	reader     nonceReader
	nonceCache *lru.Cache[common.Address, uint64]
}

// NewNonceCache creates a NonceCache
func NewNonceCache(reader nonceReader) (*NonceCache, error) {
	cache, err := lru.New[common.Address, uint64](int(cacheSize))
	if err != nil {
		return nil, err
	}
	return &NonceCache{
		reader:     reader,
		nonceCache: cache,
	}, nil
}

// GetNextNonce returns the larger of the confirmed nonce and the last handed out nonce plus one
func (nc *NonceCache) GetNextNonce(ctx context.Context, from common.Address) (uint64, error) {
	nonce, err := nc.reader.NonceAt(ctx, from, nil)
	if err != nil {
		return 0, err
	}
	if tempNonce, found := nc.nonceCache.Get(from); found {
		if tempNonce >= nonce {
			nonce = tempNonce + 1
		}
	}
	nc.nonceCache.Add(from, nonce)
	return nonce, nil
}

// Remove drops the cached nonce so the next call resyncs from the chain
func (nc *NonceCache) Remove(from common.Address) {
	nc.nonceCache.Remove(from)
}
