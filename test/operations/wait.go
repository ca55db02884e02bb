package operations

import (
	"context"
	"net/http"
	"time"

	ops "github.com/0xPolygonHermez/zkevm-node/test/operations"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/lockburn/bridge-relayer/etherman"
	"github.com/lockburn/bridge-relayer/test/client"
)

const (
	defaultInterval = 1 * time.Second
	defaultDeadline = 60 * time.Second
)

func poll(interval, deadline time.Duration, condition ops.ConditionFunc) error {
	return ops.Poll(interval, deadline, condition)
}

// WaitRelayerHealthy waits for the relayer to answer its health route
func WaitRelayerHealthy(c *client.RestClient) error {
	return poll(defaultInterval, defaultDeadline, func() (bool, error) {
		return relayerUpCondition(c)
	})
}

func relayerUpCondition(c *client.RestClient) (bool, error) {
	code, _, err := c.Health(context.Background())
	if err != nil {
		// we allow connection errors to wait for the container up
		return false, nil
	}
	return code == http.StatusOK, nil
}

// WaitTaskState waits until the task of a transfer reaches the given state
func WaitTaskState(c *client.RestClient, direction etherman.Direction, id, state string, deadline time.Duration) error {
	return poll(defaultInterval, deadline, func() (bool, error) {
		code, task, err := c.GetTask(context.Background(), direction, id)
		if err != nil || code != http.StatusOK {
			return false, err
		}
		return task.State == state, nil
	})
}

// WaitTxToBeMined waits until a tx is mined or forged.
func WaitTxToBeMined(ctx context.Context, client *ethclient.Client, tx *types.Transaction, timeout time.Duration) error {
	return ops.WaitTxToBeMined(ctx, client, tx, timeout)
}
