package synchronizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lockburn/bridge-relayer/etherman"
	"github.com/lockburn/bridge-relayer/ingest"
	"github.com/lockburn/bridge-relayer/sequencer/types"
	"github.com/lockburn/bridge-relayer/utils/gerror"
	"github.com/pkg/errors"
)

const defaultForwardTimeout = 10 * time.Minute

// forwardResponse is the body the webhook answers with
type forwardResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	types.View
}

// RelayerForwarder hands observed records to the relayer process that owns the accumulators,
// through its webhook. It lets observers run in their own process.
type RelayerForwarder struct {
	relayerURL string
	httpClient *http.Client
	now        func() time.Time
}

// NewRelayerForwarder creates a forwarder to the relayer api at url
func NewRelayerForwarder(url string, timeout time.Duration) (*RelayerForwarder, error) {
	if url == "" {
		return nil, errors.New("the relayer url must be set when the observers run without the api")
	}
	if timeout <= 0 {
		timeout = defaultForwardTimeout
	}
	return &RelayerForwarder{
		relayerURL: strings.TrimSuffix(url, "/"),
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
	}, nil
}

// Settle posts the record to the webhook of its direction and waits for the outcome
func (f *RelayerForwarder) Settle(ctx context.Context, record etherman.TransferRecord) (*types.SettlementTask, error) {
	body, err := json.Marshal(ingest.NewPayload(&record))
	if err != nil {
		return nil, err
	}
	path := "/api/webhook/" + string(record.Direction)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.relayerURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "forward %s", path)
	}
	defer resp.Body.Close() //nolint:errcheck
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	var res forwardResponse
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, errors.Wrapf(err, "decode %s: status %d: %s", path, resp.StatusCode, string(data))
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusUnprocessableEntity, http.StatusBadGateway, http.StatusGatewayTimeout:
		task := types.NewSettlementTask(record, f.now())
		task.State = types.TaskState(res.State)
		task.Result = types.TaskResult(res.Result)
		return task, nil
	case http.StatusAccepted:
		return nil, fmt.Errorf("%w: %s", gerror.ErrTaskInProgress, res.Error)
	case http.StatusConflict:
		return nil, fmt.Errorf("%w: %s", gerror.ErrTaskConflict, res.Error)
	case http.StatusServiceUnavailable:
		return nil, fmt.Errorf("%w: %s", gerror.ErrDirectionHalted, res.Error)
	case http.StatusBadRequest:
		return nil, fmt.Errorf("%w: %s", gerror.ErrValidation, res.Error)
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", gerror.ErrUnknownDirection, res.Error)
	}
	return nil, fmt.Errorf("relayer answered %d: %s", resp.StatusCode, res.Error)
}
