package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/lockburn/bridge-relayer/etherman"
	"github.com/lockburn/bridge-relayer/ingest"
	"github.com/lockburn/bridge-relayer/sequencer"
	"github.com/lockburn/bridge-relayer/sequencer/types"
	"github.com/lockburn/bridge-relayer/utils/gerror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	testID         = "0x9c22ff5f21f0b81b113e63f7db6da94fedef11b2119b4088b89664fb9a3cb658"
	testSender     = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
	testRecipient  = "0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC"
	testAdminToken = "admin-secret"
	testOrigin     = "https://app.example"
)

var testEthermanConfig = etherman.Config{
	ChainA: etherman.ChainConfig{Name: "sepolia", ChainID: 11155111,
		OriginAddr: common.HexToAddress("0x5fbdb2315678afecb367f032d93f642f64180aa3"), SettlementAddr: common.HexToAddress("0x01")},
	ChainB: etherman.ChainConfig{Name: "bsc-testnet", ChainID: 97,
		OriginAddr: common.HexToAddress("0xe7f1725e7734ce288f8367e1bb143e90bb3f0512"), SettlementAddr: common.HexToAddress("0x02")},
}

type settlerMock struct{ mock.Mock }

func (m *settlerMock) Settle(ctx context.Context, record etherman.TransferRecord) (*types.SettlementTask, error) {
	args := m.Called(ctx, record)
	var task *types.SettlementTask
	if rf, ok := args.Get(0).(func(etherman.TransferRecord) *types.SettlementTask); ok {
		task = rf(record)
	} else if args.Get(0) != nil {
		task = args.Get(0).(*types.SettlementTask)
	}
	return task, args.Error(1)
}

type taskManagerMock struct{ mock.Mock }

func (m *taskManagerMock) Get(ctx context.Context, direction etherman.Direction, id common.Hash) (*types.SettlementTask, error) {
	args := m.Called(ctx, direction, id)
	task, _ := args.Get(0).(*types.SettlementTask)
	return task, args.Error(1)
}

func (m *taskManagerMock) Retry(ctx context.Context, direction etherman.Direction, id common.Hash) (*types.SettlementTask, error) {
	args := m.Called(ctx, direction, id)
	task, _ := args.Get(0).(*types.SettlementTask)
	return task, args.Error(1)
}

func (m *taskManagerMock) Resume(ctx context.Context, direction etherman.Direction) error {
	return m.Called(ctx, direction).Error(0)
}

func (m *taskManagerMock) Halted(direction etherman.Direction) (string, bool) {
	args := m.Called(direction)
	return args.String(0), args.Bool(1)
}

type fakeRoots struct {
	roots map[etherman.Direction]common.Hash
	lens  map[etherman.Direction]uint64
}

func (f *fakeRoots) Root(direction etherman.Direction) (common.Hash, error) {
	return f.roots[direction], nil
}

func (f *fakeRoots) Len(direction etherman.Direction) (uint64, error) {
	return f.lens[direction], nil
}

type fakeHealth struct{ err error }

func (f *fakeHealth) Ping(context.Context) error { return f.err }

type fakeStatus struct{ views map[string]types.View }

func (f *fakeStatus) GetTaskStatus(_ context.Context, key string) (*types.View, error) {
	view, found := f.views[key]
	if !found {
		return nil, gerror.ErrStorageNotFound
	}
	return &view, nil
}

type testEnv struct {
	settler *settlerMock
	tasks   *taskManagerMock
	health  *fakeHealth
	service *relayerService
	router  *gin.Engine
}

func newTestEnv() *testEnv {
	gin.SetMode(gin.TestMode)
	env := &testEnv{settler: new(settlerMock), tasks: new(taskManagerMock), health: &fakeHealth{}}
	roots := &fakeRoots{
		roots: map[etherman.Direction]common.Hash{etherman.DirectionLock: common.HexToHash("0xaa")},
		lens:  map[etherman.Direction]uint64{etherman.DirectionLock: 3},
	}
	ingestor := ingest.NewIngestor(env.settler, ingest.Routes(testEthermanConfig))
	cfg := Config{CacheSize: 16, AdminToken: testAdminToken, AllowOrigins: []string{testOrigin}}
	env.service = NewRelayerService(cfg, ingestor, env.tasks, roots, env.health, Contracts(testEthermanConfig))
	env.router = NewRouter(cfg, env.service)
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body []byte) (*httptest.ResponseRecorder, map[string]interface{}) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+testAdminToken)
	e.router.ServeHTTP(w, req)
	var res map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res), w.Body.String())
	return w, res
}

func lockPayload() []byte {
	return []byte(`{"lockId":"` + testID + `","sender":"` + testSender + `","to":"` + testRecipient +
		`","amount":"1000","nonce":"7","timestamp":"1700000000"}`)
}

func taskIn(record etherman.TransferRecord, state types.TaskState) *types.SettlementTask {
	task := types.NewSettlementTask(record, time.Unix(1700000000, 0))
	switch state {
	case types.TaskStateSettled:
		task.Settle()
	case types.TaskStateRejected:
		task.Reject(types.FailureCodec, "amount overflows uint256")
	case types.TaskStateFailed:
		task.Fail(types.FailureReverted, "INVALID_PROOF")
	default:
		task.State = state
	}
	return task
}

func testRecord(direction etherman.Direction) etherman.TransferRecord {
	return etherman.TransferRecord{
		Direction: direction,
		ID:        common.HexToHash(testID),
		Actor:     common.HexToAddress(testSender),
		Recipient: common.HexToAddress(testRecipient),
		Amount:    big.NewInt(1000),
		Nonce:     big.NewInt(7),
		Timestamp: big.NewInt(1700000000),
	}
}

func TestWebhook(t *testing.T) {
	cases := []struct {
		name   string
		state  types.TaskState
		err    error
		code   int
		result string
	}{
		{"settled", types.TaskStateSettled, nil, http.StatusOK, "settled"},
		{"rejected", types.TaskStateRejected, nil, http.StatusUnprocessableEntity, "failed"},
		{"reverted", types.TaskStateFailed, nil, http.StatusBadGateway, "failed"},
		{"conflict", types.TaskStateSettled, gerror.ErrTaskConflict, http.StatusConflict, "settled"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			env := newTestEnv()
			env.settler.On("Settle", mock.Anything, mock.MatchedBy(func(r etherman.TransferRecord) bool {
				return r.Direction == etherman.DirectionLock && r.Amount.Int64() == 1000 && r.SrcChainID == 11155111 && r.DstChainID == 97
			})).Return(func(r etherman.TransferRecord) *types.SettlementTask {
				return taskIn(r, c.state)
			}, c.err).Once()

			w, res := env.do(t, http.MethodPost, "/api/webhook/lock", lockPayload())
			assert.Equal(t, c.code, w.Code)
			assert.Equal(t, c.state == types.TaskStateSettled && c.err == nil, res["success"])
			assert.Equal(t, c.result, res["result"])
			assert.Equal(t, common.HexToHash(testID).Hex(), res["id"])
			assert.Equal(t, "lock", res["direction"])
			assert.NotEmpty(t, w.Header().Get(traceIDHeader))
			env.settler.AssertExpectations(t)
		})
	}
}

func TestWebhookTimeout(t *testing.T) {
	env := newTestEnv()
	env.settler.On("Settle", mock.Anything, mock.Anything).Return(func(r etherman.TransferRecord) *types.SettlementTask {
		task := types.NewSettlementTask(r, time.Now())
		task.Fail(types.FailureTimeout, "settlement not confirmed")
		return task
	}, nil).Once()

	w, res := env.do(t, http.MethodPost, "/api/webhook/burn", []byte(`{"burnId":"`+testID+`","burner":"`+testSender+
		`","to":"`+testRecipient+`","amount":"5","nonce":1,"timestamp":2}`))
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	assert.Equal(t, "indeterminate", res["result"])
	failure, ok := res["failure"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Timeout", failure["kind"])
}

func TestWebhookValidation(t *testing.T) {
	env := newTestEnv()
	cases := []struct {
		body  string
		field string
	}{
		{`not json`, "body"},
		{`{"sender":"` + testSender + `","to":"` + testRecipient + `","amount":"1","nonce":"1","timestamp":"1"}`, "lockId"},
		{`{"lockId":"` + testID + `","sender":"0x1234","to":"` + testRecipient + `","amount":"1","nonce":"1","timestamp":"1"}`, "sender"},
		{`{"lockId":"` + testID + `","sender":"` + testSender + `","to":"` + testRecipient + `","amount":"-1","nonce":"1","timestamp":"1"}`, "amount"},
	}
	for _, c := range cases {
		w, res := env.do(t, http.MethodPost, "/api/webhook/lock", []byte(c.body))
		assert.Equal(t, http.StatusBadRequest, w.Code, c.body)
		assert.Equal(t, false, res["success"])
		assert.Equal(t, c.field, res["field"], c.body)
	}
	env.settler.AssertNotCalled(t, "Settle", mock.Anything, mock.Anything)
}

func TestWebhookHalted(t *testing.T) {
	env := newTestEnv()
	env.settler.On("Settle", mock.Anything, mock.Anything).Return(nil, gerror.ErrDirectionHalted).Once()

	w, res := env.do(t, http.MethodPost, "/api/webhook/lock", lockPayload())
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Nil(t, res["id"])
	assert.Contains(t, res["error"], "halted")
}

func TestGetTask(t *testing.T) {
	env := newTestEnv()
	id := common.HexToHash(testID)
	settled := taskIn(testRecord(etherman.DirectionLock), types.TaskStateSettled)
	env.tasks.On("Get", mock.Anything, etherman.DirectionLock, id).Return(settled, nil).Once()

	path := "/api/tasks/lock/" + testID
	w, res := env.do(t, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Settled", res["state"])

	// settled views are served from memory afterwards
	w, res = env.do(t, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Settled", res["state"])
	env.tasks.AssertExpectations(t)

	env.tasks.On("Get", mock.Anything, etherman.DirectionBurn, id).Return(nil, gerror.ErrStorageNotFound).Once()
	w, _ = env.do(t, http.MethodGet, "/api/tasks/burn/"+testID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, res = env.do(t, http.MethodGet, "/api/tasks/lock/0x1234", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "id", res["field"])

	w, _ = env.do(t, http.MethodGet, "/api/tasks/swap/"+testID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetTaskFromStatusCache(t *testing.T) {
	env := newTestEnv()
	id := common.HexToHash(testID)
	view := taskIn(testRecord(etherman.DirectionBurn), types.TaskStateSettlementSubmitted).View()
	env.service.WithStatusCache(&fakeStatus{views: map[string]types.View{sequencer.TaskKey(etherman.DirectionBurn, id): view}})

	w, res := env.do(t, http.MethodGet, "/api/tasks/burn/"+testID, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "SettlementSubmitted", res["state"])
	env.tasks.AssertNotCalled(t, "Get", mock.Anything, mock.Anything, mock.Anything)
}

func TestRetryTask(t *testing.T) {
	env := newTestEnv()
	id := common.HexToHash(testID)
	env.tasks.On("Retry", mock.Anything, etherman.DirectionLock, id).
		Return(taskIn(testRecord(etherman.DirectionLock), types.TaskStateSettled), nil).Once()
	env.tasks.On("Retry", mock.Anything, etherman.DirectionBurn, id).
		Return(taskIn(testRecord(etherman.DirectionBurn), types.TaskStateRejected), gerror.ErrTaskNotRetryable).Once()

	w, res := env.do(t, http.MethodPost, "/api/admin/tasks/lock/"+testID+"/retry", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, res["success"])

	w, res = env.do(t, http.MethodPost, "/api/admin/tasks/burn/"+testID+"/retry", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Rejected", res["state"])
	env.tasks.AssertExpectations(t)
}

func TestResumeDirection(t *testing.T) {
	env := newTestEnv()
	env.tasks.On("Resume", mock.Anything, etherman.DirectionBurn).Return(nil).Once()

	w, res := env.do(t, http.MethodPost, "/api/admin/directions/burn/resume", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, res["success"])

	w, _ = env.do(t, http.MethodPost, "/api/admin/directions/sideways/resume", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	env.tasks.AssertExpectations(t)
}

func TestAdminRoutes(t *testing.T) {
	env := newTestEnv()
	send := func(token, origin string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/admin/directions/burn/resume", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		if origin != "" {
			req.Header.Set("Origin", origin)
		}
		env.router.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusUnauthorized, send("", "").Code)
	assert.Equal(t, http.StatusUnauthorized, send("wrong", "").Code)
	env.tasks.AssertNotCalled(t, "Resume", mock.Anything, mock.Anything)

	env.tasks.On("Resume", mock.Anything, etherman.DirectionBurn).Return(nil).Once()
	w := send(testAdminToken, testOrigin)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	// public routes still answer the configured origin
	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/contracts", nil)
	req.Header.Set("Origin", testOrigin)
	env.router.ServeHTTP(w, req)
	assert.Equal(t, testOrigin, w.Header().Get("Access-Control-Allow-Origin"))

	// the old unauthenticated paths are gone
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/directions/burn/resume", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	env.tasks.AssertExpectations(t)
}

func TestRouterDefaults(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tasks := new(taskManagerMock)
	ingestor := ingest.NewIngestor(new(settlerMock), ingest.Routes(testEthermanConfig))
	cfg := Config{CacheSize: 16}
	router := NewRouter(cfg, NewRelayerService(cfg, ingestor, tasks, &fakeRoots{}, &fakeHealth{}, Contracts(testEthermanConfig)))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/contracts", nil)
	req.Header.Set("Origin", "https://anywhere.example")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	// without an admin token the admin routes are not served
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/admin/directions/burn/resume", nil)
	req.Header.Set("Authorization", "Bearer ")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
	tasks.AssertNotCalled(t, "Resume", mock.Anything, mock.Anything)
}

func TestHealth(t *testing.T) {
	env := newTestEnv()
	env.tasks.On("Halted", etherman.DirectionLock).Return("root republish limit reached", true)
	env.tasks.On("Halted", etherman.DirectionBurn).Return("", false)

	w, res := env.do(t, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]interface{}{"lock": "root republish limit reached"}, res["halted"])

	env.health.err = errors.New("connection refused")
	w, res = env.do(t, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, false, res["success"])
}

func TestContractsAndRoots(t *testing.T) {
	env := newTestEnv()

	w, res := env.do(t, http.MethodGet, "/api/contracts", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	contracts, ok := res["contracts"].([]interface{})
	require.True(t, ok)
	require.Len(t, contracts, 2)
	assert.Equal(t, "bsc-testnet", contracts[1].(map[string]interface{})["name"])

	w, res = env.do(t, http.MethodGet, "/api/merkle-roots", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	roots, ok := res["roots"].([]interface{})
	require.True(t, ok)
	require.Len(t, roots, 2)
	lock := roots[0].(map[string]interface{})
	assert.Equal(t, "lock", lock["direction"])
	assert.Equal(t, common.HexToHash("0xaa").Hex(), lock["root"])
	assert.Equal(t, float64(3), lock["leafCount"])
}

func TestTaskStatus(t *testing.T) {
	record := testRecord(etherman.DirectionLock)
	assert.Equal(t, http.StatusAccepted, taskStatus(taskIn(record, types.TaskStateAccumulated)))
	assert.Equal(t, http.StatusOK, taskStatus(taskIn(record, types.TaskStateSettled)))
	assert.Equal(t, http.StatusUnprocessableEntity, taskStatus(taskIn(record, types.TaskStateRejected)))
	assert.Equal(t, http.StatusBadGateway, taskStatus(taskIn(record, types.TaskStateFailed)))
	assert.Equal(t, http.StatusAccepted, errorStatus(gerror.ErrTaskInProgress))
	assert.Equal(t, http.StatusInternalServerError, errorStatus(errors.New("boom")))
}
