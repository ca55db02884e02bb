package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/0xPolygonHermez/zkevm-node/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/lockburn/bridge-relayer/etherman"
	"github.com/lockburn/bridge-relayer/ingest"
	"github.com/lockburn/bridge-relayer/sequencer"
	"github.com/lockburn/bridge-relayer/sequencer/types"
	"github.com/lockburn/bridge-relayer/utils/gerror"
)

const (
	defaultCacheSize = 1000
	healthTimeout    = 3 * time.Second

	paramDirection = "direction"
	paramID        = "id"
)

var directions = []etherman.Direction{etherman.DirectionLock, etherman.DirectionBurn}

type response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	// Field names the payload field that failed validation
	Field string `json:"field,omitempty"`
	*types.View
}

// ChainContracts are the contracts the relayer works with on one chain
type ChainContracts struct {
	Name               string `json:"name"`
	ChainID            uint64 `json:"chainId"`
	OriginContract     string `json:"originContract"`
	SettlementContract string `json:"settlementContract"`
}

// Contracts lists the configured contracts of both chains
func Contracts(cfg etherman.Config) []ChainContracts {
	res := make([]ChainContracts, 0, 2) //nolint:gomnd
	for _, c := range []etherman.ChainConfig{cfg.ChainA, cfg.ChainB} {
		res = append(res, ChainContracts{
			Name:               c.Name,
			ChainID:            c.ChainID,
			OriginContract:     c.OriginAddr.Hex(),
			SettlementContract: c.SettlementAddr.Hex(),
		})
	}
	return res
}

// MerkleRoot is the accumulator state of one direction
type MerkleRoot struct {
	Direction string `json:"direction"`
	Root      string `json:"root"`
	LeafCount uint64 `json:"leafCount"`
}

type relayerService struct {
	submitter payloadSubmitter
	tasks     taskManager
	roots     rootReader
	health    healthChecker
	status    statusReader
	contracts []ChainContracts
	// settled and rejected views never change, they are the only ones kept here
	cache *lru.Cache[string, types.View]
}

// NewRelayerService creates the service behind the HTTP routes
func NewRelayerService(cfg Config, submitter payloadSubmitter, tasks taskManager, roots rootReader, health healthChecker, contracts []ChainContracts) *relayerService {
	size := cfg.CacheSize
	if size <= 0 {
		size = defaultCacheSize
	}
	cache, err := lru.New[string, types.View](size)
	if err != nil {
		panic(err)
	}
	return &relayerService{
		submitter: submitter,
		tasks:     tasks,
		roots:     roots,
		health:    health,
		contracts: contracts,
		cache:     cache,
	}
}

// WithStatusCache makes task reads look at the shared status cache before the database
func (s *relayerService) WithStatusCache(status statusReader) *relayerService {
	s.status = status
	return s
}

// webhook accepts a transfer payload and answers once its task is terminal
func (s *relayerService) webhook(direction etherman.Direction) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := c.GetRawData()
		if err != nil {
			s.respondError(c, nil, &ingest.ValidationError{Field: "body", Reason: err.Error()})
			return
		}
		payload, err := ingest.DecodePayload(body)
		if err != nil {
			s.respondError(c, nil, err)
			return
		}
		task, err := s.submitter.Submit(c.Request.Context(), direction, payload)
		s.respondTask(c, task, err)
	}
}

func (s *relayerService) getTask(c *gin.Context) {
	direction, id, err := taskParams(c)
	if err != nil {
		s.respondError(c, nil, err)
		return
	}
	key := sequencer.TaskKey(direction, id)
	if view, found := s.cache.Get(key); found {
		c.JSON(http.StatusOK, response{Success: true, View: &view})
		return
	}
	if s.status != nil {
		view, err := s.status.GetTaskStatus(c.Request.Context(), key)
		if err == nil {
			c.JSON(http.StatusOK, response{Success: true, View: view})
			return
		}
		if !errors.Is(err, gerror.ErrStorageNotFound) {
			log.Warnf("failed to read task status %s from cache: %v", key, err)
		}
	}
	task, err := s.tasks.Get(c.Request.Context(), direction, id)
	if err != nil {
		s.respondError(c, nil, err)
		return
	}
	view := s.remember(task)
	c.JSON(http.StatusOK, response{Success: true, View: &view})
}

func (s *relayerService) retryTask(c *gin.Context) {
	direction, id, err := taskParams(c)
	if err != nil {
		s.respondError(c, nil, err)
		return
	}
	task, err := s.tasks.Retry(c.Request.Context(), direction, id)
	s.respondTask(c, task, err)
}

func (s *relayerService) resumeDirection(c *gin.Context) {
	direction, err := directionParam(c)
	if err != nil {
		s.respondError(c, nil, err)
		return
	}
	if err := s.tasks.Resume(c.Request.Context(), direction); err != nil {
		s.respondError(c, nil, err)
		return
	}
	c.JSON(http.StatusOK, response{Success: true})
}

func (s *relayerService) checkHealth(c *gin.Context) {
	halted := make(map[string]string)
	for _, d := range directions {
		if reason, found := s.tasks.Halted(d); found {
			halted[string(d)] = reason
		}
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()
	if err := s.health.Ping(ctx); err != nil {
		log.Errorf("health check: database unreachable: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "database unreachable", "halted": halted})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "halted": halted})
}

func (s *relayerService) getContracts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "contracts": s.contracts})
}

func (s *relayerService) getMerkleRoots(c *gin.Context) {
	roots := make([]MerkleRoot, 0, len(directions))
	for _, d := range directions {
		root, err := s.roots.Root(d)
		if err != nil {
			s.respondError(c, nil, err)
			return
		}
		size, err := s.roots.Len(d)
		if err != nil {
			s.respondError(c, nil, err)
			return
		}
		roots = append(roots, MerkleRoot{Direction: string(d), Root: root.Hex(), LeafCount: size})
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "roots": roots})
}

func (s *relayerService) respondTask(c *gin.Context, task *types.SettlementTask, err error) {
	if err != nil {
		s.respondError(c, task, err)
		return
	}
	view := s.remember(task)
	c.JSON(taskStatus(task), response{Success: task.State == types.TaskStateSettled, View: &view})
}

func (s *relayerService) respondError(c *gin.Context, task *types.SettlementTask, err error) {
	code := errorStatus(err)
	if code == http.StatusInternalServerError {
		log.Errorf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	resp := response{Error: err.Error()}
	var vErr *ingest.ValidationError
	if errors.As(err, &vErr) {
		resp.Field = vErr.Field
	}
	if task != nil {
		view := task.View()
		resp.View = &view
	}
	c.JSON(code, resp)
}

func (s *relayerService) remember(task *types.SettlementTask) types.View {
	view := task.View()
	key := sequencer.TaskKey(task.Direction(), task.ID())
	if task.State == types.TaskStateSettled || task.State == types.TaskStateRejected {
		s.cache.Add(key, view)
	} else {
		s.cache.Remove(key)
	}
	return view
}

// taskStatus maps a task returned without error to the HTTP status of its outcome
func taskStatus(task *types.SettlementTask) int {
	switch task.State {
	case types.TaskStateSettled:
		return http.StatusOK
	case types.TaskStateRejected:
		return http.StatusUnprocessableEntity
	case types.TaskStateFailed:
		if task.Result == types.ResultIndeterminate {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	}
	return http.StatusAccepted
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, gerror.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, gerror.ErrUnknownDirection), errors.Is(err, gerror.ErrStorageNotFound):
		return http.StatusNotFound
	case errors.Is(err, gerror.ErrTaskConflict), errors.Is(err, gerror.ErrTaskNotRetryable):
		return http.StatusConflict
	case errors.Is(err, gerror.ErrTaskInProgress):
		return http.StatusAccepted
	case errors.Is(err, gerror.ErrDirectionHalted):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func directionParam(c *gin.Context) (etherman.Direction, error) {
	direction := etherman.Direction(c.Param(paramDirection))
	if direction != etherman.DirectionLock && direction != etherman.DirectionBurn {
		return "", fmt.Errorf("%w: %q", gerror.ErrUnknownDirection, direction)
	}
	return direction, nil
}

func taskParams(c *gin.Context) (etherman.Direction, common.Hash, error) {
	direction, err := directionParam(c)
	if err != nil {
		return "", common.Hash{}, err
	}
	id, err := ingest.ParseID(paramID, c.Param(paramID))
	if err != nil {
		return "", common.Hash{}, err
	}
	return direction, id, nil
}
