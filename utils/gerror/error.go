package gerror

import "errors"

var (
	// ErrStorageNotFound is used when the object is not found in the storage
	ErrStorageNotFound = errors.New("not found in the Storage")
	// ErrStorageNotRegister is used when the configured database type is not supported
	ErrStorageNotRegister = errors.New("storage not registered")
	// ErrNilDBTransaction indicates the db transaction has not been properly initialized
	ErrNilDBTransaction = errors.New("database transaction not properly initialized")
	// ErrStorageCorrupted is returned when a stored row cannot be decoded
	ErrStorageCorrupted = errors.New("corrupted row in the Storage")
	// ErrAccumulatorOwned is returned when another process already owns the accumulators of the database
	ErrAccumulatorOwned = errors.New("accumulators are owned by another relayer process")
	// ErrRestServerHealth indicates the health check of rest server failed
	ErrRestServerHealth = errors.New("not ready for the rest server")

	// ErrValidation is returned when an ingestion payload is missing a field or has a malformed one
	ErrValidation = errors.New("invalid transfer payload")
	// ErrCodec is returned when a transfer record cannot be encoded into a leaf
	ErrCodec = errors.New("cannot encode transfer record")
	// ErrLeafNotFound is used when a leaf is not held by the accumulator
	ErrLeafNotFound = errors.New("leaf not found in the accumulator")
	// ErrAccumulatorRace indicates a proof did not verify against the root returned with it
	ErrAccumulatorRace = errors.New("accumulator proof does not verify against its own root")
	// ErrUnknownDirection is used when a direction is neither lock nor burn
	ErrUnknownDirection = errors.New("unknown transfer direction")
	// ErrDirectionHalted is returned when a direction stopped after a codec failure
	ErrDirectionHalted = errors.New("direction halted pending operator attention")

	// ErrChainCallReverted is returned when a contract call reverted
	ErrChainCallReverted = errors.New("chain call reverted")
	// ErrChainCallTimeout is returned when a transaction was not confirmed within the bounded wait
	ErrChainCallTimeout = errors.New("chain call confirmation timeout")

	// ErrTaskInProgress is returned when another worker holds the settlement lock for the same id
	ErrTaskInProgress = errors.New("settlement task already in progress")
	// ErrTaskConflict is returned when a task with the same id already holds a different transfer record
	ErrTaskConflict = errors.New("transfer id already used by a different record")
	// ErrTaskNotRetryable is returned when retry is requested for a task that cannot be retried
	ErrTaskNotRetryable = errors.New("settlement task is not retryable")
)
