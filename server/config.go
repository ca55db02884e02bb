package server

import "github.com/0xPolygonHermez/zkevm-node/config/types"

// Config struct
type Config struct {
	// HTTPPort is TCP port to listen by the HTTP server
	HTTPPort string
	// ReadTimeout bounds reading a request. WriteTimeout must cover a full settlement since
	// the webhook answers once the task is terminal.
	ReadTimeout  types.Duration
	WriteTimeout types.Duration
	// AllowOrigins are the CORS origins of the public routes, empty disables CORS
	AllowOrigins []string
	// AdminToken is the bearer token of the retry and resume routes, empty disables them
	AdminToken string
	// CacheSize is the number of terminal task views kept in memory
	CacheSize int
}
