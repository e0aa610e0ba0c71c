package constants

type contextKey string

const (
	TxKey        contextKey = "tx"
	PoolKey      contextKey = "pool"
	LoggerKey    contextKey = "logger"
	UserKey      contextKey = "user"
	ParamsKey    contextKey = "params"
	RequestStart contextKey = "request-start"
)
