package constants

const (
	MinPort = 1
	MaxPort = 65535

	MinConcurrency = 1
	MaxConcurrency = 32

	MinRetryAttempts = 1
	MaxRetryAttempts = 20
)
