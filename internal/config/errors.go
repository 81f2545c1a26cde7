package config

import "errors"

var (
	errDatabaseURLRequired = errors.New("DATABASE_URL environment variable is required")
	errUnknownStoreDriver  = errors.New("STORE_DRIVER must be postgres or memory")
)
