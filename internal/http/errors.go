package http

import "errors"

var errDatabaseUnavailable = errors.New("database connection unavailable")
