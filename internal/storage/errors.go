package storage

import (
	"circleup/backend/internal/models"
	"context"
	"database/sql/driver"
	"errors"
	"net"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
)

const (
	pgErrUniqueViolation  = "23505"
	// SQLSTATE class 08 is connection_exception.
	pgErrConnectionClass  = "08"
	pgErrAdminShutdown    = "57P01"
	pgErrTooManyConns     = "53300"
	pgErrCannotConnectNow = "57P03"
)

// isPgDuplicateKeyError checks if error is a PostgreSQL unique violation.
func isPgDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgErrUniqueViolation
	}
	return false
}

// isUnavailable reports whether err means the backend could not be reached,
// as opposed to the backend rejecting the request.
func isUnavailable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, redis.ErrClosed) ||
		errors.Is(err, redis.ErrPoolTimeout) ||
		pgconn.Timeout(err) {
		return true
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case len(pgErr.Code) >= 2 && pgErr.Code[:2] == pgErrConnectionClass,
			pgErr.Code == pgErrAdminShutdown,
			pgErr.Code == pgErrTooManyConns,
			pgErr.Code == pgErrCannotConnectNow:
			return true
		}
		return false
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

// classify joins connectivity failures with models.ErrBackendUnavailable so
// callers can retry or fall back to the cache.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if isUnavailable(err) {
		return errors.Join(models.ErrBackendUnavailable, err)
	}
	return err
}
