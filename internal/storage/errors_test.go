package storage

import (
	"circleup/backend/internal/models"
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		unavailable bool
	}{
		{name: "nil", err: nil},
		{name: "deadline", err: fmt.Errorf("query: %w", context.DeadlineExceeded), unavailable: true},
		{name: "bad conn", err: driver.ErrBadConn, unavailable: true},
		{name: "redis pool timeout", err: redis.ErrPoolTimeout, unavailable: true},
		{name: "admin shutdown", err: &pgconn.PgError{Code: "57P01"}, unavailable: true},
		{name: "connection failure class", err: &pgconn.PgError{Code: "08006"}, unavailable: true},
		{name: "unique violation", err: &pgconn.PgError{Code: "23505"}},
		{name: "plain error", err: errors.New("syntax error")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Act
			got := classify(tt.err)

			// Assert
			assert.Equal(t, tt.unavailable, errors.Is(got, models.ErrBackendUnavailable))
			if tt.err != nil {
				assert.ErrorIs(t, got, tt.err, "original cause must stay reachable")
			}
		})
	}
}

func TestIsPgDuplicateKeyError(t *testing.T) {
	assert.True(t, isPgDuplicateKeyError(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, isPgDuplicateKeyError(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isPgDuplicateKeyError(nil))
}

func TestRoomChannel(t *testing.T) {
	assert.Equal(t, "room:general", RoomChannel("general"))
}
