package handlers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestCompositeHealthChecker(t *testing.T) {
	c := NewCompositeHealthChecker("1.2.3")
	c.AddCheck("database", NewPingCheck(pinger{}))
	c.AddOptionalCheck("redis", NewPingCheck(pinger{}))

	status := c.Check(context.Background())
	assert.Equal(t, StatusOK, status.Status)
	assert.True(t, status.Healthy)
	assert.Equal(t, "1.2.3", status.Version)
	assert.Len(t, status.Checks, 2)
}

func TestOptionalFailureDegrades(t *testing.T) {
	c := NewCompositeHealthChecker("")
	c.AddCheck("database", NewPingCheck(pinger{}))
	c.AddOptionalCheck("redis", NewPingCheck(pinger{err: errors.New("connection refused")}))

	status := c.Check(context.Background())
	assert.Equal(t, StatusDegraded, status.Status)
	assert.True(t, status.Healthy)
	assert.Equal(t, "failed: redis", status.Message)
	assert.True(t, status.Checks["redis"].Optional)
}

func TestRequiredFailureIsDown(t *testing.T) {
	c := NewCompositeHealthChecker("")
	c.AddCheck("database", NewPingCheck(pinger{err: errors.New("disk I/O error")}))
	c.AddOptionalCheck("redis", NewPingCheck(pinger{err: errors.New("connection refused")}))

	status := c.Check(context.Background())
	assert.Equal(t, StatusDown, status.Status)
	assert.False(t, status.Healthy)
	assert.Equal(t, "failed: database, redis", status.Message)
}

func TestCheckTimeout(t *testing.T) {
	c := NewCompositeHealthChecker("")
	c.SetTimeout(10 * time.Millisecond)
	c.AddCheck("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	status := c.Check(context.Background())
	require.False(t, status.Healthy)
	assert.Equal(t, context.DeadlineExceeded.Error(), status.Checks["slow"].Message)
}

func TestNoChecksRegistered(t *testing.T) {
	c := NewCompositeHealthChecker("")

	status := c.Check(context.Background())
	assert.True(t, status.Healthy)
	assert.Equal(t, "no checks registered", status.Message)
}
