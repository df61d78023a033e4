package browser

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IzacPS/conecta-sei-backend/internal/common"
	"github.com/IzacPS/conecta-sei-backend/internal/interfaces"
	"github.com/IzacPS/conecta-sei-backend/internal/models"
)

func TestPool_AcquireBeforeStartFails(t *testing.T) {
	pool := NewPool(common.DefaultConfig().Browser, common.GetLogger())

	_, err := pool.Acquire(context.Background(), &models.Tenant{ID: "t1"}, models.Credentials{}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, interfaces.ErrConfig))
}

func TestPool_ShutdownWithoutStartIsNoop(t *testing.T) {
	pool := NewPool(common.DefaultConfig().Browser, common.GetLogger())
	assert.NoError(t, pool.Shutdown())
}

func TestPool_ReleaseToleratesNil(t *testing.T) {
	pool := NewPool(common.DefaultConfig().Browser, common.GetLogger())

	// Release must be safe on every exit path, including before acquisition
	pool.Release(nil)

	var session *Session
	pool.Release(session)
}

func TestPool_TenantLimiterIsShared(t *testing.T) {
	pool := NewPool(common.DefaultConfig().Browser, common.GetLogger())

	first := pool.tenantLimiter("t1")
	second := pool.tenantLimiter("t1")
	other := pool.tenantLimiter("t2")

	assert.Same(t, first, second, "workers of one tenant share a limiter")
	assert.NotSame(t, first, other)
}
