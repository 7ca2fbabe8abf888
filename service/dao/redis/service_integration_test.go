//go:build integration

package redis

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/viant/intake/service/dao"
	"github.com/viant/intake/service/dao/daotest"
)

func TestService(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR is not set")
	}
	daotest.Run(t, func(t *testing.T) dao.Store {
		srv, err := Open(context.Background(), addr, os.Getenv("REDIS_PASSWORD"), 0, "intake-test:"+uuid.New().String()+":")
		require.NoError(t, err)
		return srv
	})
}
