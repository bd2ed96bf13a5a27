package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"attendancehub/internal/config"
	"attendancehub/internal/model"
)

func memoryConfig() config.App {
	return config.App{
		StoreBackend:  config.BackendKV,
		KVEngine:      config.EngineMemory,
		KVPrefix:      "app_test_",
		QueueBackend:  config.QueueMemory,
		AdminPasscode: "0000",
		TimeZone:      "UTC",
		MaxStudents:   10,
		MaxRecords:    10,
		MaxTrainers:   10,
	}
}

func TestBuildMemory(t *testing.T) {
	a, err := Build(context.Background(), memoryConfig(), zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.Docs)
	assert.Empty(t, a.Health)
	assert.True(t, a.Catalog.HasCourt("court-1"))
	assert.NotNil(t, a.HTTP().Router())
}

func TestBuildRejectsBadConfig(t *testing.T) {
	cfg := memoryConfig()
	cfg.StoreBackend = "sqlite"
	_, err := Build(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)

	cfg = memoryConfig()
	cfg.QueueBackend = config.QueueRedis
	_, err = Build(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)

	cfg = memoryConfig()
	cfg.CatalogFile = "does-not-exist.yaml"
	_, err = Build(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestQueuedDedupeRunsInProcess(t *testing.T) {
	a, err := Build(context.Background(), memoryConfig(), zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	for i := 0; i < 2; i++ {
		_, err := a.Store.Students.Create(ctx, model.Student{ID: "s1", Name: "Aarav", GroupID: "gkp-1"})
		require.NoError(t, err)
	}
	go func() { _ = a.Runner.Run(ctx, a.Queue) }()

	require.NoError(t, a.Publisher.DedupeStudents(ctx))
	assert.Eventually(t, func() bool {
		students, err := a.Roster.Students(ctx)
		return err == nil && len(students) == 1
	}, 2*time.Second, 10*time.Millisecond)
}
