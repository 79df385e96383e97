package cli_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/aretw0/wayfinder/internal/cli"
	"github.com/aretw0/wayfinder/internal/config"
	"github.com/aretw0/wayfinder/pkg/adapters/memory"
	"github.com/aretw0/wayfinder/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Guides = []string{"testdata/tour.yaml"}
	cfg.UI = "testdata/tour.yaml"
	cfg.Engine.Animation.ReducedMotion = true
	cfg.Engine.Locator.MaxAttempts = 1
	return cfg
}

func TestNewEngine_LoadsGuidesAndFixture(t *testing.T) {
	ctx := context.Background()
	b := open(t, "memory", config.Security{})

	engine, err := cli.NewEngine(ctx, cli.EngineOptions{Config: testConfig(), Backend: b})
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close(ctx) })

	assert.Equal(t, 1, engine.Loaded)
	require.NotNil(t, engine.UI)
	require.NotNil(t, engine.Bus)

	started, err := engine.StartGuide(ctx, "tour")
	require.NoError(t, err)
	assert.True(t, started)

	// The action step blocks NextStep until the element is clicked.
	errCh := make(chan error, 1)
	go func() { errCh <- engine.NextStep(ctx) }()

	require.Eventually(t, func() bool {
		return engine.UI.Waiting() == 1
	}, time.Second, 5*time.Millisecond)
	require.True(t, engine.UI.Interact("save", "click"))
	require.NoError(t, <-errCh)

	require.Eventually(t, func() bool {
		return engine.State().CurrentStepIndex == 2 && !engine.Busy()
	}, time.Second, 5*time.Millisecond)

	// The run state reached the backend.
	_, err = b.Store.Load(ctx, config.Default().Engine.StorageKey)
	assert.NoError(t, err)
}

func TestNewEngine_ExplicitHost(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	host := memory.NewUI()

	engine, err := cli.NewEngine(ctx, cli.EngineOptions{Config: cfg, Host: host})
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close(ctx) })

	assert.Nil(t, engine.UI, "fixture is not loaded when a host is given")
}

func TestNewEngine_Errors(t *testing.T) {
	ctx := context.Background()

	cfg := testConfig()
	cfg.UI = "testdata/absent.yaml"
	_, err := cli.NewEngine(ctx, cli.EngineOptions{Config: cfg})
	assert.ErrorContains(t, err, "ui fixture")

	cfg = testConfig()
	cfg.Guides = []string{"testdata/absent"}
	_, err = cli.NewEngine(ctx, cli.EngineOptions{Config: cfg})
	assert.ErrorContains(t, err, "failed to load guides")

	cfg = testConfig()
	cfg.Engine.StorageKey = ""
	_, err = cli.NewEngine(ctx, cli.EngineOptions{Config: cfg})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestNewEngine_DebugTracesEvents(t *testing.T) {
	ctx := context.Background()
	var logs bytes.Buffer
	logger, err := cli.NewLogger(&logs, config.Log{Level: "debug"})
	require.NoError(t, err)

	engine, err := cli.NewEngine(ctx, cli.EngineOptions{Config: testConfig(), Logger: logger, Debug: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close(ctx) })

	_, err = engine.StartGuide(ctx, "tour")
	require.NoError(t, err)
	assert.Contains(t, logs.String(), "type=guideStarted")
	assert.Contains(t, logs.String(), "guide_id=tour")
}

func TestNewLogger_RejectsUnknownLevel(t *testing.T) {
	_, err := cli.NewLogger(&bytes.Buffer{}, config.Log{Level: "loud"})
	assert.Error(t, err)

	logger, err := cli.NewLogger(&bytes.Buffer{}, config.Log{})
	require.NoError(t, err)
	assert.NotNil(t, logger)
}
