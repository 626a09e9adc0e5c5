package main

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goclaw/sigslot/config"
	"github.com/goclaw/sigslot/pkg/demo"
	"github.com/goclaw/sigslot/pkg/logger"
	"github.com/goclaw/sigslot/pkg/metrics"
	"github.com/goclaw/sigslot/pkg/signal"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Metrics.Enabled = false
	cfg.Demo.Events = 12
	cfg.Demo.Interval = time.Millisecond
	cfg.Dispatch.EventLogRate = 0
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestRun_EmitsConfiguredEvents(t *testing.T) {
	cfg := testConfig(t)
	var buf bytes.Buffer
	log := logger.NewWithWriter(&logger.Config{Level: logger.InfoLevel, Format: "json"}, &buf)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, run(ctx, cfg, "", log))

	out := buf.String()
	assert.Contains(t, out, "Starting sigslot")
	assert.Contains(t, out, `"sent":12`)
}

func TestRun_ServesTopology(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	cfg := testConfig(t)
	cfg.Metrics.Enabled = true
	cfg.Metrics.Port = port
	cfg.Demo.Events = 0

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg, "", logger.Nop()) }()

	url := "http://127.0.0.1:" + strconv.Itoa(port) + cfg.Metrics.TopologyPath
	var resp *http.Response
	for i := 0; i < 100; i++ {
		resp, err = http.Get(url)
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("run did not stop")
	}
}

func TestBuildObserver(t *testing.T) {
	t.Cleanup(func() { signal.SetObserver(nil) })

	mgr := metrics.NewManager(metrics.DefaultConfig())
	cfg := config.DefaultConfig().Dispatch
	cfg.TraceEvents = true

	obs := buildObserver(cfg, logger.Nop(), mgr)
	require.NotNil(t, obs)
	signal.SetObserver(obs)

	h := demo.NewHost(config.DefaultConfig().Demo, nil)
	require.NoError(t, h.Emit(context.Background(), 0))

	none := buildObserver(config.DispatchConfig{}, logger.Nop(), metrics.NoOpManager())
	assert.NotNil(t, none)
	none.Observe(context.Background(), signal.Event{Kind: signal.EventSent})
}

func TestApplyReload(t *testing.T) {
	t.Cleanup(func() { signal.SetObserver(nil) })

	var buf bytes.Buffer
	log := logger.NewWithWriter(&logger.Config{Level: logger.InfoLevel, Format: "json"}, &buf)
	host := demo.NewHost(config.DefaultConfig().Demo, nil)

	prev := config.DefaultConfig()
	next := config.DefaultConfig()
	applyReload(&config.Reload{Config: next, Previous: prev}, host, log, metrics.NoOpManager())
	assert.Empty(t, buf.String(), "unchanged hot settings are ignored")

	next.Log.Level = "debug"
	applyReload(&config.Reload{Config: next, Previous: prev}, host, log, metrics.NoOpManager())
	assert.Equal(t, logger.DebugLevel, log.GetLevel())
	assert.Contains(t, buf.String(), "configuration reloaded")
}

func TestPrintVersionAndHelp(t *testing.T) {
	var buf bytes.Buffer
	printVersion(&buf)
	assert.Contains(t, buf.String(), "version:")
	assert.Contains(t, buf.String(), "goVersion:")

	buf.Reset()
	printHelp(&buf)
	assert.Contains(t, buf.String(), "Usage: sigslot")
	assert.Contains(t, buf.String(), "-config")
}

func TestBuildOverrides_Defaults(t *testing.T) {
	assert.Empty(t, buildOverrides())
}
