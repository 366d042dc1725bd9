package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"advancedtimer/bus"

	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	s := Default()
	require.Equal(t, uint32(100), s.Scan.IntervalMs)
	require.Equal(t, "memory", s.Storage.Driver)
}

func TestLoad_MissingFileFallsBackToDefault(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, Default(), s)
}

func TestLoad_OverridesOnlyGivenFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kernel.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scan:\n  interval_ms: 20\n"), 0o644))

	s, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, uint32(20), s.Scan.IntervalMs)
	require.Equal(t, "memory", s.Storage.Driver) // untouched field keeps default
}

func TestPublish_RetainedPerSection(t *testing.T) {
	b := bus.NewBus(16)
	conn := b.NewConnection("test-config")

	Publish(conn, Default())

	sub := conn.Subscribe(bus.T(topicPrefix, "#"))
	defer conn.Unsubscribe(sub)

	got := map[string]bool{}
	deadline := time.Now().Add(300 * time.Millisecond)
	for len(got) < 5 && time.Now().Before(deadline) {
		select {
		case m := <-sub.Channel():
			got[m.Topic[len(m.Topic)-1]] = true
		case <-time.After(10 * time.Millisecond):
		}
	}
	require.Contains(t, got, "log_level")
	require.Contains(t, got, "scan")
	require.Contains(t, got, "storage")
	require.Contains(t, got, "watchdog")
	require.Contains(t, got, "bus")
}

func TestService_StartWatchReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kernel.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: info\n"), 0o644))

	b := bus.NewBus(16)
	conn := b.NewConnection("watcher")
	sub := conn.Subscribe(bus.T(topicPrefix, "log_level"))
	defer conn.Unsubscribe(sub)

	svc := &Service{Path: path}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := svc.Start(ctx, conn, true)
	require.NoError(t, err)

	select {
	case m := <-sub.Channel():
		require.Equal(t, "info", m.Payload)
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timed out waiting for initial publish")
	}

	require.NoError(t, os.WriteFile(path, []byte("log_level: debug\n"), 0o644))

	deadline := time.Now().Add(1800 * time.Millisecond)
	for time.Now().Before(deadline) {
		select {
		case m := <-sub.Channel():
			if m.Payload == "debug" {
				return
			}
		case <-time.After(50 * time.Millisecond):
		}
	}
	t.Fatal("timed out waiting for reload publish")
}
