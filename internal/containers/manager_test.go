// ABOUTME: Tests for the simulated container manager over an in-memory store
// ABOUTME: Covers lifecycle transitions, defaults, logs, events, and per-project serialization

package containers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gigahard/vibecode-gateway/internal/config"
	"github.com/gigahard/vibecode-gateway/internal/store"
)

func newTestManager(t *testing.T) (*Manager, *store.SQLiteStore) {
	t.Helper()
	s, err := store.NewSQLiteStore(store.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := NewManager(s, config.Default().Containers, logger)
	m.podSuffix = func() string { return "abc123" }
	return m, s
}

func createProject(t *testing.T, s *store.SQLiteStore, id, owner, language string) {
	t.Helper()
	require.NoError(t, s.CreateProject(context.Background(), &store.Project{
		ID: id, Name: id, Language: language, OwnerID: owner, Members: []string{owner},
	}))
}

func TestManager_StatusNotCreated(t *testing.T) {
	m, s := newTestManager(t)
	createProject(t, s, "p1", "alice", "Python")

	st, err := m.Status(context.Background(), "p1")
	require.NoError(t, err)
	assert.False(t, st.Exists)
	assert.Equal(t, StatusNotCreated, st.Status)
	assert.False(t, st.Running)

	data, err := json.Marshal(st)
	require.NoError(t, err)
	assert.JSONEq(t, `{"exists":false,"status":"Not Created","running":false}`, string(data))
}

func TestManager_CreateUsesLanguageDefaults(t *testing.T) {
	m, s := newTestManager(t)
	createProject(t, s, "p1", "alice", "JavaScript")

	st, err := m.Create(context.Background(), "p1", "alice", Config{})
	require.NoError(t, err)

	assert.True(t, st.Exists)
	assert.Equal(t, StatusRunning, st.Status)
	assert.True(t, st.Running)
	assert.Equal(t, "node:14-alpine", st.Image)
	assert.Equal(t, 8000, st.Port)

	require.NotNil(t, st.Deployment)
	assert.Equal(t, "deployment-p1", st.Deployment.Name)
	assert.Equal(t, 1, st.Deployment.AvailableReplicas)
	require.NotNil(t, st.Service)
	assert.Equal(t, "service-p1", st.Service.Name)
	assert.Equal(t, "10.42.0.123", st.Service.ClusterIP)
	assert.Equal(t, []ServicePort{{Port: 8000, TargetPort: 8000}}, st.Service.Ports)
	require.NotNil(t, st.PVC)
	assert.Equal(t, "pvc-p1", st.PVC.Name)
	assert.Equal(t, "Bound", st.PVC.Status)
	assert.Equal(t, "1Gi", st.PVC.Capacity)
	require.Len(t, st.Pods, 1)
	assert.Equal(t, "pod-p1-abc123", st.Pods[0].Name)
	assert.True(t, st.Pods[0].Ready)
	assert.NotNil(t, st.LastStartedAt)

	commands := map[string]string{
		"Python":     "python main.py",
		"JavaScript": "node index.js",
		"Go":         "go run main.go",
		"Java":       "java -jar app.jar",
		"Unknown":    "python -m http.server 8000",
	}
	for language, want := range commands {
		id := "cmd-" + strings.ToLower(language)
		createProject(t, s, id, "alice", language)
		_, err := m.Create(context.Background(), id, "alice", Config{})
		require.NoError(t, err, language)

		logs, err := m.Logs(context.Background(), id, "alice", 0)
		require.NoError(t, err, language)
		assert.Contains(t, logs, "Running "+want, language)
	}
}

func TestManager_CreateUsesConfiguredCommand(t *testing.T) {
	m, s := newTestManager(t)
	createProject(t, s, "p1", "alice", "Python")

	_, err := m.Create(context.Background(), "p1", "alice", Config{Command: []string{"uvicorn", "app:app"}})
	require.NoError(t, err)

	logs, err := m.Logs(context.Background(), "p1", "alice", 0)
	require.NoError(t, err)
	assert.Contains(t, logs, "Running uvicorn app:app")
}

func TestManager_CreateHonorsConfig(t *testing.T) {
	m, s := newTestManager(t)
	createProject(t, s, "p1", "alice", "Go")

	st, err := m.Create(context.Background(), "p1", "alice", Config{Image: "custom:1", Port: 9090, StorageSize: "5Gi"})
	require.NoError(t, err)
	assert.Equal(t, "custom:1", st.Image)
	assert.Equal(t, 9090, st.Port)
	assert.Equal(t, "5Gi", st.PVC.Capacity)
}

func TestManager_Lifecycle(t *testing.T) {
	m, s := newTestManager(t)
	ctx := context.Background()
	createProject(t, s, "p1", "alice", "Python")

	_, err := m.Stop(ctx, "p1", "alice")
	assert.ErrorIs(t, err, ErrNotCreated)
	_, err = m.Logs(ctx, "p1", "alice", 10)
	assert.ErrorIs(t, err, ErrNotCreated)

	st, err := m.Start(ctx, "p1", "alice")
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, st.Status, "start auto-creates")

	st, err = m.Stop(ctx, "p1", "alice")
	require.NoError(t, err)
	assert.Equal(t, StatusStopped, st.Status)
	assert.False(t, st.Running)
	assert.Empty(t, st.Pods)
	assert.Equal(t, 0, st.Deployment.AvailableReplicas)

	st, err = m.Restart(ctx, "p1", "alice")
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, st.Status)
	require.Len(t, st.Pods, 1)

	st, err = m.Restart(ctx, "p1", "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, st.Pods[0].RestartCount)

	require.NoError(t, m.Delete(ctx, "p1", "alice"))
	require.NoError(t, m.Delete(ctx, "p1", "alice"), "delete is idempotent")

	st, err = m.Status(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, st.Exists)
}

func TestManager_RestartAutoCreates(t *testing.T) {
	m, s := newTestManager(t)
	createProject(t, s, "p1", "alice", "Java")

	st, err := m.Restart(context.Background(), "p1", "alice")
	require.NoError(t, err)
	assert.True(t, st.Exists)
	assert.Equal(t, "openjdk:11-jdk-slim", st.Image)
}

func TestManager_UnknownProject(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.Status(ctx, "ghost")
	assert.ErrorIs(t, err, ErrProjectNotFound)
	_, err = m.Create(ctx, "ghost", "alice", Config{})
	assert.ErrorIs(t, err, ErrProjectNotFound)
	assert.ErrorIs(t, m.Delete(ctx, "ghost", "alice"), ErrProjectNotFound)
}

func TestManager_Logs(t *testing.T) {
	m, s := newTestManager(t)
	ctx := context.Background()
	createProject(t, s, "p1", "alice", "Python")

	_, err := m.Create(ctx, "p1", "alice", Config{})
	require.NoError(t, err)

	logs, err := m.Logs(ctx, "p1", "alice", 2)
	require.NoError(t, err)
	assert.Equal(t, "Hello from a container!\nThis is a mock log message.", logs)

	all, err := m.Logs(ctx, "p1", "alice", 0)
	require.NoError(t, err)
	assert.Contains(t, all, "Creating deployment deployment-p1 with image python:3.9-slim")
	assert.Contains(t, all, "python -m http.server 8000")
}

func TestManager_LogsSurviveMissingBuffer(t *testing.T) {
	m, s := newTestManager(t)
	ctx := context.Background()
	createProject(t, s, "p1", "alice", "Python")

	_, err := m.Create(ctx, "p1", "alice", Config{})
	require.NoError(t, err)
	m.dropLogs("p1")

	logs, err := m.Logs(ctx, "p1", "alice", 2)
	require.NoError(t, err)
	assert.Equal(t, "Hello from a container!\nThis is a mock log message.", logs)
}

func TestManager_EventsAndAudit(t *testing.T) {
	m, s := newTestManager(t)
	ctx := context.Background()
	createProject(t, s, "p1", "alice", "Python")

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	m.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	_, err := m.Create(ctx, "p1", "alice", Config{})
	require.NoError(t, err)
	_, err = m.Stop(ctx, "p1", "alice")
	require.NoError(t, err)
	_, err = m.Start(ctx, "p1", "bob")
	require.NoError(t, err)

	events, err := m.Events(ctx, "p1", 0)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "create", events[0].Action)
	assert.Equal(t, "stop", events[1].Action)
	assert.Equal(t, "Stopped", events[1].Status)
	assert.Equal(t, "start", events[2].Action)
	assert.Equal(t, "bob", events[2].ActorID)

	action := store.AuditContainerAction
	entries, err := s.ListAuditLog(ctx, store.AuditFilter{Action: &action})
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestManager_RemoveClearsState(t *testing.T) {
	m, s := newTestManager(t)
	ctx := context.Background()
	createProject(t, s, "p1", "alice", "Python")

	_, err := m.Create(ctx, "p1", "alice", Config{})
	require.NoError(t, err)
	require.NoError(t, m.Remove(ctx, "p1"))

	_, err = s.GetContainer(ctx, "p1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestManager_Authorize(t *testing.T) {
	m, s := newTestManager(t)
	ctx := context.Background()
	createProject(t, s, "p1", "alice", "Python")

	assert.NoError(t, m.Authorize(ctx, "p1", "alice"))
	assert.ErrorIs(t, m.Authorize(ctx, "p1", "mallory"), ErrProjectNotFound)
	assert.ErrorIs(t, m.Authorize(ctx, "ghost", "alice"), ErrProjectNotFound)
}

func TestManager_ConcurrentTransitionsSerialize(t *testing.T) {
	m, s := newTestManager(t)
	ctx := context.Background()
	createProject(t, s, "p1", "alice", "Python")

	_, err := m.Create(ctx, "p1", "alice", Config{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_, _ = m.Stop(ctx, "p1", "alice")
			} else {
				_, _ = m.Start(ctx, "p1", "alice")
			}
		}(i)
	}
	wg.Wait()

	st, err := m.Status(ctx, "p1")
	require.NoError(t, err)
	// Whatever the final transition was, the record must be self-consistent.
	assert.Equal(t, st.Status == StatusRunning, st.Running)
	assert.Equal(t, st.Running, len(st.Pods) == 1)

	events, err := m.Events(ctx, "p1", 100)
	require.NoError(t, err)
	assert.Len(t, events, 21)
	assert.Empty(t, m.locks.locks, "locks are released when idle")
}

func TestLogRing(t *testing.T) {
	r := newLogRing(3)
	r.append("a", "b")
	assert.Equal(t, "a\nb", r.tail(0))

	r.append("c", "d", "e")
	assert.Equal(t, "c\nd\ne", r.tail(10))
	assert.Equal(t, "d\ne", r.tail(2))
}

func TestParseAction(t *testing.T) {
	a, err := ParseAction("restart")
	require.NoError(t, err)
	assert.Equal(t, ActionRestart, a)

	_, err = ParseAction("explode")
	assert.ErrorIs(t, err, ErrInvalidAction)
	assert.Equal(t,
		"Invalid action: explode. Valid actions are: create, start, stop, restart, logs, status, delete",
		InvalidActionMessage("explode"))
}

func TestFormatAge(t *testing.T) {
	assert.Equal(t, "30s", formatAge(30*time.Second))
	assert.Equal(t, "5m", formatAge(5*time.Minute))
	assert.Equal(t, "3h", formatAge(3*time.Hour))
	assert.Equal(t, "4d", formatAge(96*time.Hour))
}

func TestNormalizeLanguage(t *testing.T) {
	images := config.Default().Containers.Images
	assert.Equal(t, "javascript", normalizeLanguage("Node", images))
	assert.Equal(t, "go", normalizeLanguage("Golang", images))
	assert.Equal(t, "python", normalizeLanguage("Unknown", images))
	assert.Equal(t, []string{"java", "-jar", "app.jar"}, withDefaults(Config{}, "java", config.Default().Containers).Command)
	assert.Equal(t, []string{"go", "run", "main.go"}, withDefaults(Config{}, "Golang", config.Default().Containers).Command)
}
