// ABOUTME: Simulated container orchestrator persisting state per project
// ABOUTME: Serializes lifecycle transitions per project and records events and audit entries

package containers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gigahard/vibecode-gateway/internal/config"
	"github.com/gigahard/vibecode-gateway/internal/store"
)

// clusterIP is the address reported for every simulated service.
const clusterIP = "10.42.0.123"

// DefaultTailLines is used when a logs request does not specify tail_lines.
const DefaultTailLines = 100

// Store is the persistence the manager needs.
type Store interface {
	store.ContainerStore
	store.AuditStore
	GetProject(ctx context.Context, id string) (*store.Project, error)
}

// Manager runs the simulated container lifecycle for projects.
type Manager struct {
	store    Store
	defaults config.ContainersConfig
	logger   *slog.Logger

	locks *projectLocks

	logsMu sync.Mutex
	logs   map[string]*logRing

	now       func() time.Time
	podSuffix func() string
}

// NewManager creates a manager using defaults for unset container config.
func NewManager(s Store, defaults config.ContainersConfig, logger *slog.Logger) *Manager {
	return &Manager{
		store:     s,
		defaults:  defaults,
		logger:    logger.With("component", "containers"),
		locks:     newProjectLocks(),
		logs:      make(map[string]*logRing),
		now:       func() time.Time { return time.Now().UTC() },
		podSuffix: func() string { return uuid.NewString()[:6] },
	}
}

// Create provisions resources for a project, replacing any existing ones.
// The container ends up Running.
func (m *Manager) Create(ctx context.Context, projectID, actorID string, cfg Config) (*State, error) {
	unlock := m.locks.lock(projectID)
	defer unlock()

	rec, err := m.create(ctx, projectID, cfg)
	if err != nil {
		return nil, err
	}
	m.record(ctx, projectID, actorID, ActionCreate, rec, "Created container resources")
	return m.toState(rec), nil
}

// Start runs the container, creating it first when absent.
func (m *Manager) Start(ctx context.Context, projectID, actorID string) (*State, error) {
	unlock := m.locks.lock(projectID)
	defer unlock()

	rec, err := m.load(ctx, projectID)
	if errors.Is(err, ErrNotCreated) {
		rec, err = m.create(ctx, projectID, Config{})
		if err != nil {
			return nil, err
		}
		m.record(ctx, projectID, actorID, ActionCreate, rec, "Created container resources on start")
		return m.toState(rec), nil
	}
	if err != nil {
		return nil, err
	}

	if !rec.Running {
		if err := m.startPod(ctx, rec); err != nil {
			return nil, err
		}
	}
	m.record(ctx, projectID, actorID, ActionStart, rec, "Container started")
	return m.toState(rec), nil
}

// Stop halts a running container. Fails with ErrNotCreated when absent.
func (m *Manager) Stop(ctx context.Context, projectID, actorID string) (*State, error) {
	unlock := m.locks.lock(projectID)
	defer unlock()

	rec, err := m.load(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := m.stopPod(ctx, rec); err != nil {
		return nil, err
	}
	m.record(ctx, projectID, actorID, ActionStop, rec, "Container stopped")
	return m.toState(rec), nil
}

// Restart stops and starts the container, creating it first when absent.
func (m *Manager) Restart(ctx context.Context, projectID, actorID string) (*State, error) {
	unlock := m.locks.lock(projectID)
	defer unlock()

	rec, err := m.load(ctx, projectID)
	if errors.Is(err, ErrNotCreated) {
		rec, err = m.create(ctx, projectID, Config{})
		if err != nil {
			return nil, err
		}
		m.record(ctx, projectID, actorID, ActionCreate, rec, "Created container resources on restart")
		return m.toState(rec), nil
	}
	if err != nil {
		return nil, err
	}

	var res resources
	if err := json.Unmarshal(rec.Resources, &res); err != nil {
		return nil, fmt.Errorf("decoding resources: %w", err)
	}
	restarts := 0
	if len(res.Pods) > 0 {
		restarts = res.Pods[0].RestartCount + 1
	}

	if rec.Running {
		if err := m.stopPod(ctx, rec); err != nil {
			return nil, err
		}
	}
	if err := m.startPod(ctx, rec); err != nil {
		return nil, err
	}
	if restarts > 0 {
		if err := m.setRestartCount(ctx, rec, restarts); err != nil {
			return nil, err
		}
	}
	m.record(ctx, projectID, actorID, ActionRestart, rec, "Container restarted")
	return m.toState(rec), nil
}

// Logs returns the last tail lines of the container log.
// Fails with ErrNotCreated when absent.
func (m *Manager) Logs(ctx context.Context, projectID, actorID string, tail int) (string, error) {
	unlock := m.locks.lock(projectID)
	defer unlock()

	rec, err := m.load(ctx, projectID)
	if err != nil {
		return "", err
	}
	if tail <= 0 {
		tail = DefaultTailLines
	}

	ring := m.ring(projectID)
	m.logsMu.Lock()
	if len(ring.lines) == 0 {
		// State survived a gateway restart but the buffer did not.
		ring.append(m.bootLines(rec.Image)...)
	}
	out := ring.tail(tail)
	m.logsMu.Unlock()

	m.record(ctx, projectID, actorID, ActionLogs, rec, fmt.Sprintf("Retrieved %d log lines", tail))
	return out, nil
}

// Status reports the container state, or a Not Created state when absent.
func (m *Manager) Status(ctx context.Context, projectID string) (*State, error) {
	if _, err := m.project(ctx, projectID); err != nil {
		return nil, err
	}
	rec, err := m.store.GetContainer(ctx, projectID)
	if errors.Is(err, store.ErrNotFound) {
		return notCreated(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading container: %w", err)
	}
	return m.toState(rec), nil
}

// Delete removes the container resources. Deleting a missing container succeeds.
func (m *Manager) Delete(ctx context.Context, projectID, actorID string) error {
	unlock := m.locks.lock(projectID)
	defer unlock()

	if _, err := m.project(ctx, projectID); err != nil {
		return err
	}
	if err := m.store.DeleteContainer(ctx, projectID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("deleting container: %w", err)
	}
	m.dropLogs(projectID)
	m.record(ctx, projectID, actorID, ActionDelete, nil, "Deleted container resources")
	return nil
}

// Remove drops container state ahead of project deletion. No event is
// recorded since the project's history is deleted with it.
func (m *Manager) Remove(ctx context.Context, projectID string) error {
	unlock := m.locks.lock(projectID)
	defer unlock()

	if err := m.store.DeleteContainer(ctx, projectID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("deleting container: %w", err)
	}
	m.dropLogs(projectID)
	return nil
}

// Events returns the lifecycle history, oldest first.
func (m *Manager) Events(ctx context.Context, projectID string, limit int) ([]Event, error) {
	if _, err := m.project(ctx, projectID); err != nil {
		return nil, err
	}
	evs, err := m.store.ListContainerEvents(ctx, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	out := make([]Event, 0, len(evs))
	for _, e := range evs {
		out = append(out, Event{
			ID:        e.ID,
			Action:    e.Action,
			Status:    e.Status,
			Message:   e.Message,
			ActorID:   e.ActorID,
			CreatedAt: e.CreatedAt,
		})
	}
	return out, nil
}

// Authorize returns ErrProjectNotFound unless userID owns or is a member of the project.
func (m *Manager) Authorize(ctx context.Context, projectID, userID string) error {
	p, err := m.project(ctx, projectID)
	if err != nil {
		return err
	}
	if !p.HasAccess(userID) {
		return ErrProjectNotFound
	}
	return nil
}

func (m *Manager) project(ctx context.Context, projectID string) (*store.Project, error) {
	p, err := m.store.GetProject(ctx, projectID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading project: %w", err)
	}
	return p, nil
}

// load returns the container record, ErrNotCreated, or ErrProjectNotFound.
func (m *Manager) load(ctx context.Context, projectID string) (*store.ContainerRecord, error) {
	if _, err := m.project(ctx, projectID); err != nil {
		return nil, err
	}
	rec, err := m.store.GetContainer(ctx, projectID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotCreated
	}
	if err != nil {
		return nil, fmt.Errorf("loading container: %w", err)
	}
	return rec, nil
}

func (m *Manager) create(ctx context.Context, projectID string, cfg Config) (*store.ContainerRecord, error) {
	p, err := m.project(ctx, projectID)
	if err != nil {
		return nil, err
	}
	cfg = withDefaults(cfg, p.Language, m.defaults)

	now := m.now()
	res := resources{
		Deployment: Deployment{Name: "deployment-" + projectID, AvailableReplicas: 1, TotalReplicas: 1},
		Service: Service{
			Name:      "service-" + projectID,
			ClusterIP: clusterIP,
			Ports:     []ServicePort{{Port: cfg.Port, TargetPort: cfg.Port}},
		},
		PVC:  PVC{Name: "pvc-" + projectID, Status: "Bound", Capacity: cfg.StorageSize},
		Pods: []Pod{m.newPod(projectID, now)},
	}

	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	resJSON, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("encoding resources: %w", err)
	}

	rec := &store.ContainerRecord{
		ProjectID:     projectID,
		Status:        string(StatusRunning),
		Running:       true,
		Image:         cfg.Image,
		Port:          cfg.Port,
		Config:        cfgJSON,
		Resources:     resJSON,
		CreatedAt:     now,
		LastStartedAt: &now,
	}
	if err := m.store.PutContainer(ctx, rec); err != nil {
		return nil, fmt.Errorf("saving container: %w", err)
	}

	m.dropLogs(projectID)
	m.appendLogs(projectID, m.logLine("Creating deployment %s with image %s", res.Deployment.Name, cfg.Image))
	m.appendLogs(projectID, m.logLine("Running %s", strings.Join(cfg.Command, " ")))
	m.appendLogs(projectID, m.bootLines(cfg.Image)...)

	m.logger.Info("container created", "project_id", projectID, "image", cfg.Image, "port", cfg.Port)
	return rec, nil
}

func (m *Manager) newPod(projectID string, now time.Time) Pod {
	return Pod{
		Name:      "pod-" + projectID + "-" + m.podSuffix(),
		Status:    string(StatusRunning),
		Ready:     true,
		StartedAt: now,
	}
}

func (m *Manager) startPod(ctx context.Context, rec *store.ContainerRecord) error {
	now := m.now()
	err := m.updateResources(rec, func(res *resources) {
		res.Deployment.AvailableReplicas = 1
		res.Deployment.TotalReplicas = 1
		res.Pods = []Pod{m.newPod(rec.ProjectID, now)}
	})
	if err != nil {
		return err
	}
	rec.Status = string(StatusRunning)
	rec.Running = true
	rec.LastStartedAt = &now
	if err := m.store.PutContainer(ctx, rec); err != nil {
		return fmt.Errorf("saving container: %w", err)
	}
	m.appendLogs(rec.ProjectID, m.bootLines(rec.Image)...)
	m.logger.Info("container started", "project_id", rec.ProjectID)
	return nil
}

func (m *Manager) stopPod(ctx context.Context, rec *store.ContainerRecord) error {
	err := m.updateResources(rec, func(res *resources) {
		res.Deployment.AvailableReplicas = 0
		res.Deployment.TotalReplicas = 0
		res.Pods = []Pod{}
	})
	if err != nil {
		return err
	}
	rec.Status = string(StatusStopped)
	rec.Running = false
	if err := m.store.PutContainer(ctx, rec); err != nil {
		return fmt.Errorf("saving container: %w", err)
	}
	m.appendLogs(rec.ProjectID, m.logLine("Container stopped"))
	m.logger.Info("container stopped", "project_id", rec.ProjectID)
	return nil
}

func (m *Manager) setRestartCount(ctx context.Context, rec *store.ContainerRecord, n int) error {
	err := m.updateResources(rec, func(res *resources) {
		for i := range res.Pods {
			res.Pods[i].RestartCount = n
		}
	})
	if err != nil {
		return err
	}
	if err := m.store.PutContainer(ctx, rec); err != nil {
		return fmt.Errorf("saving container: %w", err)
	}
	return nil
}

func (m *Manager) updateResources(rec *store.ContainerRecord, fn func(*resources)) error {
	var res resources
	if err := json.Unmarshal(rec.Resources, &res); err != nil {
		return fmt.Errorf("decoding resources: %w", err)
	}
	fn(&res)
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encoding resources: %w", err)
	}
	rec.Resources = data
	return nil
}

// record appends a lifecycle event and an audit entry. Failures are logged.
func (m *Manager) record(ctx context.Context, projectID, actorID string, action Action, rec *store.ContainerRecord, message string) {
	status := string(StatusNotCreated)
	if rec != nil {
		status = rec.Status
	}

	ev := &store.ContainerEvent{
		ProjectID: projectID,
		ActorID:   actorID,
		Action:    string(action),
		Status:    status,
		Message:   message,
		CreatedAt: m.now(),
	}
	if err := m.store.AppendContainerEvent(ctx, ev); err != nil {
		m.logger.Warn("recording container event failed", "project_id", projectID, "action", action, "error", err)
	}

	entry := &store.AuditEntry{
		ActorID:    actorID,
		Action:     store.AuditContainerAction,
		TargetType: "container",
		TargetID:   projectID,
		Detail:     map[string]any{"action": string(action), "status": status},
	}
	if err := m.store.AppendAuditLog(ctx, entry); err != nil {
		m.logger.Warn("audit append failed", "project_id", projectID, "action", action, "error", err)
	}
}

func (m *Manager) toState(rec *store.ContainerRecord) *State {
	st := &State{
		Exists:        true,
		Status:        Status(rec.Status),
		Running:       rec.Running,
		Image:         rec.Image,
		Port:          rec.Port,
		LastStartedAt: rec.LastStartedAt,
	}
	created := rec.CreatedAt
	st.CreatedAt = &created

	var res resources
	if err := json.Unmarshal(rec.Resources, &res); err != nil {
		m.logger.Warn("decoding container resources failed", "project_id", rec.ProjectID, "error", err)
		return st
	}
	now := m.now()
	for i := range res.Pods {
		res.Pods[i].Age = formatAge(now.Sub(res.Pods[i].StartedAt))
	}
	st.Deployment = &res.Deployment
	st.Service = &res.Service
	st.PVC = &res.PVC
	st.Pods = res.Pods
	if st.Pods == nil {
		st.Pods = []Pod{}
	}
	return st
}

func (m *Manager) ring(projectID string) *logRing {
	m.logsMu.Lock()
	defer m.logsMu.Unlock()
	r, ok := m.logs[projectID]
	if !ok {
		r = newLogRing(m.defaults.LogLines)
		m.logs[projectID] = r
	}
	return r
}

func (m *Manager) appendLogs(projectID string, lines ...string) {
	r := m.ring(projectID)
	m.logsMu.Lock()
	r.append(lines...)
	m.logsMu.Unlock()
}

func (m *Manager) dropLogs(projectID string) {
	m.logsMu.Lock()
	delete(m.logs, projectID)
	m.logsMu.Unlock()
}

func (m *Manager) logLine(format string, args ...any) string {
	return m.now().Format(time.RFC3339) + " " + fmt.Sprintf(format, args...)
}

func (m *Manager) bootLines(image string) []string {
	return []string{
		m.logLine("Started container from %s", image),
		"Hello from a container!",
		"This is a mock log message.",
	}
}
