// ABOUTME: Container state, config, and resource descriptor types
// ABOUTME: Mirrors the deployment/service/pvc/pod shape the web client renders

package containers

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// Status is the lifecycle state of a project container.
type Status string

const (
	StatusNotCreated Status = "Not Created"
	StatusRunning    Status = "Running"
	StatusStopped    Status = "Stopped"
)

// Action is a lifecycle operation accepted by the action endpoint.
type Action string

const (
	ActionCreate  Action = "create"
	ActionStart   Action = "start"
	ActionStop    Action = "stop"
	ActionRestart Action = "restart"
	ActionLogs    Action = "logs"
	ActionStatus  Action = "status"
	ActionDelete  Action = "delete"
)

// ValidActions lists actions in the order they are reported to clients.
var ValidActions = []Action{ActionCreate, ActionStart, ActionStop, ActionRestart, ActionLogs, ActionStatus, ActionDelete}

var (
	// ErrNotCreated is returned by operations that need an existing container.
	ErrNotCreated = errors.New("container resources don't exist")
	// ErrProjectNotFound is returned when the owning project does not exist.
	ErrProjectNotFound = errors.New("project not found")
	// ErrInvalidAction is returned for an action outside ValidActions.
	ErrInvalidAction = errors.New("invalid action")
)

// ParseAction validates a client-supplied action name.
func ParseAction(s string) (Action, error) {
	for _, a := range ValidActions {
		if string(a) == s {
			return a, nil
		}
	}
	return "", ErrInvalidAction
}

// InvalidActionMessage is the client-facing message for an unknown action.
func InvalidActionMessage(action string) string {
	names := make([]string, len(ValidActions))
	for i, a := range ValidActions {
		names[i] = string(a)
	}
	return "Invalid action: " + action + ". Valid actions are: " + strings.Join(names, ", ")
}

// EnvVar is one environment variable passed to the container.
type EnvVar struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Config describes how to run a project container. Empty fields take
// language or gateway defaults.
type Config struct {
	Image       string   `json:"image,omitempty"`
	Port        int      `json:"port,omitempty"`
	Command     []string `json:"command,omitempty"`
	Args        []string `json:"args,omitempty"`
	EnvVars     []EnvVar `json:"env_vars,omitempty"`
	CPULimit    string   `json:"cpu_limit,omitempty"`
	MemoryLimit string   `json:"memory_limit,omitempty"`
	StorageSize string   `json:"storage_size,omitempty"`
}

// Deployment describes the simulated deployment.
type Deployment struct {
	Name              string `json:"name"`
	AvailableReplicas int    `json:"available_replicas"`
	TotalReplicas     int    `json:"total_replicas"`
}

// ServicePort maps a service port to the container port.
type ServicePort struct {
	Port       int `json:"port"`
	TargetPort int `json:"target_port"`
}

// Service describes the simulated cluster service.
type Service struct {
	Name      string        `json:"name"`
	ClusterIP string        `json:"cluster_ip"`
	Ports     []ServicePort `json:"ports"`
}

// PVC describes the simulated persistent volume claim.
type PVC struct {
	Name     string `json:"name"`
	Status   string `json:"status"`
	Capacity string `json:"capacity"`
}

// Pod describes one simulated pod.
type Pod struct {
	Name         string    `json:"name"`
	Status       string    `json:"status"`
	Ready        bool      `json:"ready"`
	RestartCount int       `json:"restart_count"`
	Age          string    `json:"age"`
	StartedAt    time.Time `json:"started_at"`
}

// resources is the persisted form of the descriptors.
type resources struct {
	Deployment Deployment `json:"deployment"`
	Service    Service    `json:"service"`
	PVC        PVC        `json:"pvc"`
	Pods       []Pod      `json:"pods"`
}

// State is the container view returned to clients.
type State struct {
	Exists        bool        `json:"exists"`
	Status        Status      `json:"status"`
	Running       bool        `json:"running"`
	Deployment    *Deployment `json:"deployment,omitempty"`
	Service       *Service    `json:"service,omitempty"`
	PVC           *PVC        `json:"pvc,omitempty"`
	Pods          []Pod       `json:"pods,omitempty"`
	Image         string      `json:"image,omitempty"`
	Port          int         `json:"port,omitempty"`
	CreatedAt     *time.Time  `json:"created_at,omitempty"`
	LastStartedAt *time.Time  `json:"last_started_at,omitempty"`
}

// notCreated is the state reported for a project without a container.
func notCreated() *State {
	return &State{Exists: false, Status: StatusNotCreated, Running: false}
}

// Event is one lifecycle history entry.
type Event struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	ActorID   string    `json:"actor_id"`
	CreatedAt time.Time `json:"created_at"`
}

// formatAge renders a duration the way kubectl does: 45s, 12m, 3h, 2d.
func formatAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return strconv.Itoa(int(d.Seconds())) + "s"
	case d < time.Hour:
		return strconv.Itoa(int(d.Minutes())) + "m"
	case d < 48*time.Hour:
		return strconv.Itoa(int(d.Hours())) + "h"
	default:
		return strconv.Itoa(int(d.Hours()/24)) + "d"
	}
}
