// ABOUTME: Store interfaces and data types for vibecode-gateway persistence
// ABOUTME: Defines User, Project, container records, and the Store interface

package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when inserting an entity whose ID is already taken
var ErrDuplicate = errors.New("already exists")

// User is an identity that has signed in through an OAuth provider or local login
type User struct {
	ID          string
	Provider    string // "github", "google", "local"
	Username    string
	Email       string
	FullName    string
	AvatarURL   string
	CreatedAt   time.Time
	LastLoginAt time.Time
}

// Project is a workspace owned by a user and shared with members
type Project struct {
	ID            string
	Name          string
	Description   string
	Language      string
	RepositoryURL string
	OwnerID       string
	Members       []string
	Tags          []string
	Status        string // "active" unless archived
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// HasAccess reports whether userID owns or is a member of the project.
func (p *Project) HasAccess(userID string) bool {
	if p.OwnerID == userID {
		return true
	}
	for _, m := range p.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// ContainerRecord is the persisted state of a project's simulated container.
// Resources holds the deployment/service/pvc/pod descriptors as JSON.
type ContainerRecord struct {
	ProjectID     string
	Status        string
	Running       bool
	Image         string
	Port          int
	Config        json.RawMessage
	Resources     json.RawMessage
	CreatedAt     time.Time
	LastStartedAt *time.Time
	UpdatedAt     time.Time
}

// ContainerEvent is one entry in a project's container lifecycle history
type ContainerEvent struct {
	ID        string
	ProjectID string
	ActorID   string
	Action    string
	Status    string // status after the action
	Message   string
	CreatedAt time.Time
}

// UserStore persists signed-in identities
type UserStore interface {
	UpsertUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, id string) (*User, error)
}

// ProjectStore persists projects
type ProjectStore interface {
	CreateProject(ctx context.Context, p *Project) error
	GetProject(ctx context.Context, id string) (*Project, error)
	ListProjects(ctx context.Context, userID string) ([]*Project, error)
	UpdateProject(ctx context.Context, p *Project) error
	DeleteProject(ctx context.Context, id string) error
}

// ContainerStore persists container state and lifecycle history
type ContainerStore interface {
	PutContainer(ctx context.Context, c *ContainerRecord) error
	GetContainer(ctx context.Context, projectID string) (*ContainerRecord, error)
	DeleteContainer(ctx context.Context, projectID string) error
	AppendContainerEvent(ctx context.Context, e *ContainerEvent) error
	ListContainerEvents(ctx context.Context, projectID string, limit int) ([]*ContainerEvent, error)
}

// AuditStore records who did what to which resource
type AuditStore interface {
	AppendAuditLog(ctx context.Context, e *AuditEntry) error
	ListAuditLog(ctx context.Context, filter AuditFilter) ([]AuditEntry, error)
}

// Store is the complete persistence surface of the gateway
type Store interface {
	UserStore
	ProjectStore
	ContainerStore
	AuditStore
	Ping(ctx context.Context) error
	Close() error
}
