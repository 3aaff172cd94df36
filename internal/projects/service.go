// ABOUTME: Project service: owner/member scoped CRUD over the store with audit logging
// ABOUTME: Applies create defaults, partial updates, demo seeding, and container cleanup on delete

package projects

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/gigahard/vibecode-gateway/internal/store"
)

// Create defaults for fields the client leaves empty.
const (
	DefaultName        = "New Project"
	DefaultDescription = "A new project"
	DefaultLanguage    = "Unknown"
)

// ErrNotFound is returned for missing projects and for projects the caller cannot access.
var ErrNotFound = errors.New("project not found")

// Store is the persistence the service needs.
type Store interface {
	store.ProjectStore
	store.AuditStore
}

// ContainerRemover tears down a project's container when the project is deleted.
type ContainerRemover interface {
	Remove(ctx context.Context, projectID string) error
}

// CreateInput holds client-supplied fields for a new project.
type CreateInput struct {
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	Language      string   `json:"language"`
	RepositoryURL string   `json:"repository_url"`
	Tags          []string `json:"tags"`
}

// UpdateInput holds a partial update. Nil fields are left unchanged.
type UpdateInput struct {
	Name          *string  `json:"name"`
	Description   *string  `json:"description"`
	Language      *string  `json:"language"`
	RepositoryURL *string  `json:"repository_url"`
	Members       []string `json:"members"`
	Tags          []string `json:"tags"`
}

// Service implements project operations on behalf of a signed-in user.
type Service struct {
	store      Store
	containers ContainerRemover
	logger     *slog.Logger
	newID      func() string

	seedDemo bool
	seeded   atomic.Bool
}

// NewService creates a project service. containers may be nil.
func NewService(s Store, containers ContainerRemover, seedDemo bool, logger *slog.Logger) *Service {
	return &Service{
		store:      s,
		containers: containers,
		logger:     logger.With("component", "projects"),
		newID:      uuid.NewString,
		seedDemo:   seedDemo,
	}
}

// List returns the projects userID owns or is a member of.
func (s *Service) List(ctx context.Context, userID string) ([]*store.Project, error) {
	if s.seedDemo && s.seeded.CompareAndSwap(false, true) {
		if err := s.seed(ctx, userID); err != nil {
			s.logger.Warn("seeding demo projects failed", "user_id", userID, "error", err)
		}
	}
	return s.store.ListProjects(ctx, userID)
}

// Get returns a project if userID may access it.
func (s *Service) Get(ctx context.Context, userID, id string) (*store.Project, error) {
	p, err := s.store.GetProject(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if !p.HasAccess(userID) {
		return nil, ErrNotFound
	}
	return p, nil
}

// Create stores a new project owned by userID.
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*store.Project, error) {
	p := &store.Project{
		ID:            s.newID(),
		Name:          orDefault(in.Name, DefaultName),
		Description:   orDefault(in.Description, DefaultDescription),
		Language:      orDefault(in.Language, DefaultLanguage),
		RepositoryURL: strings.TrimSpace(in.RepositoryURL),
		OwnerID:       userID,
		Members:       []string{userID},
		Tags:          in.Tags,
	}
	if err := s.store.CreateProject(ctx, p); err != nil {
		return nil, fmt.Errorf("creating project: %w", err)
	}

	s.audit(ctx, userID, store.AuditCreateProject, p.ID, map[string]any{"name": p.Name})
	s.logger.Info("project created", "project_id", p.ID, "owner_id", userID)
	return p, nil
}

// Update applies a partial update to a project userID may access.
// The owner always stays a member.
func (s *Service) Update(ctx context.Context, userID, id string, in UpdateInput) (*store.Project, error) {
	p, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	changed := []string{}
	if in.Name != nil && *in.Name != "" {
		p.Name = *in.Name
		changed = append(changed, "name")
	}
	if in.Description != nil && *in.Description != "" {
		p.Description = *in.Description
		changed = append(changed, "description")
	}
	if in.Language != nil && *in.Language != "" {
		p.Language = *in.Language
		changed = append(changed, "language")
	}
	if in.RepositoryURL != nil {
		p.RepositoryURL = strings.TrimSpace(*in.RepositoryURL)
		changed = append(changed, "repository_url")
	}
	if in.Members != nil {
		p.Members = withOwner(p.OwnerID, in.Members)
		changed = append(changed, "members")
	}
	if in.Tags != nil {
		p.Tags = in.Tags
		changed = append(changed, "tags")
	}

	if err := s.store.UpdateProject(ctx, p); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("updating project: %w", err)
	}

	s.audit(ctx, userID, store.AuditUpdateProject, p.ID, map[string]any{"fields": changed})
	return p, nil
}

// Delete removes a project and its container.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}

	if s.containers != nil {
		if err := s.containers.Remove(ctx, id); err != nil {
			return fmt.Errorf("removing container: %w", err)
		}
	}
	if err := s.store.DeleteProject(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("deleting project: %w", err)
	}

	s.audit(ctx, userID, store.AuditDeleteProject, id, nil)
	s.logger.Info("project deleted", "project_id", id, "actor_id", userID)
	return nil
}

var demoProjects = []CreateInput{
	{Name: "Mock Project 1", Description: "This is a mock project for development", Language: "Python"},
	{Name: "Mock Project 2", Description: "Another mock project for development", Language: "JavaScript"},
}

func (s *Service) seed(ctx context.Context, userID string) error {
	existing, err := s.store.ListProjects(ctx, userID)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	for _, in := range demoProjects {
		if _, err := s.Create(ctx, userID, in); err != nil {
			return err
		}
	}
	s.logger.Info("seeded demo projects", "user_id", userID)
	return nil
}

func (s *Service) audit(ctx context.Context, actorID string, action store.AuditAction, projectID string, detail map[string]any) {
	entry := &store.AuditEntry{
		ActorID:    actorID,
		Action:     action,
		TargetType: "project",
		TargetID:   projectID,
		Detail:     detail,
	}
	if err := s.store.AppendAuditLog(ctx, entry); err != nil {
		s.logger.Warn("audit append failed", "action", action, "project_id", projectID, "error", err)
	}
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func withOwner(owner string, members []string) []string {
	out := []string{owner}
	seen := map[string]bool{owner: true}
	for _, m := range members {
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}
