package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/atelier-agent-org/atelier-agent/pkg/runtime"
	"github.com/atelier-agent-org/atelier-agent/pkg/types"
	"github.com/atelier-agent-org/atelier-agent/pkg/vfs"
)

// ErrSessionNotFound is returned when a session is not found.
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionBusy is returned when a goal is posted to a session that is
// still working on the previous one.
var ErrSessionBusy = errors.New("session is busy")

// SessionResources contains the per-session runtime dependencies.
type SessionResources struct {
	Runtime *runtime.Runtime
	Project *vfs.Project
	Ctx     context.Context
	Cancel  context.CancelFunc
}

// SessionFactory creates per-session runtime resources.
type SessionFactory func(projectID string) (*SessionResources, error)

// Session represents one project's agent session.
type Session struct {
	ID        string
	ProjectID string
	CreatedAt time.Time
	Resources *SessionResources

	mu        sync.Mutex
	status    string
	lastError string
}

// Status returns the current status and last error of the session.
func (s *Session) Status() (status string, lastError string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status, s.lastError
}

// SessionService manages sessions.
type SessionService struct {
	factory  SessionFactory
	sessions sync.Map // map[string]*Session
	log      *slog.Logger
}

// NewSessionService creates a new SessionService.
func NewSessionService(factory SessionFactory, log *slog.Logger) *SessionService {
	if log == nil {
		log = slog.Default()
	}
	return &SessionService{
		factory: factory,
		log:     log,
	}
}

// Create opens a session for the project and, when goal is non-empty,
// starts working on it in the background.
func (s *SessionService) Create(ctx context.Context, projectID, goal string) (*Session, error) {
	resources, err := s.factory(projectID)
	if err != nil {
		s.log.Error("failed to create session resources", "project", projectID, "error", err)
		return nil, err
	}

	session := &Session{
		ID:        types.GenerateSessionID(),
		ProjectID: projectID,
		CreatedAt: time.Now(),
		Resources: resources,
		status:    "idle",
	}
	s.sessions.Store(session.ID, session)

	if goal != "" {
		session.mu.Lock()
		session.status = "running"
		session.mu.Unlock()
		go s.runGoal(session, goal)
	}
	return session, nil
}

// Get returns a session by ID.
func (s *SessionService) Get(id string) (*Session, error) {
	val, ok := s.sessions.Load(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return val.(*Session), nil
}

// List returns all sessions.
func (s *SessionService) List() []*Session {
	var result []*Session
	s.sessions.Range(func(_, v any) bool {
		result = append(result, v.(*Session))
		return true
	})
	return result
}

// Delete cancels and removes a session.
func (s *SessionService) Delete(id string) error {
	val, ok := s.sessions.Load(id)
	if !ok {
		return ErrSessionNotFound
	}
	val.(*Session).Resources.Cancel()
	s.sessions.Delete(id)
	return nil
}

// Cancel stops a running session's work.
func (s *SessionService) Cancel(id string) error {
	session, err := s.Get(id)
	if err != nil {
		return err
	}
	session.Resources.Cancel()

	session.mu.Lock()
	session.status = "cancelled"
	session.mu.Unlock()
	return nil
}

// Goal posts a new user goal to an existing session.
func (s *SessionService) Goal(id, goal string) (*Session, error) {
	session, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	session.mu.Lock()
	if session.status == "running" {
		session.mu.Unlock()
		return nil, ErrSessionBusy
	}
	session.status = "running"
	session.lastError = ""
	session.mu.Unlock()

	go s.runGoal(session, goal)
	return session, nil
}

// Messages returns the session's conversation transcript.
func (s *SessionService) Messages(id string) ([]types.Message, error) {
	session, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	return session.Resources.Runtime.Messages(), nil
}

// ListCheckpoints returns the session's checkpoints in timestamp order.
func (s *SessionService) ListCheckpoints(id string) ([]types.Checkpoint, error) {
	session, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	return session.Resources.Runtime.Checkpoints(), nil
}

// Rewind restores the session to a checkpoint, discarding later ones.
func (s *SessionService) Rewind(ctx context.Context, id, checkpointID string) error {
	session, err := s.Get(id)
	if err != nil {
		return err
	}

	session.mu.Lock()
	if session.status == "running" {
		session.mu.Unlock()
		return ErrSessionBusy
	}
	session.mu.Unlock()

	return session.Resources.Runtime.Rewind(ctx, checkpointID)
}

// ListFiles returns the project's files, optionally filtered by a glob
// pattern.
func (s *SessionService) ListFiles(id, pattern string) ([]types.FileRecord, error) {
	session, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	return session.Resources.Project.List(pattern)
}

// GetFile returns one project file.
func (s *SessionService) GetFile(id, path string) (types.FileRecord, error) {
	session, err := s.Get(id)
	if err != nil {
		return types.FileRecord{}, err
	}
	rec, err := session.Resources.Project.Read(path)
	if err != nil {
		return types.FileRecord{}, fmt.Errorf("file %s: %w", path, err)
	}
	return rec, nil
}

// runGoal runs one goal to completion in the background.
func (s *SessionService) runGoal(sess *Session, goal string) {
	_, err := sess.Resources.Runtime.Run(sess.Resources.Ctx, goal)

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.status == "cancelled" {
		return
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			sess.status = "cancelled"
			return
		}
		sess.status = "error"
		sess.lastError = err.Error()
		return
	}
	sess.status = "completed"
}
