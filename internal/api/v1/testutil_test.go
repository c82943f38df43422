package v1_test

import (
	"context"
	"encoding/json"
	stdsync "sync"

	"github.com/google/uuid"

	"github.com/callboard/callboard/internal/domain"
	"github.com/callboard/callboard/internal/server/middleware"
	"github.com/callboard/callboard/internal/sync"
)

// ---------------------------------------------------------------------------
// Context helpers — inject the authenticated user for DoCtx
// ---------------------------------------------------------------------------

func userCtx(userID uuid.UUID) context.Context {
	ctx := context.Background()
	ctx = context.WithValue(ctx, middleware.ContextKeyUserID, userID)
	return ctx
}

// ---------------------------------------------------------------------------
// Mock DataStore
// ---------------------------------------------------------------------------

type mockDataStore struct {
	workspaces domain.WorkspaceRepository
	objects    domain.CanvasObjectRepository
}

func (m *mockDataStore) Workspaces() domain.WorkspaceRepository { return m.workspaces }
func (m *mockDataStore) Objects() domain.CanvasObjectRepository { return m.objects }

// ---------------------------------------------------------------------------
// Mock WorkspaceRepository
// ---------------------------------------------------------------------------

type mockWorkspaceRepo struct {
	createFunc  func(ctx context.Context, w *domain.Workspace) error
	getByIDFunc func(ctx context.Context, id uuid.UUID) (*domain.Workspace, error)
	listFunc    func(ctx context.Context, orderBy domain.Order) ([]*domain.Workspace, error)
	renameFunc  func(ctx context.Context, id uuid.UUID, name string) (*domain.Workspace, error)
	deleteFunc  func(ctx context.Context, id uuid.UUID) error
}

func (m *mockWorkspaceRepo) Create(ctx context.Context, w *domain.Workspace) error {
	return m.createFunc(ctx, w)
}

func (m *mockWorkspaceRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Workspace, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockWorkspaceRepo) List(ctx context.Context, orderBy domain.Order) ([]*domain.Workspace, error) {
	return m.listFunc(ctx, orderBy)
}

func (m *mockWorkspaceRepo) Rename(ctx context.Context, id uuid.UUID, name string) (*domain.Workspace, error) {
	return m.renameFunc(ctx, id, name)
}

func (m *mockWorkspaceRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return m.deleteFunc(ctx, id)
}

// ---------------------------------------------------------------------------
// Mock CanvasObjectRepository
// ---------------------------------------------------------------------------

type mockObjectRepo struct {
	createFunc          func(ctx context.Context, o *domain.CanvasObject) error
	getByIDFunc         func(ctx context.Context, workspaceID, id uuid.UUID) (*domain.CanvasObject, error)
	listByWorkspaceFunc func(ctx context.Context, workspaceID uuid.UUID) ([]*domain.CanvasObject, error)
	filterFunc          func(ctx context.Context, workspaceID uuid.UUID, f domain.ObjectFilter) ([]*domain.CanvasObject, error)
	updateFunc          func(ctx context.Context, workspaceID, id uuid.UUID, patch domain.ObjectPatch) (*domain.CanvasObject, error)
	deleteFunc          func(ctx context.Context, workspaceID, id uuid.UUID) error
	sweepOrphansFunc    func(ctx context.Context, workspaceID uuid.UUID) (int64, error)
}

func (m *mockObjectRepo) Create(ctx context.Context, o *domain.CanvasObject) error {
	return m.createFunc(ctx, o)
}

func (m *mockObjectRepo) GetByID(ctx context.Context, workspaceID, id uuid.UUID) (*domain.CanvasObject, error) {
	return m.getByIDFunc(ctx, workspaceID, id)
}

func (m *mockObjectRepo) ListByWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]*domain.CanvasObject, error) {
	return m.listByWorkspaceFunc(ctx, workspaceID)
}

func (m *mockObjectRepo) Filter(ctx context.Context, workspaceID uuid.UUID, f domain.ObjectFilter) ([]*domain.CanvasObject, error) {
	return m.filterFunc(ctx, workspaceID, f)
}

func (m *mockObjectRepo) Update(ctx context.Context, workspaceID, id uuid.UUID, patch domain.ObjectPatch) (*domain.CanvasObject, error) {
	return m.updateFunc(ctx, workspaceID, id, patch)
}

func (m *mockObjectRepo) Delete(ctx context.Context, workspaceID, id uuid.UUID) error {
	return m.deleteFunc(ctx, workspaceID, id)
}

func (m *mockObjectRepo) SweepOrphans(ctx context.Context, workspaceID uuid.UUID) (int64, error) {
	return m.sweepOrphansFunc(ctx, workspaceID)
}

// ---------------------------------------------------------------------------
// Mock Publisher — records broadcast events for assertions
// ---------------------------------------------------------------------------

type mockPublisher struct {
	mu     stdsync.Mutex
	err    error
	events []sync.Event
}

func (m *mockPublisher) Publish(_ context.Context, _ string, payload []byte) error {
	if m.err != nil {
		return m.err
	}
	var ev sync.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return err
	}
	m.mu.Lock()
	m.events = append(m.events, ev)
	m.mu.Unlock()
	return nil
}

func (m *mockPublisher) published() []sync.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]sync.Event, len(m.events))
	copy(out, m.events)
	return out
}
