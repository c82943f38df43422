package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/callboard/callboard/internal/domain"
)

type Store struct {
	pool       *pgxpool.Pool
	workspaces *WorkspaceRepo
	objects    *ObjectRepo
}

func New(ctx context.Context, dsn string, maxConns int32) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: parse config: %w", err)
	}

	cfg.MaxConns = maxConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: connect: %w", err)
	}

	err = pool.Ping(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres.New: ping: %w", err)
	}

	return &Store{
		pool:       pool,
		workspaces: NewWorkspaceRepo(pool),
		objects:    NewObjectRepo(pool),
	}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// Migrate brings the schema up to date. Safe to run on every start.
func (s *Store) Migrate(ctx context.Context) error {
	return RunMigrations(ctx, s.pool)
}

func (s *Store) Workspaces() domain.WorkspaceRepository { return s.workspaces }
func (s *Store) Objects() domain.CanvasObjectRepository { return s.objects }

// infraErr wraps a driver error so callers can distinguish "the backend
// is unreachable" from domain failures via domain.ErrUnavailable.
func infraErr(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(domain.ErrUnavailable, err))
}

// orderClause maps an Order onto a whitelisted column, falling back when
// no field is requested. Unknown fields surface domain.ErrValidation
// instead of reaching the SQL layer.
func orderClause(o domain.Order, columns map[string]string, fallback string) (string, error) {
	if o.IsZero() {
		return fallback, nil
	}
	col, ok := columns[o.Field]
	if !ok {
		return "", fmt.Errorf("order by %q: %w", o.Field, domain.ErrValidation)
	}
	if o.Desc {
		return col + " DESC", nil
	}
	return col + " ASC", nil
}
