// Package sql provides a dao.Store on database/sql for sqlite and postgres.
//
// Dedup relies on INSERT ... ON CONFLICT DO NOTHING; Transition is an
// optimistic UPDATE guarded by the instance revision.
package sql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/viant/intake/model/submission"
	"github.com/viant/intake/model/workflow"
	"github.com/viant/intake/service/dao"
	"github.com/viant/intake/service/dao/criteria"
	"github.com/viant/intake/service/identity"
)

// timeLayout sorts lexicographically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// maxAttempts bounds optimistic retries when a concurrent writer bumps the revision.
const maxAttempts = 5

const instanceColumns = "id, identity, state, revision, deadline_at, created_at, body"

// Service implements dao.Store on database/sql.
type Service struct {
	db      *sql.DB
	dialect Dialect
	logger  *slog.Logger
}

var _ dao.Store = (*Service)(nil)

// Open connects to dsn with the dialect driver and migrates the schema.
func Open(ctx context.Context, dialectName, dsn string) (*Service, error) {
	dialect, err := LookupDialect(dialectName)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(dialect.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %v database: %w", dialect.Name, err)
	}
	if dialect.Name == SQLite.Name {
		// one writer; also keeps :memory: databases on a single connection
		db.SetMaxOpenConns(1)
	}
	ret := New(db, dialect)
	if err := ret.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return ret, nil
}

// New wraps an open database.
func New(db *sql.DB, dialect Dialect) *Service {
	return &Service{db: db, dialect: dialect, logger: slog.Default().With("component", "dao.sql", "dialect", dialect.Name)}
}

// Migrate creates missing tables.
func (s *Service) Migrate(ctx context.Context) error {
	for _, statement := range schema {
		if _, err := s.db.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("failed to migrate schema: %w", err)
		}
	}
	return nil
}

// PutIfAbsent stores s unless identity is already present.
func (s *Service) PutIfAbsent(ctx context.Context, id identity.Identity, sub *submission.Submission) (bool, error) {
	if !id.Valid() {
		return false, dao.ErrInvalidID
	}
	if sub == nil {
		return false, dao.ErrNilEntity
	}
	body, err := json.Marshal(sub)
	if err != nil {
		return false, fmt.Errorf("failed to marshal submission: %w", err)
	}
	query := s.dialect.Rebind(`INSERT INTO intake_submissions (identity, body, received_at) VALUES (?, ?, ?) ON CONFLICT DO NOTHING`)
	result, err := s.db.ExecContext(ctx, query, string(id), string(body), formatTime(sub.ReceivedAt()))
	if err != nil {
		return false, fmt.Errorf("failed to insert submission: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// LoadSubmission returns the submission stored under id.
func (s *Service) LoadSubmission(ctx context.Context, id identity.Identity) (*submission.Submission, error) {
	var body string
	query := s.dialect.Rebind(`SELECT body FROM intake_submissions WHERE identity = ?`)
	if err := s.db.QueryRowContext(ctx, query, string(id)).Scan(&body); err != nil {
		return nil, notFound(err)
	}
	ret := &submission.Submission{}
	if err := json.Unmarshal([]byte(body), ret); err != nil {
		return nil, fmt.Errorf("failed to unmarshal submission: %w", err)
	}
	return ret, nil
}

// Create persists a new instance.
func (s *Service) Create(ctx context.Context, instance *workflow.Instance) error {
	if instance == nil {
		return dao.ErrNilEntity
	}
	if instance.ID == "" {
		return dao.ErrInvalidID
	}
	body, err := json.Marshal(instance)
	if err != nil {
		return fmt.Errorf("failed to marshal instance: %w", err)
	}
	query := s.dialect.Rebind(`INSERT INTO intake_instances (` + instanceColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?) ON CONFLICT DO NOTHING`)
	result, err := s.db.ExecContext(ctx, query, instance.ID, string(instance.Identity), string(instance.State),
		instance.Revision, formatDeadline(instance.DeadlineAt), formatTime(instance.CreatedAt), string(body))
	if err != nil {
		return fmt.Errorf("failed to insert instance: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return dao.ErrDuplicate
	}
	return nil
}

// Load returns the instance.
func (s *Service) Load(ctx context.Context, id string) (*workflow.Instance, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	return s.queryOne(ctx, `SELECT `+instanceColumns+` FROM intake_instances WHERE id = ?`, id)
}

// LoadByIdentity returns the instance created for identity.
func (s *Service) LoadByIdentity(ctx context.Context, id identity.Identity) (*workflow.Instance, error) {
	return s.queryOne(ctx, `SELECT `+instanceColumns+` FROM intake_instances WHERE identity = ?`, string(id))
}

// List returns matching instances ordered by creation time. State filters run
// in SQL, the rest in memory.
func (s *Service) List(ctx context.Context, parameters ...*dao.Parameter) ([]*workflow.Instance, error) {
	query := `SELECT ` + instanceColumns + ` FROM intake_instances`
	var args []interface{}
	if states := dao.States(parameters); len(states) > 0 {
		placeholders := make([]string, len(states))
		for i, state := range states {
			placeholders[i] = "?"
			args = append(args, state)
		}
		query += ` WHERE state IN (` + strings.Join(placeholders, ", ") + `)`
	}
	query += ` ORDER BY created_at, id`
	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var ret []*workflow.Instance
	for rows.Next() {
		instance, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}
		if criteria.Match(instance, parameters) {
			ret = append(ret, instance)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	dao.SortInstances(ret)
	return ret, nil
}

// Transition is the compare-and-swap on a single instance.
func (s *Service) Transition(ctx context.Context, id string, expect dao.Expectation, mutate dao.Mutation) (*workflow.Instance, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		current, err := s.Load(ctx, id)
		if err != nil {
			return nil, err
		}
		next, err := dao.Apply(current, expect, mutate)
		if err != nil {
			return nil, err
		}
		body, err := json.Marshal(next)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal instance: %w", err)
		}
		query := s.dialect.Rebind(`UPDATE intake_instances SET state = ?, revision = ?, deadline_at = ?, body = ? WHERE id = ? AND revision = ?`)
		result, err := s.db.ExecContext(ctx, query, string(next.State), next.Revision, formatDeadline(next.DeadlineAt), string(body), id, current.Revision)
		if err != nil {
			return nil, fmt.Errorf("failed to update instance %v: %w", id, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return nil, err
		}
		if affected == 1 {
			return next, nil
		}
		s.logger.Debug("instance revision moved, retrying", "id", id, "revision", current.Revision, "attempt", attempt+1)
	}
	return nil, fmt.Errorf("instance %v: %w", id, dao.ErrConflict)
}

// BindToken maps tokenHash to instanceID.
func (s *Service) BindToken(ctx context.Context, tokenHash, instanceID string) error {
	if tokenHash == "" || instanceID == "" {
		return dao.ErrInvalidID
	}
	query := s.dialect.Rebind(`INSERT INTO intake_tokens (token_hash, instance_id) VALUES (?, ?) ON CONFLICT (token_hash) DO UPDATE SET instance_id = excluded.instance_id`)
	if _, err := s.db.ExecContext(ctx, query, tokenHash, instanceID); err != nil {
		return fmt.Errorf("failed to bind token: %w", err)
	}
	return nil
}

// ResolveToken returns the instance id bound to tokenHash.
func (s *Service) ResolveToken(ctx context.Context, tokenHash string) (string, error) {
	var id string
	query := s.dialect.Rebind(`SELECT instance_id FROM intake_tokens WHERE token_hash = ?`)
	if err := s.db.QueryRowContext(ctx, query, tokenHash).Scan(&id); err != nil {
		return "", notFound(err)
	}
	return id, nil
}

// RevokeToken removes tokenHash; revoking an unknown hash is a no-op.
func (s *Service) RevokeToken(ctx context.Context, tokenHash string) error {
	query := s.dialect.Rebind(`DELETE FROM intake_tokens WHERE token_hash = ?`)
	if _, err := s.db.ExecContext(ctx, query, tokenHash); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Service) Close() error {
	return s.db.Close()
}

func (s *Service) queryOne(ctx context.Context, query string, args ...interface{}) (*workflow.Instance, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.Rebind(query), args...)
	return scanInstance(row)
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanInstance(row scanner) (*workflow.Instance, error) {
	var (
		id, ident, state, createdAt, body string
		revision                          int
		deadline                          sql.NullString
	)
	if err := row.Scan(&id, &ident, &state, &revision, &deadline, &createdAt, &body); err != nil {
		return nil, notFound(err)
	}
	instance := &workflow.Instance{}
	if err := json.Unmarshal([]byte(body), instance); err != nil {
		return nil, fmt.Errorf("failed to unmarshal instance %v: %w", id, err)
	}
	// columns are authoritative for CAS fields
	instance.ID = id
	instance.State = workflow.State(state)
	instance.Revision = revision
	instance.Identity = identity.Identity(ident)
	return instance, nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return dao.ErrNotFound
	}
	return err
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatDeadline(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}
