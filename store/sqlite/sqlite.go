/*
Package sqlite provides a SQLite-backed implementation of timeoff.Store.

PURPOSE:
  Persists policies, the employee directory, requests and their status
  history. In production the same patterns apply to PostgreSQL with only
  minor SQL dialect differences.

KEY TABLES:
  policies:               Policy catalog
  employees:              Directory records (department, assigned policy)
  requests:               Time-off requests; never deleted
  request_status_history: Append-only audit of every status change

COMPARE-AND-SWAP:
  Status changes run

    UPDATE requests SET ... WHERE id = ? AND version = ?

  inside a transaction that also inserts the history row. Zero rows
  affected means another writer won (ErrConcurrentModification) or the
  request does not exist (NotFoundError). The history row is only written
  when the update applied, so the audit trail never shows a lost race.

CONCURRENCY:
  Uses sync.RWMutex around the connection, and SQLite's own locking
  underneath. The version check is what makes transitions safe; the mutex
  only keeps SQLite from returning SQLITE_BUSY under write contention.

WAL MODE:
  File databases are opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/leave.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  ledger := timeoff.NewLedger(store, store)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - timeoff/store.go: Interface definitions
  - store/memory/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/timeoff"
)

// Store implements timeoff.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ timeoff.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection would get its own empty in-memory database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Policies
	CREATE TABLE IF NOT EXISTS policies (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		annual_allowance_days INTEGER,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Employees (external directory mirror)
	-- policy_id is not a foreign key: a dangling reference is reported, not prevented.
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		department TEXT NOT NULL DEFAULT '',
		policy_id TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_employees_department
		ON employees(department);
	CREATE INDEX IF NOT EXISTS idx_employees_policy
		ON employees(policy_id) WHERE policy_id IS NOT NULL;

	-- Requests (never deleted; seq keeps creation order)
	CREATE TABLE IF NOT EXISTS requests (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		employee_id TEXT NOT NULL,
		type TEXT NOT NULL,
		status TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		reason TEXT,
		decided_by TEXT,
		decided_at TEXT,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		CHECK (end_date >= start_date)
	);

	CREATE INDEX IF NOT EXISTS idx_requests_employee
		ON requests(employee_id);
	CREATE INDEX IF NOT EXISTS idx_requests_status
		ON requests(status);
	CREATE INDEX IF NOT EXISTS idx_requests_dates
		ON requests(start_date, end_date);

	-- Status history (append-only audit)
	CREATE TABLE IF NOT EXISTS request_status_history (
		id TEXT PRIMARY KEY,
		request_id TEXT NOT NULL REFERENCES requests(id),
		from_status TEXT,
		to_status TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_history_request
		ON request_status_history(request_id, at);
	`

	_, err := s.db.Exec(schema)
	return err
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// =============================================================================
// REQUEST STORE (timeoff.RequestStore interface)
// =============================================================================

// InsertRequest stores a new request and its creation history entry.
func (s *Store) InsertRequest(ctx context.Context, req timeoff.TimeOffRequest, change timeoff.StatusChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO requests
		(id, employee_id, type, status, start_date, end_date, reason,
		 decided_by, decided_at, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = tx.ExecContext(ctx, query,
		req.ID,
		req.EmployeeID,
		req.Type,
		req.Status,
		req.StartDate.String(),
		req.EndDate.String(),
		nullString(req.Reason),
		nullString(req.DecidedBy),
		nullTime(req.DecidedAt),
		req.Version,
		formatTime(req.CreatedAt),
		formatTime(req.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return generic.NewValidationError("id", "duplicate request id "+string(req.ID))
		}
		return fmt.Errorf("failed to insert request: %w", err)
	}

	if err := insertChange(ctx, tx, change); err != nil {
		return err
	}
	return tx.Commit()
}

// GetRequest retrieves a request by ID.
func (s *Store) GetRequest(ctx context.Context, id generic.RequestID) (*timeoff.TimeOffRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, selectRequests+" WHERE id = ?", id)
	req, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &generic.NotFoundError{Kind: "request", ID: string(id)}
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// UpdateRequestStatus applies a status change if the stored version still
// equals expectedVersion.
func (s *Store) UpdateRequestStatus(ctx context.Context, req timeoff.TimeOffRequest, expectedVersion int, change timeoff.StatusChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE requests
		SET status = ?, decided_by = ?, decided_at = ?, version = ?, updated_at = ?
		WHERE id = ? AND version = ?
	`
	res, err := tx.ExecContext(ctx, query,
		req.Status,
		nullString(req.DecidedBy),
		nullTime(req.DecidedAt),
		req.Version,
		formatTime(req.UpdatedAt),
		req.ID,
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update request: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update request: %w", err)
	}
	if n == 0 {
		var exists int
		err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM requests WHERE id = ?", req.ID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check request: %w", err)
		}
		if exists == 0 {
			return &generic.NotFoundError{Kind: "request", ID: string(req.ID)}
		}
		return generic.ErrConcurrentModification
	}

	if err := insertChange(ctx, tx, change); err != nil {
		return err
	}
	return tx.Commit()
}

// ListRequests returns matching requests in creation order.
func (s *Store) ListRequests(ctx context.Context, filter timeoff.RequestFilter) ([]timeoff.TimeOffRequest, error) {
	if filter.EmployeeIDs != nil && len(filter.EmployeeIDs) == 0 {
		return []timeoff.TimeOffRequest{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		where []string
		args  []any
	)
	if filter.EmployeeID != "" {
		where = append(where, "employee_id = ?")
		args = append(args, filter.EmployeeID)
	}
	if len(filter.EmployeeIDs) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(filter.EmployeeIDs)), ",")
		where = append(where, "employee_id IN ("+placeholders+")")
		for _, id := range filter.EmployeeIDs {
			args = append(args, id)
		}
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}

	query := selectRequests
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests: %w", err)
	}
	defer rows.Close()

	requests := make([]timeoff.TimeOffRequest, 0)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

// RequestHistory returns the status changes of a request, oldest first.
func (s *Store) RequestHistory(ctx context.Context, id generic.RequestID) ([]timeoff.StatusChange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, request_id, from_status, to_status, actor_id, at
		FROM request_status_history
		WHERE request_id = ?
		ORDER BY rowid ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	changes := make([]timeoff.StatusChange, 0)
	for rows.Next() {
		var (
			c    timeoff.StatusChange
			from sql.NullString
			at   string
		)
		if err := rows.Scan(&c.ID, &c.RequestID, &from, &c.To, &c.ActorID, &at); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		c.From = timeoff.RequestStatus(from.String)
		c.At = parseTime(at)
		changes = append(changes, c)
	}
	return changes, rows.Err()
}

func insertChange(ctx context.Context, db execer, c timeoff.StatusChange) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO request_status_history (id, request_id, from_status, to_status, actor_id, at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, c.ID, c.RequestID, nullString(string(c.From)), c.To, c.ActorID, formatTime(c.At))
	if err != nil {
		return fmt.Errorf("failed to record status change: %w", err)
	}
	return nil
}

const selectRequests = `
	SELECT id, employee_id, type, status, start_date, end_date, reason,
	       decided_by, decided_at, version, created_at, updated_at
	FROM requests`

type scanner interface {
	Scan(dest ...any) error
}

func scanRequest(row scanner) (timeoff.TimeOffRequest, error) {
	var (
		req                  timeoff.TimeOffRequest
		startDate, endDate   string
		reason, decidedBy    sql.NullString
		decidedAt            sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(
		&req.ID, &req.EmployeeID, &req.Type, &req.Status,
		&startDate, &endDate, &reason,
		&decidedBy, &decidedAt, &req.Version, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return req, err
		}
		return req, fmt.Errorf("failed to scan request: %w", err)
	}

	if req.StartDate, err = generic.ParseDate(startDate); err != nil {
		return req, fmt.Errorf("request %s: bad start_date: %w", req.ID, err)
	}
	if req.EndDate, err = generic.ParseDate(endDate); err != nil {
		return req, fmt.Errorf("request %s: bad end_date: %w", req.ID, err)
	}
	req.Reason = reason.String
	req.DecidedBy = decidedBy.String
	if decidedAt.Valid {
		t := parseTime(decidedAt.String)
		req.DecidedAt = &t
	}
	req.CreatedAt = parseTime(createdAt)
	req.UpdatedAt = parseTime(updatedAt)
	return req, nil
}

// =============================================================================
// POLICY STORE
// =============================================================================

// SavePolicy inserts or replaces a policy.
func (s *Store) SavePolicy(ctx context.Context, policy timeoff.TimeOffPolicy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO policies (id, name, kind, annual_allowance_days, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			kind = excluded.kind,
			annual_allowance_days = excluded.annual_allowance_days,
			updated_at = excluded.updated_at
	`
	now := formatTime(time.Now())
	_, err := s.db.ExecContext(ctx, query,
		policy.ID, policy.Name, policy.Kind, nullInt(policy.AnnualAllowanceDays), now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to save policy: %w", err)
	}
	return nil
}

// GetPolicy retrieves a policy by ID.
func (s *Store) GetPolicy(ctx context.Context, id generic.PolicyID) (*timeoff.TimeOffPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, kind, annual_allowance_days, created_at, updated_at FROM policies WHERE id = ?",
		id,
	)
	p, err := scanPolicy(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &generic.NotFoundError{Kind: "policy", ID: string(id)}
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPolicies returns all policies ordered by name.
func (s *Store) ListPolicies(ctx context.Context) ([]timeoff.TimeOffPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, kind, annual_allowance_days, created_at, updated_at FROM policies ORDER BY name, id",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query policies: %w", err)
	}
	defer rows.Close()

	policies := make([]timeoff.TimeOffPolicy, 0)
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		policies = append(policies, p)
	}
	return policies, rows.Err()
}

func scanPolicy(row scanner) (timeoff.TimeOffPolicy, error) {
	var (
		p                    timeoff.TimeOffPolicy
		allowance            sql.NullInt64
		createdAt, updatedAt string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Kind, &allowance, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return p, err
		}
		return p, fmt.Errorf("failed to scan policy: %w", err)
	}
	if allowance.Valid {
		days := int(allowance.Int64)
		p.AnnualAllowanceDays = &days
	}
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return p, nil
}

// =============================================================================
// EMPLOYEE STORE
// =============================================================================

// SaveEmployee inserts or replaces an employee.
func (s *Store) SaveEmployee(ctx context.Context, emp timeoff.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO employees (id, name, email, department, policy_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			department = excluded.department,
			policy_id = excluded.policy_id
	`
	_, err := s.db.ExecContext(ctx, query,
		emp.ID, emp.Name, nullString(emp.Email), emp.Department,
		nullString(string(emp.PolicyID)), formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("failed to save employee: %w", err)
	}
	return nil
}

// GetEmployee retrieves an employee by ID.
func (s *Store) GetEmployee(ctx context.Context, id generic.EmployeeID) (*timeoff.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, email, department, policy_id FROM employees WHERE id = ?", id)
	emp, err := scanEmployee(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &generic.NotFoundError{Kind: "employee", ID: string(id)}
	}
	if err != nil {
		return nil, err
	}
	return &emp, nil
}

// ListEmployees returns matching employees ordered by name.
func (s *Store) ListEmployees(ctx context.Context, filter timeoff.EmployeeFilter) ([]timeoff.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		where []string
		args  []any
	)
	if filter.Department != "" {
		where = append(where, "department = ?")
		args = append(args, filter.Department)
	}
	if filter.PolicyID != "" {
		where = append(where, "policy_id = ?")
		args = append(args, filter.PolicyID)
	}
	if filter.Query != "" {
		like := "%" + strings.ToLower(filter.Query) + "%"
		where = append(where, "(LOWER(name) LIKE ? OR LOWER(COALESCE(email, '')) LIKE ?)")
		args = append(args, like, like)
	}

	query := "SELECT id, name, email, department, policy_id FROM employees"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY name, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query employees: %w", err)
	}
	defer rows.Close()

	employees := make([]timeoff.Employee, 0)
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, emp)
	}
	return employees, rows.Err()
}

func scanEmployee(row scanner) (timeoff.Employee, error) {
	var (
		emp             timeoff.Employee
		email, policyID sql.NullString
	)
	if err := row.Scan(&emp.ID, &emp.Name, &email, &emp.Department, &policyID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return emp, err
		}
		return emp, fmt.Errorf("failed to scan employee: %w", err)
	}
	emp.Email = email.String
	emp.PolicyID = generic.PolicyID(policyID.String)
	return emp, nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// History first: it references requests.
	tables := []string{"request_status_history", "requests", "employees", "policies"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
