/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements classroom.Store using SQLite. In production the same patterns
  apply to PostgreSQL - only minor SQL dialect differences.

APPEND-ONLY ENFORCEMENT:
  point_records and call_history have no UPDATE or DELETE statements
  anywhere in this package. Balance corrections happen via new records.

KEY TABLES:
  students:      Roster with the materialized point balance
  point_records: Immutable ledger of all balance changes
  point_rules:   Award/deduction templates
  store_items:   Redeemable items with optional stock tracking
  redemptions:   Purchase lifecycle rows (PENDING/FULFILLED/CANCELLED)
  call_history:  Call-out audit trail
  groups, tags, student_tags: Cohort membership

OWNERSHIP:
  Every statement filters by owner_id. A row owned by another teacher scans
  exactly like a missing row, which is what the error taxonomy requires.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety on top of WAL mode. WithTx holds the
  write lock for the duration of the unit, so an atomic unit observes and
  produces consistent state.

USAGE:
  store, err := sqlite.New("./data/classpoints.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper migration
  tool with versioned migrations.

SEE ALSO:
  - classroom/store.go: Interface definitions
  - store/memory: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/classpoints/classroom"
)

// Store implements classroom.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ classroom.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
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

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS students (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		name TEXT NOT NULL,
		number TEXT NOT NULL DEFAULT '',
		group_id TEXT,
		points INTEGER NOT NULL DEFAULT 0,
		is_archived INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_students_owner
		ON students(owner_id, is_archived);
	CREATE INDEX IF NOT EXISTS idx_students_group
		ON students(group_id);

	CREATE TABLE IF NOT EXISTS groups (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		name TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tags (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		name TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS student_tags (
		student_id TEXT NOT NULL,
		tag_id TEXT NOT NULL,
		PRIMARY KEY (student_id, tag_id)
	);

	CREATE TABLE IF NOT EXISTS point_rules (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		name TEXT NOT NULL,
		points INTEGER NOT NULL,
		record_type TEXT NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_rules_owner
		ON point_rules(owner_id, is_active);

	-- Append-only ledger. No UPDATE or DELETE statements exist for this
	-- table; the student balance is a projection of these rows.
	CREATE TABLE IF NOT EXISTS point_records (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		student_id TEXT NOT NULL,
		rule_id TEXT,
		points INTEGER NOT NULL,
		record_type TEXT NOT NULL,
		reason TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Hot path: per-student history replay and paginated listings
	CREATE INDEX IF NOT EXISTS idx_records_student
		ON point_records(owner_id, student_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_records_owner_created
		ON point_records(owner_id, created_at DESC);

	CREATE TABLE IF NOT EXISTS store_items (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		cost INTEGER NOT NULL,
		stock INTEGER,
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_items_owner
		ON store_items(owner_id, is_active);

	CREATE TABLE IF NOT EXISTS redemptions (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		student_id TEXT NOT NULL,
		item_id TEXT NOT NULL,
		cost INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'PENDING',
		notes TEXT NOT NULL DEFAULT '',
		redeemed_at TEXT NOT NULL,
		fulfilled_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_redemptions_owner_status
		ON redemptions(owner_id, status);
	CREATE INDEX IF NOT EXISTS idx_redemptions_student
		ON redemptions(owner_id, student_id);

	-- Append-only call-out audit. student_id stays nullable so the row
	-- survives student deletion.
	CREATE TABLE IF NOT EXISTS call_history (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		student_id TEXT,
		mode TEXT NOT NULL,
		called_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_calls_owner_time
		ON call_history(owner_id, called_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx is satisfied by both *sql.DB and *sql.Tx, so every query helper can
// run standalone or inside a WithTx unit.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// TRANSACTIONAL UNIT (classroom.Store WithTx)
// =============================================================================

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(classroom.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{q: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore runs every store method against an open transaction. The outer
// Store already holds the write lock, so no further locking happens here.
type txStore struct {
	q *sql.Tx
}

var _ classroom.Store = (*txStore)(nil)

// WithTx on a txStore joins the enclosing unit.
func (ts *txStore) WithTx(_ context.Context, fn func(classroom.Store) error) error {
	return fn(ts)
}

// =============================================================================
// STUDENTS
// =============================================================================

func (s *Store) SaveStudent(ctx context.Context, st classroom.Student) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveStudent(ctx, s.db, st)
}

func (s *Store) GetStudent(ctx context.Context, ownerID, studentID string) (classroom.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getStudent(ctx, s.db, ownerID, studentID)
}

func (s *Store) ListStudents(ctx context.Context, ownerID string, f classroom.StudentFilter) ([]classroom.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listStudents(ctx, s.db, ownerID, f)
}

func (s *Store) SetStudentPoints(ctx context.Context, ownerID, studentID string, points int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return setStudentPoints(ctx, s.db, ownerID, studentID, points)
}

func (s *Store) SetStudentsPoints(ctx context.Context, ownerID string, studentIDs []string, points int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return setStudentsPoints(ctx, s.db, ownerID, studentIDs, points)
}

func (s *Store) ArchiveStudent(ctx context.Context, ownerID, studentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return archiveStudent(ctx, s.db, ownerID, studentID)
}

func (ts *txStore) SaveStudent(ctx context.Context, st classroom.Student) error {
	return saveStudent(ctx, ts.q, st)
}

func (ts *txStore) GetStudent(ctx context.Context, ownerID, studentID string) (classroom.Student, error) {
	return getStudent(ctx, ts.q, ownerID, studentID)
}

func (ts *txStore) ListStudents(ctx context.Context, ownerID string, f classroom.StudentFilter) ([]classroom.Student, error) {
	return listStudents(ctx, ts.q, ownerID, f)
}

func (ts *txStore) SetStudentPoints(ctx context.Context, ownerID, studentID string, points int) error {
	return setStudentPoints(ctx, ts.q, ownerID, studentID, points)
}

func (ts *txStore) SetStudentsPoints(ctx context.Context, ownerID string, studentIDs []string, points int) error {
	return setStudentsPoints(ctx, ts.q, ownerID, studentIDs, points)
}

func (ts *txStore) ArchiveStudent(ctx context.Context, ownerID, studentID string) error {
	return archiveStudent(ctx, ts.q, ownerID, studentID)
}

func saveStudent(ctx context.Context, q dbtx, st classroom.Student) error {
	query := `
		INSERT INTO students (id, owner_id, name, number, group_id, points, is_archived, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			number = excluded.number,
			group_id = excluded.group_id,
			is_archived = excluded.is_archived,
			updated_at = excluded.updated_at
		WHERE students.owner_id = excluded.owner_id
	`

	now := time.Now().UTC()
	createdAt := st.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	_, err := q.ExecContext(ctx, query,
		st.ID, st.OwnerID, st.Name, st.Number, nullString(st.GroupID),
		st.Points, boolToInt(st.IsArchived),
		createdAt.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to save student: %w", err)
	}
	return nil
}

const studentColumns = `id, owner_id, name, number, group_id, points, is_archived, created_at, updated_at`

func getStudent(ctx context.Context, q dbtx, ownerID, studentID string) (classroom.Student, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+studentColumns+` FROM students WHERE id = ? AND owner_id = ?`,
		studentID, ownerID,
	)

	st, err := scanStudent(row)
	if err == sql.ErrNoRows {
		return classroom.Student{}, &classroom.NotFoundError{Entity: "student", ID: studentID}
	}
	return st, err
}

func listStudents(ctx context.Context, q dbtx, ownerID string, f classroom.StudentFilter) ([]classroom.Student, error) {
	query := `SELECT ` + prefixColumns("s.", studentColumns) + ` FROM students s`
	where := []string{"s.owner_id = ?"}
	args := []any{ownerID}

	if f.TagID != "" {
		query += ` JOIN student_tags st ON st.student_id = s.id`
		where = append(where, "st.tag_id = ?")
		args = append(args, f.TagID)
	}
	if f.GroupID != "" {
		where = append(where, "s.group_id = ?")
		args = append(args, f.GroupID)
	}
	if !f.IncludeArchived {
		where = append(where, "s.is_archived = 0")
	}

	query += ` WHERE ` + strings.Join(where, " AND ") + ` ORDER BY s.number, s.name`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	defer rows.Close()

	var students []classroom.Student
	for rows.Next() {
		st, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		students = append(students, st)
	}
	return students, rows.Err()
}

func setStudentPoints(ctx context.Context, q dbtx, ownerID, studentID string, points int) error {
	res, err := q.ExecContext(ctx,
		`UPDATE students SET points = ?, updated_at = ? WHERE id = ? AND owner_id = ?`,
		points, time.Now().UTC().Format(time.RFC3339Nano), studentID, ownerID,
	)
	if err != nil {
		return fmt.Errorf("failed to set points: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &classroom.NotFoundError{Entity: "student", ID: studentID}
	}
	return nil
}

func setStudentsPoints(ctx context.Context, q dbtx, ownerID string, studentIDs []string, points int) error {
	if len(studentIDs) == 0 {
		return nil
	}

	query := fmt.Sprintf(
		`UPDATE students SET points = ?, updated_at = ? WHERE owner_id = ? AND id IN (%s)`,
		placeholders(len(studentIDs)),
	)

	args := []any{points, time.Now().UTC().Format(time.RFC3339Nano), ownerID}
	for _, id := range studentIDs {
		args = append(args, id)
	}

	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to bulk set points: %w", err)
	}
	if n, _ := res.RowsAffected(); n != int64(len(studentIDs)) {
		return &classroom.ValidationError{Message: "one or more students not found"}
	}
	return nil
}

func archiveStudent(ctx context.Context, q dbtx, ownerID, studentID string) error {
	res, err := q.ExecContext(ctx,
		`UPDATE students SET is_archived = 1, updated_at = ? WHERE id = ? AND owner_id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano), studentID, ownerID,
	)
	if err != nil {
		return fmt.Errorf("failed to archive student: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &classroom.NotFoundError{Entity: "student", ID: studentID}
	}
	return nil
}

func scanStudent(row interface{ Scan(...any) error }) (classroom.Student, error) {
	var (
		st         classroom.Student
		groupID    sql.NullString
		isArchived int
		createdAt  string
		updatedAt  string
	)

	err := row.Scan(&st.ID, &st.OwnerID, &st.Name, &st.Number, &groupID,
		&st.Points, &isArchived, &createdAt, &updatedAt)
	if err != nil {
		return st, err
	}

	st.GroupID = groupID.String
	st.IsArchived = isArchived != 0
	st.CreatedAt = parseTime(createdAt)
	st.UpdatedAt = parseTime(updatedAt)
	return st, nil
}

// =============================================================================
// GROUPS & TAGS
// =============================================================================

func (s *Store) SaveGroup(ctx context.Context, g classroom.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveGroup(ctx, s.db, g)
}

func (s *Store) GetGroup(ctx context.Context, ownerID, groupID string) (classroom.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getGroup(ctx, s.db, ownerID, groupID)
}

func (s *Store) SaveTag(ctx context.Context, t classroom.Tag) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveTag(ctx, s.db, t)
}

func (s *Store) GetTag(ctx context.Context, ownerID, tagID string) (classroom.Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getTag(ctx, s.db, ownerID, tagID)
}

func (s *Store) TagStudent(ctx context.Context, ownerID, studentID, tagID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return tagStudent(ctx, s.db, ownerID, studentID, tagID)
}

func (ts *txStore) SaveGroup(ctx context.Context, g classroom.Group) error {
	return saveGroup(ctx, ts.q, g)
}

func (ts *txStore) GetGroup(ctx context.Context, ownerID, groupID string) (classroom.Group, error) {
	return getGroup(ctx, ts.q, ownerID, groupID)
}

func (ts *txStore) SaveTag(ctx context.Context, t classroom.Tag) error {
	return saveTag(ctx, ts.q, t)
}

func (ts *txStore) GetTag(ctx context.Context, ownerID, tagID string) (classroom.Tag, error) {
	return getTag(ctx, ts.q, ownerID, tagID)
}

func (ts *txStore) TagStudent(ctx context.Context, ownerID, studentID, tagID string) error {
	return tagStudent(ctx, ts.q, ownerID, studentID, tagID)
}

func saveGroup(ctx context.Context, q dbtx, g classroom.Group) error {
	createdAt := g.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := q.ExecContext(ctx,
		`INSERT INTO groups (id, owner_id, name, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name
		 WHERE groups.owner_id = excluded.owner_id`,
		g.ID, g.OwnerID, g.Name, createdAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to save group: %w", err)
	}
	return nil
}

func getGroup(ctx context.Context, q dbtx, ownerID, groupID string) (classroom.Group, error) {
	var (
		g         classroom.Group
		createdAt string
	)
	err := q.QueryRowContext(ctx,
		`SELECT id, owner_id, name, created_at FROM groups WHERE id = ? AND owner_id = ?`,
		groupID, ownerID,
	).Scan(&g.ID, &g.OwnerID, &g.Name, &createdAt)
	if err == sql.ErrNoRows {
		return g, &classroom.NotFoundError{Entity: "group", ID: groupID}
	}
	if err != nil {
		return g, fmt.Errorf("failed to get group: %w", err)
	}
	g.CreatedAt = parseTime(createdAt)
	return g, nil
}

func saveTag(ctx context.Context, q dbtx, t classroom.Tag) error {
	createdAt := t.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := q.ExecContext(ctx,
		`INSERT INTO tags (id, owner_id, name, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name
		 WHERE tags.owner_id = excluded.owner_id`,
		t.ID, t.OwnerID, t.Name, createdAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to save tag: %w", err)
	}
	return nil
}

func getTag(ctx context.Context, q dbtx, ownerID, tagID string) (classroom.Tag, error) {
	var (
		t         classroom.Tag
		createdAt string
	)
	err := q.QueryRowContext(ctx,
		`SELECT id, owner_id, name, created_at FROM tags WHERE id = ? AND owner_id = ?`,
		tagID, ownerID,
	).Scan(&t.ID, &t.OwnerID, &t.Name, &createdAt)
	if err == sql.ErrNoRows {
		return t, &classroom.NotFoundError{Entity: "tag", ID: tagID}
	}
	if err != nil {
		return t, fmt.Errorf("failed to get tag: %w", err)
	}
	t.CreatedAt = parseTime(createdAt)
	return t, nil
}

func tagStudent(ctx context.Context, q dbtx, ownerID, studentID, tagID string) error {
	// Both sides must belong to the owner before the link is written.
	if _, err := getStudent(ctx, q, ownerID, studentID); err != nil {
		return err
	}
	if _, err := getTag(ctx, q, ownerID, tagID); err != nil {
		return err
	}

	_, err := q.ExecContext(ctx,
		`INSERT OR IGNORE INTO student_tags (student_id, tag_id) VALUES (?, ?)`,
		studentID, tagID,
	)
	if err != nil {
		return fmt.Errorf("failed to tag student: %w", err)
	}
	return nil
}

// =============================================================================
// POINT RULES
// =============================================================================

func (s *Store) SaveRule(ctx context.Context, r classroom.PointRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveRule(ctx, s.db, r)
}

func (s *Store) GetRule(ctx context.Context, ownerID, ruleID string) (classroom.PointRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getRule(ctx, s.db, ownerID, ruleID)
}

func (s *Store) ListRules(ctx context.Context, ownerID string) ([]classroom.PointRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listRules(ctx, s.db, ownerID)
}

func (ts *txStore) SaveRule(ctx context.Context, r classroom.PointRule) error {
	return saveRule(ctx, ts.q, r)
}

func (ts *txStore) GetRule(ctx context.Context, ownerID, ruleID string) (classroom.PointRule, error) {
	return getRule(ctx, ts.q, ownerID, ruleID)
}

func (ts *txStore) ListRules(ctx context.Context, ownerID string) ([]classroom.PointRule, error) {
	return listRules(ctx, ts.q, ownerID)
}

func saveRule(ctx context.Context, q dbtx, r classroom.PointRule) error {
	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := q.ExecContext(ctx,
		`INSERT INTO point_rules (id, owner_id, name, points, record_type, is_active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			points = excluded.points,
			record_type = excluded.record_type,
			is_active = excluded.is_active
		 WHERE point_rules.owner_id = excluded.owner_id`,
		r.ID, r.OwnerID, r.Name, r.Points, string(r.Type),
		boolToInt(r.IsActive), createdAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to save rule: %w", err)
	}
	return nil
}

func getRule(ctx context.Context, q dbtx, ownerID, ruleID string) (classroom.PointRule, error) {
	var (
		r         classroom.PointRule
		recType   string
		isActive  int
		createdAt string
	)
	err := q.QueryRowContext(ctx,
		`SELECT id, owner_id, name, points, record_type, is_active, created_at
		 FROM point_rules WHERE id = ? AND owner_id = ?`,
		ruleID, ownerID,
	).Scan(&r.ID, &r.OwnerID, &r.Name, &r.Points, &recType, &isActive, &createdAt)
	if err == sql.ErrNoRows {
		return r, &classroom.NotFoundError{Entity: "rule", ID: ruleID}
	}
	if err != nil {
		return r, fmt.Errorf("failed to get rule: %w", err)
	}
	r.Type = classroom.RecordType(recType)
	r.IsActive = isActive != 0
	r.CreatedAt = parseTime(createdAt)
	return r, nil
}

func listRules(ctx context.Context, q dbtx, ownerID string) ([]classroom.PointRule, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, owner_id, name, points, record_type, is_active, created_at
		 FROM point_rules WHERE owner_id = ? ORDER BY name`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	var rules []classroom.PointRule
	for rows.Next() {
		var (
			r         classroom.PointRule
			recType   string
			isActive  int
			createdAt string
		)
		if err := rows.Scan(&r.ID, &r.OwnerID, &r.Name, &r.Points, &recType, &isActive, &createdAt); err != nil {
			return nil, err
		}
		r.Type = classroom.RecordType(recType)
		r.IsActive = isActive != 0
		r.CreatedAt = parseTime(createdAt)
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// =============================================================================
// POINT RECORDS (append-only)
// =============================================================================

func (s *Store) AppendRecord(ctx context.Context, rec classroom.PointRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendRecord(ctx, s.db, rec)
}

func (s *Store) ListRecords(ctx context.Context, ownerID string, f classroom.RecordFilter) ([]classroom.RecordView, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listRecords(ctx, s.db, ownerID, f)
}

func (s *Store) RecordsByStudent(ctx context.Context, ownerID, studentID string) ([]classroom.PointRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return recordsByStudent(ctx, s.db, ownerID, studentID)
}

func (ts *txStore) AppendRecord(ctx context.Context, rec classroom.PointRecord) error {
	return appendRecord(ctx, ts.q, rec)
}

func (ts *txStore) ListRecords(ctx context.Context, ownerID string, f classroom.RecordFilter) ([]classroom.RecordView, int, error) {
	return listRecords(ctx, ts.q, ownerID, f)
}

func (ts *txStore) RecordsByStudent(ctx context.Context, ownerID, studentID string) ([]classroom.PointRecord, error) {
	return recordsByStudent(ctx, ts.q, ownerID, studentID)
}

func appendRecord(ctx context.Context, q dbtx, rec classroom.PointRecord) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := q.ExecContext(ctx,
		`INSERT INTO point_records (id, owner_id, student_id, rule_id, points, record_type, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.OwnerID, rec.StudentID, nullString(rec.RuleID),
		rec.Points, string(rec.Type), rec.Reason, createdAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to append record: %w", err)
	}
	return nil
}

func listRecords(ctx context.Context, q dbtx, ownerID string, f classroom.RecordFilter) ([]classroom.RecordView, int, error) {
	where := []string{"r.owner_id = ?"}
	args := []any{ownerID}

	if f.StudentID != "" {
		where = append(where, "r.student_id = ?")
		args = append(args, f.StudentID)
	}
	if f.Type != "" {
		where = append(where, "r.record_type = ?")
		args = append(args, string(f.Type))
	}

	whereSQL := strings.Join(where, " AND ")

	var total int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM point_records r WHERE `+whereSQL, args...,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count records: %w", err)
	}

	limit, offset := pageBounds(f.Page)
	query := `
		SELECT r.id, r.owner_id, r.student_id, r.rule_id, r.points, r.record_type, r.reason, r.created_at,
		       COALESCE(s.name, ''), COALESCE(s.number, ''), COALESCE(pr.name, '')
		FROM point_records r
		LEFT JOIN students s ON s.id = r.student_id
		LEFT JOIN point_rules pr ON pr.id = r.rule_id
		WHERE ` + whereSQL + `
		ORDER BY r.created_at DESC, r.id
		LIMIT ? OFFSET ?
	`
	args = append(args, limit, offset)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var views []classroom.RecordView
	for rows.Next() {
		var (
			v         classroom.RecordView
			ruleID    sql.NullString
			recType   string
			createdAt string
		)
		err := rows.Scan(&v.ID, &v.OwnerID, &v.StudentID, &ruleID, &v.Points,
			&recType, &v.Reason, &createdAt,
			&v.StudentName, &v.StudentNumber, &v.RuleName)
		if err != nil {
			return nil, 0, err
		}
		v.RuleID = ruleID.String
		v.Type = classroom.RecordType(recType)
		v.CreatedAt = parseTime(createdAt)
		views = append(views, v)
	}
	return views, total, rows.Err()
}

func recordsByStudent(ctx context.Context, q dbtx, ownerID, studentID string) ([]classroom.PointRecord, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, owner_id, student_id, rule_id, points, record_type, reason, created_at
		 FROM point_records
		 WHERE owner_id = ? AND student_id = ?
		 ORDER BY created_at ASC, id`,
		ownerID, studentID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load records: %w", err)
	}
	defer rows.Close()

	var records []classroom.PointRecord
	for rows.Next() {
		var (
			rec       classroom.PointRecord
			ruleID    sql.NullString
			recType   string
			createdAt string
		)
		err := rows.Scan(&rec.ID, &rec.OwnerID, &rec.StudentID, &ruleID,
			&rec.Points, &recType, &rec.Reason, &createdAt)
		if err != nil {
			return nil, err
		}
		rec.RuleID = ruleID.String
		rec.Type = classroom.RecordType(recType)
		rec.CreatedAt = parseTime(createdAt)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// =============================================================================
// STORE ITEMS
// =============================================================================

func (s *Store) SaveItem(ctx context.Context, it classroom.StoreItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveItem(ctx, s.db, it)
}

func (s *Store) GetItem(ctx context.Context, ownerID, itemID string) (classroom.StoreItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getItem(ctx, s.db, ownerID, itemID)
}

func (s *Store) ListItems(ctx context.Context, ownerID string, activeOnly bool) ([]classroom.StoreItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listItems(ctx, s.db, ownerID, activeOnly)
}

func (s *Store) SetItemStock(ctx context.Context, ownerID, itemID string, stock int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return setItemStock(ctx, s.db, ownerID, itemID, stock)
}

func (ts *txStore) SaveItem(ctx context.Context, it classroom.StoreItem) error {
	return saveItem(ctx, ts.q, it)
}

func (ts *txStore) GetItem(ctx context.Context, ownerID, itemID string) (classroom.StoreItem, error) {
	return getItem(ctx, ts.q, ownerID, itemID)
}

func (ts *txStore) ListItems(ctx context.Context, ownerID string, activeOnly bool) ([]classroom.StoreItem, error) {
	return listItems(ctx, ts.q, ownerID, activeOnly)
}

func (ts *txStore) SetItemStock(ctx context.Context, ownerID, itemID string, stock int) error {
	return setItemStock(ctx, ts.q, ownerID, itemID, stock)
}

func saveItem(ctx context.Context, q dbtx, it classroom.StoreItem) error {
	createdAt := it.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	var stock any
	if it.Stock != nil {
		stock = *it.Stock
	}

	_, err := q.ExecContext(ctx,
		`INSERT INTO store_items (id, owner_id, name, description, cost, stock, is_active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			cost = excluded.cost,
			stock = excluded.stock,
			is_active = excluded.is_active
		 WHERE store_items.owner_id = excluded.owner_id`,
		it.ID, it.OwnerID, it.Name, it.Description, it.Cost, stock,
		boolToInt(it.IsActive), createdAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to save item: %w", err)
	}
	return nil
}

func getItem(ctx context.Context, q dbtx, ownerID, itemID string) (classroom.StoreItem, error) {
	var (
		it        classroom.StoreItem
		stock     sql.NullInt64
		isActive  int
		createdAt string
	)
	err := q.QueryRowContext(ctx,
		`SELECT id, owner_id, name, description, cost, stock, is_active, created_at
		 FROM store_items WHERE id = ? AND owner_id = ?`,
		itemID, ownerID,
	).Scan(&it.ID, &it.OwnerID, &it.Name, &it.Description, &it.Cost, &stock, &isActive, &createdAt)
	if err == sql.ErrNoRows {
		return it, &classroom.NotFoundError{Entity: "item", ID: itemID}
	}
	if err != nil {
		return it, fmt.Errorf("failed to get item: %w", err)
	}
	if stock.Valid {
		n := int(stock.Int64)
		it.Stock = &n
	}
	it.IsActive = isActive != 0
	it.CreatedAt = parseTime(createdAt)
	return it, nil
}

func listItems(ctx context.Context, q dbtx, ownerID string, activeOnly bool) ([]classroom.StoreItem, error) {
	query := `SELECT id, owner_id, name, description, cost, stock, is_active, created_at
		 FROM store_items WHERE owner_id = ?`
	if activeOnly {
		query += ` AND is_active = 1`
	}
	query += ` ORDER BY cost, name`

	rows, err := q.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	var items []classroom.StoreItem
	for rows.Next() {
		var (
			it        classroom.StoreItem
			stock     sql.NullInt64
			isActive  int
			createdAt string
		)
		err := rows.Scan(&it.ID, &it.OwnerID, &it.Name, &it.Description,
			&it.Cost, &stock, &isActive, &createdAt)
		if err != nil {
			return nil, err
		}
		if stock.Valid {
			n := int(stock.Int64)
			it.Stock = &n
		}
		it.IsActive = isActive != 0
		it.CreatedAt = parseTime(createdAt)
		items = append(items, it)
	}
	return items, rows.Err()
}

func setItemStock(ctx context.Context, q dbtx, ownerID, itemID string, stock int) error {
	// Guarded by stock IS NOT NULL: unlimited items never gain a counter.
	res, err := q.ExecContext(ctx,
		`UPDATE store_items SET stock = ? WHERE id = ? AND owner_id = ? AND stock IS NOT NULL`,
		stock, itemID, ownerID,
	)
	if err != nil {
		return fmt.Errorf("failed to set stock: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &classroom.NotFoundError{Entity: "item", ID: itemID}
	}
	return nil
}

// =============================================================================
// REDEMPTIONS
// =============================================================================

func (s *Store) InsertRedemption(ctx context.Context, r classroom.Redemption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertRedemption(ctx, s.db, r)
}

func (s *Store) GetRedemption(ctx context.Context, ownerID, redemptionID string) (classroom.Redemption, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getRedemption(ctx, s.db, ownerID, redemptionID)
}

func (s *Store) UpdateRedemption(ctx context.Context, r classroom.Redemption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateRedemption(ctx, s.db, r)
}

func (s *Store) ListRedemptions(ctx context.Context, ownerID string, f classroom.RedemptionFilter) ([]classroom.RedemptionView, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listRedemptions(ctx, s.db, ownerID, f)
}

func (ts *txStore) InsertRedemption(ctx context.Context, r classroom.Redemption) error {
	return insertRedemption(ctx, ts.q, r)
}

func (ts *txStore) GetRedemption(ctx context.Context, ownerID, redemptionID string) (classroom.Redemption, error) {
	return getRedemption(ctx, ts.q, ownerID, redemptionID)
}

func (ts *txStore) UpdateRedemption(ctx context.Context, r classroom.Redemption) error {
	return updateRedemption(ctx, ts.q, r)
}

func (ts *txStore) ListRedemptions(ctx context.Context, ownerID string, f classroom.RedemptionFilter) ([]classroom.RedemptionView, int, error) {
	return listRedemptions(ctx, ts.q, ownerID, f)
}

func insertRedemption(ctx context.Context, q dbtx, r classroom.Redemption) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO redemptions (id, owner_id, student_id, item_id, cost, status, notes, redeemed_at, fulfilled_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.OwnerID, r.StudentID, r.ItemID, r.Cost, string(r.Status),
		r.Notes, r.RedeemedAt.UTC().Format(time.RFC3339Nano), nullTime(r.FulfilledAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert redemption: %w", err)
	}
	return nil
}

func getRedemption(ctx context.Context, q dbtx, ownerID, redemptionID string) (classroom.Redemption, error) {
	row := q.QueryRowContext(ctx,
		`SELECT id, owner_id, student_id, item_id, cost, status, notes, redeemed_at, fulfilled_at
		 FROM redemptions WHERE id = ? AND owner_id = ?`,
		redemptionID, ownerID,
	)

	r, err := scanRedemption(row)
	if err == sql.ErrNoRows {
		return r, &classroom.NotFoundError{Entity: "redemption", ID: redemptionID}
	}
	return r, err
}

func updateRedemption(ctx context.Context, q dbtx, r classroom.Redemption) error {
	res, err := q.ExecContext(ctx,
		`UPDATE redemptions SET status = ?, notes = ?, fulfilled_at = ?
		 WHERE id = ? AND owner_id = ?`,
		string(r.Status), r.Notes, nullTime(r.FulfilledAt), r.ID, r.OwnerID,
	)
	if err != nil {
		return fmt.Errorf("failed to update redemption: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &classroom.NotFoundError{Entity: "redemption", ID: r.ID}
	}
	return nil
}

func listRedemptions(ctx context.Context, q dbtx, ownerID string, f classroom.RedemptionFilter) ([]classroom.RedemptionView, int, error) {
	where := []string{"r.owner_id = ?"}
	args := []any{ownerID}

	if f.StudentID != "" {
		where = append(where, "r.student_id = ?")
		args = append(args, f.StudentID)
	}
	if f.Status != "" {
		where = append(where, "r.status = ?")
		args = append(args, string(f.Status))
	}

	whereSQL := strings.Join(where, " AND ")

	var total int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM redemptions r WHERE `+whereSQL, args...,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count redemptions: %w", err)
	}

	limit, offset := pageBounds(f.Page)
	query := `
		SELECT r.id, r.owner_id, r.student_id, r.item_id, r.cost, r.status, r.notes, r.redeemed_at, r.fulfilled_at,
		       COALESCE(s.name, ''), COALESCE(s.number, ''), COALESCE(i.name, '')
		FROM redemptions r
		LEFT JOIN students s ON s.id = r.student_id
		LEFT JOIN store_items i ON i.id = r.item_id
		WHERE ` + whereSQL + `
		ORDER BY r.redeemed_at DESC, r.id
		LIMIT ? OFFSET ?
	`
	args = append(args, limit, offset)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list redemptions: %w", err)
	}
	defer rows.Close()

	var views []classroom.RedemptionView
	for rows.Next() {
		var (
			v           classroom.RedemptionView
			status      string
			redeemedAt  string
			fulfilledAt sql.NullString
		)
		err := rows.Scan(&v.ID, &v.OwnerID, &v.StudentID, &v.ItemID, &v.Cost,
			&status, &v.Notes, &redeemedAt, &fulfilledAt,
			&v.StudentName, &v.StudentNumber, &v.ItemName)
		if err != nil {
			return nil, 0, err
		}
		v.Status = classroom.RedemptionStatus(status)
		v.RedeemedAt = parseTime(redeemedAt)
		if fulfilledAt.Valid {
			t := parseTime(fulfilledAt.String)
			v.FulfilledAt = &t
		}
		views = append(views, v)
	}
	return views, total, rows.Err()
}

func scanRedemption(row interface{ Scan(...any) error }) (classroom.Redemption, error) {
	var (
		r           classroom.Redemption
		status      string
		redeemedAt  string
		fulfilledAt sql.NullString
	)

	err := row.Scan(&r.ID, &r.OwnerID, &r.StudentID, &r.ItemID, &r.Cost,
		&status, &r.Notes, &redeemedAt, &fulfilledAt)
	if err != nil {
		return r, err
	}

	r.Status = classroom.RedemptionStatus(status)
	r.RedeemedAt = parseTime(redeemedAt)
	if fulfilledAt.Valid {
		t := parseTime(fulfilledAt.String)
		r.FulfilledAt = &t
	}
	return r, nil
}

// =============================================================================
// CALL HISTORY (append-only)
// =============================================================================

func (s *Store) AppendCall(ctx context.Context, c classroom.CallRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendCall(ctx, s.db, c)
}

func (s *Store) CalledStudentIDs(ctx context.Context, ownerID string, since time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return calledStudentIDs(ctx, s.db, ownerID, since)
}

func (s *Store) ListCalls(ctx context.Context, ownerID string, f classroom.CallFilter) ([]classroom.CallView, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listCalls(ctx, s.db, ownerID, f)
}

func (ts *txStore) AppendCall(ctx context.Context, c classroom.CallRecord) error {
	return appendCall(ctx, ts.q, c)
}

func (ts *txStore) CalledStudentIDs(ctx context.Context, ownerID string, since time.Time) ([]string, error) {
	return calledStudentIDs(ctx, ts.q, ownerID, since)
}

func (ts *txStore) ListCalls(ctx context.Context, ownerID string, f classroom.CallFilter) ([]classroom.CallView, int, error) {
	return listCalls(ctx, ts.q, ownerID, f)
}

func appendCall(ctx context.Context, q dbtx, c classroom.CallRecord) error {
	calledAt := c.CalledAt
	if calledAt.IsZero() {
		calledAt = time.Now().UTC()
	}

	var studentID any
	if c.StudentID != nil {
		studentID = *c.StudentID
	}

	_, err := q.ExecContext(ctx,
		`INSERT INTO call_history (id, owner_id, student_id, mode, called_at)
		 VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.OwnerID, studentID, string(c.Mode), calledAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to append call: %w", err)
	}
	return nil
}

func calledStudentIDs(ctx context.Context, q dbtx, ownerID string, since time.Time) ([]string, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT DISTINCT student_id FROM call_history
		 WHERE owner_id = ? AND student_id IS NOT NULL AND called_at >= ?`,
		ownerID, since.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query called students: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func listCalls(ctx context.Context, q dbtx, ownerID string, f classroom.CallFilter) ([]classroom.CallView, int, error) {
	where := []string{"c.owner_id = ?"}
	args := []any{ownerID}

	if !f.Since.IsZero() {
		where = append(where, "c.called_at >= ?")
		args = append(args, f.Since.UTC().Format(time.RFC3339Nano))
	}

	whereSQL := strings.Join(where, " AND ")

	var total int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM call_history c WHERE `+whereSQL, args...,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count calls: %w", err)
	}

	limit, offset := pageBounds(f.Page)
	query := `
		SELECT c.id, c.owner_id, c.student_id, c.mode, c.called_at, COALESCE(s.name, '')
		FROM call_history c
		LEFT JOIN students s ON s.id = c.student_id
		WHERE ` + whereSQL + `
		ORDER BY c.called_at DESC, c.id
		LIMIT ? OFFSET ?
	`
	args = append(args, limit, offset)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list calls: %w", err)
	}
	defer rows.Close()

	var views []classroom.CallView
	for rows.Next() {
		var (
			v         classroom.CallView
			studentID sql.NullString
			mode      string
			calledAt  string
		)
		err := rows.Scan(&v.ID, &v.OwnerID, &studentID, &mode, &calledAt, &v.StudentName)
		if err != nil {
			return nil, 0, err
		}
		if studentID.Valid {
			id := studentID.String
			v.StudentID = &id
		}
		v.Mode = classroom.CallMode(mode)
		v.CalledAt = parseTime(calledAt)
		views = append(views, v)
	}
	return views, total, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func prefixColumns(prefix, columns string) string {
	parts := strings.Split(columns, ", ")
	for i, p := range parts {
		parts[i] = prefix + p
	}
	return strings.Join(parts, ", ")
}

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

func pageBounds(p classroom.Page) (limit, offset int) {
	size := p.Size
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	number := p.Number
	if number < 1 {
		number = 1
	}
	return size, (number - 1) * size
}
