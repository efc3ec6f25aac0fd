/*
Package sqlite provides the SQLite-backed implementation of the
persistence interfaces.

PURPOSE:
  Implements absence.Store, directory.Store and calendar.HolidayCalendar
  using SQLite. In production the same patterns apply to PostgreSQL -
  only minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  absence.RequestStore:  absence records with version-guarded updates
  absence.CatalogStore:  absence-type catalog
  absence.HistoryStore:  append-only validation history
  directory.Store:       employees and management links

OPTIMISTIC CONCURRENCY:
  UpdateRequest is a single conditional UPDATE:
    ... WHERE id = ? AND version = ?
  Zero affected rows means another actor decided first; the caller
  gets absence.ErrVersionConflict and reloads. This is the only
  concurrency control in the system.

APPEND-ONLY ENFORCEMENT:
  The history table takes INSERT OR IGNORE on the primary key only -
  no UPDATE, no DELETE. A retried append is a no-op.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better
  concurrency: multiple readers don't block, single writer at a time,
  better crash recovery.

USAGE:
  st, err := sqlite.New("./data/absences.db")
  if err != nil {
      log.Fatal(err)
  }
  defer st.Close()

SEE ALSO:
  - absence/store.go:  interface definitions and contracts
  - store/memory.go:   in-memory implementation for testing
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
	"github.com/opale/absence-engine/absence"
	"github.com/opale/absence-engine/calendar"
	"github.com/opale/absence-engine/directory"
	"github.com/opale/absence-engine/workflow"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

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
	-- Absence requests
	CREATE TABLE IF NOT EXISTS absences (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		site_id TEXT,
		catalog_id TEXT,
		legacy_type TEXT,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		raw_days INTEGER NOT NULL,
		working_days TEXT NOT NULL,
		state TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		n1_validator_id TEXT,
		n1_validated_at TEXT,
		n1_refusal_reason TEXT,
		rh_validator_id TEXT,
		rh_validated_at TEXT,
		rh_refusal_reason TEXT,
		legacy_validator_id TEXT,
		legacy_validated_at TEXT,
		impact_planif BOOLEAN NOT NULL DEFAULT TRUE,
		force_validation_rh BOOLEAN NOT NULL DEFAULT FALSE,
		outlook_sync_id TEXT,
		sirh_export_id TEXT,
		motive TEXT,
		comment TEXT,
		justificatif_ref TEXT,
		created_by TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_absences_employee
		ON absences(employee_id, start_date);
	CREATE INDEX IF NOT EXISTS idx_absences_state
		ON absences(state);
	CREATE INDEX IF NOT EXISTS idx_absences_site
		ON absences(site_id);
	-- Planning feed hot path
	CREATE INDEX IF NOT EXISTS idx_absences_feed
		ON absences(state, impact_planif, start_date);

	-- Absence-type catalog
	CREATE TABLE IF NOT EXISTS catalogue_absences (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		label TEXT NOT NULL,
		category TEXT,
		min_days TEXT NOT NULL DEFAULT '0',
		max_days TEXT NOT NULL DEFAULT '0',
		besoin_justificatif BOOLEAN NOT NULL DEFAULT FALSE,
		besoin_validation_n1 BOOLEAN NOT NULL DEFAULT TRUE,
		besoin_validation_rh BOOLEAN NOT NULL DEFAULT TRUE,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Validation history (append-only: INSERT only, never UPDATE/DELETE)
	CREATE TABLE IF NOT EXISTS historique_validation_absences (
		id TEXT PRIMARY KEY,
		absence_id TEXT NOT NULL,
		level TEXT,
		action TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		at TEXT NOT NULL,
		comment TEXT,
		from_state TEXT,
		to_state TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_historique_absence
		ON historique_validation_absences(absence_id, at);

	-- Employees (referential, feeds the permission oracle)
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		site_id TEXT,
		hr_rights BOOLEAN NOT NULL DEFAULT FALSE,
		hire_date TEXT,
		created_at TEXT NOT NULL
	);

	-- Management links (direct and activity-line)
	CREATE TABLE IF NOT EXISTS management_links (
		manager_id TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		kind TEXT NOT NULL DEFAULT 'direct',
		PRIMARY KEY (manager_id, employee_id, kind)
	);

	CREATE INDEX IF NOT EXISTS idx_links_employee
		ON management_links(employee_id);

	-- Company holidays
	CREATE TABLE IF NOT EXISTS holidays (
		id TEXT PRIMARY KEY,
		date TEXT NOT NULL,
		label TEXT NOT NULL,
		recurring BOOLEAN NOT NULL DEFAULT FALSE
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_holidays_unique
		ON holidays(date, label);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// REQUEST STORE (absence.RequestStore interface)
// =============================================================================

func (s *Store) InsertRequest(ctx context.Context, r *absence.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO absences
		(id, employee_id, site_id, catalog_id, legacy_type, start_date, end_date,
		 raw_days, working_days, state, version,
		 n1_validator_id, n1_validated_at, n1_refusal_reason,
		 rh_validator_id, rh_validated_at, rh_refusal_reason,
		 legacy_validator_id, legacy_validated_at,
		 impact_planif, force_validation_rh, outlook_sync_id, sirh_export_id,
		 motive, comment, justificatif_ref, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.EmployeeID, nullString(r.SiteID), nullString(r.CatalogID), nullString(r.LegacyType),
		r.StartDate.Format(dateLayout), r.EndDate.Format(dateLayout),
		r.RawDays, r.WorkingDays.String(), string(r.State), r.Version,
		nullString(r.N1.ValidatorID), nullTime(r.N1.ValidatedAt), nullString(r.N1.RefusalReason),
		nullString(r.RH.ValidatorID), nullTime(r.RH.ValidatedAt), nullString(r.RH.RefusalReason),
		nullString(r.LegacyValidatorID), nullTime(r.LegacyValidatedAt),
		r.ImpactPlanif, r.ForceValidationRH, nullString(r.OutlookSyncID), nullString(r.SIRHExportID),
		r.Motive, r.Comment, nullString(r.JustificatifRef),
		r.CreatedBy, r.CreatedAt.UTC().Format(time.RFC3339), r.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert absence: %w", err)
	}
	return nil
}

func (s *Store) GetRequest(ctx context.Context, id string) (*absence.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, selectAbsence+` WHERE id = ?`, id)
	r, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("absence %s: %w", id, absence.ErrNotFound)
	}
	return r, err
}

// UpdateRequest is a conditional write: zero affected rows means the
// version moved under the caller.
func (s *Store) UpdateRequest(ctx context.Context, r *absence.Request, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		UPDATE absences SET
			start_date = ?, end_date = ?, raw_days = ?, working_days = ?,
			state = ?, version = ?,
			n1_validator_id = ?, n1_validated_at = ?, n1_refusal_reason = ?,
			rh_validator_id = ?, rh_validated_at = ?, rh_refusal_reason = ?,
			impact_planif = ?, outlook_sync_id = ?, sirh_export_id = ?,
			comment = ?, updated_at = ?
		WHERE id = ? AND version = ?
	`

	res, err := s.db.ExecContext(ctx, query,
		r.StartDate.Format(dateLayout), r.EndDate.Format(dateLayout),
		r.RawDays, r.WorkingDays.String(),
		string(r.State), expectedVersion+1,
		nullString(r.N1.ValidatorID), nullTime(r.N1.ValidatedAt), nullString(r.N1.RefusalReason),
		nullString(r.RH.ValidatorID), nullTime(r.RH.ValidatedAt), nullString(r.RH.RefusalReason),
		r.ImpactPlanif, nullString(r.OutlookSyncID), nullString(r.SIRHExportID),
		r.Comment, r.UpdatedAt.UTC().Format(time.RFC3339),
		r.ID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update absence: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Either the id is unknown or the version is stale.
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM absences WHERE id = ?`, r.ID).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return fmt.Errorf("absence %s: %w", r.ID, absence.ErrNotFound)
		}
		return absence.ErrVersionConflict
	}

	r.Version = expectedVersion + 1
	return nil
}

func (s *Store) ListRequests(ctx context.Context, f absence.Filter) ([]*absence.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := selectAbsence + ` WHERE 1=1`
	var args []any

	if f.EmployeeID != "" {
		query += ` AND employee_id = ?`
		args = append(args, f.EmployeeID)
	}
	if f.SiteID != "" {
		query += ` AND site_id = ?`
		args = append(args, f.SiteID)
	}
	if f.From != nil {
		query += ` AND end_date >= ?`
		args = append(args, f.From.Format(dateLayout))
	}
	if f.To != nil {
		query += ` AND start_date <= ?`
		args = append(args, f.To.Format(dateLayout))
	}
	query += ` ORDER BY start_date, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*absence.Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		// Status filtering happens after legacy normalization, which
		// SQL cannot apply.
		if f.Status != "" && r.CurrentState() != workflow.Normalize(f.Status) {
			continue
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const selectAbsence = `
	SELECT id, employee_id, site_id, catalog_id, legacy_type, start_date, end_date,
	       raw_days, working_days, state, version,
	       n1_validator_id, n1_validated_at, n1_refusal_reason,
	       rh_validator_id, rh_validated_at, rh_refusal_reason,
	       legacy_validator_id, legacy_validated_at,
	       impact_planif, force_validation_rh, outlook_sync_id, sirh_export_id,
	       motive, comment, justificatif_ref, created_by, created_at, updated_at
	FROM absences`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*absence.Request, error) {
	var r absence.Request
	var siteID, catalogID, legacyType sql.NullString
	var startDate, endDate, workingDays, state string
	var n1Validator, n1Reason, rhValidator, rhReason sql.NullString
	var n1At, rhAt, legacyAt sql.NullString
	var legacyValidator sql.NullString
	var outlookID, sirhID, justificatif sql.NullString
	var motive, comment sql.NullString
	var createdAt, updatedAt string

	if err := row.Scan(
		&r.ID, &r.EmployeeID, &siteID, &catalogID, &legacyType, &startDate, &endDate,
		&r.RawDays, &workingDays, &state, &r.Version,
		&n1Validator, &n1At, &n1Reason,
		&rhValidator, &rhAt, &rhReason,
		&legacyValidator, &legacyAt,
		&r.ImpactPlanif, &r.ForceValidationRH, &outlookID, &sirhID,
		&motive, &comment, &justificatif, &r.CreatedBy, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	r.SiteID = siteID.String
	r.CatalogID = catalogID.String
	r.LegacyType = legacyType.String
	r.StartDate, _ = time.Parse(dateLayout, startDate)
	r.EndDate, _ = time.Parse(dateLayout, endDate)
	r.WorkingDays = mustDecimal(workingDays)
	r.State = workflow.State(state)
	r.N1 = absence.ValidationSlot{ValidatorID: n1Validator.String, ValidatedAt: parseTimePtr(n1At), RefusalReason: n1Reason.String}
	r.RH = absence.ValidationSlot{ValidatorID: rhValidator.String, ValidatedAt: parseTimePtr(rhAt), RefusalReason: rhReason.String}
	r.LegacyValidatorID = legacyValidator.String
	r.LegacyValidatedAt = parseTimePtr(legacyAt)
	r.OutlookSyncID = outlookID.String
	r.SIRHExportID = sirhID.String
	r.Motive = motive.String
	r.Comment = comment.String
	r.JustificatifRef = justificatif.String
	r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	r.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	return &r, nil
}

// =============================================================================
// CATALOG STORE (absence.CatalogStore interface)
// =============================================================================

func (s *Store) GetCatalogEntry(ctx context.Context, id string) (*absence.CatalogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, selectCatalog+` WHERE id = ?`, id)
	e, err := scanCatalog(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("catalog entry %s: %w", id, absence.ErrNotFound)
	}
	return e, err
}

func (s *Store) ListCatalog(ctx context.Context, includeInactive bool) ([]*absence.CatalogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := selectCatalog
	if !includeInactive {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY code`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*absence.CatalogEntry
	for rows.Next() {
		e, err := scanCatalog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) SaveCatalogEntry(ctx context.Context, e *absence.CatalogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO catalogue_absences
		(id, code, label, category, min_days, max_days,
		 besoin_justificatif, besoin_validation_n1, besoin_validation_rh, is_active,
		 created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			code = excluded.code, label = excluded.label, category = excluded.category,
			min_days = excluded.min_days, max_days = excluded.max_days,
			besoin_justificatif = excluded.besoin_justificatif,
			besoin_validation_n1 = excluded.besoin_validation_n1,
			besoin_validation_rh = excluded.besoin_validation_rh,
			is_active = excluded.is_active, updated_at = excluded.updated_at
	`

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, query,
		e.ID, e.Code, e.Label, e.Category, e.MinDays.String(), e.MaxDays.String(),
		e.NeedsJustification, e.NeedsN1, e.NeedsRH, e.Active,
		now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to save catalog entry: %w", err)
	}
	return nil
}

const selectCatalog = `
	SELECT id, code, label, category, min_days, max_days,
	       besoin_justificatif, besoin_validation_n1, besoin_validation_rh, is_active,
	       created_at, updated_at
	FROM catalogue_absences`

func scanCatalog(row rowScanner) (*absence.CatalogEntry, error) {
	var e absence.CatalogEntry
	var category sql.NullString
	var minDays, maxDays, createdAt, updatedAt string

	if err := row.Scan(
		&e.ID, &e.Code, &e.Label, &category, &minDays, &maxDays,
		&e.NeedsJustification, &e.NeedsN1, &e.NeedsRH, &e.Active,
		&createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	e.Category = category.String
	e.MinDays = mustDecimal(minDays)
	e.MaxDays = mustDecimal(maxDays)
	e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	e.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &e, nil
}

// =============================================================================
// HISTORY STORE (absence.HistoryStore interface)
// =============================================================================

// AppendHistory is append-only and idempotent on the entry ID.
func (s *Store) AppendHistory(ctx context.Context, h absence.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT OR IGNORE INTO historique_validation_absences
		(id, absence_id, level, action, actor_id, at, comment, from_state, to_state)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		h.ID, h.RequestID, nullString(string(h.Level)), string(h.Action), h.ActorID,
		h.At.UTC().Format(time.RFC3339), h.Comment, nullString(string(h.FromState)), string(h.ToState),
	)
	if err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}
	return nil
}

func (s *Store) ListHistory(ctx context.Context, requestID string) ([]absence.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, absence_id, level, action, actor_id, at, comment, from_state, to_state
		FROM historique_validation_absences
		WHERE absence_id = ?
		ORDER BY at, id
	`

	rows, err := s.db.QueryContext(ctx, query, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []absence.HistoryEntry
	for rows.Next() {
		var h absence.HistoryEntry
		var level, comment, fromState sql.NullString
		var action, toState, at string
		if err := rows.Scan(&h.ID, &h.RequestID, &level, &action, &h.ActorID, &at, &comment, &fromState, &toState); err != nil {
			return nil, err
		}
		h.Level = workflow.Level(level.String)
		h.Action = absence.HistoryAction(action)
		h.Comment = comment.String
		h.FromState = workflow.State(fromState.String)
		h.ToState = workflow.State(toState)
		h.At, _ = time.Parse(time.RFC3339, at)
		out = append(out, h)
	}
	return out, rows.Err()
}

// =============================================================================
// DIRECTORY STORE (directory.Store interface)
// =============================================================================

func (s *Store) GetEmployee(ctx context.Context, id string) (*directory.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, site_id, hr_rights, hire_date, created_at
		FROM employees WHERE id = ?`, id)

	e, err := scanEmployee(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("employee %s: %w", id, absence.ErrNotFound)
	}
	return e, err
}

func (s *Store) ListEmployees(ctx context.Context) ([]*directory.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, email, site_id, hr_rights, hire_date, created_at
		FROM employees ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*directory.Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) SaveEmployee(ctx context.Context, e *directory.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO employees (id, name, email, site_id, hr_rights, hire_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, email = excluded.email, site_id = excluded.site_id,
			hr_rights = excluded.hr_rights, hire_date = excluded.hire_date
	`

	var hireDate any
	if !e.HireDate.IsZero() {
		hireDate = e.HireDate.Format(dateLayout)
	}
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	_, err := s.db.ExecContext(ctx, query,
		e.ID, e.Name, nullString(e.Email), nullString(e.SiteID), e.HRRights,
		hireDate, created.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save employee: %w", err)
	}
	return nil
}

func scanEmployee(row rowScanner) (*directory.Employee, error) {
	var e directory.Employee
	var email, siteID, hireDate sql.NullString
	var createdAt string

	if err := row.Scan(&e.ID, &e.Name, &email, &siteID, &e.HRRights, &hireDate, &createdAt); err != nil {
		return nil, err
	}

	e.Email = email.String
	e.SiteID = siteID.String
	if hireDate.Valid {
		e.HireDate, _ = time.Parse(dateLayout, hireDate.String)
	}
	e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &e, nil
}

func (s *Store) SaveManagementLink(ctx context.Context, l directory.ManagementLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO management_links (manager_id, employee_id, kind)
		VALUES (?, ?, ?)`, l.ManagerID, l.EmployeeID, string(l.Kind))
	if err != nil {
		return fmt.Errorf("failed to save management link: %w", err)
	}
	return nil
}

func (s *Store) ManagesEmployee(ctx context.Context, managerID, employeeID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM management_links
		WHERE manager_id = ? AND employee_id = ?`, managerID, employeeID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// =============================================================================
// HOLIDAYS (calendar.HolidayCalendar + persistence)
// =============================================================================

func (s *Store) SaveHoliday(ctx context.Context, h calendar.Holiday) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO holidays (id, date, label, recurring)
		VALUES (?, ?, ?, ?)`,
		h.ID, h.Date.Format(dateLayout), h.Label, h.Recurring)
	if err != nil {
		return fmt.Errorf("failed to save holiday: %w", err)
	}
	return nil
}

func (s *Store) ListHolidays(ctx context.Context) ([]calendar.Holiday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT id, date, label, recurring FROM holidays ORDER BY date`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []calendar.Holiday
	for rows.Next() {
		var h calendar.Holiday
		var date string
		if err := rows.Scan(&h.ID, &date, &h.Label, &h.Recurring); err != nil {
			return nil, err
		}
		h.Date, _ = time.Parse(dateLayout, date)
		out = append(out, h)
	}
	return out, rows.Err()
}

// IsHoliday satisfies calendar.HolidayCalendar straight off the table.
// Absence volumes are human-paced; no cache needed.
func (s *Store) IsHoliday(date time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM holidays
		WHERE (NOT recurring AND date = ?)
		   OR (recurring AND substr(date, 6) = ?)`,
		date.Format(dateLayout), date.Format("01-02")).Scan(&count)
	if err != nil {
		return false
	}
	return count > 0
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func parseTimePtr(s sql.NullString) *time.Time {
	if !s.Valid || strings.TrimSpace(s.String) == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
