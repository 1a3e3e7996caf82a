package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/hudhuria/core/attendance"
)

type sessionRow struct {
	ID        string    `db:"id"`
	ClassID   string    `db:"class_id"`
	CreatedBy string    `db:"created_by"`
	Code      string    `db:"code"`
	StartsAt  null.Time `db:"starts_at"`
	EndsAt    null.Time `db:"ends_at"`
	IsActive  bool      `db:"is_active"`
	CreatedAt time.Time `db:"created_at"`
}

type recordRow struct {
	ID              string      `db:"id"`
	SessionID       string      `db:"session_id"`
	StudentID       string      `db:"student_id"`
	Status          string      `db:"status"`
	DeviceSignature null.String `db:"device_signature"`
	IPPrefix        null.String `db:"ip_prefix"`
	MarkedAt        time.Time   `db:"marked_at"`
}

type attendanceRepository struct {
	db *sqlx.DB
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *sqlx.DB) *attendanceRepository {
	return &attendanceRepository{db: db}
}

func (repo attendanceRepository) pack(sess attendance.Session) sessionRow {
	row := sessionRow{
		ID:        sess.ID,
		ClassID:   sess.ClassID,
		CreatedBy: sess.CreatedBy,
		Code:      sess.Code,
		IsActive:  sess.IsActive,
		CreatedAt: sess.CreatedAt.UTC(),
	}
	if sess.StartsAt != nil {
		row.StartsAt = null.TimeFrom(sess.StartsAt.UTC())
	}
	if sess.EndsAt != nil {
		row.EndsAt = null.TimeFrom(sess.EndsAt.UTC())
	}
	return row
}

func (repo attendanceRepository) unpack(row sessionRow) attendance.Session {
	return attendance.Session{
		ID:        row.ID,
		ClassID:   row.ClassID,
		CreatedBy: row.CreatedBy,
		Code:      row.Code,
		StartsAt:  row.StartsAt.Ptr(),
		EndsAt:    row.EndsAt.Ptr(),
		IsActive:  row.IsActive,
		CreatedAt: row.CreatedAt,
	}
}

func (repo attendanceRepository) unpackRecord(row recordRow) attendance.Record {
	return attendance.Record{
		ID:              row.ID,
		SessionID:       row.SessionID,
		StudentID:       row.StudentID,
		Status:          row.Status,
		DeviceSignature: row.DeviceSignature.String,
		IPPrefix:        row.IPPrefix.String,
		MarkedAt:        row.MarkedAt,
	}
}

func (repo attendanceRepository) CreateSession(ctx context.Context, sess attendance.Session) (attendance.Session, error) {
	sess.ID = uuid.New().String()
	row := repo.pack(sess)
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO attendance_session (id, class_id, created_by, code, starts_at, ends_at, is_active, created_at)
		VALUES (:id, :class_id, :created_by, :code, :starts_at, :ends_at, :is_active, :created_at)`,
		row,
	)
	if err != nil {
		return attendance.Session{}, errors.Wrap(err, "inserting attendance session")
	}
	return repo.unpack(row), nil
}

func (repo attendanceRepository) GetSessionByID(ctx context.Context, id string) (attendance.Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return attendance.Session{}, attendance.ErrSessionNotFound
	}
	var row sessionRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM attendance_session WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return attendance.Session{}, attendance.ErrSessionNotFound
		}
		return attendance.Session{}, errors.Wrap(err, "finding attendance session by ID")
	}
	return repo.unpack(row), nil
}

func (repo attendanceRepository) GetActiveSession(ctx context.Context, classID string) (attendance.Session, error) {
	var row sessionRow
	err := repo.db.GetContext(ctx, &row, `
		SELECT * FROM attendance_session
		WHERE class_id = $1 AND is_active
		ORDER BY created_at DESC
		LIMIT 1`,
		classID)
	if err != nil {
		if err == sql.ErrNoRows {
			return attendance.Session{}, attendance.ErrSessionNotFound
		}
		return attendance.Session{}, errors.Wrap(err, "finding active attendance session")
	}
	return repo.unpack(row), nil
}

func (repo attendanceRepository) UpdateSession(ctx context.Context, sess attendance.Session) (attendance.Session, error) {
	row := repo.pack(sess)
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE attendance_session
		SET code = :code, starts_at = :starts_at, ends_at = :ends_at, is_active = :is_active
		WHERE id = :id`,
		row,
	)
	if err != nil {
		return attendance.Session{}, errors.Wrap(err, "updating attendance session")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return attendance.Session{}, attendance.ErrSessionNotFound
	}
	return repo.unpack(row), nil
}

func (repo attendanceRepository) CreateRecord(ctx context.Context, rec attendance.Record) (attendance.Record, error) {
	rec.ID = uuid.New().String()
	row := recordRow{
		ID:              rec.ID,
		SessionID:       rec.SessionID,
		StudentID:       rec.StudentID,
		Status:          rec.Status,
		DeviceSignature: null.NewString(rec.DeviceSignature, rec.DeviceSignature != ""),
		IPPrefix:        null.NewString(rec.IPPrefix, rec.IPPrefix != ""),
		MarkedAt:        rec.MarkedAt.UTC(),
	}
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO attendance_record (id, session_id, student_id, status, device_signature, ip_prefix, marked_at)
		VALUES (:id, :session_id, :student_id, :status, :device_signature, :ip_prefix, :marked_at)`,
		row,
	)
	if err != nil {
		// unique constraint on (session, student) resolves concurrent submissions
		if isUniqueViolation(err, "attendance_record_session_student_key") {
			return attendance.Record{}, attendance.ErrAlreadySubmitted
		}
		return attendance.Record{}, errors.Wrap(err, "inserting attendance record")
	}
	return repo.unpackRecord(row), nil
}

func (repo attendanceRepository) GetRecord(ctx context.Context, sessionID, studentID string) (attendance.Record, error) {
	var row recordRow
	err := repo.db.GetContext(ctx, &row,
		`SELECT * FROM attendance_record WHERE session_id = $1 AND student_id = $2`, sessionID, studentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return attendance.Record{}, attendance.ErrRecordNotFound
		}
		return attendance.Record{}, errors.Wrap(err, "finding attendance record")
	}
	return repo.unpackRecord(row), nil
}

func (repo attendanceRepository) QueryRecordsBySession(ctx context.Context, sessionID string) ([]attendance.Record, error) {
	var rows []recordRow
	err := repo.db.SelectContext(ctx, &rows, `
		SELECT * FROM attendance_record
		WHERE session_id = $1
		ORDER BY marked_at, id`,
		sessionID)
	if err != nil {
		return nil, errors.Wrap(err, "querying attendance records")
	}
	records := make([]attendance.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, repo.unpackRecord(row))
	}
	return records, nil
}
