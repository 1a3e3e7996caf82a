package dummydb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/hudhuria/core/attendance"
)

type attendanceRepository struct {
	db *attendanceTable
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *DB) attendance.Repository {
	return &attendanceRepository{db: db.attendance}
}

func (repo *attendanceRepository) CreateSession(_ context.Context, sess attendance.Session) (attendance.Session, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	sess.ID = uuid.New().String()
	repo.db.sessions[sess.ID] = &sess
	return sess, nil
}

func (repo *attendanceRepository) GetSessionByID(_ context.Context, id string) (attendance.Session, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if sess, ok := repo.db.sessions[id]; ok {
		return *sess, nil
	}
	return attendance.Session{}, attendance.ErrSessionNotFound
}

func (repo *attendanceRepository) GetActiveSession(_ context.Context, classID string) (attendance.Session, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var latest *attendance.Session
	for _, sess := range repo.db.sessions {
		if sess.ClassID != classID || !sess.IsActive {
			continue
		}
		if latest == nil || sess.CreatedAt.After(latest.CreatedAt) {
			latest = sess
		}
	}
	if latest == nil {
		return attendance.Session{}, attendance.ErrSessionNotFound
	}
	return *latest, nil
}

func (repo *attendanceRepository) UpdateSession(_ context.Context, sess attendance.Session) (attendance.Session, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.sessions[sess.ID]; !ok {
		return attendance.Session{}, attendance.ErrSessionNotFound
	}
	repo.db.sessions[sess.ID] = &sess
	return sess, nil
}

func (repo *attendanceRepository) CreateRecord(_ context.Context, rec attendance.Record) (attendance.Record, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	// same uniqueness semantics as the DB constraint on (session, student)
	for _, r := range repo.db.records {
		if r.SessionID == rec.SessionID && r.StudentID == rec.StudentID {
			return attendance.Record{}, attendance.ErrAlreadySubmitted
		}
	}

	rec.ID = uuid.New().String()
	repo.db.records[rec.ID] = &rec
	return rec, nil
}

func (repo *attendanceRepository) GetRecord(_ context.Context, sessionID, studentID string) (attendance.Record, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, rec := range repo.db.records {
		if rec.SessionID == sessionID && rec.StudentID == studentID {
			return *rec, nil
		}
	}
	return attendance.Record{}, attendance.ErrRecordNotFound
}

func (repo *attendanceRepository) QueryRecordsBySession(_ context.Context, sessionID string) ([]attendance.Record, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var records []attendance.Record
	for _, rec := range repo.db.records {
		if rec.SessionID == sessionID {
			records = append(records, *rec)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].MarkedAt.Equal(records[j].MarkedAt) {
			return records[i].ID < records[j].ID
		}
		return records[i].MarkedAt.Before(records[j].MarkedAt)
	})
	return records, nil
}
