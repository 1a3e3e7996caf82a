package attendance

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/hudhuria/core"
	"github.com/trezcool/hudhuria/core/class"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrSessionNotFound  = errors.New("attendance session not found")
	ErrSessionInactive  = errors.New("attendance session is inactive")
	ErrNotSessionOwner  = errors.New("only the session's creator may end it")
	ErrWindowNotStarted = errors.New("attendance window not started")
	ErrWindowEnded      = errors.New("attendance window ended")
	ErrNotEnrolled      = errors.New("student not enrolled in this class")
	ErrInvalidCode      = errors.New("invalid attendance code")
	ErrOutOfRange       = errors.New("submitted location is outside the allowed radius")
	ErrAlreadySubmitted = errors.New("attendance already submitted")
	ErrRecordNotFound   = errors.New("attendance record not found")

	errMalformedTimestamp = "must be a valid ISO-8601 timestamp"
	errWindowInverted     = "must not be before starts_at"

	// accepted timestamp layouts, tried in order
	timestampLayouts = []string{time.RFC3339, "2006-01-02T15:04:05"}
)

type (
	Repository interface {
		CreateSession(ctx context.Context, sess Session) (Session, error)
		GetSessionByID(ctx context.Context, id string) (Session, error)
		// GetActiveSession returns the most recently created active session.
		GetActiveSession(ctx context.Context, classID string) (Session, error)
		UpdateSession(ctx context.Context, sess Session) (Session, error)
		// CreateRecord returns ErrAlreadySubmitted when a record for the
		// same (session, student) pair exists; the unique constraint on
		// that pair is enforced at the storage level so a concurrent
		// duplicate cannot slip past the existence check.
		CreateRecord(ctx context.Context, rec Record) (Record, error)
		GetRecord(ctx context.Context, sessionID, studentID string) (Record, error)
		// QueryRecordsBySession returns records ordered by MarkedAt ascending.
		QueryRecordsBySession(ctx context.Context, sessionID string) ([]Record, error)
	}

	Service interface {
		// Submit validates a student's submission and persists a Record.
		// Checks run in a fixed order and short-circuit on first failure;
		// a rejected submission writes nothing.
		Submit(ctx context.Context, studentID string, sub Submission) (Record, error)
		Start(ctx context.Context, teacherID string, ns NewSession) (Session, error)
		End(ctx context.Context, teacherID, sessionID string) error
		Get(ctx context.Context, sessionID string) (Session, error)
		Active(ctx context.Context, classID string) (Session, error)
		Records(ctx context.Context, sessionID string) ([]Record, error)
	}

	service struct {
		repo     Repository
		classSvc class.Service
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, classSvc class.Service) Service {
	return &service{
		repo:     repo,
		classSvc: classSvc,
	}
}

func (svc *service) Submit(ctx context.Context, studentID string, sub Submission) (Record, error) {
	sess, err := svc.repo.GetSessionByID(ctx, sub.SessionID)
	if err != nil {
		return Record{}, err
	}
	if !sess.IsActive {
		return Record{}, ErrSessionInactive
	}

	now := NowFunc().UTC()
	if sess.StartsAt != nil && now.Before(*sess.StartsAt) {
		return Record{}, ErrWindowNotStarted
	}
	if sess.EndsAt != nil && now.After(*sess.EndsAt) {
		return Record{}, ErrWindowEnded
	}

	enrolled, err := svc.classSvc.IsEnrolled(ctx, studentID, sess.ClassID)
	if err != nil {
		return Record{}, errors.Wrap(err, "checking enrollment")
	}
	if !enrolled {
		return Record{}, ErrNotEnrolled
	}

	// exact equality; no normalization, no case-folding
	if sub.Code != sess.Code {
		return Record{}, ErrInvalidCode
	}

	if sub.HasLocation() {
		cls, err := svc.classSvc.GetByID(ctx, sess.ClassID)
		if err != nil {
			return Record{}, err
		}
		// boundary inclusive: a distance equal to the radius is accepted
		if Distance(*sub.Latitude, *sub.Longitude, cls.Latitude, cls.Longitude) > cls.RadiusMeters {
			return Record{}, ErrOutOfRange
		}
	}

	if _, err = svc.repo.GetRecord(ctx, sub.SessionID, studentID); err == nil {
		return Record{}, ErrAlreadySubmitted
	} else if errors.Cause(err) != ErrRecordNotFound {
		return Record{}, err
	}

	rec := Record{
		SessionID:       sub.SessionID,
		StudentID:       studentID,
		Status:          StatusPresent,
		DeviceSignature: sub.DeviceInfo.Fingerprint(),
		IPPrefix:        sub.DeviceInfo.IPSubnet,
		MarkedAt:        now,
	}
	// the repo maps a (session, student) unique violation to
	// ErrAlreadySubmitted, resolving the race against the check above
	return svc.repo.CreateRecord(ctx, rec)
}

func (svc *service) Start(ctx context.Context, teacherID string, ns NewSession) (Session, error) {
	startsAt, err := parseTimestamp(ns.StartsAt, "starts_at")
	if err != nil {
		return Session{}, err
	}
	endsAt, err := parseTimestamp(ns.EndsAt, "ends_at")
	if err != nil {
		return Session{}, err
	}
	if startsAt != nil && endsAt != nil && endsAt.Before(*startsAt) {
		return Session{}, core.NewValidationError(nil, core.FieldError{Field: "ends_at", Error: errWindowInverted})
	}

	if _, err := svc.classSvc.GetByID(ctx, ns.ClassID); err != nil {
		return Session{}, err
	}

	// multiple simultaneously-active sessions per class are allowed
	sess := Session{
		ClassID:   ns.ClassID,
		CreatedBy: teacherID,
		Code:      ns.Code,
		StartsAt:  startsAt,
		EndsAt:    endsAt,
		IsActive:  true,
		CreatedAt: NowFunc().UTC(),
	}
	return svc.repo.CreateSession(ctx, sess)
}

func (svc *service) End(ctx context.Context, teacherID, sessionID string) error {
	sess, err := svc.repo.GetSessionByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.CreatedBy != teacherID {
		return ErrNotSessionOwner
	}
	sess.IsActive = false
	_, err = svc.repo.UpdateSession(ctx, sess)
	return err
}

func (svc *service) Get(ctx context.Context, sessionID string) (Session, error) {
	return svc.repo.GetSessionByID(ctx, sessionID)
}

func (svc *service) Active(ctx context.Context, classID string) (Session, error) {
	if _, err := svc.classSvc.GetByID(ctx, classID); err != nil {
		return Session{}, err
	}
	return svc.repo.GetActiveSession(ctx, classID)
}

func (svc *service) Records(ctx context.Context, sessionID string) ([]Record, error) {
	if _, err := svc.repo.GetSessionByID(ctx, sessionID); err != nil {
		return nil, err
	}
	return svc.repo.QueryRecordsBySession(ctx, sessionID)
}

// parseTimestamp parses an optional ISO-8601 timestamp; a naive timestamp
// is taken as UTC. A malformed value is a validation error, never a
// silent default.
func parseTimestamp(value, field string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, core.NewValidationError(nil, core.FieldError{Field: field, Error: errMalformedTimestamp})
}
