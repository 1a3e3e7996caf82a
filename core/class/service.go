package class

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var (
	// errors
	ErrNotFound           = errors.New("class not found")
	ErrEnrollmentNotFound = errors.New("enrollment not found")
	ErrAlreadyEnrolled    = errors.New("student already enrolled in this class")
)

type (
	Repository interface {
		CreateClass(ctx context.Context, cls Class) (Class, error)
		GetClassByID(ctx context.Context, id string) (Class, error)
		QueryClassesByTeacher(ctx context.Context, teacherID string) ([]Class, error)
		QueryClassesByStudent(ctx context.Context, studentID string) ([]Class, error)
		// CreateEnrollment returns ErrAlreadyEnrolled if an enrollment
		// for the same (student, class) pair exists; the unique constraint
		// on that pair is enforced at the storage level.
		CreateEnrollment(ctx context.Context, enr Enrollment) (Enrollment, error)
		GetEnrollment(ctx context.Context, studentID, classID string) (Enrollment, error)
	}

	Service interface {
		Create(ctx context.Context, teacherID string, nc NewClass) (Class, error)
		GetByID(ctx context.Context, id string) (Class, error)
		QueryByTeacher(ctx context.Context, teacherID string) ([]Class, error)
		QueryByStudent(ctx context.Context, studentID string) ([]Class, error)
		// Enroll is idempotent: re-enrolling returns the existing
		// Enrollment and created=false.
		Enroll(ctx context.Context, studentID, classID string) (enr Enrollment, created bool, err error)
		IsEnrolled(ctx context.Context, studentID, classID string) (bool, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) Create(ctx context.Context, teacherID string, nc NewClass) (Class, error) {
	cls := Class{
		Name:         nc.Name,
		TeacherID:    teacherID,
		Latitude:     *nc.Latitude,
		Longitude:    *nc.Longitude,
		RadiusMeters: *nc.RadiusMeters,
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
	}
	return svc.repo.CreateClass(ctx, cls)
}

func (svc *service) GetByID(ctx context.Context, id string) (Class, error) {
	return svc.repo.GetClassByID(ctx, id)
}

func (svc *service) QueryByTeacher(ctx context.Context, teacherID string) ([]Class, error) {
	return svc.repo.QueryClassesByTeacher(ctx, teacherID)
}

func (svc *service) QueryByStudent(ctx context.Context, studentID string) ([]Class, error) {
	return svc.repo.QueryClassesByStudent(ctx, studentID)
}

func (svc *service) Enroll(ctx context.Context, studentID, classID string) (Enrollment, bool, error) {
	if _, err := svc.repo.GetClassByID(ctx, classID); err != nil {
		return Enrollment{}, false, err
	}

	if enr, err := svc.repo.GetEnrollment(ctx, studentID, classID); err == nil {
		return enr, false, nil
	} else if errors.Cause(err) != ErrEnrollmentNotFound {
		return Enrollment{}, false, err
	}

	enr, err := svc.repo.CreateEnrollment(ctx, Enrollment{
		StudentID:  studentID,
		ClassID:    classID,
		IsActive:   true,
		EnrolledAt: time.Now().UTC(),
	})
	if err != nil {
		// a concurrent enrollment hit the unique constraint first; return it
		if errors.Cause(err) == ErrAlreadyEnrolled {
			enr, err = svc.repo.GetEnrollment(ctx, studentID, classID)
			return enr, false, err
		}
		return Enrollment{}, false, err
	}
	return enr, true, nil
}

func (svc *service) IsEnrolled(ctx context.Context, studentID, classID string) (bool, error) {
	if _, err := svc.repo.GetEnrollment(ctx, studentID, classID); err != nil {
		if errors.Cause(err) == ErrEnrollmentNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
