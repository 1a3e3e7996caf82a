package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/hudhuria/core/class"
)

type classRow struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	TeacherID    string    `db:"teacher_id"`
	Latitude     float64   `db:"latitude"`
	Longitude    float64   `db:"longitude"`
	RadiusMeters float64   `db:"radius_meters"`
	IsActive     bool      `db:"is_active"`
	CreatedAt    time.Time `db:"created_at"`
}

type enrollmentRow struct {
	ID         string    `db:"id"`
	StudentID  string    `db:"student_id"`
	ClassID    string    `db:"class_id"`
	IsActive   bool      `db:"is_active"`
	EnrolledAt time.Time `db:"enrolled_at"`
}

type classRepository struct {
	db *sqlx.DB
}

var _ class.Repository = (*classRepository)(nil) // interface compliance check

func NewClassRepository(db *sqlx.DB) *classRepository {
	return &classRepository{db: db}
}

func (repo classRepository) pack(cls class.Class) classRow {
	return classRow{
		ID:           cls.ID,
		Name:         cls.Name,
		TeacherID:    cls.TeacherID,
		Latitude:     cls.Latitude,
		Longitude:    cls.Longitude,
		RadiusMeters: cls.RadiusMeters,
		IsActive:     cls.IsActive,
		CreatedAt:    cls.CreatedAt.UTC(),
	}
}

func (repo classRepository) unpack(row classRow) class.Class {
	return class.Class{
		ID:           row.ID,
		Name:         row.Name,
		TeacherID:    row.TeacherID,
		Latitude:     row.Latitude,
		Longitude:    row.Longitude,
		RadiusMeters: row.RadiusMeters,
		IsActive:     row.IsActive,
		CreatedAt:    row.CreatedAt,
	}
}

func (repo classRepository) unpackSlice(rows []classRow) []class.Class {
	classes := make([]class.Class, 0, len(rows))
	for _, row := range rows {
		classes = append(classes, repo.unpack(row))
	}
	return classes
}

func (repo classRepository) unpackEnrollment(row enrollmentRow) class.Enrollment {
	return class.Enrollment{
		ID:         row.ID,
		StudentID:  row.StudentID,
		ClassID:    row.ClassID,
		IsActive:   row.IsActive,
		EnrolledAt: row.EnrolledAt,
	}
}

func (repo classRepository) CreateClass(ctx context.Context, cls class.Class) (class.Class, error) {
	cls.ID = uuid.New().String()
	row := repo.pack(cls)
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO class (id, name, teacher_id, latitude, longitude, radius_meters, is_active, created_at)
		VALUES (:id, :name, :teacher_id, :latitude, :longitude, :radius_meters, :is_active, :created_at)`,
		row,
	)
	if err != nil {
		return class.Class{}, errors.Wrap(err, "inserting class")
	}
	return repo.unpack(row), nil
}

func (repo classRepository) GetClassByID(ctx context.Context, id string) (class.Class, error) {
	if _, err := uuid.Parse(id); err != nil {
		return class.Class{}, class.ErrNotFound
	}
	var row classRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM class WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return class.Class{}, class.ErrNotFound
		}
		return class.Class{}, errors.Wrap(err, "finding class by ID")
	}
	return repo.unpack(row), nil
}

func (repo classRepository) QueryClassesByTeacher(ctx context.Context, teacherID string) ([]class.Class, error) {
	var rows []classRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT * FROM class WHERE teacher_id = $1 ORDER BY created_at, id`, teacherID)
	if err != nil {
		return nil, errors.Wrap(err, "querying classes by teacher")
	}
	return repo.unpackSlice(rows), nil
}

func (repo classRepository) QueryClassesByStudent(ctx context.Context, studentID string) ([]class.Class, error) {
	var rows []classRow
	err := repo.db.SelectContext(ctx, &rows, `
		SELECT c.* FROM class c
		INNER JOIN enrollment e ON e.class_id = c.id
		WHERE e.student_id = $1
		ORDER BY c.created_at, c.id`,
		studentID)
	if err != nil {
		return nil, errors.Wrap(err, "querying classes by student")
	}
	return repo.unpackSlice(rows), nil
}

func (repo classRepository) CreateEnrollment(ctx context.Context, enr class.Enrollment) (class.Enrollment, error) {
	enr.ID = uuid.New().String()
	row := enrollmentRow{
		ID:         enr.ID,
		StudentID:  enr.StudentID,
		ClassID:    enr.ClassID,
		IsActive:   enr.IsActive,
		EnrolledAt: enr.EnrolledAt.UTC(),
	}
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO enrollment (id, student_id, class_id, is_active, enrolled_at)
		VALUES (:id, :student_id, :class_id, :is_active, :enrolled_at)`,
		row,
	)
	if err != nil {
		// unique constraint on (student, class) resolves concurrent enrollments
		if isUniqueViolation(err, "enrollment_student_class_key") {
			return class.Enrollment{}, class.ErrAlreadyEnrolled
		}
		return class.Enrollment{}, errors.Wrap(err, "inserting enrollment")
	}
	return repo.unpackEnrollment(row), nil
}

func (repo classRepository) GetEnrollment(ctx context.Context, studentID, classID string) (class.Enrollment, error) {
	var row enrollmentRow
	err := repo.db.GetContext(ctx, &row,
		`SELECT * FROM enrollment WHERE student_id = $1 AND class_id = $2`, studentID, classID)
	if err != nil {
		if err == sql.ErrNoRows {
			return class.Enrollment{}, class.ErrEnrollmentNotFound
		}
		return class.Enrollment{}, errors.Wrap(err, "finding enrollment")
	}
	return repo.unpackEnrollment(row), nil
}
