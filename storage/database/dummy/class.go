package dummydb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/hudhuria/core/class"
)

type classRepository struct {
	db *classTable
}

var _ class.Repository = (*classRepository)(nil) // interface compliance check

func NewClassRepository(db *DB) class.Repository {
	return &classRepository{db: db.class}
}

func (repo *classRepository) CreateClass(_ context.Context, cls class.Class) (class.Class, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	cls.ID = uuid.New().String()
	repo.db.classes[cls.ID] = &cls
	return cls, nil
}

func (repo *classRepository) GetClassByID(_ context.Context, id string) (class.Class, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if cls, ok := repo.db.classes[id]; ok {
		return *cls, nil
	}
	return class.Class{}, class.ErrNotFound
}

func (repo *classRepository) QueryClassesByTeacher(_ context.Context, teacherID string) ([]class.Class, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var classes []class.Class
	for _, cls := range repo.db.classes {
		if cls.TeacherID == teacherID {
			classes = append(classes, *cls)
		}
	}
	sortClasses(classes)
	return classes, nil
}

func (repo *classRepository) QueryClassesByStudent(_ context.Context, studentID string) ([]class.Class, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var classes []class.Class
	for _, enr := range repo.db.enrollments {
		if enr.StudentID == studentID {
			if cls, ok := repo.db.classes[enr.ClassID]; ok {
				classes = append(classes, *cls)
			}
		}
	}
	sortClasses(classes)
	return classes, nil
}

func (repo *classRepository) CreateEnrollment(_ context.Context, enr class.Enrollment) (class.Enrollment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	// same uniqueness semantics as the DB constraint on (student, class)
	for _, e := range repo.db.enrollments {
		if e.StudentID == enr.StudentID && e.ClassID == enr.ClassID {
			return class.Enrollment{}, class.ErrAlreadyEnrolled
		}
	}

	enr.ID = uuid.New().String()
	repo.db.enrollments[enr.ID] = &enr
	return enr, nil
}

func (repo *classRepository) GetEnrollment(_ context.Context, studentID, classID string) (class.Enrollment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, enr := range repo.db.enrollments {
		if enr.StudentID == studentID && enr.ClassID == classID {
			return *enr, nil
		}
	}
	return class.Enrollment{}, class.ErrEnrollmentNotFound
}

func sortClasses(classes []class.Class) {
	sort.Slice(classes, func(i, j int) bool {
		if classes[i].CreatedAt.Equal(classes[j].CreatedAt) {
			return classes[i].ID < classes[j].ID
		}
		return classes[i].CreatedAt.Before(classes[j].CreatedAt)
	})
}
