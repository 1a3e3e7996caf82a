package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/trezcool/hudhuria/core/attendance"
	"github.com/trezcool/hudhuria/core/class"
	"github.com/trezcool/hudhuria/core/user"
)

var ctx = context.Background()

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
) user.User {
	tstamp := time.Now().UTC()
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser(): %v", err)
		}
	}
	usr, err := repo.CreateUser(ctx, usr)
	if err != nil {
		t.Fatalf("CreateUser(): %v", err)
	}
	return usr
}

func CreateClass(
	t *testing.T,
	repo class.Repository,
	teacherID, name string,
	lat, lon, radius float64,
) class.Class {
	cls, err := repo.CreateClass(ctx, class.Class{
		Name:         name,
		TeacherID:    teacherID,
		Latitude:     lat,
		Longitude:    lon,
		RadiusMeters: radius,
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateClass(): %v", err)
	}
	return cls
}

func Enroll(t *testing.T, repo class.Repository, studentID, classID string) class.Enrollment {
	enr, err := repo.CreateEnrollment(ctx, class.Enrollment{
		StudentID:  studentID,
		ClassID:    classID,
		IsActive:   true,
		EnrolledAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("Enroll(): %v", err)
	}
	return enr
}

func CreateSession(
	t *testing.T,
	repo attendance.Repository,
	classID, teacherID, code string,
	window ...time.Time,
) attendance.Session {
	sess := attendance.Session{
		ClassID:   classID,
		CreatedBy: teacherID,
		Code:      code,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
	if len(window) > 0 {
		startsAt := window[0].UTC()
		sess.StartsAt = &startsAt
	}
	if len(window) > 1 {
		endsAt := window[1].UTC()
		sess.EndsAt = &endsAt
	}
	sess, err := repo.CreateSession(ctx, sess)
	if err != nil {
		t.Fatalf("CreateSession(): %v", err)
	}
	return sess
}
