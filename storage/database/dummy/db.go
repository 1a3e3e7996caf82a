package dummydb

import (
	"sync"

	"github.com/trezcool/hudhuria/core/attendance"
	"github.com/trezcool/hudhuria/core/class"
	"github.com/trezcool/hudhuria/core/user"
)

type (
	DB struct {
		user       *userTable
		class      *classTable
		attendance *attendanceTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	classTable struct {
		sync.RWMutex
		classes     map[string]*class.Class
		enrollments map[string]*class.Enrollment
	}

	attendanceTable struct {
		sync.RWMutex
		sessions map[string]*attendance.Session
		records  map[string]*attendance.Record
	}
)

func Open() (*DB, error) {
	db := &DB{
		user: &userTable{table: make(map[string]*user.User)},
		class: &classTable{
			classes:     make(map[string]*class.Class),
			enrollments: make(map[string]*class.Enrollment),
		},
		attendance: &attendanceTable{
			sessions: make(map[string]*attendance.Session),
			records:  make(map[string]*attendance.Record),
		},
	}
	return db, nil
}
