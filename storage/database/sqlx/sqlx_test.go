package sqlxrepos

import (
	"testing"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func Test_isUniqueViolation(t *testing.T) {
	dupErr := &pq.Error{Code: pqUniqueViolation, Constraint: "attendance_record_session_student_key"}

	tests := []struct {
		name       string
		err        error
		constraint string
		want       bool
	}{
		{name: "matching constraint", err: dupErr, constraint: "attendance_record_session_student_key", want: true},
		{name: "any constraint", err: dupErr, constraint: "", want: true},
		{name: "wrapped error", err: errors.Wrap(dupErr, "inserting attendance record"), constraint: "attendance_record_session_student_key", want: true},
		{name: "other constraint", err: dupErr, constraint: "enrollment_student_class_key", want: false},
		{name: "other pq error", err: &pq.Error{Code: "23503"}, constraint: "", want: false},
		{name: "non-pq error", err: errors.New("boom"), constraint: "", want: false},
		{name: "nil error", err: nil, constraint: "", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isUniqueViolation(tt.err, tt.constraint))
		})
	}
}
