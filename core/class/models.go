package class

import (
	"time"

	"github.com/trezcool/hudhuria/core"
)

type Class struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	TeacherID    string    `json:"teacher_id"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	RadiusMeters float64   `json:"radius_meters"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"` // UTC
}

// Enrollment allows a student to submit attendance for a Class's sessions.
// At most one exists per (student, class) pair.
type Enrollment struct {
	ID         string    `json:"id"`
	StudentID  string    `json:"student_id"`
	ClassID    string    `json:"class_id"`
	IsActive   bool      `json:"is_active"`
	EnrolledAt time.Time `json:"enrolled_at"` // UTC
}

// NewClass contains information needed to create a new Class.
// The geofence (center + radius) is required: sessions never carry their own coordinates.
type NewClass struct {
	Name         string   `json:"name" validate:"required"`
	Latitude     *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude    *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
	RadiusMeters *float64 `json:"radius_meters" validate:"required,gt=0"`
}

func (nc *NewClass) Validate() error {
	nc.Name = core.CleanString(nc.Name)
	return core.Validate.Struct(nc)
}
