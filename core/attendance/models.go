package attendance

import (
	"time"

	"github.com/trezcool/hudhuria/core"
)

// Record statuses
const (
	StatusPresent = "present"
)

// Session is an attendance-taking window opened by a teacher for a class.
// Its code is static for the session's entire lifetime.
// The geofence is drawn from the owning class, never from the session.
type Session struct {
	ID        string     `json:"id"`
	ClassID   string     `json:"class_id"`
	CreatedBy string     `json:"created_by"`
	Code      string     `json:"-"`
	StartsAt  *time.Time `json:"starts_at"` // optional validity window
	EndsAt    *time.Time `json:"ends_at"`
	IsActive  bool       `json:"is_active"`
	CreatedAt time.Time  `json:"created_at"` // UTC
}

// HasWindow reports whether the session defines a validity window.
func (s Session) HasWindow() bool { return s.StartsAt != nil || s.EndsAt != nil }

// Record is a student's attendance mark for a session.
// At most one exists per (session, student) pair; it is never mutated.
type Record struct {
	ID              string    `json:"id"`
	SessionID       string    `json:"session_id"`
	StudentID       string    `json:"student_id"`
	Status          string    `json:"status"`
	DeviceSignature string    `json:"device_signature"`
	IPPrefix        string    `json:"ip_prefix"`
	MarkedAt        time.Time `json:"marked_at"` // UTC
}

// DeviceInfo is the client-reported environment used for the device
// fingerprint. Absent fields default to the empty string so the
// fingerprint is total over all inputs.
type DeviceInfo struct {
	UserAgent  string `json:"user_agent"`
	ScreenSize string `json:"screen_size"`
	Timezone   string `json:"timezone"`
	Language   string `json:"language"`
	IPSubnet   string `json:"ip_subnet"`
}

// NewSession contains information needed to start a new Session.
// StartsAt/EndsAt are optional ISO-8601 timestamps.
type NewSession struct {
	ClassID  string `json:"class_id" validate:"required"`
	Code     string `json:"attendance_code" validate:"required"`
	StartsAt string `json:"starts_at"`
	EndsAt   string `json:"ends_at"`
}

func (ns *NewSession) Validate() error {
	ns.ClassID = core.CleanString(ns.ClassID)
	ns.Code = core.CleanString(ns.Code)
	ns.StartsAt = core.CleanString(ns.StartsAt)
	ns.EndsAt = core.CleanString(ns.EndsAt)
	return core.Validate.Struct(ns)
}

// Submission is a student's attendance submission. Location is optional:
// when absent the geofence check is skipped.
type Submission struct {
	SessionID  string     `json:"attendance_session_id" validate:"required"`
	Code       string     `json:"attendance_code" validate:"required"`
	Latitude   *float64   `json:"latitude" validate:"required_with=Longitude,omitempty,gte=-90,lte=90"`
	Longitude  *float64   `json:"longitude" validate:"required_with=Latitude,omitempty,gte=-180,lte=180"`
	DeviceInfo DeviceInfo `json:"device_info"`
}

func (s *Submission) Validate() error {
	s.SessionID = core.CleanString(s.SessionID)
	return core.Validate.Struct(s)
}

// HasLocation reports whether both coordinates were submitted.
func (s Submission) HasLocation() bool { return s.Latitude != nil && s.Longitude != nil }
