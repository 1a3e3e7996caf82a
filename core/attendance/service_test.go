package attendance_test

import (
	"context"
	"testing"
	"time"

	"github.com/trezcool/hudhuria/core"
	"github.com/trezcool/hudhuria/core/attendance"
	"github.com/trezcool/hudhuria/core/class"
	dummydb "github.com/trezcool/hudhuria/storage/database/dummy"
)

var ctx = context.Background()

func setup(t *testing.T) (attendance.Service, class.Service) {
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("setup(): %v", err)
	}
	classSvc := class.NewService(dummydb.NewClassRepository(db))
	attSvc := attendance.NewService(dummydb.NewAttendanceRepository(db), classSvc)
	return attSvc, classSvc
}

func fPtr(f float64) *float64 { return &f }

func createClass(t *testing.T, svc class.Service, teacherID string, lat, lon, radius float64) class.Class {
	cls, err := svc.Create(ctx, teacherID, class.NewClass{
		Name:         "Go 101",
		Latitude:     &lat,
		Longitude:    &lon,
		RadiusMeters: &radius,
	})
	if err != nil {
		t.Fatalf("createClass(): %v", err)
	}
	return cls
}

func enroll(t *testing.T, svc class.Service, studentID, classID string) {
	if _, _, err := svc.Enroll(ctx, studentID, classID); err != nil {
		t.Fatalf("enroll(): %v", err)
	}
}

func startSession(t *testing.T, svc attendance.Service, teacherID string, ns attendance.NewSession) attendance.Session {
	sess, err := svc.Start(ctx, teacherID, ns)
	if err != nil {
		t.Fatalf("startSession(): %v", err)
	}
	return sess
}

func TestService_Submit(t *testing.T) {
	attSvc, classSvc := setup(t)

	teacherID := "teacher-1"
	studentID := "student-1"
	strangerID := "student-2"

	cls := createClass(t, classSvc, teacherID, 40.0000, -73.0000, 50)
	enroll(t, classSvc, studentID, cls.ID)

	sess := startSession(t, attSvc, teacherID, attendance.NewSession{ClassID: cls.ID, Code: "ABC123"})

	endedSess := startSession(t, attSvc, teacherID, attendance.NewSession{ClassID: cls.ID, Code: "ABC123"})
	if err := attSvc.End(ctx, teacherID, endedSess.ID); err != nil {
		t.Fatalf("End(): %v", err)
	}

	device := attendance.DeviceInfo{
		UserAgent:  "Mozilla/5.0",
		ScreenSize: "1920x1080",
		Timezone:   "America/New_York",
		Language:   "en-US",
		IPSubnet:   "192.168.1",
	}

	tests := []struct {
		name      string
		studentID string
		sub       attendance.Submission
		wantErr   error
	}{
		{
			name:      "unknown session",
			studentID: studentID,
			sub:       attendance.Submission{SessionID: "nope", Code: "ABC123"},
			wantErr:   attendance.ErrSessionNotFound,
		},
		{
			name:      "inactive session rejects even with valid code and location",
			studentID: studentID,
			sub: attendance.Submission{
				SessionID: endedSess.ID,
				Code:      "ABC123",
				Latitude:  fPtr(40.0000),
				Longitude: fPtr(-73.0000),
			},
			wantErr: attendance.ErrSessionInactive,
		},
		{
			name:      "not enrolled",
			studentID: strangerID,
			sub:       attendance.Submission{SessionID: sess.ID, Code: "ABC123"},
			wantErr:   attendance.ErrNotEnrolled,
		},
		{
			name:      "code is case-sensitive",
			studentID: studentID,
			sub:       attendance.Submission{SessionID: sess.ID, Code: "abc123"},
			wantErr:   attendance.ErrInvalidCode,
		},
		{
			name:      "~111m away is out of range",
			studentID: studentID,
			sub: attendance.Submission{
				SessionID: sess.ID,
				Code:      "ABC123",
				Latitude:  fPtr(40.0010),
				Longitude: fPtr(-73.0000),
			},
			wantErr: attendance.ErrOutOfRange,
		},
		{
			name:      "~33m away is accepted",
			studentID: studentID,
			sub: attendance.Submission{
				SessionID:  sess.ID,
				Code:       "ABC123",
				Latitude:   fPtr(40.0003),
				Longitude:  fPtr(-73.0000),
				DeviceInfo: device,
			},
		},
		{
			name:      "second submission rejected",
			studentID: studentID,
			sub:       attendance.Submission{SessionID: sess.ID, Code: "ABC123"},
			wantErr:   attendance.ErrAlreadySubmitted,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := attSvc.Submit(ctx, tt.studentID, tt.sub)
			if err != tt.wantErr {
				t.Fatalf("Submit() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr == nil {
				if rec.Status != attendance.StatusPresent {
					t.Errorf("Submit() status = %v, want %v", rec.Status, attendance.StatusPresent)
				}
				if rec.DeviceSignature != tt.sub.DeviceInfo.Fingerprint() {
					t.Errorf("Submit() device signature = %v, want %v", rec.DeviceSignature, tt.sub.DeviceInfo.Fingerprint())
				}
				if rec.IPPrefix != tt.sub.DeviceInfo.IPSubnet {
					t.Errorf("Submit() ip prefix = %v, want %v", rec.IPPrefix, tt.sub.DeviceInfo.IPSubnet)
				}
			}
		})
	}
}

func TestService_Submit_noLocationSkipsGeofence(t *testing.T) {
	attSvc, classSvc := setup(t)

	cls := createClass(t, classSvc, "teacher-1", 40, -73, 50)
	enroll(t, classSvc, "student-1", cls.ID)
	sess := startSession(t, attSvc, "teacher-1", attendance.NewSession{ClassID: cls.ID, Code: "XYZ"})

	if _, err := attSvc.Submit(ctx, "student-1", attendance.Submission{SessionID: sess.ID, Code: "XYZ"}); err != nil {
		t.Errorf("Submit() without location error = %v", err)
	}
}

func TestService_Submit_boundaryDistanceAccepted(t *testing.T) {
	attSvc, classSvc := setup(t)

	// radius exactly equal to the submitted distance: boundary inclusive
	radius := attendance.Distance(40.0003, -73, 40, -73)
	cls := createClass(t, classSvc, "teacher-1", 40, -73, radius)
	enroll(t, classSvc, "student-1", cls.ID)
	sess := startSession(t, attSvc, "teacher-1", attendance.NewSession{ClassID: cls.ID, Code: "XYZ"})

	sub := attendance.Submission{
		SessionID: sess.ID,
		Code:      "XYZ",
		Latitude:  fPtr(40.0003),
		Longitude: fPtr(-73.0000),
	}
	if _, err := attSvc.Submit(ctx, "student-1", sub); err != nil {
		t.Errorf("Submit() at boundary distance error = %v", err)
	}
}

func TestService_Submit_window(t *testing.T) {
	attSvc, classSvc := setup(t)

	cls := createClass(t, classSvc, "teacher-1", 40, -73, 50)
	sess := startSession(t, attSvc, "teacher-1", attendance.NewSession{
		ClassID:  cls.ID,
		Code:     "XYZ",
		StartsAt: "2026-01-31T09:00:00",
		EndsAt:   "2026-01-31T10:00:00",
	})

	defer func() { attendance.NowFunc = time.Now }()

	// one student per case; a prior acceptance must not mask a window check
	tests := []struct {
		name      string
		studentID string
		now       time.Time
		wantErr   error
	}{
		{name: "before window", studentID: "student-1", now: time.Date(2026, 1, 31, 8, 59, 59, 0, time.UTC), wantErr: attendance.ErrWindowNotStarted},
		{name: "at window start", studentID: "student-2", now: time.Date(2026, 1, 31, 9, 0, 0, 0, time.UTC)},
		{name: "at window end", studentID: "student-3", now: time.Date(2026, 1, 31, 10, 0, 0, 0, time.UTC)},
		{name: "after window", studentID: "student-4", now: time.Date(2026, 1, 31, 10, 0, 1, 0, time.UTC), wantErr: attendance.ErrWindowEnded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enroll(t, classSvc, tt.studentID, cls.ID)
			attendance.NowFunc = func() time.Time { return tt.now }
			_, err := attSvc.Submit(ctx, tt.studentID, attendance.Submission{SessionID: sess.ID, Code: "XYZ"})
			if err != tt.wantErr {
				t.Errorf("Submit() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestService_Start(t *testing.T) {
	attSvc, classSvc := setup(t)
	cls := createClass(t, classSvc, "teacher-1", 40, -73, 50)

	tests := []struct {
		name       string
		ns         attendance.NewSession
		wantErr    error
		wantValErr bool
	}{
		{
			name:    "unknown class",
			ns:      attendance.NewSession{ClassID: "nope", Code: "XYZ"},
			wantErr: class.ErrNotFound,
		},
		{
			name:       "malformed starts_at",
			ns:         attendance.NewSession{ClassID: cls.ID, Code: "XYZ", StartsAt: "31/01/2026 09:00"},
			wantValErr: true,
		},
		{
			name:       "malformed ends_at",
			ns:         attendance.NewSession{ClassID: cls.ID, Code: "XYZ", EndsAt: "whenever"},
			wantValErr: true,
		},
		{
			name: "ends before starts",
			ns: attendance.NewSession{
				ClassID:  cls.ID,
				Code:     "XYZ",
				StartsAt: "2026-01-31T10:00:00",
				EndsAt:   "2026-01-31T09:00:00",
			},
			wantValErr: true,
		},
		{name: "no window", ns: attendance.NewSession{ClassID: cls.ID, Code: "XYZ"}},
		{
			name: "naive window taken as UTC",
			ns: attendance.NewSession{
				ClassID:  cls.ID,
				Code:     "XYZ",
				StartsAt: "2026-01-31T09:00:00",
				EndsAt:   "2026-01-31T10:00:00",
			},
		},
		{
			name: "RFC3339 window",
			ns: attendance.NewSession{
				ClassID:  cls.ID,
				Code:     "XYZ",
				StartsAt: "2026-01-31T09:00:00Z",
				EndsAt:   "2026-01-31T10:00:00Z",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess, err := attSvc.Start(ctx, "teacher-1", tt.ns)
			if tt.wantValErr {
				if _, ok := err.(*core.ValidationError); !ok {
					t.Fatalf("Start() error = %v, want *core.ValidationError", err)
				}
				return
			}
			if err != tt.wantErr {
				t.Fatalf("Start() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			if !sess.IsActive {
				t.Error("Start() session is not active")
			}
			if sess.CreatedBy != "teacher-1" {
				t.Errorf("Start() created_by = %v", sess.CreatedBy)
			}
			if tt.ns.StartsAt != "" {
				want := time.Date(2026, 1, 31, 9, 0, 0, 0, time.UTC)
				if sess.StartsAt == nil || !sess.StartsAt.Equal(want) {
					t.Errorf("Start() starts_at = %v, want %v", sess.StartsAt, want)
				}
			}
		})
	}

	// multiple simultaneously-active sessions for the same class are allowed
	if _, err := attSvc.Start(ctx, "teacher-1", attendance.NewSession{ClassID: cls.ID, Code: "AAA"}); err != nil {
		t.Errorf("Start() second active session error = %v", err)
	}
}

func TestService_End(t *testing.T) {
	attSvc, classSvc := setup(t)
	cls := createClass(t, classSvc, "teacher-1", 40, -73, 50)
	sess := startSession(t, attSvc, "teacher-1", attendance.NewSession{ClassID: cls.ID, Code: "XYZ"})

	if err := attSvc.End(ctx, "teacher-1", "nope"); err != attendance.ErrSessionNotFound {
		t.Errorf("End() error = %v, want %v", err, attendance.ErrSessionNotFound)
	}
	if err := attSvc.End(ctx, "teacher-2", sess.ID); err != attendance.ErrNotSessionOwner {
		t.Errorf("End() error = %v, want %v", err, attendance.ErrNotSessionOwner)
	}
	if err := attSvc.End(ctx, "teacher-1", sess.ID); err != nil {
		t.Fatalf("End() error = %v", err)
	}
	if got, err := attSvc.Get(ctx, sess.ID); err != nil || got.IsActive {
		t.Errorf("End() session still active (err = %v)", err)
	}
}

func TestService_Active(t *testing.T) {
	attSvc, classSvc := setup(t)
	cls := createClass(t, classSvc, "teacher-1", 40, -73, 50)

	if _, err := attSvc.Active(ctx, "nope"); err != class.ErrNotFound {
		t.Errorf("Active() error = %v, want %v", err, class.ErrNotFound)
	}
	if _, err := attSvc.Active(ctx, cls.ID); err != attendance.ErrSessionNotFound {
		t.Errorf("Active() error = %v, want %v", err, attendance.ErrSessionNotFound)
	}

	first := startSession(t, attSvc, "teacher-1", attendance.NewSession{ClassID: cls.ID, Code: "AAA"})
	if err := attSvc.End(ctx, "teacher-1", first.ID); err != nil {
		t.Fatalf("End(): %v", err)
	}
	second := startSession(t, attSvc, "teacher-1", attendance.NewSession{ClassID: cls.ID, Code: "BBB"})

	got, err := attSvc.Active(ctx, cls.ID)
	if err != nil {
		t.Fatalf("Active() error = %v", err)
	}
	if got.ID != second.ID {
		t.Errorf("Active() = %v, want %v", got.ID, second.ID)
	}
}

func TestService_Records(t *testing.T) {
	attSvc, classSvc := setup(t)
	cls := createClass(t, classSvc, "teacher-1", 40, -73, 50)
	sess := startSession(t, attSvc, "teacher-1", attendance.NewSession{ClassID: cls.ID, Code: "XYZ"})

	if _, err := attSvc.Records(ctx, "nope"); err != attendance.ErrSessionNotFound {
		t.Errorf("Records() error = %v, want %v", err, attendance.ErrSessionNotFound)
	}

	defer func() { attendance.NowFunc = time.Now }()
	base := time.Date(2026, 1, 31, 9, 0, 0, 0, time.UTC)
	for i, studentID := range []string{"student-3", "student-1", "student-2"} {
		enroll(t, classSvc, studentID, cls.ID)
		now := base.Add(time.Duration(i) * time.Minute)
		attendance.NowFunc = func() time.Time { return now }
		if _, err := attSvc.Submit(ctx, studentID, attendance.Submission{SessionID: sess.ID, Code: "XYZ"}); err != nil {
			t.Fatalf("Submit(%s): %v", studentID, err)
		}
	}

	records, err := attSvc.Records(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Records() error = %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("Records() len = %d, want 3", len(records))
	}
	// ordered by submission time ascending
	wantOrder := []string{"student-3", "student-1", "student-2"}
	for i, rec := range records {
		if rec.StudentID != wantOrder[i] {
			t.Errorf("Records()[%d] = %v, want %v", i, rec.StudentID, wantOrder[i])
		}
	}
}
