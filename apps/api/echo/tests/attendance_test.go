package tests

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/hudhuria/core/attendance"
	"github.com/trezcool/hudhuria/core/user"
	testutil "github.com/trezcool/hudhuria/tests"
)

func Test_attendanceApi_start(t *testing.T) {
	ta := setup(t)

	teacher := testutil.CreateUser(t, ta.usrRepo, "Prof Kalala", "profkalala", "kalala@test.cd", "", []string{user.RoleTeacher}, true)
	other := testutil.CreateUser(t, ta.usrRepo, "Prof Luyindula", "profluyi", "luyi@test.cd", "", []string{user.RoleTeacher}, true)
	student := testutil.CreateUser(t, ta.usrRepo, "Awe Mbenza", "awemben", "awe@test.cd", "", []string{user.RoleStudent}, true)
	cls := testutil.CreateClass(t, ta.classRepo, teacher.ID, "Go 101", -4.325, 15.3222, 50)

	body := func(classID, code, startsAt, endsAt string) []byte {
		return marchallObj(t, map[string]string{
			"class_id":        classID,
			"attendance_code": code,
			"starts_at":       startsAt,
			"ends_at":         endsAt,
		})
	}

	t.Run("Teacher required", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/attendance/start", getToken(t, student), body(cls.ID, "ABC123", "", ""))
		ta.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("class owner required", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/attendance/start", getToken(t, other), body(cls.ID, "ABC123", "", ""))
		ta.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		}, rec)
	})

	t.Run("unknown class", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/attendance/start", getToken(t, teacher), body("nope", "ABC123", "", ""))
		ta.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("malformed window", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/attendance/start", getToken(t, teacher),
			body(cls.ID, "ABC123", "31/01/2026 09:00", ""))
		ta.app.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		var fldErrs map[string]string
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fldErrs))
		assert.Contains(t, fldErrs, "starts_at")
	})

	t.Run("started, code echoed back", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/attendance/start", getToken(t, teacher),
			body(cls.ID, "ABC123", "2026-01-31T09:00:00", "2026-01-31T10:00:00"))
		ta.app.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)
		var res struct {
			attendance.Session
			Code string `json:"attendance_code"`
		}
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.NotEmpty(t, res.ID)
		assert.Equal(t, "ABC123", res.Code)
		assert.Equal(t, teacher.ID, res.CreatedBy)
		assert.True(t, res.IsActive)
		if assert.NotNil(t, res.StartsAt) {
			assert.Equal(t, time.Date(2026, 1, 31, 9, 0, 0, 0, time.UTC), res.StartsAt.UTC())
		}
	})
}

func Test_attendanceApi_submit(t *testing.T) {
	ta := setup(t)

	teacher := testutil.CreateUser(t, ta.usrRepo, "Prof Kalala", "profkalala", "kalala@test.cd", "", []string{user.RoleTeacher}, true)
	student := testutil.CreateUser(t, ta.usrRepo, "Awe Mbenza", "awemben", "awe@test.cd", "", []string{user.RoleStudent}, true)
	stranger := testutil.CreateUser(t, ta.usrRepo, "N Dog", "ndog007", "ndog@test.cd", "", []string{user.RoleStudent}, true)

	cls := testutil.CreateClass(t, ta.classRepo, teacher.ID, "Go 101", 40.0000, -73.0000, 50)
	testutil.Enroll(t, ta.classRepo, student.ID, cls.ID)
	sess := testutil.CreateSession(t, ta.attRepo, cls.ID, teacher.ID, "ABC123")

	ended := testutil.CreateSession(t, ta.attRepo, cls.ID, teacher.ID, "ABC123")
	assert.NoError(t, ta.attSvc.End(ctx, teacher.ID, ended.ID))

	body := func(sessionID, code string, lat, lon *float64) []byte {
		m := map[string]interface{}{
			"attendance_session_id": sessionID,
			"attendance_code":       code,
			"device_info": map[string]string{
				"user_agent":  "Mozilla/5.0",
				"screen_size": "1920x1080",
				"timezone":    "Africa/Kinshasa",
				"language":    "fr-CD",
			},
		}
		if lat != nil {
			m["latitude"] = *lat
		}
		if lon != nil {
			m["longitude"] = *lon
		}
		return marchallObj(t, m)
	}
	fPtr := func(f float64) *float64 { return &f }

	studentToken := getToken(t, student)

	tests := []httpTest{
		{
			name: "Teacher cannot submit", token: getToken(t, teacher),
			body:     body(sess.ID, "ABC123", nil, nil),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "unknown session", token: studentToken,
			body:     body("nope", "ABC123", nil, nil),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "attendance session not found"}),
		},
		{
			name: "ended session", token: studentToken,
			body:     body(ended.ID, "ABC123", nil, nil),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "attendance session is inactive"}),
		},
		{
			name: "not enrolled", token: getToken(t, stranger),
			body:     body(sess.ID, "ABC123", nil, nil),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "student not enrolled in this class"}),
		},
		{
			name: "code is case-sensitive", token: studentToken,
			body:     body(sess.ID, "abc123", nil, nil),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "invalid attendance code"}),
		},
		{
			name: "~111m away", token: studentToken,
			body:     body(sess.ID, "ABC123", fPtr(40.0010), fPtr(-73.0000)),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "submitted location is outside the allowed radius"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/v1/attendance/submit", tt.token, tt.body)
			ta.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("latitude without longitude", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/attendance/submit", studentToken,
			body(sess.ID, "ABC123", fPtr(40.0003), nil))
		ta.app.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		var fldErrs map[string]string
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fldErrs))
		assert.Contains(t, fldErrs, "longitude")
	})

	t.Run("accepted at ~33m", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/attendance/submit", studentToken,
			body(sess.ID, "ABC123", fPtr(40.0003), fPtr(-73.0000)))
		ta.app.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)
		var rec2 attendance.Record
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rec2))
		assert.Equal(t, attendance.StatusPresent, rec2.Status)
		assert.Equal(t, student.ID, rec2.StudentID)
		assert.NotEmpty(t, rec2.DeviceSignature)
		assert.NotEmpty(t, rec2.IPPrefix)
	})

	t.Run("duplicate rejected", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/attendance/submit", studentToken,
			body(sess.ID, "ABC123", nil, nil))
		ta.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "attendance already submitted"}),
		}, rec)
	})
}

func Test_attendanceApi_end(t *testing.T) {
	ta := setup(t)

	teacher := testutil.CreateUser(t, ta.usrRepo, "Prof Kalala", "profkalala", "kalala@test.cd", "", []string{user.RoleTeacher}, true)
	other := testutil.CreateUser(t, ta.usrRepo, "Prof Luyindula", "profluyi", "luyi@test.cd", "", []string{user.RoleTeacher}, true)
	cls := testutil.CreateClass(t, ta.classRepo, teacher.ID, "Go 101", -4.325, 15.3222, 50)
	sess := testutil.CreateSession(t, ta.attRepo, cls.ID, teacher.ID, "ABC123")

	t.Run("owner required", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/attendance/sessions/"+sess.ID+"/end", getToken(t, other))
		ta.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "only the session's creator may end it"}),
		}, rec)
	})

	t.Run("ended", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/attendance/sessions/"+sess.ID+"/end", getToken(t, teacher))
		ta.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		got, err := ta.attSvc.Get(ctx, sess.ID)
		assert.NoError(t, err)
		assert.False(t, got.IsActive)
	})

	t.Run("unknown session", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/attendance/sessions/nope/end", getToken(t, teacher))
		ta.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func Test_attendanceApi_active(t *testing.T) {
	ta := setup(t)

	teacher := testutil.CreateUser(t, ta.usrRepo, "Prof Kalala", "profkalala", "kalala@test.cd", "", []string{user.RoleTeacher}, true)
	student := testutil.CreateUser(t, ta.usrRepo, "Awe Mbenza", "awemben", "awe@test.cd", "", []string{user.RoleStudent}, true)
	cls := testutil.CreateClass(t, ta.classRepo, teacher.ID, "Go 101", -4.325, 15.3222, 50)

	t.Run("no active session", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/attendance/classes/"+cls.ID+"/active", getToken(t, student))
		ta.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("active session never leaks the code", func(t *testing.T) {
		sess := testutil.CreateSession(t, ta.attRepo, cls.ID, teacher.ID, "S3CRET")

		req, rec := newAuthRequest(http.MethodGet, "/v1/attendance/classes/"+cls.ID+"/active", getToken(t, student))
		ta.app.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var res map[string]interface{}
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.Equal(t, sess.ID, res["id"])
		assert.NotContains(t, rec.Body.String(), "S3CRET")
	})
}

func Test_attendanceApi_records(t *testing.T) {
	ta := setup(t)

	teacher := testutil.CreateUser(t, ta.usrRepo, "Prof Kalala", "profkalala", "kalala@test.cd", "", []string{user.RoleTeacher}, true)
	other := testutil.CreateUser(t, ta.usrRepo, "Prof Luyindula", "profluyi", "luyi@test.cd", "", []string{user.RoleTeacher}, true)
	student := testutil.CreateUser(t, ta.usrRepo, "Awe Mbenza", "awemben", "awe@test.cd", "", []string{user.RoleStudent}, true)

	cls := testutil.CreateClass(t, ta.classRepo, teacher.ID, "Go 101", 40.0000, -73.0000, 50)
	testutil.Enroll(t, ta.classRepo, student.ID, cls.ID)
	sess := testutil.CreateSession(t, ta.attRepo, cls.ID, teacher.ID, "ABC123")

	rec1, err := ta.attSvc.Submit(ctx, student.ID, attendance.Submission{SessionID: sess.ID, Code: "ABC123"})
	assert.NoError(t, err)

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Teacher required", token: getToken(t, student),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "owner required", token: getToken(t, other),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "owner sees records", token: getToken(t, teacher),
			wantCode: http.StatusOK, wantData: marchallList(t, rec1),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, "/v1/attendance/sessions/"+sess.ID+"/records", tt.token)
			ta.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}
