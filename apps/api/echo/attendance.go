package echoapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/hudhuria/core/attendance"
	"github.com/trezcool/hudhuria/core/class"
)

type attendanceApi struct {
	svc      attendance.Service
	classSvc class.Service
}

func registerAttendanceAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc attendance.Service, classSvc class.Service) {
	api := attendanceApi{svc: svc, classSvc: classSvc}

	ag := g.Group("/attendance", jwt)
	ag.POST("/submit", api.submit, studentMiddleware())
	ag.POST("/start", api.start, teacherMiddleware())
	ag.POST("/sessions/:id/end", api.end, teacherMiddleware())
	ag.GET("/sessions/:id/records", api.records, teacherMiddleware())
	ag.GET("/classes/:id/active", api.active)
}

// Handlers

func (api *attendanceApi) submit(ctx echo.Context) error {
	var data attendance.Submission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Submission")
	}
	if err := data.Validate(); err != nil {
		return err
	}
	// the IP subnet is server-observed, never client-reported
	data.DeviceInfo.IPSubnet = ipSubnet(ctx.RealIP())

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	rec, err := api.svc.Submit(ctx.Request().Context(), claims.Subject, data)
	observeSubmission(err)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, rec)
}

func (api *attendanceApi) start(ctx echo.Context) error {
	var data attendance.NewSession
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSession")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	// only the class owner (or an admin) may open a session for it
	cls, err := api.classSvc.GetByID(ctx.Request().Context(), data.ClassID)
	if err != nil {
		return err
	}
	if cls.TeacherID != claims.Subject && !claims.IsAdmin {
		return errHttpForbidden
	}

	sess, err := api.svc.Start(ctx.Request().Context(), claims.Subject, data)
	if err != nil {
		return err
	}
	// the code is echoed back on creation only
	return ctx.JSON(http.StatusCreated, SessionResponse{Session: sess, Code: sess.Code})
}

func (api *attendanceApi) end(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if err := api.svc.End(ctx.Request().Context(), claims.Subject, ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *attendanceApi) active(ctx echo.Context) error {
	sess, err := api.svc.Active(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sess)
}

func (api *attendanceApi) records(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	sess, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	if sess.CreatedBy != claims.Subject && !claims.IsAdmin {
		return errHttpForbidden
	}

	records, err := api.svc.Records(ctx.Request().Context(), sess.ID)
	if err != nil {
		return errors.Wrap(err, "querying attendance records")
	}
	if records == nil {
		records = []attendance.Record{}
	}
	return ctx.JSON(http.StatusOK, records)
}

// SessionResponse is a Session with its code exposed.
type SessionResponse struct {
	attendance.Session
	Code string `json:"attendance_code"`
}

// ipSubnet reduces an IPv4 address to its /24 prefix; other addresses
// pass through unchanged.
func ipSubnet(ip string) string {
	parts := strings.Split(ip, ".")
	if len(parts) != 4 {
		return ip
	}
	return strings.Join(parts[:3], ".")
}
