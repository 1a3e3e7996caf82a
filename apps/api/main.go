package main

import (
	"context"
	"database/sql"
	"fmt"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"

	echoapi "github.com/trezcool/hudhuria/apps/api/echo"
	"github.com/trezcool/hudhuria/core"
	"github.com/trezcool/hudhuria/core/attendance"
	"github.com/trezcool/hudhuria/core/class"
	"github.com/trezcool/hudhuria/core/user"
	appfs "github.com/trezcool/hudhuria/fs"
	emailsvc "github.com/trezcool/hudhuria/services/email"
	sendgridmail "github.com/trezcool/hudhuria/services/email/sendgrid"
	logsvc "github.com/trezcool/hudhuria/services/logger"
	"github.com/trezcool/hudhuria/storage/database"
	sqlxrepos "github.com/trezcool/hudhuria/storage/database/sqlx"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	std := stdlog.New(os.Stdout, "API : ", stdlog.LstdFlags|stdlog.Lmicroseconds|stdlog.Lshortfile)

	var logger core.Logger
	if core.Conf.Debug {
		logger = logsvc.NewStdLogger(std)
	} else {
		rollbarLogger := logsvc.NewRollbarLogger(std, core.Conf)
		rollbarLogger.Enable(true)
		logger = rollbarLogger
	}

	core.TemplatesFS = appfs.FS

	// set up DB
	db, err := setUpDB()
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			logger.Error("failed to close DB", err)
		}
	}()

	// set up services
	var mailSvc core.EmailService
	if core.Conf.Debug {
		mailSvc = emailsvc.NewConsoleService()
	} else {
		mailSvc = sendgridmail.NewService(
			core.Conf.SendgridAPIKey,
			core.Conf.AppName,
			core.Conf.DefaultFromEmail.Address,
			logger,
		)
	}
	usrSvc := user.NewService(sqlxrepos.NewUserRepository(db), mailSvc)
	classSvc := class.NewService(sqlxrepos.NewClassRepository(db))
	attSvc := attendance.NewService(sqlxrepos.NewAttendanceRepository(db), classSvc)

	// =========================================================================
	// Start API Service

	logger.Info(fmt.Sprintf("Application initializing : version %q", core.Conf.Build))
	defer logger.Info("Application stopped")

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	app := echoapi.NewServer(
		&echoapi.Options{
			Address:       core.Conf.Server.Host + ":" + core.Conf.Server.Port,
			Logger:        logger,
			Shutdown:      shutdown,
			UserSvc:       usrSvc,
			ClassSvc:      classSvc,
			AttendanceSvc: attSvc,
		},
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-serverErrors:
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-shutdown:
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), core.Conf.Server.ShutdownTimeout)
		defer cancel()

		if err = app.Stop(ctx); err != nil {
			logger.Fatal(fmt.Sprintf("could not stop server gracefully: %v", err), err)
		}
	}
}

func setUpDB() (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(core.Conf); err != nil {
		return nil, err
	}

	var db *sql.DB
	db, err := database.Open(core.Conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db); err != nil {
		return nil, err
	}
	return sqlx.NewDb(db, core.Conf.Database.Engine), nil
}
