package main

import (
	"context"
	"net"
	"net/http"
	"strconv"

	"github.com/marginalia-app/marginalia/pkg/config"
	"github.com/marginalia-app/marginalia/pkg/database"
	"github.com/marginalia-app/marginalia/pkg/migrations"
	"github.com/marginalia-app/marginalia/pkg/server"
	"github.com/marginalia-app/marginalia/pkg/version"
	"github.com/marginalia-app/marginalia/pkg/worker"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/robinjoseph08/golib/signals"
)

func main() {
	ctx := context.Background()
	log := logger.New()

	log.Info("starting marginalia", logger.Data{"version": version.Version})

	cfg, err := config.New()
	if err != nil {
		log.Err(err).Fatal("config error")
	}

	db, err := database.New(cfg)
	if err != nil {
		log.Err(err).Fatal("database error")
	}

	group, err := migrations.BringUpToDate(ctx, db)
	if err != nil {
		log.Err(err).Fatal("migrations error")
	}
	if group.ID == 0 {
		log.Info("no new migrations to run")
	} else {
		log.Info("migrated to new group", logger.Data{"group_id": group.ID, "migration_names": group.Migrations.String()})
	}

	wrkr := worker.New(cfg, db)

	srv, err := server.New(cfg, db)
	if err != nil {
		log.Err(err).Fatal("server error")
	}

	graceful := signals.Setup()

	go func() {
		lc := net.ListenConfig{}
		listener, err := lc.Listen(ctx, "tcp", net.JoinHostPort(cfg.ServerHost, strconv.Itoa(cfg.ServerPort)))
		if err != nil {
			log.Err(err).Fatal("failed to bind port")
		}

		// ServerPort 0 picks a free port.
		actualPort := listener.Addr().(*net.TCPAddr).Port
		log.Info("server started", logger.Data{"host": cfg.ServerHost, "port": actualPort})

		err = srv.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Err(err).Fatal("server stopped")
		}
		log.Info("server stopped")
	}()

	wrkr.Start()
	log.Info("worker started", logger.Data{"cleanup_interval": cfg.CleanupInterval.String()})

	<-graceful
	log.Info("starting graceful shutdown")

	err = srv.Shutdown(ctx)
	if err != nil {
		log.Err(err).Error("server shutdown error")
	}
	log.Info("server shutdown")

	wrkr.Shutdown()
	log.Info("worker shutdown")

	err = db.Close()
	if err != nil {
		log.Err(err).Error("database close error")
	}
	log.Info("database closed")
}
