package main

import (
	"time"

	"minisocial/config"
	"minisocial/models"
	"minisocial/routes"
	"minisocial/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}

	db := config.InitDatabase(&models.User{}, &models.Post{}, &models.Like{})

	r := routes.SetupRouter(db)

	// Periodic repair of like_count drift (best-effort)
	interval := time.Duration(cfg.ReconcileIntervalMinutes) * time.Minute
	stopReconciler := utils.StartLikeReconciler(db, interval, models.RecountLikeCounts)
	defer stopReconciler()

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
