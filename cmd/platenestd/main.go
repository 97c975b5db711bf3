// platenestd serves a PlateNest scene over HTTP: scene editing, arrange
// jobs with websocket progress and layout exports.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/piwi3910/platenest/internal/config"
	"github.com/piwi3910/platenest/internal/model"
	"github.com/piwi3910/platenest/internal/project"
	"github.com/piwi3910/platenest/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)})))

	configDir := cfg.ConfigDir
	if configDir == "" {
		configDir = project.DefaultConfigDir()
	}
	appCfg, err := project.LoadAppConfig(filepath.Join(configDir, "config.json"))
	if err != nil {
		slog.Warn("app config unreadable, using defaults", "error", err)
		appCfg = model.DefaultAppConfig()
	}
	if path, err := project.DefaultProfilesPath(); err == nil {
		if err := project.LoadCustomProfilesInto(path); err != nil {
			slog.Warn("custom printer profiles not loaded", "error", err)
		}
	}

	scene := appCfg.NewSceneFromConfig()
	if cfg.SceneFile != "" {
		if _, statErr := os.Stat(cfg.SceneFile); statErr == nil {
			if scene, err = project.Load(cfg.SceneFile); err != nil {
				slog.Error("load scene", "path", cfg.SceneFile, "error", err)
				os.Exit(1)
			}
			slog.Info("scene loaded", "path", cfg.SceneFile, "objects", len(scene.Objects))
		}
	}

	srv := server.New(scene)
	srv.SceneFile = cfg.SceneFile
	srv.Origins = cfg.Origins()

	addr := fmt.Sprintf(":%d", cfg.Port)
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      srv.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down server")
		if id, running := srv.Runner().Running(); running {
			srv.Runner().Cancel(id)
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpSrv.Shutdown(shutdownCtx)
	}()

	slog.Info("server starting", "addr", addr)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
