package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bulkmail/auth"
	"bulkmail/config"
	"bulkmail/remote"
	"bulkmail/server"
	"bulkmail/storage"
	"bulkmail/utils"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to the TOML configuration file")
	flag.Parse()

	utils.Log.Info("Initializing Bulk Mail...")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		utils.Log.Error("Failed to load config: %v", err)
		os.Exit(1)
	}
	utils.Log.SetLevel(utils.ParseLevel(cfg.Log.Level))

	if err := utils.InitI18n(); err != nil {
		utils.Log.Error("Failed to initialize i18n: %v", err)
		os.Exit(1)
	}

	db, err := storage.InitDB(cfg.Storage.DataDir)
	if err != nil {
		utils.Log.Error("Failed to open storage: %v", err)
		os.Exit(1)
	}
	defer db.Close()

	if cfg.JWT.Secret == "" {
		utils.Log.Warn("jwt.secret is not set, device cookies will not survive a restart")
	}
	signer, err := auth.NewDeviceSigner(cfg.JWT.Secret, cfg.Session.DeviceMaxAge.Duration)
	if err != nil {
		utils.Log.Error("Failed to create device signer: %v", err)
		os.Exit(1)
	}

	tabCache := utils.NewMemoryCache(cfg.Session.TabIdleTTL.Duration)
	defer tabCache.Close()
	devices := storage.NewDeviceStorage(db)
	tabs := storage.NewTabStorage(tabCache)

	registry := auth.NewRegistry(
		func(deviceID string) auth.KV { return devices.KV(deviceID) },
		func(tabID string) auth.KV { return tabs.KV(tabID) },
		cfg.Session.TabIdleTTL.Duration,
	)
	defer registry.Close()

	mail := remote.NewMailClient(remote.NewClient(cfg.Services.MailURL, cfg.Services.Timeout.Duration))
	services := remote.NewConfigClient(remote.NewClient(cfg.Services.ConfigURL, cfg.Services.Timeout.Duration))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go auth.NewRevalidator(registry, mail, cfg.Session.RevalidateInterval.Duration).Run(ctx)

	app := server.New(server.Deps{
		Config:   cfg,
		Registry: registry,
		Signer:   signer,
		Mail:     mail,
		Services: services,
		History:  storage.NewHistoryStorage(db),
		Context:  ctx,
	})

	go func() {
		<-ctx.Done()
		utils.Log.Info("Shutting down...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			utils.Log.Error("Shutdown error: %v", err)
		}
	}()

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	utils.Log.Info("Starting server on %s (history: %s)", addr, cfg.History.Mode)

	if cfg.SSL.Enabled {
		err = app.ListenTLS(addr, cfg.SSL.CertFile, cfg.SSL.KeyFile)
	} else {
		err = app.Listen(addr)
	}
	if err != nil {
		utils.Log.Error("Error starting server: %v", err)
	}
}
