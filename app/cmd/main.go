package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"qnabot/app/server"
	"qnabot/config"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("error loading config: ", err)
	}
	cfg.NewLogger()

	s := server.NewServer(cfg)
	if err := s.Init(context.Background()); err != nil {
		log.Fatal("error initializing server: ", err)
	}

	go func() {
		if err := s.Run(); err != nil {
			slog.Error("error to start server", "error", err)
			os.Exit(1)
		}
	}()

	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, os.Interrupt, syscall.SIGTERM)
	<-sigch
	slog.Info("received shutdown signal, shutting down server")
	s.Stop()
}
