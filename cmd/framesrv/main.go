package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ivlev/scrollframes/internal/assets"
	"github.com/ivlev/scrollframes/internal/config"
)

func main() {
	configPtr := flag.String("config", "", "YAML-конфиг последовательности")
	dirPtr := flag.String("dir", "public/media", "Папка с кадрами")
	addrPtr := flag.String("addr", ":8080", "Адрес HTTP-сервера")
	mountPtr := flag.String("mount", "", "Путь, по которому отдаются кадры (по умолчанию: frames.base)")

	flag.Parse()

	cfg := config.Default()
	if *configPtr != "" {
		var err error
		cfg, err = config.Load(*configPtr)
		if err != nil {
			log.Fatalf("[-] Ошибка конфига: %v", err)
		}
	}
	if *mountPtr != "" {
		cfg.Frames.Base = *mountPtr
	}

	srv := &http.Server{
		Addr:              *addrPtr,
		Handler:           (&assets.Server{Dir: *dirPtr, Frames: cfg.Frames, Logger: slog.Default()}).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	fmt.Printf("[*] Кадры из %s доступны на http://localhost%s%s/\n", *dirPtr, *addrPtr, cfg.Frames.Base)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("[-] Ошибка сервера: %v", err)
	}
}
