package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/ivlev/scrollframes/internal/config"
	"github.com/ivlev/scrollframes/internal/loader"
	"github.com/ivlev/scrollframes/internal/player"
	"github.com/ivlev/scrollframes/internal/scheduler"
	"github.com/ivlev/scrollframes/internal/script"
	"github.com/ivlev/scrollframes/internal/surface"
	"github.com/ivlev/scrollframes/internal/system"
	"github.com/ivlev/scrollframes/internal/video"
)

func main() {
	configPtr := flag.String("config", "", "YAML-конфиг последовательности (по умолчанию: встроенные значения)")
	assetsPtr := flag.String("assets", "", "Папка или URL с кадрами (по умолчанию: frames.base из конфига)")
	scriptPtr := flag.String("script", "", "YAML-сценарий прокрутки (по умолчанию: линейная прокрутка за -duration)")
	durationPtr := flag.Float64("duration", 5, "Длительность линейной прокрутки (сек)")
	fpsPtr := flag.Int("fps", 30, "FPS воспроизведения")
	widthPtr := flag.Int("width", 0, "Ширина вьюпорта (0 - из конфига)")
	heightPtr := flag.Int("height", 0, "Высота вьюпорта (0 - из конфига)")
	dprPtr := flag.Float64("dpr", 0, "Плотность пикселей (0 - из конфига)")
	recordPtr := flag.String("record", "", "Записать прокрутку в видео (mp4)")
	qualityPtr := flag.Int("quality", 0, "Качество видео (0 - авто)")
	waitPtr := flag.Bool("wait", false, "Дождаться загрузки всех кадров перед воспроизведением")
	statsPtr := flag.Bool("stats", false, "Показать отчет о производительности")
	verbosePtr := flag.Bool("v", false, "Подробные логи")

	flag.Parse()

	level := slog.LevelInfo
	if *verbosePtr {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg := config.Default()
	if *configPtr != "" {
		var err error
		cfg, err = config.Load(*configPtr)
		if err != nil {
			log.Fatalf("[-] Ошибка конфига: %v", err)
		}
	}
	if *assetsPtr != "" {
		cfg.Frames.Base = *assetsPtr
	}
	if *widthPtr > 0 {
		cfg.Viewport.Width = *widthPtr
	}
	if *heightPtr > 0 {
		cfg.Viewport.Height = *heightPtr
	}
	if *dprPtr > 0 {
		cfg.Viewport.Density = *dprPtr
	}

	var sc *script.Script
	if *scriptPtr != "" {
		var err error
		sc, err = script.Read(*scriptPtr)
		if err != nil {
			log.Fatalf("[-] Ошибка сценария: %v", err)
		}
	} else {
		sc = script.Linear(*durationPtr, *fpsPtr)
		if err := sc.Validate(); err != nil {
			log.Fatalf("[-] Ошибка параметров прокрутки: %v", err)
		}
	}

	var fetcher loader.Fetcher
	if strings.HasPrefix(cfg.Frames.Base, "http://") || strings.HasPrefix(cfg.Frames.Base, "https://") {
		fetcher = loader.NewHTTPFetcher(cfg.Frames.Base)
	} else {
		system.InitResourceLimits(uint64(cfg.Frames.Count) + 256)
		fetcher = loader.DirFetcher{FS: os.DirFS(cfg.Frames.Base)}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// При записи кадры выдаются вручную, по одному на кадр сценария
	opts := player.Options{Logger: logger}
	if *recordPtr == "" {
		opts.Vsync = scheduler.NewTicker(cfg.Render.RefreshHz)
	}
	p, err := player.New(cfg, fetcher, opts)
	if err != nil {
		log.Fatalf("[-] Ошибка инициализации плеера: %v", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	runErr := make(chan error, 1)
	go func() { runErr <- p.Run(runCtx) }()

	vp := surface.Viewport{Width: cfg.Viewport.Width, Height: cfg.Viewport.Height, Density: cfg.Viewport.Density}
	size := vp.Physical()

	fmt.Println("--- [SCROLLY: FRAME SEQUENCE PLAYER] ---")
	fmt.Printf("[*] Кадры: %s | Количество: %d\n", cfg.Frames.Base, cfg.Frames.Count)
	fmt.Printf("[*] Вьюпорт: %dx%d @ %.2fx -> %dx%d | %d FPS | %d Hz\n", vp.Width, vp.Height, vp.Density, size.X, size.Y, sc.FPS, cfg.Render.RefreshHz)
	fmt.Println("-----------------------------")

	startTime := time.Now()
	if *waitPtr {
		if err := waitLoaded(ctx, p, cfg.Frames.Count); err != nil {
			log.Fatalf("[-] Ошибка загрузки: %v", err)
		}
		fmt.Printf("[*] Кадры загружены за %.2fs\n", time.Since(startTime).Seconds())
	}

	var rec *video.Recorder
	if *recordPtr != "" {
		rec = &video.Recorder{
			Width:   size.X,
			Height:  size.Y,
			FPS:     sc.FPS,
			Encoder: system.GetBestH264Encoder(),
			Quality: *qualityPtr,
		}
		os.MkdirAll(filepath.Dir(*recordPtr), 0755)
		if err := rec.Start(ctx, *recordPtr); err != nil {
			log.Fatalf("[-] Ошибка запуска записи: %v", err)
		}
	}

	total := sc.Frames()
	frameDur := time.Second / time.Duration(sc.FPS)
	for i := 0; i < total; i++ {
		if ctx.Err() != nil {
			break
		}
		p.SetProgress(sc.At(float64(i) / float64(sc.FPS)))

		if rec != nil {
			if err := p.Tick(ctx); err != nil {
				log.Fatalf("[-] Ошибка воспроизведения: %v", err)
			}
			img, err := p.Capture(ctx)
			if err != nil {
				log.Fatalf("[-] Ошибка захвата кадра: %v", err)
			}
			if err := rec.WriteFrame(img); err != nil {
				log.Fatalf("[-] Ошибка записи кадра %d: %v", i, err)
			}
		} else {
			time.Sleep(frameDur)
		}

		if (i+1)%sc.FPS == 0 || i == total-1 {
			fmt.Printf("[>] Кадр: %d/%d\n", i+1, total)
		}
	}

	st, statsErr := p.Stats(ctx)
	cancel()
	<-runErr

	if rec != nil {
		if err := rec.Close(); err != nil {
			log.Fatalf("[-] Ошибка сборки видео: %v", err)
		}
		fmt.Printf("[+++] Успех! Результат: %s\n", *recordPtr)
	}

	if *statsPtr && statsErr == nil {
		printStats(st, time.Since(startTime), total)
	}
}

func waitLoaded(ctx context.Context, p *player.Player, n int) error {
	t := time.NewTicker(50 * time.Millisecond)
	defer t.Stop()
	for {
		st, err := p.Stats(ctx)
		if err != nil {
			return err
		}
		if st.Frames.Loaded+st.Frames.Failed == n {
			if st.Frames.Failed > 0 {
				fmt.Printf("[!] Не загружено кадров: %d\n", st.Frames.Failed)
			}
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

func printStats(st player.Stats, elapsed time.Duration, ticks int) {
	mem, err := system.ProcessMemory()
	rss := "n/a"
	if err == nil {
		rss = fmt.Sprintf("%.1f MiB", float64(mem.RSS)/(1<<20))
	}
	fmt.Printf(
		"--- [PERFORMANCE REPORT] ---\n"+
			"Total Time: %.2fs\n"+
			"Ticks: %d\n"+
			"Paints: %d\n"+
			"Coalesced events: %d\n"+
			"Frames loaded/failed/pending: %d/%d/%d\n"+
			"Last painted: %d\n"+
			"Surface: %dx%d\n"+
			"RSS: %s\n"+
			"----------------------------\n",
		elapsed.Seconds(), ticks, st.Scheduler.Paints, st.Scheduler.Absorbed,
		st.Frames.Loaded, st.Frames.Failed, st.Frames.Loading+st.Frames.Unrequested,
		st.LastPainted, st.Surface.X, st.Surface.Y, rss,
	)
}
