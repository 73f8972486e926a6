package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"time"

	"github.com/ivlev/scrollframes/internal/config"
	"github.com/ivlev/scrollframes/internal/source"
)

func main() {
	inputPtr := flag.String("input", "", "PDF или папка с изображениями")
	outputPtr := flag.String("output", "public/media", "Папка для кадров")
	prefixPtr := flag.String("prefix", "ezgif-frame-", "Префикс имени кадра")
	digitsPtr := flag.Int("digits", 3, "Количество цифр в номере кадра")
	maxWidthPtr := flag.Int("max-width", 1920, "Максимальная ширина кадра (0 - без ограничения)")
	dpiPtr := flag.Int("dpi", 150, "DPI для PDF")
	syntheticPtr := flag.Int("synthetic", 0, "Сгенерировать N тестовых кадров вместо -input")
	widthPtr := flag.Int("width", 1920, "Ширина тестовых кадров")
	heightPtr := flag.Int("height", 1080, "Высота тестовых кадров")
	workersPtr := flag.Int("workers", runtime.NumCPU(), "Потоки")

	flag.Parse()

	var src source.Source
	var err error

	switch {
	case *syntheticPtr > 0:
		src = source.SynthSource{N: *syntheticPtr, Width: *widthPtr, Height: *heightPtr}
	case *inputPtr == "":
		log.Fatalf("[-] Ошибка: укажите -input или -synthetic")
	case strings.HasSuffix(strings.ToLower(*inputPtr), ".pdf"):
		src, err = source.NewFitzPDFSource(*inputPtr, *dpiPtr)
	default:
		src, err = source.NewImageSource(*inputPtr)
	}
	if err != nil {
		log.Fatalf("[-] Ошибка инициализации источника: %v", err)
	}
	defer src.Close()

	fc := config.Default().Frames
	fc.Prefix = *prefixPtr
	fc.Digits = *digitsPtr

	fmt.Printf("[*] Кадров: %d | Папка: %s | Макс. ширина: %d\n", src.Count(), *outputPtr, *maxWidthPtr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := time.Now()
	err = source.Export(ctx, src, source.ExportOptions{
		Dir:      *outputPtr,
		Frames:   fc,
		MaxWidth: *maxWidthPtr,
		Workers:  *workersPtr,
		Progress: func(done, total int) {
			fmt.Printf("[>] Ready: %d/%d\n", done, total)
		},
	})
	if err != nil {
		log.Fatalf("[-] Ошибка экспорта: %v", err)
	}

	fmt.Printf("[+++] Успех! %d кадров за %.2fs в %s\n", src.Count(), time.Since(start).Seconds(), *outputPtr)
}
