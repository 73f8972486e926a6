package system

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"github.com/shirou/gopsutil/v3/process"
)

// InitResourceLimits поднимает лимит открытых файлов. При загрузке кадров с диска
// без ограничения параллельности на каждый кадр в работе приходится дескриптор.
func InitResourceLimits(want uint64) {
	var rLimit syscall.Rlimit
	err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit)
	if err != nil {
		log.Printf("[!] Не удалось получить лимит файлов: %v", err)
		return
	}
	if rLimit.Cur >= want {
		return
	}

	rLimit.Cur = want
	if rLimit.Cur > rLimit.Max {
		rLimit.Cur = rLimit.Max
	}

	err = syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit)
	if err != nil {
		log.Printf("[!] Не удалось установить лимит файлов: %v", err)
	} else {
		fmt.Printf("[*] Системный лимит открытых файлов увеличен до %d\n", rLimit.Cur)
	}
}

// MemoryUsage - снимок памяти текущего процесса.
type MemoryUsage struct {
	RSS uint64
	VMS uint64
}

// ProcessMemory возвращает резидентную и виртуальную память процесса.
func ProcessMemory() (MemoryUsage, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return MemoryUsage{}, err
	}
	info, err := p.MemoryInfo()
	if err != nil {
		return MemoryUsage{}, err
	}
	return MemoryUsage{RSS: info.RSS, VMS: info.VMS}, nil
}

// GetBestH264Encoder выбирает аппаратный H.264 энкодер, если он есть в ffmpeg.
func GetBestH264Encoder() string {
	// Приоритеты:
	// 1. MacOS (VideoToolbox)
	// 2. NVIDIA (NVENC)
	// 3. Software (libx264)
	out, err := exec.Command("ffmpeg", "-hide_banner", "-encoders").CombinedOutput()
	if err != nil {
		return "libx264"
	}
	for _, name := range []string{"h264_videotoolbox", "h264_nvenc"} {
		if strings.Contains(string(out), name) {
			return name
		}
	}
	return "libx264"
}
