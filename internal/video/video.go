package video

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"io"
	"os/exec"
)

// Recorder передает raw RGBA кадры в процесс ffmpeg.
type Recorder struct {
	Width, Height int
	FPS           int
	Encoder       string // libx264, h264_nvenc, h264_videotoolbox
	Quality       int

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	out    bytes.Buffer
	frames int
	buf    *image.RGBA
}

var ErrSizeMismatch = errors.New("frame size does not match recorder")

// Args собирает аргументы ffmpeg для записи в path.
func (r *Recorder) Args(path string) []string {
	args := []string{
		"-y",
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", r.Width, r.Height),
		"-framerate", fmt.Sprintf("%d", r.FPS),
		"-i", "-",
		// yuv420p требует четных размеров
		"-vf", "pad=ceil(iw/2)*2:ceil(ih/2)*2",
		"-pix_fmt", "yuv420p",
		"-c:v", r.Encoder,
	}

	// Качество в зависимости от энкодера
	switch r.Encoder {
	case "h264_videotoolbox":
		args = append(args, "-b:v", fmt.Sprintf("%dk", r.Quality*100))
	case "h264_nvenc":
		args = append(args, "-cq", fmt.Sprintf("%d", r.Quality))
	default:
		args = append(args, "-crf", fmt.Sprintf("%d", r.Quality), "-preset", "medium")
	}

	return append(args, path)
}

// Start запускает ffmpeg с записью в path.
func (r *Recorder) Start(ctx context.Context, path string) error {
	if r.Encoder == "" {
		r.Encoder = "libx264"
	}
	if r.Quality == 0 {
		r.Quality = 23
	}
	r.cmd = exec.CommandContext(ctx, "ffmpeg", r.Args(path)...)
	r.cmd.Stdout = &r.out
	r.cmd.Stderr = &r.out

	stdin, err := r.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe error: %w", err)
	}
	r.stdin = stdin
	if err := r.cmd.Start(); err != nil {
		return fmt.Errorf("ffmpeg start error: %w", err)
	}
	return nil
}

// WriteFrame отправляет один кадр. Размер должен совпадать с Recorder.
func (r *Recorder) WriteFrame(img image.Image) error {
	b := img.Bounds()
	if b.Dx() != r.Width || b.Dy() != r.Height {
		return fmt.Errorf("%w: %dx%d, want %dx%d", ErrSizeMismatch, b.Dx(), b.Dy(), r.Width, r.Height)
	}
	if err := writeRawRGBA(r.stdin, img, &r.buf); err != nil {
		return fmt.Errorf("write raw error: %w", err)
	}
	r.frames++
	return nil
}

// Frames возвращает число записанных кадров.
func (r *Recorder) Frames() int { return r.frames }

// Close закрывает поток и ждет завершения ffmpeg.
func (r *Recorder) Close() error {
	if r.cmd == nil {
		return nil
	}
	r.stdin.Close()
	if err := r.cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg wait error: %w\nLog: %s", err, r.out.String())
	}
	return nil
}

// writeRawRGBA пишет плотно упакованные строки RGBA, конвертируя через buf,
// если img не является упакованным *image.RGBA с началом в нуле.
func writeRawRGBA(w io.Writer, img image.Image, buf **image.RGBA) error {
	bounds := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != bounds.Dx()*4 || rgba.Rect.Min != (image.Point{}) {
		if *buf == nil || (*buf).Rect.Size() != bounds.Size() {
			*buf = image.NewRGBA(image.Rectangle{Max: bounds.Size()})
		}
		rgba = *buf
		draw.Draw(rgba, rgba.Rect, img, bounds.Min, draw.Src)
	}
	_, err := w.Write(rgba.Pix)
	return err
}
