package script

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Script is a recorded or authored scroll session: progress over time.
type Script struct {
	Version   string     `yaml:"version"`
	FPS       int        `yaml:"fps"`
	Keyframes []Keyframe `yaml:"keyframes"`
}

// Keyframe pins scroll progress at a time offset.
type Keyframe struct {
	Time     float64 `yaml:"time"`     // seconds from start
	Progress float64 `yaml:"progress"` // 0..1
}

// Linear scrolls from top to bottom over d seconds.
func Linear(d float64, fps int) *Script {
	return &Script{
		Version: "1.0",
		FPS:     fps,
		Keyframes: []Keyframe{
			{Time: 0, Progress: 0},
			{Time: d, Progress: 1},
		},
	}
}

// Duration is the time of the last keyframe.
func (s *Script) Duration() float64 {
	if len(s.Keyframes) == 0 {
		return 0
	}
	return s.Keyframes[len(s.Keyframes)-1].Time
}

// Frames is the number of output frames at the script FPS.
func (s *Script) Frames() int {
	return int(s.Duration()*float64(s.FPS)) + 1
}

// Validate checks that keyframes are ordered in time and progress is in range.
func (s *Script) Validate() error {
	if len(s.Keyframes) == 0 {
		return fmt.Errorf("script has no keyframes")
	}
	if s.FPS <= 0 {
		return fmt.Errorf("script fps must be positive, got %d", s.FPS)
	}
	for i, kf := range s.Keyframes {
		if kf.Progress < 0 || kf.Progress > 1 {
			return fmt.Errorf("keyframe %d: progress %v out of [0,1]", i, kf.Progress)
		}
		if i > 0 && kf.Time < s.Keyframes[i-1].Time {
			return fmt.Errorf("keyframe %d: time %v before previous %v", i, kf.Time, s.Keyframes[i-1].Time)
		}
	}
	return nil
}

// At returns the scroll progress at time t, easing between keyframes.
func (s *Script) At(t float64) float64 {
	kfs := s.Keyframes
	if len(kfs) == 0 {
		return 0
	}
	if t <= kfs[0].Time {
		return kfs[0].Progress
	}
	last := kfs[len(kfs)-1]
	if t >= last.Time {
		return last.Progress
	}

	for i := 0; i < len(kfs)-1; i++ {
		prev, next := kfs[i], kfs[i+1]
		if t >= prev.Time && t < next.Time {
			span := next.Time - prev.Time
			if span == 0 {
				return next.Progress
			}
			f := easeInOutCubic((t - prev.Time) / span)
			return lerp(prev.Progress, next.Progress, f)
		}
	}
	return last.Progress
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

func easeInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	u := -2*t + 2
	return 1 - u*u*u/2
}

// Write stores a script as YAML.
func Write(s *Script, path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Read loads and validates a YAML script.
func Read(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	if s.FPS == 0 {
		s.FPS = 30
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &s, nil
}
