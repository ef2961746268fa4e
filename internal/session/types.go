// Package session implements the single-session playback state machine: it
// owns the selected file, the media server, the chosen renderer, and the
// background poller, and serialises commands against all of it.
package session

import (
	"path/filepath"
	"strings"
)

// MediaFile describes the one file bound to the current session.
type MediaFile struct {
	Path        string
	Size        int64
	MIME        string
	DisplayName string
}

var extensionMIME = map[string]string{
	".mp4":  "video/mp4",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".webm": "video/webm",
}

// SupportedExtensions lists the file extensions SelectFile accepts.
var SupportedExtensions = []string{"mp4", "mkv", "avi", "webm"}

func mimeForPath(path string) (string, bool) {
	mime, ok := extensionMIME[strings.ToLower(filepath.Ext(path))]
	return mime, ok
}

// State is the controller's coarse-grained state.
type State int

const (
	StateIdle State = iota
	StateFileBound
	StateDeviceSelected
	StateCasting
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateFileBound:
		return "FileBound"
	case StateDeviceSelected:
		return "DeviceSelected"
	case StateCasting:
		return "Casting"
	case StateError:
		return "Error"
	default:
		return "Unknown"
	}
}

// StatusSnapshot is the read-only view handed to event subscribers and to
// Status().
type StatusSnapshot struct {
	State           State
	PlaybackLabel   string
	ElapsedSeconds  int64
	DurationSeconds int64
	ElapsedDisplay  string
	DurationDisplay string
	ProgressRatio   float64
	FileName        string
	DeviceName      string
}

func progressRatio(elapsed, duration int64) float64 {
	if duration <= 0 {
		return 0
	}
	ratio := float64(elapsed) / float64(duration)
	if ratio < 0 {
		return 0
	}
	if ratio > 1 {
		return 1
	}
	return ratio
}

// clampSeek clamps target into [0, duration] when duration is known
// (duration > 0); an unknown duration only floors at zero.
func clampSeek(target, duration int64) int64 {
	if target < 0 {
		target = 0
	}
	if duration > 0 && target > duration {
		target = duration
	}
	return target
}
