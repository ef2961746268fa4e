package dlna

import (
	"net/http"

	"github.com/nullstream/dlnacast/internal/apperrors"
	"github.com/nullstream/dlnacast/internal/didl"
	"github.com/nullstream/dlnacast/internal/timefmt"
)

// PlaybackState is the renderer's reported transport state.
type PlaybackState struct {
	// Kind is one of the named states below; Raw carries the original
	// CurrentTransportState string when Kind is StateUnknown.
	Kind PlaybackStateKind
	Raw  string
}

// PlaybackStateKind enumerates the AVTransport:1 transport states this
// module distinguishes.
type PlaybackStateKind int

const (
	StateStopped PlaybackStateKind = iota
	StatePlaying
	StatePaused
	StateTransitioning
	StateNoMediaPresent
	StateUnknown
)

// Label returns a human-readable string for display purposes.
func (p PlaybackState) Label() string {
	switch p.Kind {
	case StateStopped:
		return "Stopped"
	case StatePlaying:
		return "Playing"
	case StatePaused:
		return "Paused"
	case StateTransitioning:
		return "Loading..."
	case StateNoMediaPresent:
		return "No Media"
	default:
		return p.Raw
	}
}

func playbackStateFromTransportState(s string) PlaybackState {
	switch s {
	case "STOPPED":
		return PlaybackState{Kind: StateStopped}
	case "PLAYING":
		return PlaybackState{Kind: StatePlaying}
	case "PAUSED_PLAYBACK":
		return PlaybackState{Kind: StatePaused}
	case "TRANSITIONING":
		return PlaybackState{Kind: StateTransitioning}
	case "NO_MEDIA_PRESENT":
		return PlaybackState{Kind: StateNoMediaPresent}
	default:
		return PlaybackState{Kind: StateUnknown, Raw: s}
	}
}

// PositionInfo is the renderer's reported playback position.
type PositionInfo struct {
	ElapsedSeconds  int64
	DurationSeconds int64
}

// AVTransport is a façade over the seven AVTransport:1 actions this module
// drives. Instance ID is always 0; this module never manages multiple AV
// transport instances on a single renderer.
type AVTransport struct {
	soap *soapClient
}

// NewAVTransport constructs an AVTransport façade. A nil client gets a
// 10-second-timeout default.
func NewAVTransport(httpClient *http.Client) *AVTransport {
	return &AVTransport{soap: newSOAPClient(httpClient)}
}

// SetAVTransportURI points the renderer at mediaURL. It first tries with
// full DIDL-Lite metadata; if that invocation fails for any reason it
// retries once with empty metadata, since some renderers reject the DLNA
// flags field embedded in the metadata.
func (t *AVTransport) SetAVTransportURI(controlURL, mediaURL, title, mime string, size int64) error {
	metadata := didl.BuildItem(title, mediaURL, mime, size)

	args := [][2]string{
		{"InstanceID", "0"},
		{"CurrentURI", mediaURL},
		{"CurrentURIMetaData", metadata},
	}
	if _, err := t.soap.invoke(controlURL, "SetAVTransportURI", args); err == nil {
		return nil
	}

	fallbackArgs := [][2]string{
		{"InstanceID", "0"},
		{"CurrentURI", mediaURL},
		{"CurrentURIMetaData", ""},
	}
	_, err := t.soap.invoke(controlURL, "SetAVTransportURI", fallbackArgs)
	return err
}

// Play starts playback at normal speed.
func (t *AVTransport) Play(controlURL string) error {
	_, err := t.soap.invoke(controlURL, "Play", [][2]string{
		{"InstanceID", "0"},
		{"Speed", "1"},
	})
	return err
}

// Pause pauses playback.
func (t *AVTransport) Pause(controlURL string) error {
	_, err := t.soap.invoke(controlURL, "Pause", [][2]string{{"InstanceID", "0"}})
	return err
}

// Stop stops playback.
func (t *AVTransport) Stop(controlURL string) error {
	_, err := t.soap.invoke(controlURL, "Stop", [][2]string{{"InstanceID", "0"}})
	return err
}

// Seek moves playback to targetSeconds from the start of the track.
func (t *AVTransport) Seek(controlURL string, targetSeconds int64) error {
	_, err := t.soap.invoke(controlURL, "Seek", [][2]string{
		{"InstanceID", "0"},
		{"Unit", "REL_TIME"},
		{"Target", timefmt.Encode(targetSeconds)},
	})
	return err
}

// GetPositionInfo returns the renderer's current elapsed/duration position.
// Missing or unparseable fields decode as zero, never as an error.
func (t *AVTransport) GetPositionInfo(controlURL string) (PositionInfo, error) {
	values, err := t.soap.invoke(controlURL, "GetPositionInfo", [][2]string{{"InstanceID", "0"}})
	if err != nil {
		return PositionInfo{}, err
	}
	return PositionInfo{
		ElapsedSeconds:  timefmt.Decode(values["RelTime"]),
		DurationSeconds: timefmt.Decode(values["TrackDuration"]),
	}, nil
}

// GetTransportInfo returns the renderer's current transport state.
func (t *AVTransport) GetTransportInfo(controlURL string) (PlaybackState, error) {
	values, err := t.soap.invoke(controlURL, "GetTransportInfo", [][2]string{{"InstanceID", "0"}})
	if err != nil {
		return PlaybackState{}, err
	}
	raw, ok := values["CurrentTransportState"]
	if !ok {
		return PlaybackState{}, apperrors.New(apperrors.ActionMalformed, "GetTransportInfo response missing CurrentTransportState")
	}
	return playbackStateFromTransportState(raw), nil
}

