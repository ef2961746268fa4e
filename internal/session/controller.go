package session

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nullstream/dlnacast/internal/apperrors"
	"github.com/nullstream/dlnacast/internal/dlna"
	"github.com/nullstream/dlnacast/internal/mediaserver"
	"github.com/nullstream/dlnacast/internal/netutil"
	"github.com/nullstream/dlnacast/internal/timefmt"
)

const defaultDiscoveryTimeout = 5 * time.Second

// Controller is the single-session playback state machine. One Controller
// drives at most one Session at a time; a new SelectFile or Cast replaces
// whatever came before it. The zero value is not usable; construct with New.
type Controller struct {
	discoverer *dlna.Discoverer
	transport  *dlna.AVTransport
	httpClient *http.Client
	bus        *eventBus
	log        *log.Logger

	port             int
	discoveryTimeout time.Duration

	// onCastSuccess, if set, is called after a Cast command commits
	// Playing state, outside the state lock.
	onCastSuccess func(file MediaFile, deviceName string)

	mu            sync.Mutex
	generation    uint64
	state         State
	file          *MediaFile
	devices       []dlna.Device
	deviceIndex   int
	controlURL    string
	mediaServer   *mediaserver.Server
	playbackState dlna.PlaybackState
	position      dlna.PositionInfo
	pollerCancel  context.CancelFunc
}

// Option configures a Controller.
type Option func(*Controller)

// WithPort sets the fixed media-server bind port (0 picks an OS-assigned
// port on every SelectFile).
func WithPort(port int) Option {
	return func(c *Controller) { c.port = port }
}

// WithDiscoveryTimeout overrides the five-second default Discover deadline.
func WithDiscoveryTimeout(d time.Duration) Option {
	return func(c *Controller) { c.discoveryTimeout = d }
}

// WithLogger overrides the default stderr logger, shared by the controller
// and the media servers it starts.
func WithLogger(l *log.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// WithOnCastSuccess registers a callback invoked after every successful
// Cast, outside the controller's lock. internal/history uses this to record
// an MRU entry without internal/session importing internal/history.
func WithOnCastSuccess(fn func(file MediaFile, deviceName string)) Option {
	return func(c *Controller) { c.onCastSuccess = fn }
}

// New constructs a Controller in state Idle.
func New(opts ...Option) *Controller {
	c := &Controller{
		discoverer:       dlna.NewDiscoverer(),
		httpClient:       &http.Client{Timeout: 10 * time.Second},
		bus:              newEventBus(),
		log:              log.New(os.Stderr, "[session] ", log.LstdFlags),
		discoveryTimeout: defaultDiscoveryTimeout,
		deviceIndex:      -1,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.transport = dlna.NewAVTransport(c.httpClient)
	return c
}

// SelectFile validates and binds path as the current session's file,
// restarting the media server on it. The previous server, if any, is fully
// stopped before the new one starts accepting, so no ghost listener can
// answer a stale request.
func (c *Controller) SelectFile(path string) (MediaFile, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return MediaFile{}, apperrors.Wrap(apperrors.FileNotFound, "resolve path", err)
	}

	info, err := os.Stat(abs)
	if err != nil || !info.Mode().IsRegular() {
		return MediaFile{}, apperrors.New(apperrors.FileNotFound, fmt.Sprintf("%s does not exist or is not a regular file", abs))
	}

	mime, ok := mimeForPath(abs)
	if !ok {
		return MediaFile{}, apperrors.New(apperrors.UnsupportedFormat, fmt.Sprintf("unsupported extension for %s", abs))
	}

	file := MediaFile{
		Path:        abs,
		Size:        info.Size(),
		MIME:        mime,
		DisplayName: filepath.Base(abs),
	}

	c.mu.Lock()
	c.generation++
	gen := c.generation
	oldServer := c.mediaServer
	oldCancel := c.pollerCancel
	c.pollerCancel = nil
	c.mu.Unlock()

	if oldCancel != nil {
		oldCancel()
	}
	if oldServer != nil {
		if err := oldServer.Stop(context.Background()); err != nil {
			c.log.Printf("stop previous media server: %v", err)
		}
	}

	newServer := mediaserver.New(mediaserver.File{
		Path:        file.Path,
		Size:        file.Size,
		MIME:        file.MIME,
		DisplayName: file.DisplayName,
	}, mediaserver.WithLogger(c.log))

	if _, err := newServer.Start(c.port); err != nil {
		return MediaFile{}, apperrors.Wrap(apperrors.MediaServerError, "start media server", err)
	}

	c.mu.Lock()
	if c.generation != gen {
		// A later SelectFile raced ahead of us; the later command
		// wins and our server has no business staying up.
		c.mu.Unlock()
		newServer.Stop(context.Background())
		return file, nil
	}
	c.file = &file
	c.devices = nil
	c.deviceIndex = -1
	c.controlURL = ""
	c.mediaServer = newServer
	c.state = StateFileBound
	c.playbackState = dlna.PlaybackState{}
	c.position = dlna.PositionInfo{}
	c.mu.Unlock()

	c.publishSnapshot()
	return file, nil
}

// Discover runs SSDP discovery and replaces the known-devices list. An
// empty result is returned without error, per the discoverer's own
// contract; callers decide whether to present that as NoDevicesFound.
func (c *Controller) Discover() ([]dlna.Device, error) {
	devices, err := c.discoverer.Discover(c.discoveryTimeout)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.devices = devices
	c.deviceIndex = -1
	c.controlURL = ""
	c.mu.Unlock()

	return devices, nil
}

// SelectDevice resolves the control URL for devices[i] and stores it as the
// session's target renderer.
func (c *Controller) SelectDevice(i int) error {
	c.mu.Lock()
	gen := c.generation
	devices := c.devices
	c.mu.Unlock()

	if i < 0 || i >= len(devices) {
		return apperrors.New(apperrors.InvalidArgument, fmt.Sprintf("device index %d out of range", i))
	}
	device := devices[i]

	controlURL := device.ResolvedControlURL
	if controlURL == "" {
		resolved, err := dlna.ResolveControlURL(c.httpClient, device)
		if err != nil {
			return err
		}
		controlURL = resolved
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen || i >= len(c.devices) || c.devices[i].DescriptionURL != device.DescriptionURL {
		// The device list moved on while we were resolving; drop silently.
		return nil
	}
	c.deviceIndex = i
	c.controlURL = controlURL
	if c.state == StateFileBound {
		c.state = StateDeviceSelected
	}
	return nil
}

// Cast builds the media URL reachable from the selected device, points the
// renderer at it, and starts playback. On success it starts the poller.
func (c *Controller) Cast() error {
	c.mu.Lock()
	gen := c.generation
	file := c.file
	controlURL := c.controlURL
	server := c.mediaServer
	c.mu.Unlock()

	if file == nil {
		return apperrors.New(apperrors.InvalidArgument, "no file selected")
	}
	if controlURL == "" {
		return apperrors.New(apperrors.InvalidArgument, "no device selected")
	}

	host, err := hostOf(controlURL)
	if err != nil {
		return apperrors.Wrap(apperrors.InvalidArgument, "parse control URL", err)
	}
	localIP, err := netutil.LocalIPFor(host)
	if err != nil {
		return apperrors.Wrap(apperrors.NetworkError, "select local address", err)
	}

	addr, err := server.Addr()
	if err != nil {
		return apperrors.Wrap(apperrors.MediaServerError, "media server not running", err)
	}
	mediaURL := fmt.Sprintf("http://%s:%d%s", localIP, addr.Port, server.ServePath())

	if err := c.transport.SetAVTransportURI(controlURL, mediaURL, file.DisplayName, file.MIME, file.Size); err != nil {
		return err
	}
	if err := c.transport.Play(controlURL); err != nil {
		return err
	}

	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		return nil
	}
	if c.pollerCancel != nil {
		c.pollerCancel()
	}
	c.state = StateCasting
	c.playbackState = dlna.PlaybackState{Kind: dlna.StatePlaying}
	ctx, cancel := context.WithCancel(context.Background())
	c.pollerCancel = cancel
	deviceName := ""
	if c.deviceIndex >= 0 && c.deviceIndex < len(c.devices) {
		deviceName = c.devices[c.deviceIndex].FriendlyName
	}
	c.mu.Unlock()

	p := &poller{controller: c, controlURL: controlURL, log: c.log}
	go p.run(ctx)

	c.publishSnapshot()
	if c.onCastSuccess != nil {
		c.onCastSuccess(*file, deviceName)
	}
	return nil
}

// Play resumes playback on the selected renderer.
func (c *Controller) Play() error {
	controlURL, ok := c.currentControlURL()
	if !ok {
		return apperrors.New(apperrors.InvalidArgument, "no active session")
	}
	if err := c.transport.Play(controlURL); err != nil {
		return err
	}
	c.mu.Lock()
	c.playbackState = dlna.PlaybackState{Kind: dlna.StatePlaying}
	c.mu.Unlock()
	c.publishSnapshot()
	return nil
}

// Pause pauses playback on the selected renderer.
func (c *Controller) Pause() error {
	controlURL, ok := c.currentControlURL()
	if !ok {
		return apperrors.New(apperrors.InvalidArgument, "no active session")
	}
	if err := c.transport.Pause(controlURL); err != nil {
		return err
	}
	c.mu.Lock()
	c.playbackState = dlna.PlaybackState{Kind: dlna.StatePaused}
	c.mu.Unlock()
	c.publishSnapshot()
	return nil
}

// Stop halts playback and cancels the poller, but keeps the renderer
// selected (unlike Leave, which also drops the device).
func (c *Controller) Stop() error {
	controlURL, ok := c.currentControlURL()
	if !ok {
		return apperrors.New(apperrors.InvalidArgument, "no active session")
	}
	if err := c.transport.Stop(controlURL); err != nil {
		return err
	}

	c.mu.Lock()
	if c.pollerCancel != nil {
		c.pollerCancel()
		c.pollerCancel = nil
	}
	c.playbackState = dlna.PlaybackState{Kind: dlna.StateStopped}
	if c.state == StateCasting {
		c.state = StateDeviceSelected
	}
	c.mu.Unlock()
	c.publishSnapshot()
	return nil
}

// Seek moves playback to targetSeconds, clamped to [0, duration] when the
// duration is known.
func (c *Controller) Seek(targetSeconds int64) error {
	controlURL, ok := c.currentControlURL()
	if !ok {
		return apperrors.New(apperrors.InvalidArgument, "no active session")
	}

	c.mu.Lock()
	duration := c.position.DurationSeconds
	c.mu.Unlock()

	clamped := clampSeek(targetSeconds, duration)
	return c.transport.Seek(controlURL, clamped)
}

// SeekRelative seeks by delta seconds from the last observed position.
func (c *Controller) SeekRelative(delta int64) error {
	c.mu.Lock()
	elapsed := c.position.ElapsedSeconds
	c.mu.Unlock()
	return c.Seek(elapsed + delta)
}

// Leave stops playback if casting, cancels the poller, and drops the
// selected device, returning to FileBound; the bound file is kept.
func (c *Controller) Leave() error {
	c.mu.Lock()
	controlURL := c.controlURL
	wasCasting := c.state == StateCasting
	c.mu.Unlock()

	if wasCasting && controlURL != "" {
		if err := c.transport.Stop(controlURL); err != nil {
			c.log.Printf("leave: stop failed: %v", err)
		}
	}

	c.mu.Lock()
	if c.pollerCancel != nil {
		c.pollerCancel()
		c.pollerCancel = nil
	}
	c.deviceIndex = -1
	c.controlURL = ""
	c.playbackState = dlna.PlaybackState{}
	c.position = dlna.PositionInfo{}
	if c.file != nil {
		c.state = StateFileBound
	} else {
		c.state = StateIdle
	}
	c.mu.Unlock()

	c.publishSnapshot()
	return nil
}

// Status returns the current snapshot.
func (c *Controller) Status() StatusSnapshot {
	return c.snapshot()
}

// Subscribe registers for StatusSnapshot updates; call the returned cancel
// func to unsubscribe.
func (c *Controller) Subscribe() (<-chan StatusSnapshot, func()) {
	return c.bus.subscribe()
}

func (c *Controller) currentControlURL() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.controlURL, c.controlURL != ""
}

func (c *Controller) commitPosition(position dlna.PositionInfo) {
	c.mu.Lock()
	c.position = position
	c.mu.Unlock()
}

func (c *Controller) commitPlaybackState(state dlna.PlaybackState) {
	c.mu.Lock()
	c.playbackState = state
	c.mu.Unlock()
}

func (c *Controller) publishSnapshot() {
	c.bus.publish(c.snapshot())
}

func (c *Controller) snapshot() StatusSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snapshot := StatusSnapshot{
		State:           c.state,
		PlaybackLabel:   c.playbackState.Label(),
		ElapsedSeconds:  c.position.ElapsedSeconds,
		DurationSeconds: c.position.DurationSeconds,
		ProgressRatio:   progressRatio(c.position.ElapsedSeconds, c.position.DurationSeconds),
	}
	if c.file != nil {
		snapshot.FileName = c.file.DisplayName
	}
	if c.deviceIndex >= 0 && c.deviceIndex < len(c.devices) {
		snapshot.DeviceName = c.devices[c.deviceIndex].FriendlyName
	}
	snapshot.ElapsedDisplay = timefmt.Encode(snapshot.ElapsedSeconds)
	snapshot.DurationDisplay = timefmt.Encode(snapshot.DurationSeconds)
	return snapshot
}

func hostOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	host := u.Hostname()
	if host == "" {
		return "", fmt.Errorf("control URL %q has no host", rawURL)
	}
	return host, nil
}
