package sensor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ericogr/balloon-flight-controller/pkg/record"
)

const (
	picturesDir = "pictures"
	argFile     = "{file}"
	argMillis   = "{ms}"
)

var (
	DefaultStillCommand = []string{"libcamera-still", "--nopreview", "-o", argFile}
	DefaultVideoCommand = []string{"libcamera-vid", "--nopreview", "-t", argMillis, "-o", argFile}
)

// CameraOptions configures a Camera. Commands are argv lists where {file} is
// replaced by the output path and {ms} by the video length in milliseconds.
type CameraOptions struct {
	// VidPeriod makes every VidPeriod-th write a video; 0 means stills only.
	VidPeriod    int
	VidLength    time.Duration
	StillCommand []string
	VideoCommand []string
}

// Camera takes a picture on each write, and a video every VidPeriod writes.
// The data file lists the capture files.
type Camera struct {
	base
	opts    CameraOptions
	counter int

	run      func(ctx context.Context, argv []string) error
	lookPath func(file string) (string, error)
}

func NewCamera(name string, opts CameraOptions, env Env) *Camera {
	if len(opts.StillCommand) == 0 {
		opts.StillCommand = DefaultStillCommand
	}
	if len(opts.VideoCommand) == 0 {
		opts.VideoCommand = DefaultVideoCommand
	}
	return &Camera{
		base:     newBase(name, KindCamera, env),
		opts:     opts,
		run:      runCommand,
		lookPath: exec.LookPath,
	}
}

func runCommand(ctx context.Context, argv []string) error {
	out, err := exec.CommandContext(ctx, argv[0], argv[1:]...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", argv[0], err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Start checks the capture tools are installed.
func (c *Camera) Start(context.Context) error {
	cmds := [][]string{c.opts.StillCommand}
	if c.opts.VidPeriod > 0 {
		cmds = append(cmds, c.opts.VideoCommand)
	}
	for _, argv := range cmds {
		if _, err := c.lookPath(argv[0]); err != nil {
			return &StartError{Sensor: c.name, Err: err}
		}
	}
	if err := os.MkdirAll(c.dir(), 0o755); err != nil {
		return &StartError{Sensor: c.name, Err: err}
	}
	if err := c.open(); err != nil {
		return &StartError{Sensor: c.name, Err: err}
	}
	c.counter = 0
	return nil
}

func (c *Camera) dir() string { return filepath.Join(c.env.Dir, picturesDir) }

// Get captures one picture or video. Fields holds the capture file name and
// Value the write counter within the video period.
func (c *Camera) Get(ctx context.Context) (Reading, error) {
	c.counter++
	now := c.env.Now()
	stamp := strings.ReplaceAll(now.Format(record.TimeLayout), " ", "_")

	var name string
	var argv []string
	if c.opts.VidPeriod > 0 && c.counter >= c.opts.VidPeriod {
		c.counter = 0
		name = "video_" + stamp + ".h264"
		argv = expand(c.opts.VideoCommand, filepath.Join(c.dir(), name), c.opts.VidLength)
	} else {
		name = "picture_" + stamp + ".jpg"
		argv = expand(c.opts.StillCommand, filepath.Join(c.dir(), name), 0)
	}
	if err := c.run(ctx, argv); err != nil {
		return Reading{}, &ReadError{Sensor: c.name, Err: err}
	}
	return Reading{Timestamp: now, Value: float64(c.counter), Fields: []string{name}}, nil
}

func expand(argv []string, file string, length time.Duration) []string {
	out := make([]string, len(argv))
	for i, a := range argv {
		a = strings.ReplaceAll(a, argFile, file)
		out[i] = strings.ReplaceAll(a, argMillis, strconv.FormatInt(length.Milliseconds(), 10))
	}
	return out
}

func (c *Camera) Write(ctx context.Context) error { return c.write(ctx, c.Get) }

func (c *Camera) Stop(context.Context) error {
	c.stopped()
	return nil
}
