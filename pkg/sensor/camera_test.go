package sensor

import (
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCamera(t *testing.T, opts CameraOptions) (*Camera, Env, *[][]string) {
	t.Helper()
	env, _, _ := testEnv(t)
	c := NewCamera("Camera", opts, env)
	var calls [][]string
	c.run = func(_ context.Context, argv []string) error {
		calls = append(calls, argv)
		return nil
	}
	c.lookPath = func(file string) (string, error) { return "/usr/bin/" + file, nil }
	return c, env, &calls
}

func TestCameraVideoPeriod(t *testing.T) {
	c, env, calls := newTestCamera(t, CameraOptions{VidPeriod: 3, VidLength: 5 * time.Second})
	ctx := context.Background()
	require.NoError(t, c.Start(ctx))
	for i := 0; i < 6; i++ {
		require.NoError(t, c.Write(ctx))
	}
	require.NoError(t, c.Stop(ctx))

	require.Len(t, *calls, 6)
	var kinds []string
	for _, argv := range *calls {
		kinds = append(kinds, argv[0])
	}
	assert.Equal(t, []string{
		"libcamera-still", "libcamera-still", "libcamera-vid",
		"libcamera-still", "libcamera-still", "libcamera-vid",
	}, kinds)

	video := (*calls)[2]
	assert.Equal(t, []string{
		"libcamera-vid", "--nopreview", "-t", "5000", "-o",
		filepath.Join(env.Dir, "pictures", "video_Mon_Oct_19_18:10:00_2026.h264"),
	}, video)
	assert.Contains(t, readData(t, env, "Camera"), "Mon Oct 19 18:10:00 2026,picture_Mon_Oct_19_18:10:00_2026.jpg\n")
}

func TestCameraStillsOnly(t *testing.T) {
	c, _, calls := newTestCamera(t, CameraOptions{})
	c.lookPath = func(file string) (string, error) {
		if file == "libcamera-vid" {
			return "", exec.ErrNotFound
		}
		return "/usr/bin/" + file, nil
	}
	ctx := context.Background()
	require.NoError(t, c.Start(ctx))
	for i := 0; i < 12; i++ {
		require.NoError(t, c.Write(ctx))
	}
	for _, argv := range *calls {
		assert.Equal(t, "libcamera-still", argv[0])
	}
}

func TestCameraMissingTool(t *testing.T) {
	c, _, _ := newTestCamera(t, CameraOptions{StillCommand: []string{"raspistill", "-o", "{file}"}})
	c.lookPath = func(string) (string, error) { return "", exec.ErrNotFound }
	err := c.Start(context.Background())
	var serr *StartError
	require.ErrorAs(t, err, &serr)
	assert.ErrorIs(t, err, exec.ErrNotFound)
}

func TestCameraCaptureFailure(t *testing.T) {
	c, env, _ := newTestCamera(t, CameraOptions{})
	c.run = func(context.Context, []string) error { return errors.New("camera busy") }
	ctx := context.Background()
	require.NoError(t, c.Start(ctx))
	var werr *WriteError
	assert.ErrorAs(t, c.Write(ctx), &werr)
	assert.Equal(t, "\nNew data.\n\n", readData(t, env, "Camera"))
}
