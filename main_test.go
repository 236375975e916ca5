package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hdvalidator/surface"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeImage(t *testing.T, sectors int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "disk.img")
	require.NoError(t, os.WriteFile(path, make([]byte, sectors*512), 0o644))
	return path
}

func TestTestCommandReadsImage(t *testing.T) {
	img := writeImage(t, 2048)
	logPath := filepath.Join(t.TempDir(), "run.log")

	out, err := execute(t, "test", "--device", img, "--no-ui", "--grid-columns", "4", "--grid-rows", "2", "--log", logPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Starting Read Test")
	assert.Contains(t, out, "Testing sectors 0-2,047 in 8 blocks")
	assert.Contains(t, out, "Test Completed")
	assert.Contains(t, out, "Log saved to "+logPath)

	saved, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(saved), "OK: 8")
}

func TestTestCommandWriteNeedsForce(t *testing.T) {
	img := writeImage(t, 64)
	_, err := execute(t, "test", "--device", img, "--test", "write", "--no-ui")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires --force")
}

func TestTestCommandWriteVerifyImage(t *testing.T) {
	img := writeImage(t, 256)
	_, err := execute(t, "test", "--device", img, "--test", "write-verify", "--force", "--yes",
		"--no-ui", "--grid-columns", "2", "--grid-rows", "2", "--start", "16", "--count", "64")
	require.NoError(t, err)

	data, err := os.ReadFile(img)
	require.NoError(t, err)
	assert.Equal(t, surface.Pattern(16, 64, 512), data[16*512:80*512])
	assert.Equal(t, make([]byte, 512), data[80*512:81*512], "sectors outside the range are untouched")
}

func TestTestCommandRejectsBadRange(t *testing.T) {
	img := writeImage(t, 64)
	_, err := execute(t, "test", "--device", img, "--no-ui", "--start", "60", "--count", "10")
	assert.Error(t, err)
}

func TestTestCommandUnknownTest(t *testing.T) {
	img := writeImage(t, 64)
	_, err := execute(t, "test", "--device", img, "--no-ui", "--test", "scrub")
	assert.Error(t, err)
}

func TestDeviceInfoOnImage(t *testing.T) {
	img := writeImage(t, 2880)
	out, err := execute(t, "device", "info", "--path", img)
	require.NoError(t, err)
	assert.Contains(t, out, "Device:  "+img)
	assert.Contains(t, out, "Size:    1.4 MiB")
}

func TestTestCommandWarnsWhenPushFails(t *testing.T) {
	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer gw.Close()
	img := writeImage(t, 64)

	out, err := execute(t, "test", "--device", img, "--no-ui", "--grid-columns", "2", "--grid-rows", "1",
		"--metrics-push", gw.URL)
	require.NoError(t, err, "a failed push does not fail the test")
	assert.Contains(t, out, "Test Completed")
	assert.Contains(t, out, "warning: metrics were not pushed")
}
