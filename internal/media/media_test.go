package media

import (
	"bytes"
	"encoding/base64"
	"image"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestLoadAsset(t *testing.T) {
	path := writeFile(t, "badapple.webm", []byte("webm-bytes"))

	a, err := LoadAsset(path, DefaultWidth, DefaultHeight)
	require.NoError(t, err)
	assert.Equal(t, "video/webm", a.Mime)
	assert.Equal(t, 962.0, a.Size().Width)
	assert.Equal(t, 720.0, a.Size().Height)
	assert.Equal(t, []byte("webm-bytes"), a.Bytes())

	u := a.DataURL()
	require.True(t, strings.HasPrefix(u, "data:video/webm;base64,"))
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(u, "data:video/webm;base64,"))
	require.NoError(t, err)
	assert.Equal(t, []byte("webm-bytes"), decoded)
}

func TestLoadAssetUnknownExtension(t *testing.T) {
	a, err := LoadAsset(writeFile(t, "clip.bin", []byte{1}), 1, 1)
	require.NoError(t, err)
	assert.Equal(t, "application/octet-stream", a.Mime)
}

func TestLoadAssetFailures(t *testing.T) {
	_, err := LoadAsset(filepath.Join(t.TempDir(), "missing.webm"), 962, 720)
	assert.ErrorIs(t, err, ErrAssetLoad)

	_, err = LoadAsset(writeFile(t, "empty.webm", nil), 962, 720)
	assert.ErrorIs(t, err, ErrAssetLoad)

	_, err = LoadAsset(writeFile(t, "ok.webm", []byte{1}), 0, 720)
	assert.ErrorIs(t, err, ErrAssetLoad)
}

func TestReadFrames(t *testing.T) {
	// two full 2x1 frames followed by half a frame
	data := []byte{
		1, 2, 3, 4, 5, 6, 7, 8,
		9, 10, 11, 12, 13, 14, 15, 16,
		17, 18,
	}
	var frames []*image.RGBA
	err := ReadFrames(bytes.NewReader(data), 2, 1, func(img *image.RGBA) {
		frames = append(frames, img)
	})
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	require.Len(t, frames, 2)
	assert.Equal(t, data[0:8], frames[0].Pix)
	assert.Equal(t, data[8:16], frames[1].Pix)

	frames = nil
	err = ReadFrames(bytes.NewReader(data[:16]), 2, 1, func(img *image.RGBA) {
		frames = append(frames, img)
	})
	assert.NoError(t, err)
	assert.Len(t, frames, 2)
}

func TestOpen(t *testing.T) {
	a := &Asset{Width: 962, Height: 720}

	v, err := Open(DecoderFFmpeg, a, DefaultVolume)
	require.NoError(t, err)
	assert.Contains(t, v.(*Process).Args(), "rawvideo")
	assert.Contains(t, v.(*Process).Args(), "volume=0.40")

	v, err = Open("", a, 0)
	require.NoError(t, err)
	args := strings.Join(v.(*Process).Args(), " ")
	assert.Contains(t, args, "width=962,height=720")
	assert.NotContains(t, args, "autoaudiosink")

	_, err = Open("vlc", a, 0)
	assert.Error(t, err)
}

func TestFFmpegDecodesVPXAlpha(t *testing.T) {
	// an EBML header followed by a track entry is enough for the probe
	webm := func(codecID string) *Asset {
		data := append([]byte{0x1a, 0x45, 0xdf, 0xa3, 0x86, 0x81}, []byte(codecID)...)
		return &Asset{Width: 962, Height: 720, Mime: "video/webm", data: data}
	}

	for codecID, want := range map[string]string{"V_VP9": "libvpx-vp9", "V_VP8": "libvpx"} {
		args := NewFFmpeg(webm(codecID), 0).Args()
		i := indexOf(args, "-c:v")
		require.NotEqual(t, -1, i, codecID)
		assert.Equal(t, want, args[i+1], codecID)
		assert.Less(t, i, indexOf(args, "-i"), "decoder must precede the input")
	}

	mp4 := &Asset{Width: 962, Height: 720, Mime: "video/mp4", data: []byte("ftypisom")}
	assert.Equal(t, "", mp4.Codec())
	assert.Equal(t, -1, indexOf(NewFFmpeg(mp4, 0).Args(), "-c:v"))
}

func indexOf(args []string, s string) int {
	for i, a := range args {
		if a == s {
			return i
		}
	}
	return -1
}

func TestProcessStartsPaused(t *testing.T) {
	p := NewGStreamer(&Asset{Width: 1, Height: 1}, 0)
	assert.True(t, p.Paused())
	assert.False(t, p.Ended())
	assert.Nil(t, p.Frame())
	assert.NoError(t, p.Close())
}

func TestProcessPlaysToEnd(t *testing.T) {
	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat not available")
	}

	frames := make([]byte, 2*1*4*3)
	for i := range frames {
		frames[i] = byte(i)
	}
	asset := &Asset{Width: 2, Height: 1, data: frames}
	p := newProcess("cat", []string{"cat"}, asset)

	require.NoError(t, p.Play())
	assert.False(t, p.Paused())
	require.NoError(t, p.Play(), "play while playing is a no-op")

	assert.Eventually(t, p.Ended, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 3, p.Frames())
	assert.Equal(t, frames[16:24], p.Frame().Pix)

	require.NoError(t, p.Close())
	assert.Nil(t, p.Frame())
	assert.True(t, p.Paused())
	assert.Error(t, p.Play())
}
