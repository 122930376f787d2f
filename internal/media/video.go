package media

import (
	"fmt"
	"image"
)

// Decoder names accepted by Open.
const (
	DecoderGStreamer = "gstreamer"
	DecoderFFmpeg    = "ffmpeg"
)

// DefaultVolume is the playback volume of the audio track.
const DefaultVolume = 0.4

// Video is a playing video. Like an HTML media element it starts paused.
type Video interface {
	// Frame returns the most recent decoded frame, or nil before the first.
	Frame() *image.RGBA
	Paused() bool
	Ended() bool
	Play() error
	Pause()
	Close() error
}

// Open creates a player for asset using the named decoder.
func Open(decoder string, asset *Asset, volume float64) (Video, error) {
	switch decoder {
	case DecoderGStreamer, "":
		return NewGStreamer(asset, volume), nil
	case DecoderFFmpeg:
		return NewFFmpeg(asset, volume), nil
	}
	return nil, fmt.Errorf("unknown decoder %q", decoder)
}
