// Package wavefile reads and writes sample channel waves as PCM WAV files.
package wavefile

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/mitchellh/go-homedir"

	"go-loopcore/model"
)

// BitDepth is used when saving.
const BitDepth = 16

// Load decodes a mono or stereo PCM WAV file into a wave named after the
// file. Samples are scaled to [-1, 1].
func Load(path string) (*model.Wave, error) {
	p, err := homedir.Expand(path)
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With("expand wave path"))
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With("open wave"), ftag.With(ftag.NotFound))
	}
	defer f.Close()
	return decode(f, p)
}

func decode(f *os.File, path string) (*model.Wave, error) {
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fault.New(fmt.Sprintf("invalid WAV file: %s", path), ftag.With(ftag.InvalidArgument))
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With("decode wave"))
	}
	chans := buf.Format.NumChannels
	if chans < 1 || chans > 2 {
		return nil, fault.New(fmt.Sprintf("%s: %d channels, want mono or stereo", path, chans), ftag.With(ftag.InvalidArgument))
	}
	depth := buf.SourceBitDepth
	if depth == 0 {
		depth = int(dec.BitDepth)
	}
	if depth == 0 {
		return nil, fault.New(fmt.Sprintf("unknown bit depth: %s", path), ftag.With(ftag.InvalidArgument))
	}
	return FromPCM(buf, depth, name(path)), nil
}

// FromPCM converts an integer buffer of the given bit depth into a wave.
func FromPCM(buf *audio.IntBuffer, bitDepth int, name string) *model.Wave {
	scale := float32(math.Pow(2, float64(bitDepth-1)))
	data := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		data[i] = float32(v) / scale
	}
	return &model.Wave{
		Name:     name,
		Data:     data,
		Channels: buf.Format.NumChannels,
		Rate:     buf.Format.SampleRate,
	}
}

// ToPCM converts a wave into a 16 bit integer buffer, clipping out of range
// samples.
func ToPCM(w *model.Wave) *audio.IntBuffer {
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: w.Channels,
			SampleRate:  w.Rate,
		},
		Data:           make([]int, len(w.Data)),
		SourceBitDepth: BitDepth,
	}
	for i, v := range w.Data {
		v = max(-1, min(v, 1))
		buf.Data[i] = int(v * math.MaxInt16)
	}
	return buf
}

// Save writes w as a 16 bit PCM WAV file, creating parent directories.
func Save(path string, w *model.Wave) error {
	if w == nil || w.Frames() == 0 {
		return fault.New("empty wave", ftag.With(ftag.InvalidArgument))
	}
	p, err := homedir.Expand(path)
	if err != nil {
		return fault.Wrap(err, fmsg.With("expand wave path"))
	}
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return fault.Wrap(err, fmsg.With("create wave directory"))
	}
	f, err := os.Create(p)
	if err != nil {
		return fault.Wrap(err, fmsg.With("create wave"))
	}
	defer f.Close()

	enc := wav.NewEncoder(f, w.Rate, BitDepth, w.Channels, 1)
	if err := enc.Write(ToPCM(w)); err != nil {
		return fault.Wrap(err, fmsg.With("encode wave"))
	}
	if err := enc.Close(); err != nil {
		return fault.Wrap(err, fmsg.With("finish wave"))
	}
	return nil
}

func name(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
