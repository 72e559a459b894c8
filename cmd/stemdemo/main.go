// Command stemdemo exercises the stem mixing pipeline end to end against
// synthetic in-memory stems (no network, no real Vorbis stream) and plays
// the mixed result live.
package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/spf13/pflag"

	"github.com/iksinskiyt/glissando-stems/internal/config"
	"github.com/iksinskiyt/glissando-stems/internal/domain"
	"github.com/iksinskiyt/glissando-stems/internal/logger"
	"github.com/iksinskiyt/glissando-stems/internal/stemmanager"
	"github.com/iksinskiyt/glissando-stems/internal/waveform"
)

const sampleRate = 44100

func main() {
	verbose := pflag.BoolP("verbose", "v", false, "enable debug logging")
	seconds := pflag.Float64P("seconds", "s", 4, "seconds of audio to mix and play")
	pflag.Parse()

	level := logger.LevelNormal
	if *verbose {
		level = logger.LevelVerbose
	}
	log := logger.New(level, os.Stderr)

	cfg := config.Load()

	trackLength := int64(*seconds * sampleRate)

	fetcher := newToneFetcher(trackLength)
	decoder := rawPCMDecoder{}

	mgr := stemmanager.New(fetcher, decoder, waveform.StdPNGEncoder{},
		stemmanager.WithLogger(log),
		stemmanager.WithConfig(cfg),
	)
	defer mgr.Close()

	mgr.SetTrackLength(trackLength)
	mgr.SetBgTaskCompleteCallback(func() {
		log.Debug("background pipeline stage completed")
	})

	mgr.UpdateStemInfo([]domain.StemInfo{
		{ID: 1, Path: "tone:220", Samples: uint32(trackLength), Offset: 0, GainDB: -3, Pan: -0.5},
		{ID: 2, Path: "tone:440", Samples: uint32(trackLength), Offset: 0, GainDB: -3, Pan: 0.5},
	})
	mgr.Wait()

	log.Info("stems ready: %d, waveform bytes for stem 1: %d", mgr.CountStems(), len(mgr.WaveformDataURI(1)))

	otoCtx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 2,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "audio context: %v\n", err)
		os.Exit(1)
	}
	<-ready

	reader := &mixReader{manager: mgr, trackLength: trackLength}
	player := otoCtx.NewPlayer(reader)
	player.Play()
	defer player.Close()

	for player.IsPlaying() {
		time.Sleep(20 * time.Millisecond)
	}
}

// mixReader adapts Manager.Render's chunked push model to the io.Reader
// pull model oto expects, advancing its playhead by one audio chunk per
// underlying Render call.
type mixReader struct {
	manager     *stemmanager.Manager
	trackLength int64
	position    int64
}

func (r *mixReader) Read(p []byte) (int, error) {
	if r.position >= r.trackLength {
		return 0, io.EOF
	}

	var chunk domain.AudioChunk
	r.manager.Render(r.position, &chunk)
	r.position += domain.AudioChunkSamples

	n := 0
	for i := 0; i < domain.AudioChunkSamples && n+4 <= len(p); i++ {
		left := clampSample(chunk.Left[i])
		right := clampSample(chunk.Right[i])
		binary.LittleEndian.PutUint16(p[n:], uint16(left))
		binary.LittleEndian.PutUint16(p[n+2:], uint16(right))
		n += 4
	}
	return n, nil
}

func clampSample(v float32) int16 {
	f := float64(v) * 32768
	if f > 32767 {
		return 32767
	}
	if f < -32768 {
		return -32768
	}
	return int16(f)
}

// toneFetcher synthesizes a sine-wave tone instead of downloading a real
// stem, so the demo needs no network access or Vorbis stream.
type toneFetcher struct {
	trackLength int64
}

func newToneFetcher(trackLength int64) *toneFetcher {
	return &toneFetcher{trackLength: trackLength}
}

func (f *toneFetcher) Fetch(ctx context.Context, path string) (domain.FetchResult, error) {
	var freq float64
	if _, err := fmt.Sscanf(path, "tone:%f", &freq); err != nil {
		freq = 440
	}

	samples := make([]int16, 2*f.trackLength)
	for i := int64(0); i < f.trackLength; i++ {
		v := int16(8000 * math.Sin(2*math.Pi*freq*float64(i)/sampleRate))
		samples[2*i] = v
		samples[2*i+1] = v
	}

	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[2*i:], uint16(s))
	}

	return domain.FetchResult{Status: 200, Bytes: buf}, nil
}

// rawPCMDecoder "decodes" by reading little-endian int16 PCM directly,
// standing in for a real Vorbis decoder the way the synthetic fetcher
// stands in for a real network fetch.
type rawPCMDecoder struct{}

func (rawPCMDecoder) Decode(data []byte, out []int16) (int, error) {
	n := len(out)
	if len(data) < n*2 {
		n = len(data) / 2
	}
	for i := 0; i < n; i++ {
		out[i] = int16(binary.LittleEndian.Uint16(data[2*i:]))
	}
	return n, nil
}
