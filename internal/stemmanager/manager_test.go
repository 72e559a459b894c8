package stemmanager_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iksinskiyt/glissando-stems/internal/config"
	"github.com/iksinskiyt/glissando-stems/internal/domain"
	"github.com/iksinskiyt/glissando-stems/internal/stemmanager"
)

// encodePCM packs interleaved stereo int16 samples into little-endian
// bytes, the way a real decoder would hand them to a caller-supplied
// buffer's backing bytes.
func encodePCM(samples []int16) []byte {
	buf := new(bytes.Buffer)
	for _, s := range samples {
		_ = binary.Write(buf, binary.LittleEndian, s)
	}
	return buf.Bytes()
}

type fakeFetcher struct {
	mu        sync.Mutex
	responses map[string]domain.FetchResult
	errs      map[string]error
	calls     map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		responses: make(map[string]domain.FetchResult),
		errs:      make(map[string]error),
		calls:     make(map[string]int),
	}
}

func (f *fakeFetcher) Fetch(ctx context.Context, path string) (domain.FetchResult, error) {
	f.mu.Lock()
	f.calls[path]++
	defer f.mu.Unlock()
	if err, ok := f.errs[path]; ok {
		return domain.FetchResult{}, err
	}
	return f.responses[path], nil
}

func (f *fakeFetcher) callCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

type fakeDecoder struct{}

func (fakeDecoder) Decode(data []byte, out []int16) (int, error) {
	n := len(out)
	if len(data) < n*2 {
		return 0, errors.New("short payload")
	}
	for i := 0; i < n; i++ {
		out[i] = int16(binary.LittleEndian.Uint16(data[2*i:]))
	}
	return n, nil
}

type fakeEncoder struct{}

func (fakeEncoder) EncodeRGBA(pixels []byte, width, height int) ([]byte, error) {
	out := make([]byte, len(pixels))
	copy(out, pixels)
	return out, nil
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.FetchRetryBackoff = time.Millisecond
	return cfg
}

func TestManager_SingleStemEndToEnd(t *testing.T) {
	samples := []int16{1000, -1000, 2000, -2000}
	fetcher := newFakeFetcher()
	fetcher.responses["stem.ogg"] = domain.FetchResult{Status: 200, Bytes: encodePCM(samples)}

	m := stemmanager.New(fetcher, fakeDecoder{}, fakeEncoder{}, stemmanager.WithConfig(testConfig()))
	defer m.Close()

	m.UpdateStemInfo([]domain.StemInfo{
		{ID: 1, Path: "stem.ogg", Samples: 2, Offset: 0, GainDB: 0, Pan: 0},
	})
	m.Wait()

	require.True(t, m.StemReady(1))
	assert.False(t, m.StemErrored(1))
	assert.NotEmpty(t, m.WaveformDataURI(1))
}

func TestManager_FetchFailsAfterRetriesMarksError(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.responses["missing.ogg"] = domain.FetchResult{Status: 404}

	m := stemmanager.New(fetcher, fakeDecoder{}, fakeEncoder{}, stemmanager.WithConfig(testConfig()))
	defer m.Close()

	m.UpdateStemInfo([]domain.StemInfo{
		{ID: 1, Path: "missing.ogg", Samples: 2},
	})
	m.Wait()

	assert.True(t, m.StemErrored(1))
	assert.False(t, m.StemReady(1))
	assert.Equal(t, testConfig().FetchRetryCount, fetcher.callCount("missing.ogg"))
}

func TestManager_RenderEmptyRegistryIsNoop(t *testing.T) {
	m := stemmanager.New(newFakeFetcher(), fakeDecoder{}, fakeEncoder{}, stemmanager.WithConfig(testConfig()))
	defer m.Close()

	var chunk domain.AudioChunk
	m.Render(0, &chunk)

	for _, v := range chunk.Left {
		assert.Zero(t, v)
	}
	for _, v := range chunk.Right {
		assert.Zero(t, v)
	}
}

func TestManager_RenderOutOfRangeStemIsNoop(t *testing.T) {
	samples := make([]int16, 2*domain.AudioChunkSamples)
	for i := range samples {
		samples[i] = 5000
	}
	fetcher := newFakeFetcher()
	fetcher.responses["a.ogg"] = domain.FetchResult{Status: 200, Bytes: encodePCM(samples)}

	m := stemmanager.New(fetcher, fakeDecoder{}, fakeEncoder{}, stemmanager.WithConfig(testConfig()))
	defer m.Close()

	m.UpdateStemInfo([]domain.StemInfo{
		{ID: 1, Path: "a.ogg", Samples: domain.AudioChunkSamples, Offset: 0, GainDB: 0, Pan: 0},
	})
	m.Wait()

	var chunk domain.AudioChunk
	// First sample far beyond the stem's own range.
	m.Render(10*domain.AudioChunkSamples, &chunk)

	for _, v := range chunk.Left {
		assert.Zero(t, v)
	}
}

func TestManager_PanZeroGivesSymmetricGain(t *testing.T) {
	samples := make([]int16, 2*domain.AudioChunkSamples)
	for i := 0; i < domain.AudioChunkSamples; i++ {
		samples[2*i] = 10000
		samples[2*i+1] = 10000
	}
	fetcher := newFakeFetcher()
	fetcher.responses["a.ogg"] = domain.FetchResult{Status: 200, Bytes: encodePCM(samples)}

	m := stemmanager.New(fetcher, fakeDecoder{}, fakeEncoder{}, stemmanager.WithConfig(testConfig()))
	defer m.Close()

	m.UpdateStemInfo([]domain.StemInfo{
		{ID: 1, Path: "a.ogg", Samples: domain.AudioChunkSamples, Offset: 0, GainDB: 0, Pan: 0},
	})
	m.Wait()

	var chunk domain.AudioChunk
	m.Render(0, &chunk)

	assert.InDelta(t, chunk.Left[0], chunk.Right[0], 1e-6)
}

func TestManager_PanHardLeftSilencesRightChannel(t *testing.T) {
	samples := make([]int16, 2*domain.AudioChunkSamples)
	for i := 0; i < domain.AudioChunkSamples; i++ {
		samples[2*i] = 10000
		samples[2*i+1] = 10000
	}
	fetcher := newFakeFetcher()
	fetcher.responses["a.ogg"] = domain.FetchResult{Status: 200, Bytes: encodePCM(samples)}

	m := stemmanager.New(fetcher, fakeDecoder{}, fakeEncoder{}, stemmanager.WithConfig(testConfig()))
	defer m.Close()

	m.UpdateStemInfo([]domain.StemInfo{
		{ID: 1, Path: "a.ogg", Samples: domain.AudioChunkSamples, Offset: 0, GainDB: 0, Pan: -1},
	})
	m.Wait()

	var chunk domain.AudioChunk
	m.Render(0, &chunk)

	assert.NotZero(t, chunk.Left[0])
	assert.Zero(t, chunk.Right[0])
}

func TestManager_MuteSoloToggleSequence(t *testing.T) {
	m := stemmanager.New(newFakeFetcher(), fakeDecoder{}, fakeEncoder{}, stemmanager.WithConfig(testConfig()))
	defer m.Close()

	m.UpdateStemInfo([]domain.StemInfo{
		{ID: 1, Path: "a.ogg", Samples: 1},
		{ID: 2, Path: "b.ogg", Samples: 1},
	})

	assert.True(t, m.StemAudible(1))
	assert.True(t, m.StemAudible(2))

	m.ToggleMute(1)
	assert.False(t, m.StemAudible(1))
	assert.True(t, m.StemAudible(2))

	m.ToggleSolo(2)
	assert.True(t, m.StemSoloed(2))
	assert.False(t, m.StemAudible(1), "soloing stem 2 mutes everything else")
	assert.True(t, m.StemAudible(2))

	// Muting stem 2 while it's soloed snapshots the effective mute state
	// under the solo (stem 1 muted, stem 2 not) before clearing the solo.
	m.ToggleMute(2)
	assert.False(t, m.StemSoloed(2))
	assert.False(t, m.StemAudible(1), "stem 1 stays muted across the solo-to-mute transition")
	assert.False(t, m.StemAudible(2), "toggling mute while soloed mutes the stem being toggled")

	m.UnmuteAll()
	assert.True(t, m.StemAudible(1))
	assert.True(t, m.StemAudible(2))
}

func TestManager_UpdateStemInfoIsIdempotent(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.responses["a.ogg"] = domain.FetchResult{Status: 200, Bytes: encodePCM([]int16{1, 1})}

	m := stemmanager.New(fetcher, fakeDecoder{}, fakeEncoder{}, stemmanager.WithConfig(testConfig()))
	defer m.Close()

	info := []domain.StemInfo{{ID: 1, Path: "a.ogg", Samples: 1, GainDB: -6, Pan: 0.5}}
	m.UpdateStemInfo(info)
	m.Wait()
	require.Equal(t, 1, m.CountStems())

	uri := m.WaveformDataURI(1)
	ordinal := m.WaveformOrdinal(1)

	m.UpdateStemInfo(info)
	m.Wait()

	assert.Equal(t, 1, m.CountStems())
	assert.Equal(t, uri, m.WaveformDataURI(1))
	assert.Equal(t, ordinal, m.WaveformOrdinal(1))
}

func TestManager_WaveformOrdinalAdvancesOnOffsetChange(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.responses["a.ogg"] = domain.FetchResult{Status: 200, Bytes: encodePCM([]int16{1, 1})}

	m := stemmanager.New(fetcher, fakeDecoder{}, fakeEncoder{}, stemmanager.WithConfig(testConfig()))
	defer m.Close()

	m.UpdateStemInfo([]domain.StemInfo{{ID: 1, Path: "a.ogg", Samples: 1}})
	m.Wait()
	firstOrdinal := m.WaveformOrdinal(1)

	m.UpdateStemInfo([]domain.StemInfo{{ID: 1, Path: "a.ogg", Samples: 1, Offset: 5}})
	m.Wait()

	assert.Greater(t, m.WaveformOrdinal(1), firstOrdinal)
}

func TestManager_UnknownStemReturnsZeroValues(t *testing.T) {
	m := stemmanager.New(newFakeFetcher(), fakeDecoder{}, fakeEncoder{}, stemmanager.WithConfig(testConfig()))
	defer m.Close()

	assert.Equal(t, uint32(0), m.WaveformOrdinal(999))
	assert.Equal(t, "", m.WaveformDataURI(999))
	assert.False(t, m.StemReady(999))
	assert.False(t, m.StemErrored(999))
}
