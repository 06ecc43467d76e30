package registry

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/arcazj/openbexi-earth-orbit/internal/feedcache"
)

var testLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))

type DecodeSuite struct {
	suite.Suite
	logs   *bytes.Buffer
	logger *slog.Logger
}

func (s *DecodeSuite) SetupTest() {
	s.logs = &bytes.Buffer{}
	s.logger = slog.New(slog.NewJSONHandler(s.logs, nil))
}

func (s *DecodeSuite) warnings() int {
	return strings.Count(s.logs.String(), `"msg":"skipping decayed record"`)
}

func (s *DecodeSuite) TestNormalizesAcrossGroups() {
	feed := `{
		"ISS": [{"NORAD_CAT_ID": "25544", "DECAY_DATE": "01/15/2024", "LAUNCH_DATE": "11/20/1998", "OBJECT_NAME": "ISS"}],
		"MISC": [{"norad_cat_id": 44713, "decay_date": "3/5/2023"}]
	}`

	records, err := Decode([]byte(feed), s.logger)
	s.Require().NoError(err)
	s.Require().Len(records, 2)

	iss := records[0]
	s.Equal("25544", iss.CatalogID)
	s.Equal("2024-01-15", iss.DecayDateISO)
	s.Equal(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), iss.DecayDate)
	s.Require().NotNil(iss.LaunchDateISO)
	s.Equal("1998-11-20", *iss.LaunchDateISO)
	s.Require().NotNil(iss.ObjectName)
	s.Equal("ISS", *iss.ObjectName)

	misc := records[1]
	s.Equal("44713", misc.CatalogID)
	s.Equal("2023-03-05", misc.DecayDateISO)
	s.Nil(misc.LaunchDateISO)
	s.Nil(misc.ObjectName)
	s.Zero(s.warnings())
}

func (s *DecodeSuite) TestCatalogIDAliases() {
	feed := `{"a": [
		{"NORADID": " 100 ", "DECAY_DATE": "01/01/2020"},
		{"noradId": 101, "DECAY_DATE": "01/01/2020"},
		{"NORAD_CAT_ID": null, "norad_cat_id": "102", "DECAY_DATE": "01/01/2020"}
	]}`

	records, err := Decode([]byte(feed), s.logger)
	s.Require().NoError(err)
	s.Require().Len(records, 3)
	s.Equal("100", records[0].CatalogID)
	s.Equal("101", records[1].CatalogID)
	s.Equal("102", records[2].CatalogID)
}

func (s *DecodeSuite) TestRejectsInvalidEntries() {
	feed := `{"a": [
		{"DECAY_DATE": "01/01/2020"},
		{"NORAD_CAT_ID": "", "DECAY_DATE": "01/01/2020"},
		{"NORAD_CAT_ID": "1", "DECAY_DATE": "2020-01-01"},
		{"NORAD_CAT_ID": "2", "DECAY_DATE": "02/30/2020"},
		{"NORAD_CAT_ID": "3", "DECAY_DATE": "00/10/2020"},
		{"NORAD_CAT_ID": "4"},
		{"NORAD_CAT_ID": "5", "DECAY_DATE": "12/31/2021", "LAUNCH_DATE": "garbage"},
		"not an object"
	], "b": "not an array"}`

	records, err := Decode([]byte(feed), s.logger)
	s.Require().NoError(err)
	s.Require().Len(records, 1)
	s.Equal("5", records[0].CatalogID)
	s.Nil(records[0].LaunchDateISO)
}

func (s *DecodeSuite) TestWarningsAreCapped() {
	var entries []string
	for i := 0; i < 20; i++ {
		entries = append(entries, fmt.Sprintf(`{"NORAD_CAT_ID": "%d", "DECAY_DATE": "bad"}`, i))
	}
	feed := `{"a": [` + strings.Join(entries, ",") + `]}`

	records, err := Decode([]byte(feed), s.logger)
	s.Require().NoError(err)
	s.Empty(records)
	s.Equal(maxWarnings, s.warnings())
}

func (s *DecodeSuite) TestDuplicateWarningsLoggedOnce() {
	feed := `{"a": [{"DECAY_DATE": "01/01/2020"}, {"DECAY_DATE": "01/01/2020"}, {}]}`

	_, err := Decode([]byte(feed), s.logger)
	s.Require().NoError(err)
	s.Equal(1, s.warnings())
}

func (s *DecodeSuite) TestTopLevelShapes() {
	records, err := Decode([]byte(" null "), s.logger)
	s.NoError(err)
	s.Empty(records)

	records, err = Decode([]byte(`{}`), s.logger)
	s.NoError(err)
	s.Empty(records)

	_, err = Decode([]byte(`[1, 2]`), s.logger)
	s.Error(err)

	_, err = Decode([]byte(`{"a": [`), s.logger)
	s.Error(err)
}

func TestDecodeSuite(t *testing.T) {
	suite.Run(t, new(DecodeSuite))
}

func TestBuildKeepsLatestDecay(t *testing.T) {
	early := Record{CatalogID: "7", DecayDate: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), DecayDateISO: "2020-01-01"}
	late := Record{CatalogID: "7", DecayDate: time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC), DecayDateISO: "2021-06-01"}
	tieName := "tie"
	tie := Record{CatalogID: "7", DecayDate: late.DecayDate, DecayDateISO: "2021-06-01", ObjectName: &tieName}

	reg := Build("test", []Record{early, late, tie})
	require.Equal(t, 1, reg.Len())

	got, ok := reg.Lookup("7")
	require.True(t, ok)
	assert.Equal(t, "2021-06-01", got.DecayDateISO)
	assert.Nil(t, got.ObjectName, "ties keep the first record")

	got, ok = reg.Lookup(" 7 ")
	assert.True(t, ok)
	assert.Equal(t, "2021-06-01", got.DecayDateISO)
}

func TestNilRegistry(t *testing.T) {
	var reg *Registry
	_, ok := reg.Lookup("1")
	assert.False(t, ok)
	assert.Zero(t, reg.Len())
	assert.Empty(t, reg.Source())
	assert.Nil(t, reg.Records())
}

func TestRecordsSorted(t *testing.T) {
	d := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	reg := Build("test", []Record{{CatalogID: "b", DecayDate: d}, {CatalogID: "a", DecayDate: d}, {CatalogID: "c", DecayDate: d}})

	var ids []string
	for _, r := range reg.Records() {
		ids = append(ids, r.CatalogID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

// countingSource counts fetches and optionally blocks until released.
type countingSource struct {
	data    []byte
	err     error
	calls   atomic.Int32
	release chan struct{}
}

func (s *countingSource) Fetch(ctx context.Context) ([]byte, error) {
	s.calls.Add(1)
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.data, s.err
}

func (s *countingSource) Name() string { return "counting" }

const sampleFeed = `{"x": [{"NORAD_CAT_ID": "25544", "DECAY_DATE": "01/15/2024"}]}`

func TestCacheMemoizes(t *testing.T) {
	src := &countingSource{data: []byte(sampleFeed)}
	c := NewCache(src, testLogger)

	assert.Nil(t, c.Get())
	assert.False(t, c.Loaded())

	first := c.Load(context.Background())
	require.NotNil(t, first)
	second := c.Load(context.Background())
	assert.Same(t, first, second)
	assert.Same(t, first, c.Get())
	assert.True(t, c.Loaded())
	assert.Equal(t, int32(1), src.calls.Load())
	assert.Equal(t, "counting", first.Source())
}

func TestCacheSharesInFlightLoad(t *testing.T) {
	src := &countingSource{data: []byte(sampleFeed), release: make(chan struct{})}
	c := NewCache(src, testLogger)

	const callers = 8
	results := make([]*Registry, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = c.Load(context.Background())
		}(i)
	}

	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	close(src.release)
	wg.Wait()

	assert.Equal(t, int32(1), src.calls.Load())
	for _, r := range results {
		assert.Same(t, results[0], r)
	}
}

// flakySource fails its first failures fetches, then serves data.
type flakySource struct {
	data     []byte
	failures int32
	calls    atomic.Int32
}

func (s *flakySource) Fetch(context.Context) ([]byte, error) {
	if s.calls.Add(1) <= s.failures {
		return nil, errors.New("connection reset")
	}
	return s.data, nil
}

func (s *flakySource) Name() string { return "flaky" }

// contextSource fails when the fetch context is already done.
type contextSource struct {
	data  []byte
	calls atomic.Int32
}

func (s *contextSource) Fetch(ctx context.Context) ([]byte, error) {
	s.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.data, nil
}

func (s *contextSource) Name() string { return "context" }

func TestCacheRetriesAfterFailedLoad(t *testing.T) {
	src := &flakySource{data: []byte(sampleFeed), failures: 1}
	c := NewCache(src, testLogger)

	assert.Nil(t, c.Load(context.Background()))
	assert.False(t, c.Loaded())

	reg := c.Load(context.Background())
	require.NotNil(t, reg)
	assert.Equal(t, 1, reg.Len())
	assert.True(t, c.Loaded())
	assert.Equal(t, int32(2), src.calls.Load())

	// Success is kept.
	assert.Same(t, reg, c.Load(context.Background()))
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestCacheConcurrentCallersShareFailure(t *testing.T) {
	src := &countingSource{err: errors.New("boom"), release: make(chan struct{})}
	c := NewCache(src, testLogger)

	const callers = 8
	var (
		wg      sync.WaitGroup
		nonNil  atomic.Int32
		started sync.WaitGroup
	)
	started.Add(callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			started.Done()
			if c.Load(context.Background()) != nil {
				nonNil.Add(1)
			}
		}()
	}

	started.Wait()
	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	// Every caller arriving while the fetch is blocked joins it.
	assert.Never(t, func() bool { return src.calls.Load() > 1 }, 50*time.Millisecond, 5*time.Millisecond)
	close(src.release)
	wg.Wait()

	assert.Zero(t, nonNil.Load())
	assert.False(t, c.Loaded())
}

func TestCacheLoadSurvivesCancelledCaller(t *testing.T) {
	src := &contextSource{data: []byte(sampleFeed)}
	c := NewCache(src, testLogger)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NotNil(t, c.Load(ctx))

	reg := c.Load(context.Background())
	require.NotNil(t, reg)
	assert.Equal(t, 1, reg.Len())
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestCacheInvalidateReloads(t *testing.T) {
	src := &countingSource{data: []byte(sampleFeed)}
	c := NewCache(src, testLogger)

	first := c.Load(context.Background())
	require.NotNil(t, first)

	c.Invalidate()
	assert.False(t, c.Loaded())
	assert.Nil(t, c.Get())

	second := c.Load(context.Background())
	require.NotNil(t, second)
	assert.NotSame(t, first, second)
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestCacheMalformedFeedIsAbsent(t *testing.T) {
	c := NewCache(&countingSource{data: []byte(`[]`)}, testLogger)
	assert.Nil(t, c.Load(context.Background()))
}

func TestNewSource(t *testing.T) {
	assert.IsType(t, &HTTPSource{}, NewSource("https://example.com/decayed.json"))
	assert.IsType(t, FileSource{}, NewSource("/tmp/decayed.json"))
	assert.Equal(t, DefaultFeed, NewSource("").Name())
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decayed.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleFeed), 0o644))

	data, err := FileSource{Path: path}.Fetch(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, sampleFeed, string(data))

	_, err = FileSource{Path: filepath.Join(t.TempDir(), "missing.json")}.Fetch(context.Background())
	assert.Error(t, err)
}

func TestHTTPSource(t *testing.T) {
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleFeed))
	}))
	defer ok.Close()
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer broken.Close()

	data, err := NewHTTPSource(ok.URL).Fetch(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, sampleFeed, string(data))

	_, err = NewHTTPSource(broken.URL).Fetch(context.Background())
	assert.ErrorContains(t, err, "HTTP 503")
}

func TestCachedSourceFallsBack(t *testing.T) {
	cache := feedcache.NewDisk(t.TempDir(), "decayed", "json", 3)
	src := &countingSource{data: []byte(sampleFeed)}
	cached := NewCachedSource(src, cache, testLogger)

	data, err := cached.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sampleFeed, string(data))

	src.err = errors.New("offline")
	data, err = cached.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sampleFeed, string(data))
	assert.Equal(t, "counting", cached.Name())
}

func TestCachedSourceEmptyCacheReturnsError(t *testing.T) {
	cache := feedcache.NewDisk(t.TempDir(), "decayed", "json", 3)
	cached := NewCachedSource(&countingSource{err: errors.New("offline")}, cache, testLogger)

	_, err := cached.Fetch(context.Background())
	assert.ErrorContains(t, err, "offline")
}

func TestNilCache(t *testing.T) {
	var c *Cache
	assert.Nil(t, c.Load(context.Background()))
	assert.Nil(t, c.Get())
	c.Invalidate()
}
