package trends

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"google.golang.org/api/option"
)

func TestExtractHashtags(t *testing.T) {
	tests := []struct {
		name  string
		texts []string
		want  []string
	}{
		{"none", []string{"plain title"}, []string{}},
		{"single", []string{"relax #ASMR now"}, []string{"ASMR"}},
		{"dedupeCaseInsensitive", []string{"#ASMR #asmr #Sleep", "#sleep #rain_sounds"}, []string{"ASMR", "Sleep", "rain_sounds"}},
		{"orderAcrossTexts", []string{"#b #a", "#c #A"}, []string{"b", "a", "c"}},
		{"emptyText", []string{"", "#x"}, []string{"x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractHashtags(tt.texts...)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ExtractHashtags() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestIsASMRRelated(t *testing.T) {
	tests := []struct {
		name        string
		title       string
		description string
		tags        []string
		hashtags    []string
		want        bool
	}{
		{"title", "ASMR Tapping", "", nil, nil, true},
		{"description", "Video", "very relaxing sounds", nil, nil, true},
		{"tags", "Video", "", []string{"White Noise"}, nil, true},
		{"hashtags", "Video", "", nil, []string{"tingles"}, true},
		{"multiWord", "nature sounds for focus", "", nil, nil, true},
		{"unrelated", "Car review", "horsepower", []string{"cars"}, []string{"auto"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsASMRRelated(tt.title, tt.description, tt.tags, tt.hashtags); got != tt.want {
				t.Errorf("IsASMRRelated() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "trends.json")
	records := []Record{
		{VideoID: "a", Title: "ASMR one", Hashtags: []string{"asmr"}, Keywords: []string{"k"}, ViewCount: 1200},
		{VideoID: "b", Title: "ASMR two", Hashtags: []string{}, Keywords: []string{}},
	}

	if err := Save(path, records); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"view_count": "1200"`) {
		t.Errorf("view_count not encoded as string:\n%s", data)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if diff := cmp.Diff(records, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("Load() should fail for a missing file")
	}
}

type fakeYouTube struct {
	mu           sync.Mutex
	searchCalls  int
	videoCalls   int
	searchParams []map[string]string
	pages        [][]string
	videos       map[string]map[string]any
	searchStatus int
}

func (f *fakeYouTube) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		q := r.URL.Query()

		switch {
		case strings.HasSuffix(r.URL.Path, "/search"):
			if f.searchStatus != 0 {
				w.WriteHeader(f.searchStatus)
				_, _ = w.Write([]byte(`{"error":{"code":403,"message":"quotaExceeded"}}`))
				return
			}
			params := map[string]string{}
			for key := range q {
				params[key] = q.Get(key)
			}
			f.searchParams = append(f.searchParams, params)

			page := f.searchCalls
			f.searchCalls++

			var items []map[string]any
			for _, id := range f.pages[page] {
				items = append(items, map[string]any{"id": map[string]string{"kind": "youtube#video", "videoId": id}})
			}
			resp := map[string]any{"items": items}
			if page+1 < len(f.pages) {
				resp["nextPageToken"] = "page" + string(rune('1'+page))
			}
			_ = json.NewEncoder(w).Encode(resp)

		case strings.HasSuffix(r.URL.Path, "/videos"):
			f.videoCalls++
			var items []map[string]any
			for _, value := range q["id"] {
				for _, id := range strings.Split(value, ",") {
					if v, ok := f.videos[id]; ok {
						items = append(items, v)
					}
				}
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"items": items})

		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
		}
	})
}

func video(id, title, description string, tags []string, views string) map[string]any {
	return map[string]any{
		"id": id,
		"snippet": map[string]any{
			"title":        title,
			"description":  description,
			"channelTitle": "Channel " + id,
			"publishedAt":  "2026-10-10T00:00:00Z",
			"tags":         tags,
		},
		"statistics": map[string]any{"viewCount": views},
	}
}

func newTestCollector(t *testing.T, fake *fakeYouTube) *Collector {
	t.Helper()
	return newTestCollectorWithLogger(t, fake, slog.New(slog.DiscardHandler))
}

func newTestCollectorWithLogger(t *testing.T, fake *fakeYouTube, logger *slog.Logger) *Collector {
	t.Helper()
	server := httptest.NewServer(fake.handler(t))
	t.Cleanup(server.Close)

	c, err := NewCollector(context.Background(), CollectorConfig{Query: "ASMR", Region: "US", LookbackDays: 7, Logger: logger},
		option.WithHTTPClient(server.Client()),
		option.WithEndpoint(server.URL+"/"),
	)
	if err != nil {
		t.Fatalf("NewCollector() error: %v", err)
	}
	c.now = func() time.Time { return time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC) }
	return c
}

func TestCollectLogsThroughInjectedLogger(t *testing.T) {
	fake := &fakeYouTube{
		pages:  [][]string{{"v1"}},
		videos: map[string]map[string]any{"v1": video("v1", "ASMR Tapping", "", nil, "900")},
	}
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil)).With("component", "trends")
	c := newTestCollectorWithLogger(t, fake, logger)

	if _, err := c.Collect(context.Background(), "", 50); err != nil {
		t.Fatalf("Collect() error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("logged %d lines, want 3:\n%s", len(lines), buf.String())
	}
	for _, line := range lines {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("decode log line %q: %v", line, err)
		}
		if entry["component"] != "trends" {
			t.Errorf("log line %q missing component=trends", line)
		}
	}
}

func TestCollect(t *testing.T) {
	fake := &fakeYouTube{
		pages: [][]string{{"v1", "v2"}, {"v3"}},
		videos: map[string]map[string]any{
			"v1": video("v1", "ASMR Tapping #asmr #Tingles", "soft sounds #ASMR", []string{"asmr"}, "900"),
			"v2": video("v2", "Car review", "engine noise", []string{"cars"}, "5000"),
			"v3": video("v3", "Rain for sleep", "", nil, "10"),
		},
	}
	c := newTestCollector(t, fake)

	records, err := c.Collect(context.Background(), "", 50)
	if err != nil {
		t.Fatalf("Collect() error: %v", err)
	}

	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}
	first := records[0]
	if first.VideoID != "v1" || first.Channel != "Channel v1" || first.ViewCount != 900 {
		t.Errorf("first record = %+v", first)
	}
	if diff := cmp.Diff([]string{"asmr", "Tingles"}, first.Hashtags); diff != "" {
		t.Errorf("hashtags mismatch (-want +got):\n%s", diff)
	}
	if records[1].VideoID != "v3" {
		t.Errorf("second record = %q, want v3", records[1].VideoID)
	}
	if records[1].Keywords == nil {
		t.Error("Keywords should be an empty slice, not nil")
	}

	if fake.searchCalls != 2 {
		t.Errorf("search calls = %d, want 2", fake.searchCalls)
	}
	params := fake.searchParams[0]
	want := map[string]string{
		"q":                 "ASMR",
		"type":              "video",
		"order":             "viewCount",
		"maxResults":        "50",
		"relevanceLanguage": "en",
		"safeSearch":        "strict",
		"videoDefinition":   "high",
		"regionCode":        "US",
		"publishedAfter":    "2026-10-07T12:00:00Z",
	}
	for key, value := range want {
		if params[key] != value {
			t.Errorf("search param %s = %q, want %q", key, params[key], value)
		}
	}
	if fake.searchParams[1]["pageToken"] != "page1" {
		t.Errorf("second page token = %q, want page1", fake.searchParams[1]["pageToken"])
	}
}

func TestCollectCapsResults(t *testing.T) {
	fake := &fakeYouTube{
		pages: [][]string{{"v1", "v2", "v3"}},
		videos: map[string]map[string]any{
			"v1": video("v1", "ASMR a", "", nil, "1"),
			"v2": video("v2", "ASMR b", "", nil, "2"),
			"v3": video("v3", "ASMR c", "", nil, "3"),
		},
	}
	c := newTestCollector(t, fake)

	records, err := c.Collect(context.Background(), "", 2)
	if err != nil {
		t.Fatalf("Collect() error: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("len(records) = %d, want 2", len(records))
	}
	if fake.searchParams[0]["maxResults"] != "2" {
		t.Errorf("maxResults = %q, want 2", fake.searchParams[0]["maxResults"])
	}
}

func TestCollectNoVideos(t *testing.T) {
	fake := &fakeYouTube{pages: [][]string{{}}}
	c := newTestCollector(t, fake)

	_, err := c.Collect(context.Background(), "", 10)
	if !errors.Is(err, ErrNoVideos) {
		t.Errorf("Collect() error = %v, want ErrNoVideos", err)
	}
	if fake.videoCalls != 0 {
		t.Errorf("video calls = %d, want 0", fake.videoCalls)
	}
}

func TestCollectAllFiltered(t *testing.T) {
	fake := &fakeYouTube{
		pages:  [][]string{{"v1"}},
		videos: map[string]map[string]any{"v1": video("v1", "Car review", "", nil, "1")},
	}
	c := newTestCollector(t, fake)

	if _, err := c.Collect(context.Background(), "", 10); !errors.Is(err, ErrNoVideos) {
		t.Errorf("Collect() error = %v, want ErrNoVideos", err)
	}
}

func TestCollectSearchError(t *testing.T) {
	fake := &fakeYouTube{searchStatus: http.StatusForbidden}
	c := newTestCollector(t, fake)

	_, err := c.Collect(context.Background(), "", 10)
	if err == nil {
		t.Fatal("Collect() should fail when search is rejected")
	}
	if !strings.Contains(err.Error(), "search videos") {
		t.Errorf("error = %v, want search context", err)
	}
}

func TestCollectRegionOverride(t *testing.T) {
	fake := &fakeYouTube{
		pages:  [][]string{{"v1"}},
		videos: map[string]map[string]any{"v1": video("v1", "ASMR a", "", nil, "1")},
	}
	c := newTestCollector(t, fake)

	if _, err := c.Collect(context.Background(), "GB", 5); err != nil {
		t.Fatalf("Collect() error: %v", err)
	}
	if got := fake.searchParams[0]["regionCode"]; got != "GB" {
		t.Errorf("regionCode = %q, want GB", got)
	}
}
