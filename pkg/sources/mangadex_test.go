package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kerbaras/mdown/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMangaDex(url string, cache Cache) *MangaDex {
	return NewMangaDex(Options{BaseURL: url, RetryInterval: 5 * time.Millisecond, Cache: cache})
}

func feedPage(start, n int) FeedResponse {
	page := FeedResponse{Result: "ok", Limit: FeedPageSize, Offset: start}
	for i := 0; i < n; i++ {
		var c ChapterData
		c.ID = fmt.Sprintf("ch-%d", start+i)
		c.Attributes.Chapter = strconv.Itoa(start + i + 1)
		page.Data = append(page.Data, c)
	}
	return page
}

// feedServer serves a feed with the given page sizes and records requested offsets
func feedServer(t *testing.T, sizes []int, offsets *[]string) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	calls := 0
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/feed"))
		assert.Equal(t, "500", r.URL.Query().Get("limit"))

		mu.Lock()
		*offsets = append(*offsets, r.URL.Query().Get("offset"))
		idx := calls
		calls++
		mu.Unlock()

		if idx >= len(sizes) {
			t.Errorf("unexpected feed request #%d", idx)
			json.NewEncoder(w).Encode(FeedResponse{})
			return
		}
		start, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		json.NewEncoder(w).Encode(feedPage(start, sizes[idx]))
	}))
}

func TestMangaDex_FetchAllChapters(t *testing.T) {
	tests := []struct {
		name        string
		offset      int
		sizes       []int
		wantOffsets []string
	}{
		{"single short page", 0, []int{42}, []string{"0"}},
		{"three pages", 0, []int{500, 500, 95}, []string{"0", "500", "1000"}},
		{"exact multiple ends on empty page", 0, []int{500, 0}, []string{"0", "500"}},
		{"starting offset", 20, []int{500, 1}, []string{"20", "520"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var offsets []string
			server := feedServer(t, tt.sizes, &offsets)
			defer server.Close()

			chapters, last, err := newTestMangaDex(server.URL, nil).FetchAllChapters(context.Background(), "m1", tt.offset)
			require.NoError(t, err)

			sum := 0
			for _, s := range tt.sizes {
				sum += s
			}
			assert.Len(t, chapters, sum)
			assert.Equal(t, tt.sizes[len(tt.sizes)-1], last)
			assert.Equal(t, tt.wantOffsets, offsets)

			// feed order is preserved across page boundaries
			for i := 1; i < len(chapters); i++ {
				prev, _ := strconv.Atoi(chapters[i-1].Attributes.Chapter)
				cur, _ := strconv.Atoi(chapters[i].Attributes.Chapter)
				assert.Equal(t, prev+1, cur)
			}
		})
	}
}

func TestMangaDex_RetriesOnStatus(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(feedPage(0, 3))
	}))
	defer server.Close()

	chapters, _, err := newTestMangaDex(server.URL, nil).FetchAllChapters(context.Background(), "m1", 0)
	require.NoError(t, err)
	assert.Len(t, chapters, 3)
	assert.Equal(t, int32(3), calls.Load())
}

func TestMangaDex_RetryStopsOnCancel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, _, err := newTestMangaDex(server.URL, nil).FetchAllChapters(ctx, "m1", 0)
	assert.Error(t, err)
}

func TestMangaDex_TransportErrorIsFatal(t *testing.T) {
	_, _, err := newTestMangaDex("http://127.0.0.1:1", nil).FetchAllChapters(context.Background(), "m1", 0)
	require.Error(t, err)
	assert.True(t, utils.IsKind(err, utils.KindNetwork))
}

func TestMangaDex_MalformedFeed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": "nope"}`))
	}))
	defer server.Close()

	_, _, err := newTestMangaDex(server.URL, nil).FetchAllChapters(context.Background(), "m1", 0)
	require.Error(t, err)
	assert.True(t, utils.IsKind(err, utils.KindJSON))
}

func TestChapterData_ToRecord(t *testing.T) {
	raw := `{
		"id": "c1",
		"type": "chapter",
		"attributes": {
			"volume": null,
			"chapter": "10.5",
			"title": "Side Story.",
			"translatedLanguage": "en",
			"updatedAt": "2024-06-01T00:00:00+00:00",
			"pages": 21
		},
		"relationships": [
			{"id": "u1", "type": "user"},
			{"id": "g1", "type": "scanlation_group"},
			{"id": "m1", "type": "manga"}
		]
	}`
	var c ChapterData
	require.NoError(t, json.Unmarshal([]byte(raw), &c))

	r := c.ToRecord("")
	assert.Equal(t, "c1", r.ID)
	assert.Equal(t, "m1", r.MangaID)
	assert.Equal(t, "10.5", r.Number)
	assert.Equal(t, "", r.Volume)
	assert.Equal(t, "Side Story.", r.Title)
	assert.Equal(t, "en", r.Language)
	assert.Equal(t, 21, r.Pages)
	assert.Equal(t, "g1", r.GroupID)
}

func TestMangaDex_GetChapterManifest(t *testing.T) {
	tests := []struct {
		name      string
		data      []string
		dataSaver []string
		saver     bool
		wantMode  string
		wantErr   bool
	}{
		{"full quality", []string{"a.jpg", "b.jpg"}, []string{"a.jpg"}, false, "data", false},
		{"saver", []string{"a.jpg", "b.jpg"}, []string{"s.jpg"}, true, "data-saver", false},
		{"saver falls back to full", []string{"a.jpg"}, nil, true, "data", false},
		{"full falls back to saver", nil, []string{"s.jpg"}, false, "data-saver", false},
		{"no images", nil, nil, false, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/at-home/server/c1", r.URL.Path)
				var resp AtHomeResponse
				resp.BaseURL = "https://uploads.example"
				resp.Chapter.Hash = "hash"
				resp.Chapter.Data = tt.data
				resp.Chapter.DataSaver = tt.dataSaver
				json.NewEncoder(w).Encode(resp)
			}))
			defer server.Close()

			manifest, err := newTestMangaDex(server.URL, nil).GetChapterManifest(context.Background(), "c1", tt.saver)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, utils.IsKind(err, utils.KindNotFound))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantMode, manifest.Mode)
			assert.Equal(t, tt.wantMode == "data-saver", manifest.Saver())
			assert.Equal(t,
				fmt.Sprintf("https://uploads.example/%s/hash/%s", tt.wantMode, manifest.Images[0]),
				manifest.PageURL(manifest.Images[0]))
		})
	}
}

type mapCache struct {
	mu    sync.Mutex
	items map[string][]byte
}

func (c *mapCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.items[key]
	if !ok {
		return nil, errors.New("miss")
	}
	return v, nil
}

func (c *mapCache) Set(_ context.Context, key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = value
	return nil
}

func TestMangaDex_GetGroup(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		switch r.URL.Path {
		case "/group/g1":
			w.Write([]byte(`{"data":{"attributes":{"name":"Band of Hawks","website":"https://hawks.example"}}}`))
		case "/group/g2":
			w.Write([]byte(`{"data":{"attributes":{"name":null,"website":null}}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	cache := &mapCache{items: map[string][]byte{}}
	md := newTestMangaDex(server.URL, cache)
	ctx := context.Background()

	none, err := md.GetGroup(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "None", none.Name)
	assert.Equal(t, "None", none.Website)
	assert.Equal(t, int32(0), calls.Load())

	g1, err := md.GetGroup(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "Band of Hawks", g1.Name)
	assert.Equal(t, "https://hawks.example", g1.Website)

	unknown, err := md.GetGroup(ctx, "g2")
	require.NoError(t, err)
	assert.Equal(t, "Unknown", unknown.Name)
	assert.Equal(t, "None", unknown.Website)

	// second lookup is served from the cache
	again, err := md.GetGroup(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, g1, again)
	assert.Equal(t, int32(2), calls.Load())
}

func TestMangaDex_GetManga(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/manga/m1", r.URL.Path)
		w.Write([]byte(`{"data":{"id":"m1","attributes":{"title":{"ja-ro":"Shingeki no Kyojin"},"altTitles":[{"ja":"進撃の巨人"}]}}}`))
	}))
	defer server.Close()

	manga, err := newTestMangaDex(server.URL, nil).GetManga(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, "m1", manga.ID)
	assert.Equal(t, "Shingeki no Kyojin", manga.Name)
}

func TestPickTitle(t *testing.T) {
	assert.Equal(t, "Berserk", pickTitle(map[string]string{"en": "Berserk"}, nil, "en"))
	assert.Equal(t, "Alt EN", pickTitle(map[string]string{"ja": "x"}, []map[string]string{{"en": "Alt EN"}}, "en"))
	assert.Equal(t, "Romaji", pickTitle(map[string]string{"ja-ro": "Romaji"}, []map[string]string{{"ja": "x"}}, "en"))
	assert.Equal(t, "Later", pickTitle(map[string]string{"ko": "x"}, []map[string]string{{"ja": "x"}, {"en": "Later"}}, "en"))
	assert.Equal(t, unrecognizedTitle, pickTitle(map[string]string{"ko": "x"}, nil, "en"))
}

func TestMangaFolderName(t *testing.T) {
	assert.Equal(t, "ReZero Starting Life", MangaFolderName(` Re:Zero "Starting" Life? `))
	long := strings.Repeat("a", 80)
	assert.Equal(t, strings.Repeat("a", 70)+"__", MangaFolderName(long))
	assert.Equal(t, "abc", ProcessFilename(`a<>:|?*/\"b"c`))
}
