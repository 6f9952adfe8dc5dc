package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/kerbaras/mdown/pkg/data"
	"github.com/kerbaras/mdown/pkg/utils"
)

// FeedPageSize is the number of chapters requested per feed page
const FeedPageSize = 500

// TestChapter is an upstream placeholder record that is never a real chapter
const TestChapter = "This is test"

const unrecognizedTitle = "Unrecognized title"

// FeedResponse is one page of /manga/{id}/feed
type FeedResponse struct {
	Result string        `json:"result"`
	Data   []ChapterData `json:"data"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
	Total  int           `json:"total"`
}

// Relationship links a chapter to a manga, group or uploader
type Relationship struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// ChapterData is a chapter as returned by the feed
type ChapterData struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Attributes struct {
		Volume             string `json:"volume"`
		Chapter            string `json:"chapter"`
		Title              string `json:"title"`
		TranslatedLanguage string `json:"translatedLanguage"`
		ExternalURL        string `json:"externalUrl"`
		PublishAt          string `json:"publishAt"`
		CreatedAt          string `json:"createdAt"`
		UpdatedAt          string `json:"updatedAt"`
		Pages              int    `json:"pages"`
		Version            int    `json:"version"`
	} `json:"attributes"`
	Relationships []Relationship `json:"relationships"`
}

// ToRecord normalizes the feed entry into a ChapterRecord
func (c *ChapterData) ToRecord(mangaID string) data.ChapterRecord {
	record := data.ChapterRecord{
		ID:        c.ID,
		MangaID:   mangaID,
		Number:    c.Attributes.Chapter,
		Volume:    c.Attributes.Volume,
		Title:     c.Attributes.Title,
		Language:  c.Attributes.TranslatedLanguage,
		Pages:     c.Attributes.Pages,
		UpdatedAt: c.Attributes.UpdatedAt,
	}
	for _, rel := range c.Relationships {
		switch rel.Type {
		case "scanlation_group":
			if record.GroupID == "" {
				record.GroupID = rel.ID
			}
		case "manga":
			if record.MangaID == "" {
				record.MangaID = rel.ID
			}
		}
	}
	return record
}

// Manga is the attribute subset of /manga/{id} the downloader needs
type Manga struct {
	ID         string `json:"id"`
	Attributes struct {
		Title     map[string]string   `json:"title"`
		AltTitles []map[string]string `json:"altTitles"`
	} `json:"attributes"`
}

// ToManga resolves the display name, preferring lang, then English, then romanized Japanese
func (m *Manga) ToManga(lang string) *data.Manga {
	return &data.Manga{
		ID:   m.ID,
		Name: MangaFolderName(pickTitle(m.Attributes.Title, m.Attributes.AltTitles, lang)),
	}
}

func pickTitle(titles map[string]string, alt []map[string]string, lang string) string {
	if t, ok := titles[lang]; ok && t != "" {
		return t
	}
	if len(alt) > 0 {
		if t, ok := alt[0]["en"]; ok {
			return t
		}
	}
	for _, l := range []string{"ja-ro", "en"} {
		if t, ok := titles[l]; ok && t != "" {
			return t
		}
	}
	merged := map[string]string{}
	for _, a := range alt {
		for k, v := range a {
			merged[k] = v
		}
	}
	for _, l := range []string{"en", "ja-ro"} {
		if t, ok := merged[l]; ok && t != "" {
			return t
		}
	}
	return unrecognizedTitle
}

// MangaFolderName turns a title into the name used for the manga folder
func MangaFolderName(title string) string {
	name := strings.TrimSpace(strings.NewReplacer(`"`, "", "?", "").Replace(title))
	if len(name) > 70 {
		name = name[:70] + "__"
	}
	return ProcessFilename(name)
}

var filenameReplacer = strings.NewReplacer(
	"<", "", ">", "", ":", "", "|", "", "?", "", "*", "", "/", "", `\`, "", `"`, "",
)

// ProcessFilename strips characters that are not allowed in file names
func ProcessFilename(name string) string {
	return filenameReplacer.Replace(name)
}

// AtHomeResponse is the body of /at-home/server/{chapterId}
type AtHomeResponse struct {
	Result  string `json:"result"`
	BaseURL string `json:"baseUrl"`
	Chapter struct {
		Hash      string   `json:"hash"`
		Data      []string `json:"data"`
		DataSaver []string `json:"dataSaver"`
	} `json:"chapter"`
}

// Manifest is the resolved list of page images for a chapter
type Manifest struct {
	BaseURL string
	Hash    string
	Mode    string // "data" or "data-saver"
	Images  []string
}

// Saver reports whether the manifest points at data-saver images
func (m *Manifest) Saver() bool {
	return m.Mode == "data-saver"
}

// PageURL returns the download URL of one image in the manifest
func (m *Manifest) PageURL(image string) string {
	return fmt.Sprintf("%s/%s/%s/%s", m.BaseURL, m.Mode, m.Hash, image)
}

type groupResponse struct {
	Data struct {
		Attributes struct {
			Name    *string `json:"name"`
			Website *string `json:"website"`
		} `json:"attributes"`
	} `json:"data"`
}

// MangaDex is the MangaDex catalog client
type MangaDex struct {
	api           *utils.API
	retryInterval time.Duration
	cache         Cache
	log           *utils.Logger
}

// Options configures a MangaDex client
type Options struct {
	BaseURL       string
	UserAgent     string
	RetryInterval time.Duration
	Cache         Cache
	Logger        *utils.Logger
}

// NewMangaDex creates a MangaDex client
func NewMangaDex(opts Options) *MangaDex {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.mangadex.org"
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = utils.NewNopLogger()
	}
	return &MangaDex{
		api:           utils.NewAPI(opts.BaseURL, opts.UserAgent),
		retryInterval: opts.RetryInterval,
		cache:         opts.Cache,
		log:           opts.Logger.WithComponent("catalog"),
	}
}

// API exposes the underlying fetcher, used for image streaming
func (m *MangaDex) API() *utils.API {
	return m.api
}

// get retries a request at a fixed interval for as long as the remote answers
// with a non-success status. Transport and decode failures are returned at once.
func (m *MangaDex) get(ctx context.Context, path string, params url.Values, v any) error {
	b := backoff.WithContext(backoff.NewConstantBackOff(m.retryInterval), ctx)
	return backoff.RetryNotify(func() error {
		err := m.api.Get(ctx, path, params, v)
		if err == nil {
			return nil
		}
		if utils.IsKind(err, utils.KindStatus) {
			return err
		}
		return backoff.Permanent(err)
	}, b, func(err error, wait time.Duration) {
		m.log.Warn().Err(err).Dur("retry_in", wait).Str("path", path).Msg("remote rejected request")
	})
}

// GetManga fetches the manga and resolves its display name
func (m *MangaDex) GetManga(ctx context.Context, id string) (*data.Manga, error) {
	var manga struct {
		Data Manga `json:"data"`
	}
	if err := m.get(ctx, fmt.Sprintf("/manga/%s", id), nil, &manga); err != nil {
		return nil, err
	}
	if manga.Data.ID == "" {
		return nil, utils.NotFoundError("manga "+id, "data.id")
	}
	return manga.Data.ToManga("en"), nil
}

// FetchAllChapters pages through the manga feed starting at offset and returns
// every chapter in feed order along with the size of the last page fetched.
func (m *MangaDex) FetchAllChapters(ctx context.Context, mangaID string, offset int) ([]ChapterData, int, error) {
	var all []ChapterData
	for page := 0; ; page++ {
		pageOffset := offset + page*FeedPageSize
		params := url.Values{
			"limit":  {strconv.Itoa(FeedPageSize)},
			"offset": {strconv.Itoa(pageOffset)},
		}

		var feed FeedResponse
		if err := m.get(ctx, fmt.Sprintf("/manga/%s/feed", mangaID), params, &feed); err != nil {
			return nil, 0, err
		}
		m.log.Debug().Int("offset", pageOffset).Int("count", len(feed.Data)).Msg("feed page fetched")

		all = append(all, feed.Data...)
		if len(feed.Data) < FeedPageSize {
			return all, len(feed.Data), nil
		}
	}
}

// GetChapterManifest resolves the page images of a chapter. The saver flag
// selects the data-saver variant; the other variant is used if it is absent.
func (m *MangaDex) GetChapterManifest(ctx context.Context, chapterID string, saver bool) (*Manifest, error) {
	var resp AtHomeResponse
	if err := m.get(ctx, fmt.Sprintf("/at-home/server/%s", chapterID), nil, &resp); err != nil {
		return nil, err
	}
	if resp.BaseURL == "" || resp.Chapter.Hash == "" {
		return nil, utils.NotFoundError("chapter "+chapterID, "baseUrl or hash")
	}

	manifest := &Manifest{BaseURL: resp.BaseURL, Hash: resp.Chapter.Hash}
	full, lite := resp.Chapter.Data, resp.Chapter.DataSaver
	switch {
	case saver && len(lite) > 0, !saver && len(full) == 0 && len(lite) > 0:
		manifest.Mode, manifest.Images = "data-saver", lite
	case len(full) > 0:
		manifest.Mode, manifest.Images = "data", full
	default:
		return nil, utils.NotFoundError("chapter "+chapterID, "page images")
	}
	return manifest, nil
}

// GetGroup resolves a scanlation group's name and website. A chapter without a
// group resolves to "None", and a group without a name to "Unknown".
func (m *MangaDex) GetGroup(ctx context.Context, groupID string) (data.Scanlation, error) {
	if groupID == "" {
		return data.Scanlation{Name: "None", Website: "None"}, nil
	}

	key := data.ResourceKey("group", groupID)
	if m.cache != nil {
		if raw, err := m.cache.Get(ctx, key); err == nil {
			var cached data.Scanlation
			if json.Unmarshal(raw, &cached) == nil {
				return cached, nil
			}
		}
	}

	var resp groupResponse
	if err := m.get(ctx, fmt.Sprintf("/group/%s", groupID), nil, &resp); err != nil {
		return data.Scanlation{}, err
	}

	group := data.Scanlation{Name: "Unknown", Website: "None"}
	if n := resp.Data.Attributes.Name; n != nil && *n != "" {
		group.Name = *n
	}
	if w := resp.Data.Attributes.Website; w != nil && *w != "" {
		group.Website = *w
	}

	if m.cache != nil {
		if raw, err := json.Marshal(group); err == nil {
			if err := m.cache.Set(ctx, key, raw); err != nil {
				m.log.Debug().Err(err).Str("group", groupID).Msg("group not cached")
			}
		}
	}
	return group, nil
}
