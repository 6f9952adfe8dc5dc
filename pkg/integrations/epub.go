package integrations

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/go-shiori/go-epub"
	"github.com/kerbaras/mdown/pkg/data"
	"github.com/kerbaras/mdown/pkg/utils"
)

var pageNumber = regexp.MustCompile(` - (\d+)\.[A-Za-z]+$`)

// EPubStats describes what went into a compiled book
type EPubStats struct {
	Chapters int
	Pages    int
	Skipped  int
}

// EPubBuilder compiles chapter archives into a single book
type EPubBuilder struct {
	outputDir string
	profile   *PageOptions
}

func NewEPubBuilder(outputDir string) *EPubBuilder {
	return &EPubBuilder{outputDir: outputDir}
}

// WithProfile re-encodes every page for a reading device
func (p *EPubBuilder) WithProfile(opts PageOptions) *EPubBuilder {
	p.profile = &opts
	return p
}

type chapterArchive struct {
	path string
	meta *data.ChapterMetadata
}

// CreateEPub compiles the given .cbz archives into "{title}.epub", ordered by
// volume then chapter. Pages whose header cannot be read are skipped.
func (p *EPubBuilder) CreateEPub(title string, archives []string) (string, EPubStats, error) {
	var stats EPubStats
	if len(archives) == 0 {
		return "", stats, fmt.Errorf("no chapters to compile")
	}
	if err := os.MkdirAll(p.outputDir, 0755); err != nil {
		return "", stats, utils.IoError(p.outputDir, err)
	}

	chapters := make([]chapterArchive, 0, len(archives))
	for _, path := range archives {
		meta, err := ReadArchiveMetadata(path)
		if err != nil {
			meta = &data.ChapterMetadata{}
		}
		chapters = append(chapters, chapterArchive{path: path, meta: meta})
	}
	sortChapterArchives(chapters)

	book, err := epub.NewEpub(title)
	if err != nil {
		return "", stats, fmt.Errorf("failed to create EPub: %w", err)
	}
	book.SetAuthor("MangaDex")
	book.SetLang("en")

	work, err := os.MkdirTemp("", "mdown-epub-*")
	if err != nil {
		return "", stats, utils.IoError("epub workdir", err)
	}
	defer os.RemoveAll(work)

	for i, ch := range chapters {
		dir := filepath.Join(work, strconv.Itoa(i))
		if err := Extract(ch.path, dir); err != nil {
			return "", stats, err
		}
		added, skipped, err := p.addChapter(book, i, dir, ch)
		if err != nil {
			return "", stats, fmt.Errorf("failed to add %s: %w", filepath.Base(ch.path), err)
		}
		stats.Pages += added
		stats.Skipped += skipped
		if added > 0 {
			stats.Chapters++
		}
	}
	if stats.Pages == 0 {
		return "", stats, fmt.Errorf("no readable pages in %d archives", len(archives))
	}

	outputPath := filepath.Join(p.outputDir, sanitizeFilename(title)+".epub")
	if err := book.Write(outputPath); err != nil {
		return "", stats, fmt.Errorf("failed to write EPub: %w", err)
	}
	return outputPath, stats, nil
}

func (p *EPubBuilder) addChapter(book *epub.Epub, index int, dir string, ch chapterArchive) (int, int, error) {
	pages, err := pageFiles(dir)
	if err != nil {
		return 0, 0, err
	}

	sectionTitle := chapterHeading(ch)
	var html strings.Builder
	html.WriteString(fmt.Sprintf("<h1>%s</h1>\n", sectionTitle))

	added, skipped := 0, 0
	for n, page := range pages {
		src, ok, err := p.preparePage(page)
		if err != nil {
			return 0, 0, err
		}
		if !ok {
			skipped++
			continue
		}

		internal, err := book.AddImage(src, fmt.Sprintf("c%04d_p%04d%s", index, n+1, filepath.Ext(src)))
		if err != nil {
			return 0, 0, fmt.Errorf("failed to add image %s: %w", filepath.Base(page), err)
		}
		html.WriteString(fmt.Sprintf(
			`<div class="page"><img src="%s" alt="Page %d" style="width:100%%;height:auto;"/></div>%s`,
			internal, n+1, "\n",
		))
		added++
	}
	if added == 0 {
		return 0, skipped, nil
	}

	if _, err := book.AddSection(html.String(), sectionTitle, "", ""); err != nil {
		return 0, 0, fmt.Errorf("failed to add section: %w", err)
	}
	return added, skipped, nil
}

// preparePage checks a page header and, with a profile set, re-encodes it next to
// the source page. ok is false for unreadable pages.
func (p *EPubBuilder) preparePage(path string) (string, bool, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", false, utils.IoError(path, err)
	}
	if _, err := DecodeImageHeader(bytes.NewReader(raw)); err != nil {
		return "", false, nil
	}
	if p.profile == nil {
		return path, true, nil
	}

	optimized, err := OptimizePage(bytes.NewReader(raw), *p.profile)
	if err != nil {
		return "", false, nil
	}
	out := strings.TrimSuffix(path, filepath.Ext(path)) + ".opt.jpg"
	if err := os.WriteFile(out, optimized, 0644); err != nil {
		return "", false, utils.IoError(out, err)
	}
	return out, true, nil
}

// pageFiles lists the page images of an extracted chapter in page order
func pageFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, utils.IoError(dir, err)
	}
	var pages []string
	for _, e := range entries {
		if !e.IsDir() && isImageFile(e.Name()) {
			pages = append(pages, filepath.Join(dir, e.Name()))
		}
	}
	sort.SliceStable(pages, func(i, j int) bool {
		a, b := pageIndex(pages[i]), pageIndex(pages[j])
		if a != b {
			return a < b
		}
		return pages[i] < pages[j]
	})
	return pages, nil
}

func pageIndex(path string) int {
	m := pageNumber.FindStringSubmatch(filepath.Base(path))
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

func sortChapterArchives(chapters []chapterArchive) {
	sort.SliceStable(chapters, func(i, j int) bool {
		vi, _ := data.ChapterNumber(chapters[i].meta.Volume)
		vj, _ := data.ChapterNumber(chapters[j].meta.Volume)
		if vi != vj {
			return vi < vj
		}
		ni, _ := data.ChapterNumber(chapters[i].meta.Chapter)
		nj, _ := data.ChapterNumber(chapters[j].meta.Chapter)
		return ni < nj
	})
}

func chapterHeading(ch chapterArchive) string {
	if ch.meta.Chapter == "" {
		return strings.TrimSuffix(filepath.Base(ch.path), filepath.Ext(ch.path))
	}
	heading := fmt.Sprintf("Chapter %s", ch.meta.Chapter)
	if ch.meta.Volume != "" && ch.meta.Volume != "0" {
		heading = fmt.Sprintf("Vol. %s, %s", ch.meta.Volume, heading)
	}
	if ch.meta.Title != "" {
		heading = fmt.Sprintf("%s: %s", heading, ch.meta.Title)
	}
	return heading
}

// isImageFile checks if a file has an image extension
func isImageFile(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return ext == ".jpg" || ext == ".jpeg" || ext == ".png" || ext == ".gif" || ext == ".webp"
}

// sanitizeFilename removes characters that are invalid in filenames
func sanitizeFilename(name string) string {
	invalid := []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|"}
	result := name
	for _, char := range invalid {
		result = strings.ReplaceAll(result, char, "_")
	}
	result = strings.TrimSpace(result)
	result = strings.Trim(result, ".")
	return result
}
