package update

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// Feed checks for a newer release and reports progress as events. A returned
// error is reported by the caller as a failure event.
type Feed interface {
	Check(ctx context.Context, emit func(Event)) error
}

// DefaultFeedURL is the latest-release endpoint for the kiosk application.
const DefaultFeedURL = "https://api.github.com/repos/kensar/kiosk/releases/latest"

// Release is a GitHub-style release document.
type Release struct {
	TagName     string    `json:"tag_name"`
	Name        string    `json:"name"`
	Body        string    `json:"body"`
	PublishedAt time.Time `json:"published_at"`
	HTMLURL     string    `json:"html_url"`
	Assets      []Asset   `json:"assets"`
}

// Asset is a downloadable release file.
type Asset struct {
	Name        string `json:"name"`
	DownloadURL string `json:"browser_download_url"`
	Size        int64  `json:"size"`
}

// ReleaseFeed fetches the latest release, compares it with the running
// version and downloads the matching package into Dir.
type ReleaseFeed struct {
	URL            string
	CurrentVersion string
	Dir            string
	Client         *http.Client

	// GOOS selects the package type; runtime.GOOS when empty.
	GOOS string
	now  func() time.Time
}

var errNoAsset = errors.New("release has no package for this platform")

// Check implements Feed.
func (f *ReleaseFeed) Check(ctx context.Context, emit func(Event)) error {
	emit(CheckStarted())

	release, err := f.latest(ctx)
	if err != nil {
		return err
	}
	if !isNewer(release.TagName, f.CurrentVersion) {
		emit(Absent())
		return nil
	}

	info := Info{
		Version:      release.TagName,
		ReleaseName:  release.Name,
		ReleaseNotes: release.Body,
		ReleaseDate:  release.PublishedAt,
	}
	emit(Found(info))

	asset, ok := pickAsset(release.Assets, f.goos())
	if !ok {
		return fmt.Errorf("%s: %w", release.TagName, errNoAsset)
	}
	path, err := f.download(ctx, asset, emit)
	if err != nil {
		return err
	}
	info.Path = path
	emit(Downloaded(info))
	return nil
}

// Latest fetches the newest published release and reports whether it is
// newer than CurrentVersion. Nothing is downloaded.
func (f *ReleaseFeed) Latest(ctx context.Context) (*Release, bool, error) {
	release, err := f.latest(ctx)
	if err != nil {
		return nil, false, err
	}
	return release, isNewer(release.TagName, f.CurrentVersion), nil
}

func (f *ReleaseFeed) latest(ctx context.Context) (*Release, error) {
	url := f.URL
	if url == "" {
		url = DefaultFeedURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := f.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch release feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("release feed: %s", resp.Status)
	}

	var release Release
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, fmt.Errorf("decode release feed: %w", err)
	}
	if release.TagName == "" {
		return nil, errors.New("release feed: missing tag_name")
	}
	return &release, nil
}

// download streams the asset into Dir, emitting progress samples as it goes.
// The package only appears under its final name once fully written.
func (f *ReleaseFeed) download(ctx context.Context, asset Asset, emit func(Event)) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, asset.DownloadURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := f.client().Do(req)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", asset.Name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download %s: %s", asset.Name, resp.Status)
	}

	if err := os.MkdirAll(f.Dir, 0o700); err != nil {
		return "", fmt.Errorf("create update dir: %w", err)
	}
	final := filepath.Join(f.Dir, filepath.Base(asset.Name))
	part := final + ".part"
	out, err := os.Create(part)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", part, err)
	}
	defer os.Remove(part) // no-op after the rename

	total := resp.ContentLength
	if total <= 0 {
		total = asset.Size
	}
	pw := &progressWriter{total: total, emit: emit, now: f.clock(), start: f.clock()()}
	if _, err := io.Copy(io.MultiWriter(out, pw), resp.Body); err != nil {
		out.Close()
		return "", fmt.Errorf("download %s: %w", asset.Name, err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("write %s: %w", part, err)
	}
	pw.flush()
	if err := os.Rename(part, final); err != nil {
		return "", fmt.Errorf("finalize %s: %w", final, err)
	}
	return final, nil
}

func (f *ReleaseFeed) client() *http.Client {
	if f.Client != nil {
		return f.Client
	}
	return &http.Client{Timeout: 30 * time.Minute}
}

func (f *ReleaseFeed) clock() func() time.Time {
	if f.now != nil {
		return f.now
	}
	return time.Now
}

func (f *ReleaseFeed) goos() string {
	if f.GOOS != "" {
		return f.GOOS
	}
	return runtime.GOOS
}

var packageSuffixes = map[string][]string{
	"windows": {".exe", ".msi"},
	"darwin":  {".dmg", ".pkg", ".zip"},
	"linux":   {".appimage", ".deb", ".tar.gz"},
}

func pickAsset(assets []Asset, goos string) (Asset, bool) {
	for _, suffix := range packageSuffixes[goos] {
		for _, a := range assets {
			if a.DownloadURL != "" && strings.HasSuffix(strings.ToLower(a.Name), suffix) {
				return a, true
			}
		}
	}
	return Asset{}, false
}

// progressWriter emits a progress event each time the whole percentage
// advances.
type progressWriter struct {
	total       int64
	transferred int64
	lastPercent int
	emit        func(Event)
	now         func() time.Time
	start       time.Time
}

func (p *progressWriter) Write(b []byte) (int, error) {
	p.transferred += int64(len(b))
	if pct := p.percentInt(); pct > p.lastPercent {
		p.lastPercent = pct
		p.emit(Downloading(p.sample()))
	}
	return len(b), nil
}

// flush emits a final sample when the size was unknown.
func (p *progressWriter) flush() {
	if p.total <= 0 {
		p.total = p.transferred
		p.emit(Downloading(p.sample()))
	}
}

func (p *progressWriter) percentInt() int {
	if p.total <= 0 {
		return 0
	}
	return int(p.transferred * 100 / p.total)
}

func (p *progressWriter) sample() Progress {
	s := Progress{Transferred: p.transferred, Total: p.total}
	if p.total > 0 {
		s.Percent = float64(p.transferred) * 100 / float64(p.total)
	}
	if elapsed := p.now().Sub(p.start); elapsed > 0 {
		s.BytesPerSecond = int64(float64(p.transferred) / elapsed.Seconds())
	}
	return s
}
