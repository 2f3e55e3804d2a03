// Package sidebar reads the published knowledge base the way the browser
// sidebar does: the manifest first, then individual extracts on demand.
package sidebar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Texts shown in place of a file list or file content.
const (
	NoFilesText       = "No files available."
	NoContentText     = "No readable text content found."
	LoadFailedPrefix  = "❌ Failed to load text: "
	DefaultPathPrefix = "/knowledge_base/"
)

var extractSuffixRe = regexp.MustCompile(`(?i)\.txt$`)

// File is one sidebar entry.
type File struct {
	Name       string `json:"name"`        // display name
	ActualName string `json:"actual_name"` // extract filename
	Path       string `json:"path"`
}

// Entries maps manifest names to sidebar entries. Extracts are shown under
// the name of the PDF they came from.
func Entries(names []string) []File {
	files := make([]File, 0, len(names))
	for _, n := range names {
		files = append(files, File{
			Name:       extractSuffixRe.ReplaceAllString(n, ".pdf"),
			ActualName: n,
			Path:       DefaultPathPrefix + n,
		})
	}
	return files
}

// Placeholder returns the text to show instead of an empty file list, or ""
// when there are files.
func Placeholder(files []File) string {
	if len(files) == 0 {
		return NoFilesText
	}
	return ""
}

// Client fetches the manifest and extracts from a running server.
type Client struct {
	base       string
	manifest   string
	httpClient *http.Client
	now        func() time.Time
	log        *slog.Logger
}

func NewClient(baseURL, manifestName string, timeout time.Duration, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	if manifestName == "" {
		manifestName = "manifest.json"
	}
	return &Client{
		base:       strings.TrimRight(baseURL, "/"),
		manifest:   manifestName,
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
		log:        log.With("component", "sidebar"),
	}
}

// Files returns the published extracts. Any failure yields an empty list.
func (c *Client) Files(ctx context.Context) []File {
	u := c.base + DefaultPathPrefix + url.PathEscape(c.manifest) +
		"?t=" + strconv.FormatInt(c.now().UnixMilli(), 10)

	body, err := c.get(ctx, u)
	if err != nil {
		c.log.Warn("manifest unavailable", "error", err)
		return []File{}
	}
	var names []string
	if err := json.Unmarshal(body, &names); err != nil {
		c.log.Warn("manifest is not a list of names", "error", err)
		return []File{}
	}
	return Entries(names)
}

// Content returns the text of one extract, or an inline message when it is
// empty or cannot be loaded. The error is for logging only.
func (c *Client) Content(ctx context.Context, f File) (string, error) {
	body, err := c.get(ctx, c.base+f.Path)
	if err != nil {
		return LoadFailedPrefix + err.Error(), err
	}
	if len(body) == 0 {
		return NoContentText, nil
	}
	return string(body), nil
}

func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}
