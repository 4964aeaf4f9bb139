package provider

import (
	"context"
	"io"
	"iter"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/GaseousIce/wallpaper-scraper/internal/domain/download"
)

const (
	wallhavenBaseURL = "https://wallhaven.cc/api/v1"
	// wallhavenPageSize is fixed by the API.
	wallhavenPageSize = 24
)

// Category names accepted by Wallhaven, mapped onto its general/anime/people
// bitmask.
var wallhavenCategories = map[string]string{
	"":        "111",
	"all":     "111",
	"general": "100",
	"anime":   "010",
	"people":  "001",
}

var wallhavenRatios = map[string]string{
	"landscape": "landscape",
	"portrait":  "portrait",
	"squarish":  "1x1",
}

// Wallhaven searches the Wallhaven API. The API key is optional and only
// widens what the API returns.
type Wallhaven struct {
	*client
	baseURL string
	apiKey  string
	purity  string
	sorting string
}

// NewWallhaven creates a Wallhaven source
func NewWallhaven(opts Options) (*Wallhaven, error) {
	c, err := newClient(download.ProviderWallhaven, opts)
	if err != nil {
		return nil, err
	}

	base := opts.BaseURL
	if base == "" {
		base = wallhavenBaseURL
	}
	return &Wallhaven{
		client:  c,
		baseURL: strings.TrimRight(base, "/"),
		apiKey:  opts.APIKey,
		purity:  "100",
		sorting: "relevance",
	}, nil
}

type wallhavenResponse struct {
	Data []struct {
		ID         string `json:"id"`
		URL        string `json:"url"`
		Path       string `json:"path"`
		FileSize   int64  `json:"file_size"`
		DimensionX int    `json:"dimension_x"`
		DimensionY int    `json:"dimension_y"`
	} `json:"data"`
	Meta struct {
		CurrentPage int `json:"current_page"`
		LastPage    int `json:"last_page"`
	} `json:"meta"`
}

// categoryBits converts a category option into the API bitmask. Raw
// bitmasks such as "110" are passed through.
func categoryBits(category string) string {
	c := strings.ToLower(strings.TrimSpace(category))
	if bits, ok := wallhavenCategories[c]; ok {
		return bits
	}
	if len(c) == 3 && strings.Trim(c, "01") == "" {
		return c
	}
	return wallhavenCategories[""]
}

// Search pages through /search. Sorting falls back to date_added when the
// query is empty, since relevance is meaningless without keywords.
func (w *Wallhaven) Search(ctx context.Context, q download.SearchQuery) iter.Seq2[download.Item, error] {
	sorting := w.sorting
	if len(q.Keywords) == 0 {
		sorting = "date_added"
	}

	return paginate(ctx, q.Limit, func(ctx context.Context, page int) ([]download.Item, bool, error) {
		params := url.Values{}
		if text := q.Text(); text != "" {
			params.Set("q", text)
		}
		params.Set("categories", categoryBits(q.Category))
		params.Set("purity", w.purity)
		params.Set("sorting", sorting)
		params.Set("order", "desc")
		params.Set("page", strconv.Itoa(page))
		if w.apiKey != "" {
			params.Set("apikey", w.apiKey)
		}
		if q.Resolution != "" {
			params.Set("resolutions", strings.ToLower(q.Resolution))
		}
		if ratio, ok := wallhavenRatios[q.Orientation]; ok {
			params.Set("ratios", ratio)
		}

		rawURL := w.baseURL + "/search?" + params.Encode()
		var resp wallhavenResponse
		if err := w.getJSON(ctx, rawURL, nil, &resp); err != nil {
			return nil, false, err
		}
		w.logger.Debug("search page",
			zap.String("url", redact(rawURL, "apikey")),
			zap.Int("items", len(resp.Data)),
			zap.Int("last_page", resp.Meta.LastPage),
		)

		items := make([]download.Item, 0, len(resp.Data))
		for _, d := range resp.Data {
			if d.ID == "" || d.Path == "" {
				continue
			}
			items = append(items, download.Item{
				Provider: download.ProviderWallhaven,
				ID:       d.ID,
				URL:      d.Path,
				Filename: download.ItemFilename(download.ProviderWallhaven, d.ID, d.Path),
				SizeHint: d.FileSize,
				PageURL:  d.URL,
				Width:    d.DimensionX,
				Height:   d.DimensionY,
			})
		}
		return items, page < resp.Meta.LastPage, nil
	})
}

// Fetch opens the full resolution image
func (w *Wallhaven) Fetch(ctx context.Context, item download.Item) (io.ReadCloser, error) {
	return w.open(ctx, item.URL, nil)
}
