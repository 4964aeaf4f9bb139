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
	apperrors "github.com/GaseousIce/wallpaper-scraper/pkg/errors"
)

const (
	pixabayBaseURL = "https://pixabay.com/api"
	pixabayMinPage = 3
	pixabayMaxPage = 200
)

var pixabayOrientations = map[string]string{
	"landscape": "horizontal",
	"portrait":  "vertical",
}

// Pixabay searches the Pixabay image API. An API key is required.
type Pixabay struct {
	*client
	baseURL string
	apiKey  string
}

// NewPixabay creates a Pixabay source
func NewPixabay(opts Options) (*Pixabay, error) {
	if opts.APIKey == "" {
		return nil, apperrors.Auth(string(download.ProviderPixabay), "API key is required")
	}
	c, err := newClient(download.ProviderPixabay, opts)
	if err != nil {
		return nil, err
	}

	base := opts.BaseURL
	if base == "" {
		base = pixabayBaseURL
	}
	return &Pixabay{
		client:  c,
		baseURL: strings.TrimRight(base, "/"),
		apiKey:  opts.APIKey,
	}, nil
}

type pixabayHit struct {
	ID            int64  `json:"id"`
	PageURL       string `json:"pageURL"`
	LargeImageURL string `json:"largeImageURL"`
	FullHDURL     string `json:"fullHDURL"`
	ImageURL      string `json:"imageURL"`
	ImageWidth    int    `json:"imageWidth"`
	ImageHeight   int    `json:"imageHeight"`
	ImageSize     int64  `json:"imageSize"`
}

type pixabayResponse struct {
	Total     int          `json:"total"`
	TotalHits int          `json:"totalHits"`
	Hits      []pixabayHit `json:"hits"`
}

// Search pages through the image search endpoint. totalHits caps how far
// the API lets a search page.
func (p *Pixabay) Search(ctx context.Context, q download.SearchQuery) iter.Seq2[download.Item, error] {
	perPage := pageSize(q.Limit, pixabayMinPage, pixabayMaxPage)

	return paginate(ctx, q.Limit, func(ctx context.Context, page int) ([]download.Item, bool, error) {
		params := url.Values{}
		params.Set("key", p.apiKey)
		if text := q.Text(); text != "" {
			params.Set("q", text)
		}
		params.Set("page", strconv.Itoa(page))
		params.Set("per_page", strconv.Itoa(perPage))
		params.Set("image_type", "photo")
		if o, ok := pixabayOrientations[q.Orientation]; ok {
			params.Set("orientation", o)
		}
		if q.Category != "" {
			params.Set("category", strings.ToLower(q.Category))
		}
		if q.Resolution != "" {
			if w, h, err := download.ParseResolution(q.Resolution); err == nil {
				params.Set("min_width", strconv.Itoa(w))
				params.Set("min_height", strconv.Itoa(h))
			}
		}

		rawURL := p.baseURL + "/?" + params.Encode()
		var resp pixabayResponse
		if err := p.getJSON(ctx, rawURL, nil, &resp); err != nil {
			return nil, false, err
		}
		p.logger.Debug("search page",
			zap.String("url", redact(rawURL, "key")),
			zap.Int("items", len(resp.Hits)),
			zap.Int("total_hits", resp.TotalHits),
		)

		items := make([]download.Item, 0, len(resp.Hits))
		for _, h := range resp.Hits {
			if item, ok := pixabayItem(h); ok {
				items = append(items, item)
			}
		}
		return items, page*perPage < resp.TotalHits, nil
	})
}

// pixabayItem prefers the original upload, then full HD, then the large
// preview. The byte size is only known for the original.
func pixabayItem(h pixabayHit) (download.Item, bool) {
	link, size := h.ImageURL, h.ImageSize
	if link == "" {
		link, size = h.FullHDURL, 0
	}
	if link == "" {
		link = h.LargeImageURL
	}
	if h.ID == 0 || link == "" {
		return download.Item{}, false
	}

	id := strconv.FormatInt(h.ID, 10)
	return download.Item{
		Provider: download.ProviderPixabay,
		ID:       id,
		URL:      link,
		Filename: download.ItemFilename(download.ProviderPixabay, id, link),
		SizeHint: size,
		PageURL:  h.PageURL,
		Width:    h.ImageWidth,
		Height:   h.ImageHeight,
	}, true
}

// Fetch opens the image
func (p *Pixabay) Fetch(ctx context.Context, item download.Item) (io.ReadCloser, error) {
	return p.open(ctx, item.URL, nil)
}
