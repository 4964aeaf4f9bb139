package provider

import (
	"context"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/GaseousIce/wallpaper-scraper/internal/domain/download"
	apperrors "github.com/GaseousIce/wallpaper-scraper/pkg/errors"
)

const (
	unsplashBaseURL = "https://api.unsplash.com"
	unsplashMaxPage = 30
)

// Unsplash searches the Unsplash photo API. An API key is required.
type Unsplash struct {
	*client
	baseURL string
	apiKey  string
}

// NewUnsplash creates an Unsplash source
func NewUnsplash(opts Options) (*Unsplash, error) {
	if opts.APIKey == "" {
		return nil, apperrors.Auth(string(download.ProviderUnsplash), "API key is required")
	}
	c, err := newClient(download.ProviderUnsplash, opts)
	if err != nil {
		return nil, err
	}

	base := opts.BaseURL
	if base == "" {
		base = unsplashBaseURL
	}
	return &Unsplash{
		client:  c,
		baseURL: strings.TrimRight(base, "/"),
		apiKey:  opts.APIKey,
	}, nil
}

func (u *Unsplash) authHeader() http.Header {
	h := http.Header{}
	h.Set("Authorization", "Client-ID "+u.apiKey)
	h.Set("Accept-Version", "v1")
	return h
}

type unsplashPhoto struct {
	ID     string `json:"id"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	URLs   struct {
		Raw     string `json:"raw"`
		Full    string `json:"full"`
		Regular string `json:"regular"`
	} `json:"urls"`
	Links struct {
		HTML             string `json:"html"`
		DownloadLocation string `json:"download_location"`
	} `json:"links"`
}

type unsplashSearchResponse struct {
	Total      int             `json:"total"`
	TotalPages int             `json:"total_pages"`
	Results    []unsplashPhoto `json:"results"`
}

// Search pages through /search/photos, or samples /photos/random when the
// query has no keywords. Unsplash has no category filter, so a category is
// searched as an extra keyword.
func (u *Unsplash) Search(ctx context.Context, q download.SearchQuery) iter.Seq2[download.Item, error] {
	text := strings.TrimSpace(strings.Join(append(append([]string{}, q.Keywords...), q.Category), " "))
	perPage := pageSize(q.Limit, 1, unsplashMaxPage)

	if text == "" {
		return paginate(ctx, q.Limit, func(ctx context.Context, page int) ([]download.Item, bool, error) {
			params := url.Values{}
			params.Set("count", strconv.Itoa(perPage))
			if q.Orientation != "" {
				params.Set("orientation", q.Orientation)
			}

			var photos []unsplashPhoto
			if err := u.getJSON(ctx, u.baseURL+"/photos/random?"+params.Encode(), u.authHeader(), &photos); err != nil {
				return nil, false, err
			}
			u.logger.Debug("random page", zap.Int("page", page), zap.Int("items", len(photos)))
			return u.items(photos), true, nil
		})
	}

	return paginate(ctx, q.Limit, func(ctx context.Context, page int) ([]download.Item, bool, error) {
		params := url.Values{}
		params.Set("query", text)
		params.Set("page", strconv.Itoa(page))
		params.Set("per_page", strconv.Itoa(perPage))
		if q.Orientation != "" {
			params.Set("orientation", q.Orientation)
		}

		var resp unsplashSearchResponse
		if err := u.getJSON(ctx, u.baseURL+"/search/photos?"+params.Encode(), u.authHeader(), &resp); err != nil {
			return nil, false, err
		}
		u.logger.Debug("search page",
			zap.String("query", text),
			zap.Int("page", page),
			zap.Int("items", len(resp.Results)),
			zap.Int("total_pages", resp.TotalPages),
		)
		return u.items(resp.Results), page < resp.TotalPages, nil
	})
}

func (u *Unsplash) items(photos []unsplashPhoto) []download.Item {
	items := make([]download.Item, 0, len(photos))
	for _, p := range photos {
		link := p.URLs.Full
		if link == "" {
			link = p.URLs.Regular
		}
		if p.ID == "" || link == "" {
			continue
		}
		items = append(items, download.Item{
			Provider:    download.ProviderUnsplash,
			ID:          p.ID,
			URL:         link,
			Filename:    download.ItemFilename(download.ProviderUnsplash, p.ID, link),
			PageURL:     p.Links.HTML,
			TrackingURL: p.Links.DownloadLocation,
			Width:       p.Width,
			Height:      p.Height,
		})
	}
	return items
}

// Fetch registers the download with Unsplash and then opens the image.
// A failed registration is logged and does not stop the download.
func (u *Unsplash) Fetch(ctx context.Context, item download.Item) (io.ReadCloser, error) {
	if item.TrackingURL != "" {
		var ack struct {
			URL string `json:"url"`
		}
		if err := u.getJSONOnce(ctx, item.TrackingURL, u.authHeader(), &ack); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			u.logger.Warn("download tracking failed",
				zap.String("id", item.ID),
				zap.Error(err),
			)
		}
	}

	// image CDN requests do not carry API credentials
	return u.open(ctx, item.URL, nil)
}
