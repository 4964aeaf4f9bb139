package download

import (
	"fmt"
	"strings"

	apperrors "github.com/GaseousIce/wallpaper-scraper/pkg/errors"
)

// Provider identifies a wallpaper search API
type Provider string

const (
	ProviderUnsplash  Provider = "unsplash"
	ProviderWallhaven Provider = "wallhaven"
	ProviderPixabay   Provider = "pixabay"
)

// SourceAll selects every known provider.
const SourceAll = "all"

// Providers returns every supported provider in a stable order.
func Providers() []Provider {
	return []Provider{ProviderUnsplash, ProviderWallhaven, ProviderPixabay}
}

// ParseProvider converts a provider name into a Provider
func ParseProvider(name string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(name)))
	switch p {
	case ProviderUnsplash, ProviderWallhaven, ProviderPixabay:
		return p, nil
	}
	return "", apperrors.Config(fmt.Sprintf("unknown source %q", name))
}

// ParseSource expands a source option into providers. "all" yields every
// provider.
func ParseSource(source string) ([]Provider, error) {
	if strings.EqualFold(strings.TrimSpace(source), SourceAll) {
		return Providers(), nil
	}
	p, err := ParseProvider(source)
	if err != nil {
		return nil, err
	}
	return []Provider{p}, nil
}

// Orientation values accepted by the providers that support them
var validOrientations = map[string]bool{
	"":          true,
	"landscape": true,
	"portrait":  true,
	"squarish":  true,
}

// SearchQuery is an immutable request for at most Limit items from one provider.
type SearchQuery struct {
	Provider    Provider
	Keywords    []string
	Category    string
	Limit       int
	Orientation string
	Resolution  string
}

// Text joins the keywords into a single search string.
func (q SearchQuery) Text() string {
	return strings.Join(q.Keywords, " ")
}

// Validate checks the query invariants
func (q SearchQuery) Validate() error {
	if _, err := ParseProvider(string(q.Provider)); err != nil {
		return err
	}
	if q.Limit <= 0 {
		return apperrors.Config(fmt.Sprintf("limit must be positive, got %d", q.Limit))
	}
	if !validOrientations[q.Orientation] {
		return apperrors.Config(fmt.Sprintf("unsupported orientation %q", q.Orientation))
	}
	if q.Resolution != "" {
		if _, _, err := ParseResolution(q.Resolution); err != nil {
			return err
		}
	}
	return nil
}

// ParseResolution parses a WxH string.
func ParseResolution(s string) (width, height int, err error) {
	if _, scanErr := fmt.Sscanf(strings.ToLower(s), "%dx%d", &width, &height); scanErr != nil || width <= 0 || height <= 0 {
		return 0, 0, apperrors.Config(fmt.Sprintf("resolution must look like 1920x1080, got %q", s))
	}
	return width, height, nil
}

// Item is a normalized search result ready to be downloaded
type Item struct {
	Provider Provider
	ID       string
	URL      string
	Filename string
	// SizeHint is the expected size in bytes; 0 means unknown.
	SizeHint int64
	// Checksum is either "<algo>:<hex>", a bare hex digest or an opaque etag.
	Checksum string
	PageURL  string
	// TrackingURL is pinged before the download when the provider asks for it.
	TrackingURL string
	Width       int
	Height      int
}

// Key identifies an item within a run
type Key struct {
	Provider Provider
	ID       string
}

// String returns provider/id
func (k Key) String() string {
	return string(k.Provider) + "/" + k.ID
}

// Key returns the deduplication key of the item
func (i Item) Key() Key {
	return Key{Provider: i.Provider, ID: i.ID}
}
