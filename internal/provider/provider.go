package provider

import (
	"fmt"

	"github.com/GaseousIce/wallpaper-scraper/internal/domain/download"
	apperrors "github.com/GaseousIce/wallpaper-scraper/pkg/errors"
)

// New creates the source for p. A missing required API key is an auth error.
func New(p download.Provider, opts Options) (download.Source, error) {
	var (
		src download.Source
		err error
	)
	switch p {
	case download.ProviderUnsplash:
		src, err = NewUnsplash(opts)
	case download.ProviderWallhaven:
		src, err = NewWallhaven(opts)
	case download.ProviderPixabay:
		src, err = NewPixabay(opts)
	default:
		return nil, apperrors.Config(fmt.Sprintf("unknown provider %q", p))
	}
	if err != nil {
		return nil, err
	}
	return src, nil
}

// RequiresAPIKey reports whether p refuses anonymous requests
func RequiresAPIKey(p download.Provider) bool {
	return p != download.ProviderWallhaven
}
