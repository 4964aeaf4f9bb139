package provider

import (
	"context"
	"iter"

	"github.com/GaseousIce/wallpaper-scraper/internal/domain/download"
)

// pageFunc fetches one result page (1-based). more reports whether another
// page may exist.
type pageFunc func(ctx context.Context, page int) (items []download.Item, more bool, err error)

// paginate turns page requests into a lazy sequence of at most limit items.
// Nothing is requested until the caller starts ranging, and each new page is
// requested only once the previous one has been consumed.
func paginate(ctx context.Context, limit int, fetch pageFunc) iter.Seq2[download.Item, error] {
	return func(yield func(download.Item, error) bool) {
		yielded := 0
		for page := 1; yielded < limit; page++ {
			if err := ctx.Err(); err != nil {
				yield(download.Item{}, err)
				return
			}

			items, more, err := fetch(ctx, page)
			if err != nil {
				yield(download.Item{}, err)
				return
			}

			for _, item := range items {
				if !yield(item, nil) {
					return
				}
				yielded++
				if yielded >= limit {
					return
				}
			}

			if len(items) == 0 || !more {
				return
			}
		}
	}
}

// pageSize clamps limit into the page size range accepted by an API. The
// size stays fixed across pages so that page offsets line up.
func pageSize(limit, lo, hi int) int {
	switch {
	case limit < lo:
		return lo
	case limit > hi:
		return hi
	}
	return limit
}
