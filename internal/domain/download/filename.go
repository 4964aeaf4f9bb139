package download

import (
	"net/url"
	"path"
	"strings"
	"unicode/utf8"
)

const (
	maxFilenameBytes = 255
	fallbackFilename = "wallpaper"
	defaultExt       = ".jpg"
)

var filenameReplacer = strings.NewReplacer(
	"<", "_", ">", "_", ":", "_", `"`, "_",
	"/", "_", `\`, "_", "|", "_", "?", "_", "*", "_",
)

// SanitizeFilename makes name safe to use as a single path element.
func SanitizeFilename(name string) string {
	name = filenameReplacer.Replace(name)
	name = strings.Trim(name, " .\t\r\n")

	if len(name) > maxFilenameBytes {
		ext := path.Ext(name)
		if len(ext) >= maxFilenameBytes {
			ext = ""
		}
		stem := name[:maxFilenameBytes-len(ext)]
		for !utf8.ValidString(stem) {
			stem = stem[:len(stem)-1]
		}
		name = stem + ext
	}

	if name == "" {
		return fallbackFilename
	}
	return name
}

// ExtensionFromURL derives a file extension from the path of rawURL, then
// from an "fm" query parameter (used by imgix-style CDNs), then .jpg.
func ExtensionFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return defaultExt
	}
	if ext := strings.ToLower(path.Ext(u.Path)); isImageExt(ext) {
		if ext == ".jpeg" {
			return defaultExt
		}
		return ext
	}
	if fm := strings.ToLower(u.Query().Get("fm")); fm != "" && isImageExt("."+fm) {
		if fm == "jpeg" {
			return defaultExt
		}
		return "." + fm
	}
	return defaultExt
}

// ItemFilename builds the deterministic "<provider>-<id><ext>" name.
func ItemFilename(p Provider, id, rawURL string) string {
	return SanitizeFilename(string(p) + "-" + id + ExtensionFromURL(rawURL))
}

func isImageExt(ext string) bool {
	switch ext {
	case ".jpg", ".jpeg", ".png", ".webp", ".gif", ".bmp", ".tif", ".tiff", ".avif":
		return true
	}
	return false
}
