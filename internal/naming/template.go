// Package naming renders output filename templates such as "[name].bundle.js"
// or "[name].[contenthash:8].js" into concrete file names.
package naming

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"
)

var (
	// ErrMissingHash indicates a template asked for a hash that was not computed
	ErrMissingHash = errors.New("hash placeholder without a hash value")
	// ErrEmptyFilename indicates a template rendered to an empty name
	ErrEmptyFilename = errors.New("template rendered an empty filename")
)

var placeholderPattern = regexp.MustCompile(`\[(name|id|ext|base|file|path|query|contenthash|chunkhash|fullhash|hash)(?::(\d+))?\]`)

// PathData carries the values substituted into a template.
type PathData struct {
	// Name is the chunk (entry) name
	Name string
	// ID is the chunk id; entry chunks use their name
	ID string
	// Filename is the file the template describes, used for [ext], [base], [file] and [path]
	Filename string
	// Query is appended for [query], including the leading "?"
	Query string

	ContentHash string
	ChunkHash   string
	FullHash    string
}

// Render substitutes every placeholder in tmpl.
func Render(tmpl string, d PathData) (string, error) {
	var renderErr error
	out := placeholderPattern.ReplaceAllStringFunc(tmpl, func(match string) string {
		sub := placeholderPattern.FindStringSubmatch(match)
		key, length := sub[1], 0
		if sub[2] != "" {
			length, _ = strconv.Atoi(sub[2])
		}

		switch key {
		case "name":
			return d.Name
		case "id":
			return d.ID
		case "ext":
			return path.Ext(d.Filename)
		case "base":
			return path.Base(d.Filename)
		case "file":
			return d.Filename
		case "path":
			dir := path.Dir(d.Filename)
			if dir == "." || dir == "" {
				return ""
			}
			return dir + "/"
		case "query":
			return d.Query
		case "contenthash":
			return truncate(d.ContentHash, length, key, &renderErr)
		case "chunkhash":
			return truncate(d.ChunkHash, length, key, &renderErr)
		default: // hash, fullhash
			return truncate(d.FullHash, length, key, &renderErr)
		}
	})
	if renderErr != nil {
		return "", renderErr
	}
	if out == "" {
		return "", fmt.Errorf("%w: %q", ErrEmptyFilename, tmpl)
	}
	return out, nil
}

func truncate(hash string, length int, key string, errp *error) string {
	if hash == "" {
		if *errp == nil {
			*errp = fmt.Errorf("%w: [%s]", ErrMissingHash, key)
		}
		return ""
	}
	if length > 0 && length < len(hash) {
		return hash[:length]
	}
	return hash
}

// HasPerEntryPlaceholder reports whether tmpl renders differently for each
// entry. Build-wide hashes ([hash], [fullhash]) do not count.
func HasPerEntryPlaceholder(tmpl string) bool {
	for _, sub := range placeholderPattern.FindAllStringSubmatch(tmpl, -1) {
		switch sub[1] {
		case "name", "id", "contenthash", "chunkhash":
			return true
		}
	}
	return false
}

// HasContentPlaceholder reports whether tmpl depends on file contents.
func HasContentPlaceholder(tmpl string) bool {
	for _, sub := range placeholderPattern.FindAllStringSubmatch(tmpl, -1) {
		switch sub[1] {
		case "contenthash", "chunkhash", "hash", "fullhash":
			return true
		}
	}
	return false
}

// StaticName renders tmpl with only the entry name known. Hash placeholders
// are left in place, which is enough to compare names before a build.
func StaticName(tmpl, name string) string {
	return placeholderPattern.ReplaceAllStringFunc(tmpl, func(match string) string {
		sub := placeholderPattern.FindStringSubmatch(match)
		switch sub[1] {
		case "name", "id":
			return name
		case "query":
			return ""
		}
		return match
	})
}

// ToEsbuildAssetNames translates an asset module filename template into the
// form esbuild expects for AssetNames. esbuild appends the extension itself
// and only knows [dir], [name] and [hash].
func ToEsbuildAssetNames(tmpl string) string {
	out := placeholderPattern.ReplaceAllStringFunc(tmpl, func(match string) string {
		sub := placeholderPattern.FindStringSubmatch(match)
		switch sub[1] {
		case "name", "base":
			return "[name]"
		case "path":
			return "[dir]/"
		case "file":
			return "[dir]/[name]"
		case "contenthash", "chunkhash", "hash", "fullhash":
			return "[hash]"
		}
		// [ext], [query] and [id] have no esbuild equivalent
		return ""
	})
	out = strings.TrimSuffix(out, ".")
	out = strings.TrimPrefix(out, "./")
	if out == "" {
		return "[hash]"
	}
	return out
}
