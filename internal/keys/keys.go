// Package keys derives object keys for uploaded files.
package keys

import (
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/input-output-hk/catalyst-forge-libs/chunkupload/errors"
)

// DefaultPrefixParam is the query parameter a request uses to choose a key prefix.
const DefaultPrefixParam = "__prefix"

const timestampLayout = "20060102150405"

// Policy builds keys of the form
// <Root>/<prefix>/<base>[_<timestamp>][_<suffix>]<ext>.
type Policy struct {
	// Root is prepended to every key
	Root string

	// PrefixParam names the query parameter carrying a per-request prefix.
	// Empty disables request prefixes.
	PrefixParam string

	// AppendTimestamp adds the upload time (UTC) before the extension
	AppendTimestamp bool

	// UniqueSuffix adds a short random suffix before the extension
	UniqueSuffix bool

	// Now is the clock used for timestamps; nil means time.Now
	Now func() time.Time
}

// DefaultPolicy returns the policy used when nothing is configured.
func DefaultPolicy() Policy {
	return Policy{
		PrefixParam:     DefaultPrefixParam,
		AppendTimestamp: true,
	}
}

// Key derives the object key for filename under prefix.
func (p Policy) Key(prefix, filename string) (string, error) {
	// browsers on Windows may send full paths
	name := path.Base(strings.ReplaceAll(filename, `\`, "/"))
	if name == "." || name == "/" || name == ".." || name == "" {
		return "", errors.New("key", errors.CodeInvalidInput, fmt.Errorf("invalid file name %q", filename))
	}

	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	if base == "" {
		// dotfiles such as ".env" have no extension
		base, ext = name, ""
	}

	if p.AppendTimestamp {
		now := time.Now
		if p.Now != nil {
			now = p.Now
		}
		base += "_" + now().UTC().Format(timestampLayout)
	}
	if p.UniqueSuffix {
		base += "_" + uuid.NewString()[:8]
	}

	segments := make([]string, 0, 3)
	for _, s := range []string{p.Root, prefix} {
		if cleaned := cleanPrefix(s); cleaned != "" {
			segments = append(segments, cleaned)
		}
	}
	segments = append(segments, base+ext)
	return strings.Join(segments, "/"), nil
}

// FromRequest derives the key for filename using the request's prefix parameter.
func (p Policy) FromRequest(r *http.Request, filename string) (string, error) {
	var prefix string
	if p.PrefixParam != "" {
		prefix = r.URL.Query().Get(p.PrefixParam)
	}
	return p.Key(prefix, filename)
}

// cleanPrefix drops empty, "." and ".." segments.
func cleanPrefix(prefix string) string {
	parts := strings.Split(strings.ReplaceAll(prefix, `\`, "/"), "/")
	kept := parts[:0]
	for _, part := range parts {
		if part == "" || part == "." || part == ".." {
			continue
		}
		kept = append(kept, part)
	}
	return strings.Join(kept, "/")
}
