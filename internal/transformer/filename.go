package transformer

import (
	"net/url"
	"path"
	"strings"
)

// FallbackFilename is used when neither the payload nor the URL names the file.
const FallbackFilename = "document"

// ResolveFilename picks a document filename: the explicit name, else the
// last percent-decoded URL path segment when it has an extension, else
// FallbackFilename.
func ResolveFilename(explicit, rawURL string) string {
	if name := strings.TrimSpace(explicit); name != "" {
		return name
	}
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return FallbackFilename
	}
	p := u.EscapedPath()
	seg := p[strings.LastIndex(p, "/")+1:]
	if decoded, err := url.PathUnescape(seg); err == nil {
		seg = decoded
	}
	seg = strings.TrimSpace(seg)
	if seg == "" || path.Ext(seg) == "" || path.Ext(seg) == seg {
		return FallbackFilename
	}
	return seg
}
