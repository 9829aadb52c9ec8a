// infrastructure/blob_url.go
package infrastructure

import (
	"net/url"
	"strings"
)

// joinObjectURL appends an object key to base, escaping each path
// segment of the key.
func joinObjectURL(base, key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.TrimRight(base, "/") + "/" + strings.Join(segments, "/")
}
