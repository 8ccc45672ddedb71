package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/minio/crc64nvme"
)

// ETag returns a strong entity tag for body.
func ETag(body []byte) string {
	h := crc64nvme.New()
	_, _ = h.Write(body)
	return `"` + strconv.FormatUint(h.Sum64(), 16) + `"`
}

// NotModified reports whether r's If-None-Match header matches etag. Weak
// comparison is used as for GET requests.
func NotModified(r *http.Request, etag string) bool {
	inm := r.Header.Get("If-None-Match")
	if inm == "" {
		return false
	}
	for _, candidate := range strings.Split(inm, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" {
			return true
		}
		if strings.TrimPrefix(candidate, "W/") == strings.TrimPrefix(etag, "W/") {
			return true
		}
	}
	return false
}
