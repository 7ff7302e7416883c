package s3io

import (
	"fmt"
	"net/http"
	"strings"
)

// Evidence objects live under claims/<claimID>/<ulid>-<filename>.
const keyRoot = "claims"

// Prefix returns the key prefix holding every document of a claim.
func Prefix(claimID string) string {
	return keyRoot + "/" + claimID + "/"
}

// BuildKey constructs the S3 key for a new evidence object.
func BuildKey(claimID, objectID, filename string) string {
	return fmt.Sprintf("%s/%s/%s-%s", keyRoot, claimID, objectID, filename)
}

// ParseKey extracts the claim id and original filename from an evidence key.
func ParseKey(key string) (claimID, filename string, ok bool) {
	parts := strings.Split(key, "/")
	if len(parts) != 3 || parts[0] != keyRoot || parts[1] == "" {
		return "", "", false
	}
	_, name, found := strings.Cut(parts[2], "-")
	if !found || name == "" {
		return "", "", false
	}
	return parts[1], name, true
}

// UploadHeaders flattens the signed headers of a presigned PUT into the set
// the client must send verbatim. Host is dropped; the HTTP client derives it
// from the URL.
func UploadHeaders(signed http.Header) map[string]string {
	h := map[string]string{}
	for k, vs := range signed {
		if len(vs) == 0 || strings.EqualFold(k, "Host") {
			continue
		}
		h[http.CanonicalHeaderKey(k)] = strings.Join(vs, ",")
	}
	return h
}
