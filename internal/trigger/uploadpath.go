// Package trigger contains the write-driven maintenance jobs: the
// child-write aggregator that recounts a card's live children, the upload
// ingestor that materializes file records for finalized uploads, and the
// janitor that completes two-phase hard deletes.
package trigger

import (
	"strings"

	"cardstack/api/internal/util"
)

// UploadRef is a parsed upload object key.
type UploadRef struct {
	OrgID     string
	CardID    string
	UploadKey string
	Filename  string
}

// ParseUploadPath matches an object key against the upload path contract
// orgs/{orgId}/cards/{cardId}/uploads/{opaqueKey}/{filename}. Keys of any
// other shape are not an error; the bucket may hold unrelated objects.
func ParseUploadPath(key string) (UploadRef, bool) {
	parts := strings.Split(key, "/")
	if len(parts) != 7 {
		return UploadRef{}, false
	}
	if parts[0] != "orgs" || parts[2] != "cards" || parts[4] != "uploads" {
		return UploadRef{}, false
	}
	for _, part := range parts {
		if part == "" {
			return UploadRef{}, false
		}
	}
	return UploadRef{
		OrgID:     parts[1],
		CardID:    parts[3],
		UploadKey: parts[5],
		Filename:  parts[6],
	}, true
}

// UploadPrefix is the object-key prefix holding every upload for a card.
func UploadPrefix(orgID, cardID string) string {
	return "orgs/" + orgID + "/cards/" + cardID + "/uploads/"
}

// NewUploadPath builds a fresh, randomly keyed object path for an upload.
func NewUploadPath(orgID, cardID, filename string) string {
	return UploadPrefix(orgID, cardID) + util.NewID("up") + "/" + filename
}

// FileTypeFor buckets a MIME type into the coarse file types the portal
// surfaces to the UI.
func FileTypeFor(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return "image"
	case strings.HasPrefix(contentType, "video/"):
		return "video"
	case strings.HasPrefix(contentType, "audio/"):
		return "audio"
	case contentType == "application/pdf",
		strings.HasPrefix(contentType, "text/"),
		strings.Contains(contentType, "word"),
		strings.Contains(contentType, "spreadsheet"),
		strings.Contains(contentType, "presentation"):
		return "document"
	default:
		return "other"
	}
}
