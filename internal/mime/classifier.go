// Package mime maps media MIME types onto WhatsApp message kinds.
package mime

import (
	"strings"

	"github.com/shabibmr/waba-xypr-sub001/internal/models"
)

// kinds lists the MIME types WhatsApp accepts for each media message kind.
var kinds = map[string]models.Kind{
	"image/jpeg": models.KindImage,
	"image/jpg":  models.KindImage,
	"image/png":  models.KindImage,
	"image/webp": models.KindImage,

	"video/mp4":  models.KindVideo,
	"video/3gpp": models.KindVideo,

	"audio/aac":  models.KindAudio,
	"audio/amr":  models.KindAudio,
	"audio/mpeg": models.KindAudio,
	"audio/mp4":  models.KindAudio,
	"audio/ogg":  models.KindAudio,
	"audio/opus": models.KindAudio,

	"application/pdf":               models.KindDocument,
	"text/plain":                    models.KindDocument,
	"text/csv":                      models.KindDocument,
	"application/msword":            models.KindDocument,
	"application/vnd.ms-excel":      models.KindDocument,
	"application/vnd.ms-powerpoint": models.KindDocument,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   models.KindDocument,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         models.KindDocument,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": models.KindDocument,
}

// Classify returns the message kind for a MIME type. Parameters such as
// "; codecs=opus" are ignored. Unknown types report false.
func Classify(mimeType string) (models.Kind, bool) {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	kind, ok := kinds[mt]
	return kind, ok
}
