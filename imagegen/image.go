// Package imagegen provides image generation backends for the art director
// step and a file store for the returned image bytes. Failures are reported
// with the llm error taxonomy so callers classify text and image errors alike.
package imagegen

import (
	"net/http"
	"strings"
)

// Image is the result of a generation: raw bytes, a hosted URL, or both.
type Image struct {
	Data     []byte
	MIMEType string
	URL      string
}

// Extension returns the file extension (without dot) for the image data.
// The MIME type wins when set; otherwise the bytes are sniffed.
func (i *Image) Extension() string {
	mimeType := i.MIMEType
	if mimeType == "" && len(i.Data) > 0 {
		mimeType = http.DetectContentType(i.Data)
	}

	switch strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0])) {
	case "image/jpeg", "image/jpg":
		return "jpg"
	case "image/webp":
		return "webp"
	case "image/gif":
		return "gif"
	default:
		return "png"
	}
}
