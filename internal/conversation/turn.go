// ABOUTME: Turn and Image types for sketch conversations
// ABOUTME: A Turn is one prompt/response exchange; an Image is the user's sketch payload

package conversation

import (
	"net/http"
	"strings"
	"time"
)

// Turn is one prompt/response exchange. The JSON field order is the export order.
type Turn struct {
	ID                string    `json:"id"`
	Prompt            string    `json:"prompt"`
	InputImage        string    `json:"inputImage"`
	OutputImage       string    `json:"outputImage"`
	ModelResponseText string    `json:"modelResponseText"`
	CreatedAt         time.Time `json:"createdAt"`
}

// MissingFields reports the fields a committed turn must carry but t lacks.
func (t Turn) MissingFields() []string {
	var missing []string
	if t.ID == "" {
		missing = append(missing, "id")
	}
	if t.Prompt == "" {
		missing = append(missing, "prompt")
	}
	if t.OutputImage == "" {
		missing = append(missing, "outputImage")
	}
	return missing
}

// Validate checks that t can be committed to a Store.
func (t Turn) Validate() error {
	if missing := t.MissingFields(); len(missing) > 0 {
		return &MalformedResponseError{Missing: missing}
	}
	return nil
}

// Image is an uploaded sketch.
type Image struct {
	Data     []byte
	MIMEType string
	Filename string
}

// IsImage reports whether the payload sniffs as an image.
func (i Image) IsImage() bool {
	if len(i.Data) == 0 {
		return false
	}
	return strings.HasPrefix(http.DetectContentType(i.Data), "image/")
}

// ContentType returns the declared MIME type when it names an image,
// otherwise the sniffed one.
func (i Image) ContentType() string {
	if strings.HasPrefix(i.MIMEType, "image/") {
		return i.MIMEType
	}
	return http.DetectContentType(i.Data)
}
