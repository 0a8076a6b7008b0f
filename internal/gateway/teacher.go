// ABOUTME: Teacher-facing HTML transcript of a student's conversation
// ABOUTME: Renders model text from Markdown with goldmark inside html/template

package gateway

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/2389/sketchbook/internal/store"
)

//go:embed templates/*.html
var templateFS embed.FS

var transcriptTmpl = template.Must(template.ParseFS(templateFS, "templates/transcript.html"))

type transcriptTurn struct {
	Number      int
	Prompt      string
	InputImage  template.URL
	OutputImage template.URL
	ModelText   template.HTML
	CreatedAt   string
}

type transcriptData struct {
	Student *store.User
	Turns   []transcriptTurn
}

// imageURL lets image data URLs through html/template's URL filter. Anything
// else is dropped.
func imageURL(s string) template.URL {
	if strings.HasPrefix(s, "data:image/") {
		return template.URL(s)
	}
	return ""
}

// renderMarkdown converts model text to HTML. goldmark omits raw HTML by default.
func (g *Gateway) renderMarkdown(text string) template.HTML {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(text), &buf); err != nil {
		g.logger.Error("failed to convert markdown", "error", err)
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String())
}

// handleTranscriptPage renders a user's turns as an HTML page for teachers.
func (g *Gateway) handleTranscriptPage(w http.ResponseWriter, r *http.Request) {
	user, ok := g.lookupUser(w, r)
	if !ok {
		return
	}

	turns, err := g.store.ListTurns(r.Context(), user.ID)
	if err != nil {
		g.logger.Error("failed to list turns", "user_id", user.ID, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	data := transcriptData{Student: user, Turns: make([]transcriptTurn, 0, len(turns))}
	for i, t := range turns {
		data.Turns = append(data.Turns, transcriptTurn{
			Number:      i + 1,
			Prompt:      t.Prompt,
			InputImage:  imageURL(t.InputImage),
			OutputImage: imageURL(t.OutputImage),
			ModelText:   g.renderMarkdown(t.ModelResponseText),
			CreatedAt:   t.CreatedAt.UTC().Format("2006-01-02 15:04:05 UTC"),
		})
	}

	var buf bytes.Buffer
	if err := transcriptTmpl.Execute(&buf, data); err != nil {
		g.logger.Error("failed to render transcript", "user_id", user.ID, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
