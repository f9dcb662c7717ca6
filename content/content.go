// Package content builds and rewrites the HTML body of video articles.
package content

import (
	"fmt"
	"html"
	"regexp"
	"strings"
)

const (
	// VideoExt marks an attachment as a local video copy.
	VideoExt = ".mp4"
	// LocalVideoMarker is present in content once the embed was swapped for a local player.
	LocalVideoMarker = "<video"
)

var (
	bareURL = regexp.MustCompile(`https?://[^\s<]+`)
	newline = regexp.MustCompile(`\r\n|\n|\r`)
)

// WatchURL is the canonical public page for a video id.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}

// EmbedBlock is the player block written at submission time. The worker
// matches it byte for byte when swapping in the local player.
func EmbedBlock(videoID string) string {
	return `<div class="video-container"><iframe width="560" height="315" src="https://www.youtube.com/embed/` +
		videoID + `" frameborder="0" allowfullscreen></iframe></div>`
}

// LocalPlayerBlock renders a native player for a stored video. posterURL may be empty.
func LocalPlayerBlock(videoURL, posterURL string) string {
	poster := ""
	if posterURL != "" {
		poster = fmt.Sprintf(` poster="%s"`, html.EscapeString(posterURL))
	}
	return fmt.Sprintf(`<div class="video-container"><video controls width="100%%"%s><source src="%s" type="video/mp4"></video></div>`,
		poster, html.EscapeString(videoURL))
}

// Build assembles the initial article body: the embed block, the user's note
// and the linkified video description.
func Build(videoID, note, description string) string {
	var b strings.Builder
	b.WriteString(EmbedBlock(videoID))

	if strings.TrimSpace(note) != "" {
		b.WriteString("<br><h3>My notes:</h3>")
		b.WriteString(nl2br(html.EscapeString(note)))
		b.WriteString("<br>")
	}

	b.WriteString("<br>")
	b.WriteString(nl2br(Linkify(html.EscapeString(description))))
	return b.String()
}

// Linkify wraps bare http(s) URLs in anchors. Input must already be escaped.
func Linkify(escaped string) string {
	return bareURL.ReplaceAllString(escaped,
		`<a href="$0" target="_blank" style="color: #6366f1; text-decoration: underline;">$0</a>`)
}

// ReplaceEmbed swaps the original embed block for the local player. It reports
// false when the block is no longer present verbatim.
func ReplaceEmbed(body, videoID, localBlock string) (string, bool) {
	embed := EmbedBlock(videoID)
	if !strings.Contains(body, embed) {
		return body, false
	}
	return strings.ReplaceAll(body, embed, localBlock), true
}

// HasLocalVideo reports whether a body already carries a native player.
func HasLocalVideo(body string) bool {
	return strings.Contains(body, LocalVideoMarker)
}

func nl2br(s string) string {
	return newline.ReplaceAllString(s, "<br />\n")
}
