package content

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/gosimple/slug"
)

var hashtag = regexp.MustCompile(`#([\p{L}\p{N}_]+)`)

// Hashtags extracts #word tokens in order of first appearance. Tags are
// lower-cased, so "#Travel" and "#travel" collapse into one entry.
func Hashtags(description string) []string {
	seen := make(map[string]struct{})
	var tags []string
	for _, m := range hashtag.FindAllStringSubmatch(description, -1) {
		tag := strings.ToLower(m[1])
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	return tags
}

// Slug returns a URL-safe slug for title. Empty results fall back to "video".
func Slug(title string) string {
	s := slug.Make(title)
	if s == "" {
		return "video"
	}
	return s
}

// UniqueSlug appends -2, -3, ... to the title slug until taken reports false.
func UniqueSlug(title string, taken func(string) (bool, error)) (string, error) {
	base := Slug(title)
	candidate := base
	for i := 2; ; i++ {
		exists, err := taken(candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		candidate = base + "-" + strconv.Itoa(i)
	}
}

