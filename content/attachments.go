package content

import "strings"

// IsVideo reports whether an attachment path points at a local video copy.
func IsVideo(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), VideoExt)
}

// HasVideo reports whether any attachment is a local video.
func HasVideo(attachments []string) bool {
	for _, a := range attachments {
		if IsVideo(a) {
			return true
		}
	}
	return false
}

// MergeAttachments folds added into current. Entries already present are
// skipped; new videos go to the front, everything else to the back. The
// relative order of current is preserved and merging twice is a no-op.
func MergeAttachments(current, added []string) []string {
	merged := make([]string, 0, len(current)+len(added))
	seen := make(map[string]struct{}, len(current)+len(added))
	for _, a := range current {
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		merged = append(merged, a)
	}

	for _, a := range added {
		if a == "" {
			continue
		}
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		if IsVideo(a) {
			merged = append([]string{a}, merged...)
		} else {
			merged = append(merged, a)
		}
	}
	return merged
}
