package vod

import (
	"path/filepath"
	"regexp"
	"strings"
)

// safeName is the only character set allowed in lesson ids and asset file
// names. It cannot express a path separator, a null byte, or an encoding
// escape, so anything matching it stays inside one directory level.
var safeName = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// ValidateLessonID rejects empty values, the literal sentinels a client sends
// for an absent id, identifiers with characters outside the safe set, and any
// identifier containing a "..".
func ValidateLessonID(id string) error {
	id = strings.TrimSpace(id)
	if id == "" || id == "null" || id == "undefined" {
		return ErrInvalidLessonID
	}
	if !safeName.MatchString(id) || strings.Contains(id, "..") {
		return ErrInvalidLessonID
	}
	return nil
}

// validateFileName distinguishes traversal attempts from plain bad input:
// separators, ".." components, and percent-encoded separators are treated as
// escape attempts, any other character outside the safe set as a malformed
// name.
func validateFileName(name string) error {
	if strings.ContainsAny(name, `/\`) || name == ".." || hasEncodedSeparator(name) {
		return ErrPathEscape
	}
	if name == "" || name == "null" {
		return ErrInvalidFileName
	}
	if !safeName.MatchString(name) {
		return ErrInvalidFileName
	}
	return nil
}

func hasEncodedSeparator(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "%2f") || strings.Contains(lower, "%5c")
}

// Resolve computes the absolute path of fileName inside lesson_<lessonID>
// under root. An empty fileName resolves the lesson's manifest. The result is
// normalized and confirmed to stay within root; the comparison is
// case-insensitive so that case-folding filesystems cannot be used to slip
// past the prefix check. Resolve never touches the filesystem.
func Resolve(root, lessonID, fileName string) (string, error) {
	if err := ValidateLessonID(lessonID); err != nil {
		return "", err
	}
	if fileName == "" {
		fileName = ManifestName
	} else if err := validateFileName(fileName); err != nil {
		return "", err
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", ErrPathEscape
	}
	candidate := filepath.Join(absRoot, "lesson_"+strings.TrimSpace(lessonID), fileName)
	if !contained(absRoot, candidate) {
		return "", ErrPathEscape
	}
	return candidate, nil
}

// LessonDir returns the asset directory for a lesson, derived from the same
// resolution logic the playback path uses.
func LessonDir(root, lessonID string) (string, error) {
	manifest, err := Resolve(root, lessonID, "")
	if err != nil {
		return "", err
	}
	return filepath.Dir(manifest), nil
}

// contained reports whether target equals root or lies strictly below it.
// Both paths must already be absolute and cleaned.
func contained(root, target string) bool {
	r := strings.ToLower(root)
	t := strings.ToLower(target)
	return t == r || strings.HasPrefix(t, r+string(filepath.Separator))
}
