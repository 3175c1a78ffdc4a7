package vod

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// SegmentRef is one entry of a VOD playlist: a segment file name and its
// advertised duration in seconds.
type SegmentRef struct {
	Name     string
	Duration float64
}

// Playlist is the parsed form of a lesson's manifest.
type Playlist struct {
	TargetDuration int
	Segments       []SegmentRef
	Ended          bool
}

// ParsePlaylist reads a VOD playlist from its textual form. Segment URIs are
// reduced to their base name; the transcoder always writes segments next to
// the manifest.
func ParsePlaylist(r io.Reader) (*Playlist, error) {
	pl := &Playlist{}
	pendingDuration := -1.0

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "#EXT-X-TARGETDURATION:"):
			if n, err := strconv.Atoi(strings.TrimPrefix(line, "#EXT-X-TARGETDURATION:")); err == nil {
				pl.TargetDuration = n
			}
		case strings.HasPrefix(line, "#EXTINF:"):
			attrs := strings.TrimSuffix(strings.TrimPrefix(line, "#EXTINF:"), ",")
			d, err := strconv.ParseFloat(strings.SplitN(attrs, ",", 2)[0], 64)
			if err != nil {
				return nil, fmt.Errorf("bad EXTINF %q: %w", line, err)
			}
			pendingDuration = d
		case line == "#EXT-X-ENDLIST":
			pl.Ended = true
		case strings.HasPrefix(line, "#"):
			continue
		default:
			if pendingDuration < 0 {
				return nil, fmt.Errorf("segment %q without EXTINF", line)
			}
			pl.Segments = append(pl.Segments, SegmentRef{
				Name:     filepath.Base(line),
				Duration: pendingDuration,
			})
			pendingDuration = -1.0
		}
	}
	return pl, sc.Err()
}

// ReadPlaylist parses the manifest at path.
func ReadPlaylist(path string) (*Playlist, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParsePlaylist(f)
}

// VerifyComplete is the transcode completeness check: the manifest at path
// must exist, be non-empty, list at least one segment, carry the end-of-list
// marker, and every referenced segment must exist in the same directory.
// Directory existence alone is never trusted; the directory is created before
// any segment is written.
func VerifyComplete(path string) (*Playlist, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("manifest missing: %w", err)
	}
	if info.Size() == 0 {
		return nil, fmt.Errorf("manifest %s is empty", filepath.Base(path))
	}

	pl, err := ReadPlaylist(path)
	if err != nil {
		return nil, err
	}
	if len(pl.Segments) == 0 {
		return nil, fmt.Errorf("manifest %s lists no segments", filepath.Base(path))
	}
	if !pl.Ended {
		return nil, fmt.Errorf("manifest %s has no end-of-list marker", filepath.Base(path))
	}

	dir := filepath.Dir(path)
	for _, seg := range pl.Segments {
		if _, err := os.Stat(filepath.Join(dir, seg.Name)); err != nil {
			return nil, fmt.Errorf("segment %s referenced but absent: %w", seg.Name, err)
		}
	}
	return pl, nil
}
