// Package m3u parses and generates M3U/M3U8 playlists with extended
// attribute support (tvg-id, tvg-name, tvg-logo, group-title, #EXTGRP).
package m3u

import (
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// Entry is one channel entry parsed from a playlist.
type Entry struct {
	Name       string
	URL        string
	TvgID      string
	TvgName    string
	TvgLogo    string
	GroupTitle string
}

// Playlist is an ordered collection of parsed entries.
type Playlist struct {
	Entries []Entry
}

const (
	extinfPrefix = "#EXTINF"
	extgrpPrefix = "#EXTGRP"
)

var attributePattern = regexp.MustCompile(`([a-zA-Z0-9\-]+)="([^"]*)"`)

// Parser parses M3U playlist text. Entries with a missing name or URL are
// skipped with a warning rather than failing the whole playlist.
type Parser struct {
	logger *zap.SugaredLogger
}

// NewParser creates a playlist parser.
func NewParser(logger *zap.SugaredLogger) *Parser {
	return &Parser{logger: logger}
}

// Parse reads raw playlist content into a Playlist. Content is treated as
// UTF-8; a leading byte order mark is stripped.
func (p *Parser) Parse(content string) Playlist {
	content = strings.TrimPrefix(content, "\ufeff")

	var playlist Playlist
	if content == "" {
		return playlist
	}

	lines := strings.Split(content, "\n")
	index := 0
	for index < len(lines) {
		line := strings.TrimSpace(lines[index])
		if !strings.HasPrefix(line, extinfPrefix) {
			index++
			continue
		}

		entry := parseExtinf(line)
		if entry.Name == "" {
			p.logger.Warnw("Skipping EXTINF entry with missing channel name", "line", line)
			index++
			continue
		}

		url, extgrpGroup, next := consumeMetadata(lines, index+1)
		if url == "" {
			p.logger.Warnw("Skipping channel with missing stream URL", "name", entry.Name)
			index = next
			continue
		}

		entry.URL = url
		if entry.GroupTitle == "" {
			entry.GroupTitle = extgrpGroup
		}
		playlist.Entries = append(playlist.Entries, entry)
		index = next
	}
	return playlist
}

func parseExtinf(line string) Entry {
	var entry Entry
	for _, match := range attributePattern.FindAllStringSubmatch(line, -1) {
		key := strings.ToLower(strings.TrimSpace(match[1]))
		value := strings.TrimSpace(match[2])
		switch key {
		case "tvg-id":
			entry.TvgID = value
		case "tvg-name":
			entry.TvgName = value
		case "tvg-logo":
			entry.TvgLogo = value
		case "group-title":
			entry.GroupTitle = value
		}
	}

	if idx := strings.LastIndex(line, ","); idx >= 0 {
		entry.Name = strings.TrimSpace(line[idx+1:])
	}
	return entry
}

// consumeMetadata walks the lines following an EXTINF directive until the
// stream URL, collecting any #EXTGRP group on the way. It stops early if
// another EXTINF begins before a URL was found.
func consumeMetadata(lines []string, start int) (url, group string, next int) {
	index := start
	for index < len(lines) {
		line := strings.TrimSpace(lines[index])

		if line == "" {
			index++
			continue
		}
		if strings.HasPrefix(line, extinfPrefix) {
			return "", group, index
		}
		if strings.HasPrefix(line, "#") {
			if strings.HasPrefix(line, extgrpPrefix) {
				value := strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(line, extgrpPrefix), ":"))
				if value != "" {
					group = value
				}
			}
			index++
			continue
		}
		return line, group, index + 1
	}
	return "", group, len(lines)
}
