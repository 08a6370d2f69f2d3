package m3u

import (
	"fmt"
	"strings"

	"github.com/streamscan/stream-scanner/internal/channel"
)

// Generator serializes channels into M3U playlist text with the extended
// attributes popular players understand.
type Generator struct{}

// NewGenerator creates a playlist generator.
func NewGenerator() *Generator {
	return &Generator{}
}

// Generate returns the playlist content for the given channels.
func (g *Generator) Generate(channels []channel.Channel) string {
	lines := []string{"#EXTM3U"}
	for _, ch := range channels {
		lines = append(lines, g.serializeChannel(ch)...)
	}
	return strings.Join(lines, "\n")
}

func (g *Generator) serializeChannel(ch channel.Channel) []string {
	parts := []string{"#EXTINF:-1"}
	appendAttribute(&parts, "tvg-id", ch.TvgID)
	appendAttribute(&parts, "tvg-name", ch.Name)
	appendAttribute(&parts, "tvg-logo", ch.TvgLogo)
	appendAttribute(&parts, "group-title", ch.Group)

	lines := []string{fmt.Sprintf("%s,%s", strings.Join(parts, " "), escapeText(ch.Name))}
	if ch.Group != "" {
		lines = append(lines, fmt.Sprintf("#EXTGRP:%s", escapeText(ch.Group)))
	}
	lines = append(lines, ch.URL)
	return lines
}

func appendAttribute(parts *[]string, key, value string) {
	if value != "" {
		*parts = append(*parts, fmt.Sprintf(`%s="%s"`, key, escapeText(value)))
	}
}

func escapeText(value string) string {
	escaped := strings.ReplaceAll(value, `"`, `\"`)
	escaped = strings.ReplaceAll(escaped, "\n", " ")
	return strings.TrimSpace(escaped)
}
