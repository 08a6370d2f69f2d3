package m3u

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestParser() *Parser {
	return NewParser(zap.NewNop().Sugar())
}

func TestParser_ExtendedAttributes(t *testing.T) {
	t.Parallel()

	content := `#EXTM3U
#EXTINF:-1 tvg-id="news.hd" tvg-name="News HD" tvg-logo="http://logo.example/news.png" group-title="News",News HD
http://192.168.1.10:8080/news
#EXTINF:-1,Sports
udp://239.0.0.1:5000
`

	playlist := newTestParser().Parse(content)
	require.Len(t, playlist.Entries, 2)

	first := playlist.Entries[0]
	assert.Equal(t, "News HD", first.Name)
	assert.Equal(t, "http://192.168.1.10:8080/news", first.URL)
	assert.Equal(t, "news.hd", first.TvgID)
	assert.Equal(t, "News HD", first.TvgName)
	assert.Equal(t, "http://logo.example/news.png", first.TvgLogo)
	assert.Equal(t, "News", first.GroupTitle)

	second := playlist.Entries[1]
	assert.Equal(t, "Sports", second.Name)
	assert.Equal(t, "udp://239.0.0.1:5000", second.URL)
	assert.Empty(t, second.GroupTitle)
}

func TestParser_StripsByteOrderMark(t *testing.T) {
	t.Parallel()

	content := "\ufeff#EXTINF:-1 group-title=\"News\",News HD\nhttp://192.168.1.10:8080/news\n"

	playlist := newTestParser().Parse(content)
	require.Len(t, playlist.Entries, 1)
	assert.Equal(t, "News HD", playlist.Entries[0].Name)
	assert.Equal(t, "http://192.168.1.10:8080/news", playlist.Entries[0].URL)
}

func TestParser_ExtgrpDirective(t *testing.T) {
	t.Parallel()

	content := `#EXTM3U
#EXTINF:-1,Movies
#EXTGRP:Cinema
rtp://239.0.0.2:1234
`

	playlist := newTestParser().Parse(content)
	require.Len(t, playlist.Entries, 1)
	assert.Equal(t, "Cinema", playlist.Entries[0].GroupTitle)
}

func TestParser_GroupTitleWinsOverExtgrp(t *testing.T) {
	t.Parallel()

	content := `#EXTM3U
#EXTINF:-1 group-title="Primary",Channel
#EXTGRP:Secondary
http://192.168.1.10/stream
`

	playlist := newTestParser().Parse(content)
	require.Len(t, playlist.Entries, 1)
	assert.Equal(t, "Primary", playlist.Entries[0].GroupTitle)
}

func TestParser_SkipsEntriesWithoutURL(t *testing.T) {
	t.Parallel()

	content := `#EXTM3U
#EXTINF:-1,Orphaned
#EXTINF:-1,Complete
http://192.168.1.10/stream
`

	playlist := newTestParser().Parse(content)
	require.Len(t, playlist.Entries, 1)
	assert.Equal(t, "Complete", playlist.Entries[0].Name)
}

func TestParser_SkipsEntriesWithoutName(t *testing.T) {
	t.Parallel()

	content := `#EXTM3U
#EXTINF:-1,
http://192.168.1.10/nameless
#EXTINF:-1,Named
http://192.168.1.10/named
`

	playlist := newTestParser().Parse(content)
	require.Len(t, playlist.Entries, 1)
	assert.Equal(t, "Named", playlist.Entries[0].Name)
}

func TestParser_IgnoresCommentsAndBlankLines(t *testing.T) {
	t.Parallel()

	content := `#EXTM3U

# a stray comment
#EXTINF:-1,Channel

#EXTVLCOPT:network-caching=1000
http://192.168.1.10/stream
`

	playlist := newTestParser().Parse(content)
	require.Len(t, playlist.Entries, 1)
	assert.Equal(t, "http://192.168.1.10/stream", playlist.Entries[0].URL)
}

func TestParser_EmptyContent(t *testing.T) {
	t.Parallel()

	assert.Empty(t, newTestParser().Parse("").Entries)
	assert.Empty(t, newTestParser().Parse("#EXTM3U\n").Entries)
}

func TestParser_WindowsLineEndings(t *testing.T) {
	t.Parallel()

	content := "#EXTM3U\r\n#EXTINF:-1,CRLF Channel\r\nhttp://192.168.1.10/stream\r\n"

	playlist := newTestParser().Parse(content)
	require.Len(t, playlist.Entries, 1)
	assert.Equal(t, "CRLF Channel", playlist.Entries[0].Name)
	assert.Equal(t, "http://192.168.1.10/stream", playlist.Entries[0].URL)
}
