package api

import (
	"math"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/streamscan/stream-scanner/internal/storage"
)

// uncategorizedGroup is the display name for channels without a group.
const uncategorizedGroup = "Uncategorized"

// List groups handler - aggregates per-group channel counts and online
// ratios, largest group first.
func (s *Server) listGroupsHandler(c *gin.Context) {
	channels, err := s.repository.FindAll(storage.Filters{})
	if err != nil {
		s.logger.Errorw("Failed to list groups", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to read channels",
		})
		return
	}

	byName := make(map[string]*GroupStatistics)
	for _, ch := range channels {
		name := ch.Group
		if name == "" {
			name = uncategorizedGroup
		}

		stats, ok := byName[name]
		if !ok {
			stats = &GroupStatistics{Name: name}
			byName[name] = stats
		}
		stats.Total++
		if ch.IsOnline {
			stats.Online++
		} else {
			stats.Offline++
		}
	}

	groups := make([]GroupStatistics, 0, len(byName))
	for _, stats := range byName {
		stats.OnlinePercentage = math.Round(float64(stats.Online)/float64(stats.Total)*1000) / 10
		groups = append(groups, *stats)
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Total != groups[j].Total {
			return groups[i].Total > groups[j].Total
		}
		return groups[i].Name < groups[j].Name
	})

	c.JSON(http.StatusOK, gin.H{
		"groups": groups,
		"count":  len(groups),
	})
}
