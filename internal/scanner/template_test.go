package scanner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectTargets(t *testing.T, s ScanStrategy) []string {
	t.Helper()

	var targets []string
	for url := range s.GenerateTargets(context.Background()) {
		targets = append(targets, url)
	}
	return targets
}

func TestTemplateStrategy_GeneratesRangeInOrder(t *testing.T) {
	t.Parallel()

	strategy, err := NewTemplateStrategy("http://{ip}:8080/stream", "192.168.1.1", "192.168.1.4")
	require.NoError(t, err)

	assert.Equal(t, 4, strategy.EstimateTargetCount())
	assert.Equal(t, []string{
		"http://192.168.1.1:8080/stream",
		"http://192.168.1.2:8080/stream",
		"http://192.168.1.3:8080/stream",
		"http://192.168.1.4:8080/stream",
	}, collectTargets(t, strategy))
}

func TestTemplateStrategy_SingleAddressRange(t *testing.T) {
	t.Parallel()

	strategy, err := NewTemplateStrategy("rtsp://{ip}/live", "10.0.0.5", "10.0.0.5")
	require.NoError(t, err)

	assert.Equal(t, []string{"rtsp://10.0.0.5/live"}, collectTargets(t, strategy))
}

func TestTemplateStrategy_SubstitutesEveryPlaceholder(t *testing.T) {
	t.Parallel()

	strategy, err := NewTemplateStrategy("http://{ip}:8080/{ip}.ts", "10.1.2.3", "10.1.2.3")
	require.NoError(t, err)

	assert.Equal(t, []string{"http://10.1.2.3:8080/10.1.2.3.ts"}, collectTargets(t, strategy))
}

func TestTemplateStrategy_RejectsInvalidInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		baseURL string
		startIP string
		endIP   string
		wantErr string
	}{
		{
			name:    "missing placeholder",
			baseURL: "http://192.168.1.1:8080/stream",
			startIP: "192.168.1.1",
			endIP:   "192.168.1.2",
			wantErr: "placeholder",
		},
		{
			name:    "malformed start ip",
			baseURL: "http://{ip}/stream",
			startIP: "not-an-ip",
			endIP:   "192.168.1.2",
			wantErr: "invalid start_ip",
		},
		{
			name:    "malformed end ip",
			baseURL: "http://{ip}/stream",
			startIP: "192.168.1.1",
			endIP:   "300.0.0.1",
			wantErr: "invalid end_ip",
		},
		{
			name:    "inverted range",
			baseURL: "http://{ip}/stream",
			startIP: "192.168.1.10",
			endIP:   "192.168.1.1",
			wantErr: "less than or equal",
		},
		{
			name:    "public address",
			baseURL: "http://{ip}/stream",
			startIP: "8.8.8.8",
			endIP:   "8.8.8.9",
			wantErr: "private",
		},
		{
			name:    "ipv6 address",
			baseURL: "http://{ip}/stream",
			startIP: "fd00::1",
			endIP:   "fd00::2",
			wantErr: "IPv4",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := NewTemplateStrategy(tc.baseURL, tc.startIP, tc.endIP)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestTemplateStrategy_RejectsOversizedRange(t *testing.T) {
	t.Parallel()

	// 10.0.0.0 through 10.0.4.255 is 1280 addresses.
	_, err := NewTemplateStrategy("http://{ip}/stream", "10.0.0.0", "10.0.4.255")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "maximum allowed size")
}

func TestTemplateStrategy_GenerateStopsOnCancel(t *testing.T) {
	t.Parallel()

	strategy, err := NewTemplateStrategy("http://{ip}/stream", "10.0.0.1", "10.0.0.100")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	targets := strategy.GenerateTargets(ctx)

	<-targets
	cancel()

	// The generator goroutine must close the channel instead of blocking
	// on the abandoned consumer.
	var drained int
	for range targets {
		drained++
	}
	assert.Less(t, drained, 99)
}
