package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMulticastStrategy_CrossProduct(t *testing.T) {
	t.Parallel()

	strategy, err := NewMulticastStrategy("udp", []string{"239.0.0.1-239.0.0.2"}, []int{5000, 5001})
	require.NoError(t, err)

	assert.Equal(t, 4, strategy.EstimateTargetCount())
	assert.Equal(t, []string{
		"udp://239.0.0.1:5000",
		"udp://239.0.0.1:5001",
		"udp://239.0.0.2:5000",
		"udp://239.0.0.2:5001",
	}, collectTargets(t, strategy))
}

func TestMulticastStrategy_MultipleRanges(t *testing.T) {
	t.Parallel()

	strategy, err := NewMulticastStrategy("rtp",
		[]string{"239.1.1.1-239.1.1.3", "239.2.2.2"}, []int{1234})
	require.NoError(t, err)

	assert.Equal(t, 4, strategy.EstimateTargetCount())
	assert.Equal(t, []string{
		"rtp://239.1.1.1:1234",
		"rtp://239.1.1.2:1234",
		"rtp://239.1.1.3:1234",
		"rtp://239.2.2.2:1234",
	}, collectTargets(t, strategy))
}

func TestMulticastStrategy_SingletonRange(t *testing.T) {
	t.Parallel()

	strategy, err := NewMulticastStrategy("udp", []string{"224.0.0.251"}, []int{5353})
	require.NoError(t, err)

	addrs := strategy.Addresses()
	require.Len(t, addrs, 1)
	assert.Equal(t, "224.0.0.251", addrs[0].String())
	assert.Equal(t, "udp://224.0.0.251:5353", strategy.TargetURL(addrs[0], 5353))
}

func TestMulticastStrategy_NormalizesProtocolCase(t *testing.T) {
	t.Parallel()

	strategy, err := NewMulticastStrategy("RTP", []string{"239.0.0.1"}, []int{5000})
	require.NoError(t, err)
	assert.Equal(t, "rtp", strategy.Protocol())
}

func TestMulticastStrategy_PortsReturnsCopy(t *testing.T) {
	t.Parallel()

	strategy, err := NewMulticastStrategy("udp", []string{"239.0.0.1"}, []int{5000, 5001})
	require.NoError(t, err)

	ports := strategy.Ports()
	ports[0] = 9999
	assert.Equal(t, []int{5000, 5001}, strategy.Ports())
}

func TestMulticastStrategy_RejectsInvalidInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		protocol string
		ipRanges []string
		ports    []int
		wantErr  string
	}{
		{
			name:     "unsupported protocol",
			protocol: "http",
			ipRanges: []string{"239.0.0.1"},
			ports:    []int{5000},
			wantErr:  "unsupported multicast protocol",
		},
		{
			name:     "empty ranges",
			protocol: "udp",
			ipRanges: nil,
			ports:    []int{5000},
			wantErr:  "at least one multicast IP range",
		},
		{
			name:     "empty ports",
			protocol: "udp",
			ipRanges: []string{"239.0.0.1"},
			ports:    nil,
			wantErr:  "at least one port",
		},
		{
			name:     "port too low",
			protocol: "udp",
			ipRanges: []string{"239.0.0.1"},
			ports:    []int{0},
			wantErr:  "out of valid range",
		},
		{
			name:     "port too high",
			protocol: "udp",
			ipRanges: []string{"239.0.0.1"},
			ports:    []int{65536},
			wantErr:  "out of valid range",
		},
		{
			name:     "non-multicast range",
			protocol: "udp",
			ipRanges: []string{"192.168.1.1-192.168.1.10"},
			ports:    []int{5000},
			wantErr:  "multicast block",
		},
		{
			name:     "inverted range",
			protocol: "udp",
			ipRanges: []string{"239.0.0.10-239.0.0.1"},
			ports:    []int{5000},
			wantErr:  "start must be <= end",
		},
		{
			name:     "malformed range",
			protocol: "udp",
			ipRanges: []string{"not-an-ip"},
			ports:    []int{5000},
			wantErr:  "invalid multicast IP range",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := NewMulticastStrategy(tc.protocol, tc.ipRanges, tc.ports)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
