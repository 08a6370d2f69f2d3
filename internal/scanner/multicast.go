package scanner

import (
	"context"
	"fmt"
	"net/netip"
	"strings"
)

var supportedMulticastProtocols = map[string]bool{
	"udp": true,
	"rtp": true,
}

type addrRange struct {
	start netip.Addr
	end   netip.Addr
}

func (r addrRange) count() int {
	// Both ends are IPv4 within 224.0.0.0/4, so the difference fits an int.
	s := r.start.As4()
	e := r.end.As4()
	return int(be32(e)-be32(s)) + 1
}

func be32(b [4]byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// MulticastStrategy enumerates the cross-product of multicast address
// ranges with a port list as protocol://address:port URLs. Construction
// fails on an unsupported protocol, empty range or port lists, inverted
// ranges, non-multicast addresses, or out-of-range ports.
type MulticastStrategy struct {
	protocol string
	ranges   []addrRange
	ports    []int
}

// NewMulticastStrategy validates the configuration. Ranges are given as
// "start-end" pairs or singleton addresses and must lie within 224.0.0.0/4.
func NewMulticastStrategy(protocol string, ipRanges []string, ports []int) (*MulticastStrategy, error) {
	protocol = strings.ToLower(protocol)
	if !supportedMulticastProtocols[protocol] {
		return nil, fmt.Errorf("unsupported multicast protocol %q (supported: rtp, udp)", protocol)
	}
	if len(ipRanges) == 0 {
		return nil, fmt.Errorf("at least one multicast IP range must be provided")
	}
	if len(ports) == 0 {
		return nil, fmt.Errorf("at least one port must be provided for multicast scanning")
	}

	ranges := make([]addrRange, 0, len(ipRanges))
	for _, def := range ipRanges {
		r, err := parseMulticastRange(def)
		if err != nil {
			return nil, err
		}
		ranges = append(ranges, r)
	}

	validated := make([]int, 0, len(ports))
	for _, port := range ports {
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("port %d is out of valid range (1-65535)", port)
		}
		validated = append(validated, port)
	}

	return &MulticastStrategy{protocol: protocol, ranges: ranges, ports: validated}, nil
}

func parseMulticastRange(def string) (addrRange, error) {
	var startRaw, endRaw string
	if idx := strings.Index(def, "-"); idx >= 0 {
		startRaw = strings.TrimSpace(def[:idx])
		endRaw = strings.TrimSpace(def[idx+1:])
	} else {
		startRaw = strings.TrimSpace(def)
		endRaw = startRaw
	}

	start, err := netip.ParseAddr(startRaw)
	if err != nil {
		return addrRange{}, fmt.Errorf("invalid multicast IP range %q: %w", def, err)
	}
	end, err := netip.ParseAddr(endRaw)
	if err != nil {
		return addrRange{}, fmt.Errorf("invalid multicast IP range %q: %w", def, err)
	}
	if !start.Is4() || !end.Is4() {
		return addrRange{}, fmt.Errorf("multicast IP range %q must use IPv4 addresses", def)
	}
	if start.Compare(end) > 0 {
		return addrRange{}, fmt.Errorf("multicast IP range start must be <= end: %q", def)
	}
	if !start.IsMulticast() || !end.IsMulticast() {
		return addrRange{}, fmt.Errorf("IP range %q must be within the multicast block (224.0.0.0/4)", def)
	}
	return addrRange{start: start, end: end}, nil
}

// Protocol returns the multicast protocol identifier (udp or rtp).
func (s *MulticastStrategy) Protocol() string { return s.protocol }

// Ports returns the configured port list in input order.
func (s *MulticastStrategy) Ports() []int {
	ports := make([]int, len(s.ports))
	copy(ports, s.ports)
	return ports
}

// EstimateTargetCount returns addresses x ports across all ranges.
func (s *MulticastStrategy) EstimateTargetCount() int {
	total := 0
	for _, r := range s.ranges {
		total += r.count()
	}
	return total * len(s.ports)
}

// Addresses returns every multicast address covered by the configured
// ranges, in range order.
func (s *MulticastStrategy) Addresses() []netip.Addr {
	addrs := make([]netip.Addr, 0)
	for _, r := range s.ranges {
		for addr := r.start; addr.Compare(r.end) <= 0; addr = addr.Next() {
			addrs = append(addrs, addr)
		}
	}
	return addrs
}

// TargetURL forms the probe URL for one address/port pair.
func (s *MulticastStrategy) TargetURL(addr netip.Addr, port int) string {
	return fmt.Sprintf("%s://%s:%d", s.protocol, addr, port)
}

// GenerateTargets yields the full address x port matrix in range order.
func (s *MulticastStrategy) GenerateTargets(ctx context.Context) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		for _, r := range s.ranges {
			for addr := r.start; addr.Compare(r.end) <= 0; addr = addr.Next() {
				for _, port := range s.ports {
					select {
					case out <- s.TargetURL(addr, port):
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()
	return out
}
