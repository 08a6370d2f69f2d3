package scanner

import (
	"context"
	"fmt"
	"net/netip"
	"strings"
)

const (
	templatePlaceholder = "{ip}"
	maxTemplateRange    = 1024
)

// TemplateStrategy substitutes each address of an IPv4 range into a URL
// pattern. Construction fails on a missing placeholder, non-private
// addresses, an inverted range, or a range larger than maxTemplateRange.
type TemplateStrategy struct {
	baseURL   string
	addresses []netip.Addr
}

// NewTemplateStrategy validates the pattern and range and materializes the
// address list.
func NewTemplateStrategy(baseURL, startIP, endIP string) (*TemplateStrategy, error) {
	if !strings.Contains(baseURL, templatePlaceholder) {
		return nil, fmt.Errorf("base_url must contain placeholder %s", templatePlaceholder)
	}

	start, err := netip.ParseAddr(startIP)
	if err != nil {
		return nil, fmt.Errorf("invalid start_ip %q: %w", startIP, err)
	}
	end, err := netip.ParseAddr(endIP)
	if err != nil {
		return nil, fmt.Errorf("invalid end_ip %q: %w", endIP, err)
	}
	if !start.Is4() || !end.Is4() {
		return nil, fmt.Errorf("start_ip and end_ip must be IPv4 addresses")
	}
	if start.Compare(end) > 0 {
		return nil, fmt.Errorf("start_ip must be less than or equal to end_ip")
	}

	addresses := make([]netip.Addr, 0, maxTemplateRange)
	for addr := start; addr.Compare(end) <= 0; addr = addr.Next() {
		if !addr.IsPrivate() {
			return nil, fmt.Errorf("address %s is not in a private (RFC1918) range", addr)
		}
		addresses = append(addresses, addr)
		if len(addresses) > maxTemplateRange {
			return nil, fmt.Errorf("IP range exceeds maximum allowed size of %d", maxTemplateRange)
		}
	}

	return &TemplateStrategy{baseURL: baseURL, addresses: addresses}, nil
}

// EstimateTargetCount returns the number of addresses in the range.
func (s *TemplateStrategy) EstimateTargetCount() int {
	return len(s.addresses)
}

// GenerateTargets yields one URL per address, in ascending address order.
func (s *TemplateStrategy) GenerateTargets(ctx context.Context) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		for _, addr := range s.addresses {
			url := strings.ReplaceAll(s.baseURL, templatePlaceholder, addr.String())
			select {
			case out <- url:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
