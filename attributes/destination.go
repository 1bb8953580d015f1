package attributes

import "strings"

// Destination is a bitmask of outbound payload types an attribute may appear in.
type Destination uint8

// Destination bits.
const (
	None         Destination = 0x00
	TransEvent   Destination = 0x01
	TransTrace   Destination = 0x02
	ErrorEvent   Destination = 0x04
	BrowserEvent Destination = 0x08
	SpanEvent    Destination = 0x10
	TransSegment Destination = 0x20
)

// Composite destinations.
const (
	TransCommon  = TransEvent | TransTrace | ErrorEvent
	TransScope   = TransCommon | BrowserEvent
	SegmentScope = SpanEvent | TransSegment
	All          = TransScope | SegmentScope
)

// destinationNames maps each single bit to its configuration section name.
var destinationNames = []struct {
	dest Destination
	name string
}{
	{TransEvent, "transaction_events"},
	{TransTrace, "transaction_tracer"},
	{ErrorEvent, "error_collector"},
	{BrowserEvent, "browser_monitoring"},
	{SpanEvent, "span_events"},
	{TransSegment, "transaction_segments"},
}

// Has reports whether d shares any bit with other.
func (d Destination) Has(other Destination) bool {
	return d&other != 0
}

// String returns the configuration names of the set bits joined by "|".
func (d Destination) String() string {
	if d == None {
		return "none"
	}
	var parts []string
	for _, dn := range destinationNames {
		if d&dn.dest != 0 {
			parts = append(parts, dn.name)
		}
	}
	return strings.Join(parts, "|")
}

// Each calls fn for every single-bit destination set in d, lowest bit first.
func (d Destination) Each(fn func(Destination)) {
	for _, dn := range destinationNames {
		if d&dn.dest != 0 {
			fn(dn.dest)
		}
	}
}
