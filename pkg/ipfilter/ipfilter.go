// Package ipfilter matches decoded RDR addresses against an ordered list of
// CIDR networks, the way the transaction-usage path decides which records
// to drop.
package ipfilter

import (
	"encoding/binary"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// FilteredSrc and FilteredDst are the bits Filtered returns, matching the
// reference is_filtered() bitmask: bit 0 for a source match, bit 1 for a
// destination match.
const (
	FilteredSrc = 1 << 0
	FilteredDst = 1 << 1
)

// net32 is a network/mask pair stored host-order, as the reference
// implementation keeps it.
type net32 struct {
	network uint32
	mask    uint32
}

// List is an ordered set of CIDR networks to match addresses against.
type List struct {
	nets []net32
}

// ParseList parses a comma-separated list of "a.b.c.d[/len]" entries into a
// List. A bare dotted quad with no prefix length is treated as a /32 host
// route.
func ParseList(spec string) (List, error) {
	var l List
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return l, nil
	}
	for _, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		n, err := parseEntry(entry)
		if err != nil {
			return List{}, fmt.Errorf("ipfilter: %q: %w", entry, err)
		}
		l.nets = append(l.nets, n)
	}
	return l, nil
}

func parseEntry(entry string) (net32, error) {
	cidr := entry
	if !strings.Contains(entry, "/") {
		cidr = entry + "/32"
	}
	ip, ipnet, err := net.ParseCIDR(cidr)
	if err != nil {
		return net32{}, err
	}
	ip4 := ip.To4()
	if ip4 == nil {
		return net32{}, fmt.Errorf("not an IPv4 address")
	}
	ones, _ := ipnet.Mask.Size()
	network := binary.BigEndian.Uint32(ip4)
	mask := maskForPrefix(ones)
	return net32{network: network & mask, mask: mask}, nil
}

// maskForPrefix builds a host-order mask with the convention
// mask = ~((1 << (32 - len)) - 1).
func maskForPrefix(prefixLen int) uint32 {
	if prefixLen <= 0 {
		return 0
	}
	if prefixLen >= 32 {
		return 0xffffffff
	}
	return ^uint32(0) << (32 - prefixLen)
}

// Filtered returns a bitmask of FilteredSrc/FilteredDst for whichever of
// src/dst (raw big-endian wire octets, as produced by rdr.FieldReader.IPv4)
// matches any network in the list.
func (l List) Filtered(src, dst [4]byte) uint8 {
	var mask uint8
	srcAddr := binary.BigEndian.Uint32(src[:])
	dstAddr := binary.BigEndian.Uint32(dst[:])
	for _, n := range l.nets {
		if srcAddr&n.mask == n.network {
			mask |= FilteredSrc
		}
		if dstAddr&n.mask == n.network {
			mask |= FilteredDst
		}
	}
	return mask
}

// Empty reports whether the list has no entries, the common case of no
// filtering configured.
func (l List) Empty() bool {
	return len(l.nets) == 0
}

// String renders the list back into its "a.b.c.d/len,..." form, mostly
// useful for startup logging.
func (l List) String() string {
	parts := make([]string, 0, len(l.nets))
	for _, n := range l.nets {
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], n.network)
		ones := prefixFromMask(n.mask)
		parts = append(parts, fmt.Sprintf("%d.%d.%d.%d/%s", b[0], b[1], b[2], b[3], strconv.Itoa(ones)))
	}
	return strings.Join(parts, ",")
}

func prefixFromMask(mask uint32) int {
	n := 0
	for i := 31; i >= 0; i-- {
		if mask&(1<<uint(i)) == 0 {
			break
		}
		n++
	}
	return n
}
