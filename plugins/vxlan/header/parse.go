package header

// ParseIPv4 returns views over the ethernet and IPv4 headers of frame. ok is
// false when the frame is too short or does not carry IPv4; callers treat that
// as "not ours" and let the frame pass.
func ParseIPv4(frame []byte) (eth Ethernet, ip IPv4, ok bool) {
	if len(frame) < EthernetLen+IPv4Len {
		return nil, nil, false
	}
	eth = Ethernet(frame[:EthernetLen])
	if eth.EtherType() != EthPIP {
		return nil, nil, false
	}
	return eth, IPv4(frame[EthernetLen : EthernetLen+IPv4Len]), true
}

// ParseARP only checks that an ethernet header and a full ethernet/ipv4 ARP
// body fit in frame. Protocol checks are left to the caller.
func ParseARP(frame []byte) (eth Ethernet, arp ARP, ok bool) {
	if len(frame) < EthernetLen+ARPLen {
		return nil, nil, false
	}
	return Ethernet(frame[:EthernetLen]), ARP(frame[EthernetLen : EthernetLen+ARPLen]), true
}

// EtherType peeks at the ethertype without validating anything else.
func EtherType(frame []byte) (uint16, bool) {
	if len(frame) < EthernetLen {
		return 0, false
	}
	return Ethernet(frame[:EthernetLen]).EtherType(), true
}
