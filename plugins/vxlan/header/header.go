package header

import (
	"encoding/binary"
	"fmt"
)

const (
	EthernetLen = 14
	// only the fixed 20 byte part is ever touched, options are skipped
	IPv4Len = 20
	// htype + ptype + hlen + plen + op
	ARPFixedLen = 8
	// sha + spa + tha + tpa for ethernet/ipv4
	ARPEthIPv4Len = 20
	ARPLen        = ARPFixedLen + ARPEthIPv4Len
)

// Ethernet is a view over the first EthernetLen bytes of a frame. Setters
// write through to the underlying buffer.
type Ethernet []byte

func (e Ethernet) Dst() MAC {
	var m MAC
	copy(m[:], e[0:6])
	return m
}

func (e Ethernet) SetDst(m MAC) {
	copy(e[0:6], m[:])
}

func (e Ethernet) Src() MAC {
	var m MAC
	copy(m[:], e[6:12])
	return m
}

func (e Ethernet) SetSrc(m MAC) {
	copy(e[6:12], m[:])
}

func (e Ethernet) EtherType() uint16 {
	return binary.BigEndian.Uint16(e[12:14])
}

func (e Ethernet) SetEtherType(t uint16) {
	binary.BigEndian.PutUint16(e[12:14], t)
}

// RewriteMACs sets source and destination in one go, the pattern used
// whenever a frame is handed to a local pod.
func (e Ethernet) RewriteMACs(src, dst MAC) {
	e.SetSrc(src)
	e.SetDst(dst)
}

func (e Ethernet) String() string {
	return fmt.Sprintf("%s > %s %s", e.Src(), e.Dst(), etherTypeString(e.EtherType()))
}

// IPv4 is a view over the fixed part of an IPv4 header.
type IPv4 []byte

func (h IPv4) Version() uint8 {
	return h[0] >> 4
}

func (h IPv4) IHL() uint8 {
	return h[0] & 0x0f
}

func (h IPv4) TOS() uint8 {
	return h[1]
}

func (h IPv4) TTL() uint8 {
	return h[8]
}

func (h IPv4) Protocol() uint8 {
	return h[9]
}

func (h IPv4) Src() Addr {
	return Addr(binary.BigEndian.Uint32(h[12:16]))
}

func (h IPv4) Dst() Addr {
	return Addr(binary.BigEndian.Uint32(h[16:20]))
}

func (h IPv4) String() string {
	return fmt.Sprintf("%s > %s proto %d", h.Src(), h.Dst(), h.Protocol())
}

// ARP opcodes and hardware type.
const (
	ARPHrdEther  uint16 = 1
	ARPOpRequest uint16 = 1
	ARPOpReply   uint16 = 2
	ARPHLenEther uint8  = 6
	ARPPLenIPv4  uint8  = 4
)

// ARP is a view over an ethernet/ipv4 ARP packet: the fixed header followed by
// sender and target hardware/protocol addresses.
type ARP []byte

func (a ARP) HType() uint16 {
	return binary.BigEndian.Uint16(a[0:2])
}

func (a ARP) PType() uint16 {
	return binary.BigEndian.Uint16(a[2:4])
}

func (a ARP) HLen() uint8 {
	return a[4]
}

func (a ARP) PLen() uint8 {
	return a[5]
}

func (a ARP) Op() uint16 {
	return binary.BigEndian.Uint16(a[6:8])
}

func (a ARP) SetOp(op uint16) {
	binary.BigEndian.PutUint16(a[6:8], op)
}

func (a ARP) SenderHW() MAC {
	var m MAC
	copy(m[:], a[8:14])
	return m
}

func (a ARP) SetSenderHW(m MAC) {
	copy(a[8:14], m[:])
}

func (a ARP) SenderProto() Addr {
	return Addr(binary.BigEndian.Uint32(a[14:18]))
}

func (a ARP) SetSenderProto(ip Addr) {
	binary.BigEndian.PutUint32(a[14:18], uint32(ip))
}

func (a ARP) TargetHW() MAC {
	var m MAC
	copy(m[:], a[18:24])
	return m
}

func (a ARP) SetTargetHW(m MAC) {
	copy(a[18:24], m[:])
}

func (a ARP) TargetProto() Addr {
	return Addr(binary.BigEndian.Uint32(a[24:28]))
}

func (a ARP) SetTargetProto(ip Addr) {
	binary.BigEndian.PutUint32(a[24:28], uint32(ip))
}

// IsEthernetIPv4 reports whether the fixed header describes an ethernet/ipv4
// binding, the only one this datapath answers.
func (a ARP) IsEthernetIPv4() bool {
	return a.HType() == ARPHrdEther &&
		a.PType() == EthPIP &&
		a.HLen() == ARPHLenEther &&
		a.PLen() == ARPPLenIPv4
}
