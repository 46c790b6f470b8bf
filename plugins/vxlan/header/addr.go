package header

import (
	"encoding/binary"
	"net"
	"strconv"

	"github.com/pkg/errors"

	"vxlancni/utils"
)

// Addr is an IPv4 address in its numeric form, 10.0.0.4 == 0x0a000004.
// Everything above the wire works with Addr; table keys are derived from it
// by an explicit KeyOrder.
type Addr uint32

func AddrFrom4(b [4]byte) Addr {
	return Addr(binary.BigEndian.Uint32(b[:]))
}

func AddrFromIP(ip net.IP) (Addr, bool) {
	v4 := ip.To4()
	if v4 == nil {
		return 0, false
	}
	return Addr(binary.BigEndian.Uint32(v4)), true
}

func ParseAddr(s string) (Addr, error) {
	v, err := utils.InetIpToUInt32(s)
	if err != nil {
		return 0, err
	}
	return Addr(v), nil
}

func MustParseAddr(s string) Addr {
	a, err := ParseAddr(s)
	if err != nil {
		panic(err)
	}
	return a
}

// As4 returns the address in wire (network) byte order.
func (a Addr) As4() [4]byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(a))
	return b
}

func (a Addr) IP() net.IP {
	b := a.As4()
	return net.IPv4(b[0], b[1], b[2], b[3]).To4()
}

func (a Addr) String() string {
	return utils.InetUint32ToIp(uint32(a))
}

func (a Addr) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Addr) UnmarshalText(text []byte) error {
	v, err := ParseAddr(string(text))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// MAC is a 48 bit hardware address stored by value so that copying it never
// allocates.
type MAC [6]byte

var BroadcastMAC = MAC{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

func ParseMAC(s string) (MAC, error) {
	var m MAC
	hw, err := net.ParseMAC(s)
	if err != nil {
		return m, errors.Wrapf(err, "invalid mac %q", s)
	}
	if len(hw) != len(m) {
		return m, errors.Errorf("mac %q is not 48 bits long", s)
	}
	copy(m[:], hw)
	return m, nil
}

func MustParseMAC(s string) MAC {
	m, err := ParseMAC(s)
	if err != nil {
		panic(err)
	}
	return m
}

func MACFromHardwareAddr(hw net.HardwareAddr) (MAC, error) {
	var m MAC
	if len(hw) != len(m) {
		return m, errors.Errorf("hardware address %s is not 48 bits long", hw)
	}
	copy(m[:], hw)
	return m, nil
}

func (m MAC) IsBroadcast() bool {
	return m == BroadcastMAC
}

func (m MAC) HardwareAddr() net.HardwareAddr {
	return net.HardwareAddr(m[:])
}

func (m MAC) String() string {
	return net.HardwareAddr(m[:]).String()
}

func (m MAC) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *MAC) UnmarshalText(text []byte) error {
	v, err := ParseMAC(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// EtherType values the datapath cares about.
const (
	EthPIP  uint16 = 0x0800
	EthPARP uint16 = 0x0806
)

func etherTypeString(t uint16) string {
	switch t {
	case EthPIP:
		return "ipv4"
	case EthPARP:
		return "arp"
	}
	return "0x" + strconv.FormatUint(uint64(t), 16)
}
