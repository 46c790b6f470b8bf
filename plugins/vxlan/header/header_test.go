package header

import (
	"net"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
)

func serialize(t *testing.T, ls ...gopacket.SerializableLayer) []byte {
	buf := gopacket.NewSerializeBuffer()
	err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}, ls...)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	return buf.Bytes()
}

func udpFrame(t *testing.T) []byte {
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0, 0, 0, 0, 0, 1},
		DstMAC:       net.HardwareAddr{0, 0, 0, 0, 0, 2},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.IPv4(10, 0, 0, 2),
		DstIP:    net.IPv4(10, 0, 1, 2),
	}
	udp := &layers.UDP{SrcPort: 1234, DstPort: 5678}
	_ = udp.SetNetworkLayerForChecksum(ip)
	return serialize(t, eth, ip, udp, gopacket.Payload([]byte("ABCDEABCDE")))
}

func TestParseIPv4(t *testing.T) {
	test := assert.New(t)
	frame := udpFrame(t)

	/********* test views *********/
	eth, ip, ok := ParseIPv4(frame)
	test.True(ok)
	test.Equal(MAC{0, 0, 0, 0, 0, 1}, eth.Src())
	test.Equal(MAC{0, 0, 0, 0, 0, 2}, eth.Dst())
	test.Equal(EthPIP, eth.EtherType())
	test.Equal(uint8(4), ip.Version())
	test.Equal(uint8(5), ip.IHL())
	test.Equal(uint8(64), ip.TTL())
	test.Equal(uint8(17), ip.Protocol())
	test.Equal(MustParseAddr("10.0.0.2"), ip.Src())
	test.Equal(MustParseAddr("10.0.1.2"), ip.Dst())
	test.Equal("10.0.0.2 > 10.0.1.2 proto 17", ip.String())

	/********* test write through *********/
	eth.RewriteMACs(MustParseMAC("aa:aa:aa:aa:aa:aa"), MustParseMAC("bb:bb:bb:bb:bb:bb"))
	pkt := gopacket.NewPacket(frame, layers.LayerTypeEthernet, gopacket.Default)
	ethL := pkt.Layer(layers.LayerTypeEthernet).(*layers.Ethernet)
	test.Equal("aa:aa:aa:aa:aa:aa", ethL.SrcMAC.String())
	test.Equal("bb:bb:bb:bb:bb:bb", ethL.DstMAC.String())
	test.NotNil(pkt.Layer(layers.LayerTypeUDP))

	/********* test short and foreign frames *********/
	_, _, ok = ParseIPv4(frame[:EthernetLen+IPv4Len-1])
	test.False(ok)
	_, _, ok = ParseIPv4(nil)
	test.False(ok)

	foreign := append([]byte(nil), frame...)
	Ethernet(foreign).SetEtherType(0x86dd)
	_, _, ok = ParseIPv4(foreign)
	test.False(ok)

	et, ok := EtherType(foreign)
	test.True(ok)
	test.Equal(uint16(0x86dd), et)
	_, ok = EtherType(foreign[:3])
	test.False(ok)
}

func TestParseARP(t *testing.T) {
	test := assert.New(t)
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x0a, 0, 0, 0, 0, 1},
		DstMAC:       net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
		EthernetType: layers.EthernetTypeARP,
	}
	arp := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPRequest,
		SourceHwAddress:   []byte{0x0a, 0, 0, 0, 0, 1},
		SourceProtAddress: []byte{10, 0, 0, 2},
		DstHwAddress:      []byte{0, 0, 0, 0, 0, 0},
		DstProtAddress:    []byte{10, 0, 0, 1},
	}
	frame := serialize(t, eth, arp)

	e, a, ok := ParseARP(frame)
	test.True(ok)
	test.True(e.Dst().IsBroadcast())
	test.Equal(EthPARP, e.EtherType())
	test.True(a.IsEthernetIPv4())
	test.Equal(ARPOpRequest, a.Op())
	test.Equal(MAC{0x0a, 0, 0, 0, 0, 1}, a.SenderHW())
	test.Equal(MustParseAddr("10.0.0.2"), a.SenderProto())
	test.Equal(MAC{}, a.TargetHW())
	test.Equal(MustParseAddr("10.0.0.1"), a.TargetProto())

	/********* test setters land on the wire offsets *********/
	a.SetOp(ARPOpReply)
	a.SetSenderHW(MustParseMAC("de:ad:be:ef:c0:de"))
	a.SetSenderProto(MustParseAddr("10.0.0.1"))
	a.SetTargetHW(MAC{0x0a, 0, 0, 0, 0, 1})
	a.SetTargetProto(MustParseAddr("10.0.0.2"))
	test.Equal([]byte{0, 2}, frame[20:22])
	test.Equal([]byte{0xde, 0xad, 0xbe, 0xef, 0xc0, 0xde}, frame[22:28])
	test.Equal([]byte{10, 0, 0, 1}, frame[28:32])
	test.Equal([]byte{0x0a, 0, 0, 0, 0, 1}, frame[32:38])
	test.Equal([]byte{10, 0, 0, 2}, frame[38:42])

	_, _, ok = ParseARP(frame[:41])
	test.False(ok)
}

func TestAddrAndMAC(t *testing.T) {
	test := assert.New(t)

	a := MustParseAddr("192.168.1.5")
	test.Equal(Addr(0xc0a80105), a)
	test.Equal([4]byte{192, 168, 1, 5}, a.As4())
	test.Equal(a, AddrFrom4(a.As4()))
	test.Equal("192.168.1.5", a.IP().String())
	b, ok := AddrFromIP(net.ParseIP("192.168.1.5"))
	test.True(ok)
	test.Equal(a, b)
	_, ok = AddrFromIP(net.ParseIP("fe80::1"))
	test.False(ok)

	var c Addr
	test.Nil(c.UnmarshalText([]byte("10.0.0.4")))
	test.Equal("10.0.0.4", c.String())
	test.NotNil(c.UnmarshalText([]byte("10.0.0.400")))

	m, err := ParseMAC("de:ad:be:ef:c0:de")
	test.Nil(err)
	test.Equal("de:ad:be:ef:c0:de", m.String())
	test.False(m.IsBroadcast())
	test.True(BroadcastMAC.IsBroadcast())
	_, err = ParseMAC("00:00:00:00:fe:80:00:00:00:00:00:00:02:00:5e:10:00:00:00:01")
	test.NotNil(err)
	_, err = MACFromHardwareAddr(net.HardwareAddr{1, 2, 3})
	test.NotNil(err)
}
