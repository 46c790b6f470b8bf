package classifier

import (
	"net"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	. "github.com/onsi/gomega"

	"vxlancni/plugins/vxlan/header"
	bpfmap "vxlancni/plugins/vxlan/map"
)

var (
	podSrc    = header.MustParseAddr("10.0.0.2")
	podLocal  = header.MustParseAddr("10.0.0.4")
	podRemote = header.MustParseAddr("10.0.1.2")
	outside   = header.MustParseAddr("8.8.4.4")
	thisNode  = header.MustParseAddr("192.168.1.4")
	otherNode = header.MustParseAddr("192.168.1.5")

	hostMAC  = header.MustParseMAC("6e:2a:51:09:3c:1e")
	podMAC   = header.MustParseMAC("0a:58:0a:00:00:04")
	srcMAC   = header.MustParseMAC("0a:58:0a:00:00:02")
	gwMAC    = header.MustParseMAC("de:ad:be:ef:c0:de")
	otherMAC = header.MustParseMAC("02:00:00:00:00:99")
)

const (
	srcVethIfIndex   = 11
	localHostIfIndex = 7
	localPodIfIndex  = 3
	tunnelIfIndex    = 4
	uplinkIfIndex    = 2
)

func serialize(t *testing.T, l ...gopacket.SerializableLayer) []byte {
	buf := gopacket.NewSerializeBuffer()
	err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}, l...)
	Expect(err).NotTo(HaveOccurred())
	return buf.Bytes()
}

func udpFrame(t *testing.T, src, dst header.Addr, ethSrc, ethDst header.MAC) []byte {
	eth := &layers.Ethernet{
		SrcMAC:       ethSrc.HardwareAddr(),
		DstMAC:       ethDst.HardwareAddr(),
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Flags:    layers.IPv4DontFragment,
		SrcIP:    src.IP(),
		DstIP:    dst.IP(),
		Protocol: layers.IPProtocolUDP,
	}
	udp := &layers.UDP{SrcPort: 1234, DstPort: 5678}
	udp.SetNetworkLayerForChecksum(ip)
	return serialize(t, eth, ip, udp, gopacket.Payload([]byte("hello from the overlay")))
}

func ipv6Frame(t *testing.T) []byte {
	eth := &layers.Ethernet{
		SrcMAC:       srcMAC.HardwareAddr(),
		DstMAC:       gwMAC.HardwareAddr(),
		EthernetType: layers.EthernetTypeIPv6,
	}
	ip := &layers.IPv6{
		Version:    6,
		HopLimit:   64,
		NextHeader: layers.IPProtocolUDP,
		SrcIP:      net.ParseIP("fd00::2"),
		DstIP:      net.ParseIP("fd00::4"),
	}
	udp := &layers.UDP{SrcPort: 1234, DstPort: 5678}
	udp.SetNetworkLayerForChecksum(ip)
	return serialize(t, eth, ip, udp, gopacket.Payload([]byte("v6")))
}

func arpFrame(t *testing.T, ethDst header.MAC, op uint16, targetIP header.Addr) []byte {
	eth := &layers.Ethernet{
		SrcMAC:       srcMAC.HardwareAddr(),
		DstMAC:       ethDst.HardwareAddr(),
		EthernetType: layers.EthernetTypeARP,
	}
	arp := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         op,
		SourceHwAddress:   srcMAC.HardwareAddr(),
		SourceProtAddress: podSrc.IP(),
		DstHwAddress:      make([]byte, 6),
		DstProtAddress:    targetIP.IP(),
	}
	return serialize(t, eth, arp)
}

// testTables puts podLocal in both the endpoint and the pod location table,
// podRemote on otherNode only.
func testTables(order bpfmap.KeyOrder) *bpfmap.MemoryTables {
	mt := bpfmap.NewMemoryTables(order)
	mt.SetEndpoint(podLocal, bpfmap.EndpointRecord{
		HostIfIndex: localHostIfIndex,
		PodIfIndex:  localPodIfIndex,
		PodMAC:      podMAC,
		HostMAC:     hostMAC,
	})
	mt.SetPodLocation(podLocal, bpfmap.PodLocationRecord{NodeIP: thisNode})
	mt.SetPodLocation(podSrc, bpfmap.PodLocationRecord{NodeIP: thisNode})
	mt.SetPodLocation(podRemote, bpfmap.PodLocationRecord{NodeIP: otherNode})
	mt.SetLocalDevice(bpfmap.DeviceTunnel, tunnelIfIndex)
	mt.SetLocalDevice(bpfmap.DeviceUplink, uplinkIfIndex)
	return mt
}

func newClassifier(cfg Config, mt *bpfmap.MemoryTables) *Classifier {
	c, err := New(cfg, mt.Tables())
	Expect(err).NotTo(HaveOccurred())
	return c
}

func copyOf(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func decodeEth(frame []byte) *layers.Ethernet {
	pkt := gopacket.NewPacket(frame, layers.LayerTypeEthernet, gopacket.Default)
	l := pkt.Layer(layers.LayerTypeEthernet)
	Expect(l).NotTo(BeNil())
	return l.(*layers.Ethernet)
}
