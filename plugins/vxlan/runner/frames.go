package runner

import (
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/pkg/errors"

	"vxlancni/plugins/vxlan/header"
)

// ProbeFrame builds a small udp frame from src to dst, addressed the way a
// pod addresses its gateway. It is what the explain command classifies.
func ProbeFrame(src, dst header.Addr, srcMAC, dstMAC header.MAC) ([]byte, error) {
	eth := &layers.Ethernet{
		SrcMAC:       srcMAC.HardwareAddr(),
		DstMAC:       dstMAC.HardwareAddr(),
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    src.IP(),
		DstIP:    dst.IP(),
	}
	udp := &layers.UDP{SrcPort: 33434, DstPort: 33434}
	if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
		return nil, errors.WithStack(err)
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, ip, udp, gopacket.Payload("vxlancni probe")); err != nil {
		return nil, errors.Wrap(err, "unable to build probe frame")
	}
	return buf.Bytes(), nil
}

// Summarize decodes frame for display.
func Summarize(frame []byte) string {
	return gopacket.NewPacket(frame, layers.LayerTypeEthernet, gopacket.Lazy).String()
}
