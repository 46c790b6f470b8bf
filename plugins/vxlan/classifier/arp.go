package classifier

import (
	"vxlancni/plugins/vxlan/header"
)

type ARPOutcome int

const (
	ARPDiscard ARPOutcome = iota
	ARPRespond
)

func (o ARPOutcome) String() string {
	if o == ARPRespond {
		return "RESPOND"
	}
	return "DISCARD"
}

// RespondARP turns a gateway ARP request into its reply in place. Only
// ethernet/ipv4 requests sent to broadcast or to gateway are answered; for
// anything else frame is left untouched and ARPDiscard is returned.
func RespondARP(frame []byte, gateway header.MAC) ARPOutcome {
	eth, arp, ok := header.ParseARP(frame)
	if !ok {
		return ARPDiscard
	}
	if eth.EtherType() != header.EthPARP || !arp.IsEthernetIPv4() || arp.Op() != header.ARPOpRequest {
		return ARPDiscard
	}
	if dst := eth.Dst(); !dst.IsBroadcast() && dst != gateway {
		return ARPDiscard
	}

	// 回给以太网源地址, 它可能和 arp 里的 sender mac 不一样
	requesterMAC := eth.Src()
	requesterIP := arp.SenderProto()
	wanted := arp.TargetProto()

	eth.RewriteMACs(gateway, requesterMAC)
	arp.SetOp(header.ARPOpReply)
	arp.SetSenderHW(gateway)
	arp.SetSenderProto(wanted)
	arp.SetTargetHW(requesterMAC)
	arp.SetTargetProto(requesterIP)
	return ARPRespond
}
