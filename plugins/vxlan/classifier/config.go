package classifier

import (
	"github.com/pkg/errors"

	"vxlancni/consts"
	"vxlancni/plugins/vxlan/header"
	bpfmap "vxlancni/plugins/vxlan/map"
)

var ErrTunnelIDRange = errors.New("tunnel id does not fit in 24 bits")

type Config struct {
	// TunnelID is the vni shared by the whole overlay.
	TunnelID   uint32
	GatewayMAC header.MAC
	// Order must match the order the tables were populated with.
	Order    bpfmap.KeyOrder
	Delivery Delivery
	// RespondARP lets the veth ingress classifier answer gateway ARP
	// requests itself.
	RespondARP bool
}

func DefaultConfig() Config {
	return Config{
		TunnelID:   consts.DEFAULT_TUNNEL_ID,
		GatewayMAC: header.MustParseMAC(consts.DEFAULT_GATEWAY_MAC),
		Order:      bpfmap.HostOrder,
		Delivery:   DeliverRedirect,
	}
}

func (c Config) Validate() error {
	if c.TunnelID > consts.MAX_TUNNEL_ID {
		return errors.Wrapf(ErrTunnelIDRange, "%d", c.TunnelID)
	}
	if c.Delivery == nil {
		return errors.Wrap(ErrUnknownDelivery, "no delivery strategy configured")
	}
	if c.RespondARP && c.GatewayMAC == (header.MAC{}) {
		return errors.New("arp responder needs a gateway mac")
	}
	return nil
}
