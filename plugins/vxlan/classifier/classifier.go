package classifier

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"vxlancni/consts"
	"vxlancni/plugins/vxlan/header"
	bpfmap "vxlancni/plugins/vxlan/map"
	"vxlancni/utils"
)

var log = utils.Logger().WithField(utils.LogSubsys, "classifier")

// Classifier holds the three datapath programs. It never writes the tables
// and keeps no per packet state, so one value may be shared by any number of
// goroutines.
//
// Every method looks at fixed size headers only, does at most three table
// lookups and does not allocate.
type Classifier struct {
	cfg    Config
	tables bpfmap.Tables
}

func New(cfg Config, tables bpfmap.Tables) (*Classifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !tables.Valid() {
		return nil, errors.New("classifier needs endpoint, pod location and device tables")
	}
	return &Classifier{cfg: cfg, tables: tables}, nil
}

func (c *Classifier) Config() Config {
	return c.cfg
}

func (c *Classifier) key(a header.Addr) bpfmap.IPKey {
	return c.cfg.Order.EncodeAddr(a)
}

// VethIngress runs on the host side of every pod veth, so it sees what the
// pod sends.
//
// 本机 pod 直接改 mac 然后转过去, 其他节点上的 pod 转给 vxlan 设备,
// 都不是的话交给协议栈
func (c *Classifier) VethIngress(skb Skb) Result {
	frame := skb.Data()
	if c.cfg.RespondARP {
		if t, ok := header.EtherType(frame); ok && t == header.EthPARP {
			if RespondARP(frame, c.cfg.GatewayMAC) == ARPRespond {
				return RedirectTo(skb.IfIndex())
			}
			return DropResult
		}
	}

	eth, ip, ok := header.ParseIPv4(frame)
	if !ok {
		return PassResult
	}
	key := c.key(ip.Dst())

	if ep, ok := c.tables.Endpoints.LookupEndpoint(key); ok {
		eth.RewriteMACs(ep.HostMAC, ep.PodMAC)
		return c.cfg.Delivery.Deliver(ep)
	}

	if _, ok := c.tables.PodLocations.LookupPodLocation(key); !ok {
		return PassResult
	}
	dev, ok := c.tables.Devices.LookupLocalDevice(bpfmap.DeviceTunnel)
	if !ok {
		return PassResult
	}
	return RedirectTo(dev.IfIndex)
}

// TunnelFor builds the descriptor for a frame going to node.
func (c *Classifier) TunnelFor(node header.Addr) TunnelDescriptor {
	return TunnelDescriptor{
		RemoteIP:       node,
		TunnelID:       c.cfg.TunnelID,
		TOS:            consts.DEFAULT_TOS,
		TTL:            consts.DEFAULT_TTL,
		ZeroChecksumTx: true,
	}
}

// VxlanEgress runs on the egress of the tunnel device and tells it which
// node to encapsulate towards.
func (c *Classifier) VxlanEgress(skb Skb) Result {
	_, ip, ok := header.ParseIPv4(skb.Data())
	if !ok {
		return PassResult
	}
	loc, ok := c.tables.PodLocations.LookupPodLocation(c.key(ip.Dst()))
	if !ok {
		return PassResult
	}
	if err := skb.SetTunnelKey(c.TunnelFor(loc.NodeIP)); err != nil {
		if log.Logger.IsLevelEnabled(logrus.DebugLevel) {
			log.WithError(err).WithFields(logrus.Fields{
				"dst":  ip.Dst(),
				"node": loc.NodeIP,
			}).Debug("unable to set tunnel key")
		}
		return DropResult
	}
	return PassResult
}

// VxlanIngress runs on the ingress of the tunnel device after decapsulation.
func (c *Classifier) VxlanIngress(skb Skb) Result {
	eth, ip, ok := header.ParseIPv4(skb.Data())
	if !ok {
		return PassResult
	}
	ep, ok := c.tables.Endpoints.LookupEndpoint(c.key(ip.Dst()))
	if !ok {
		return PassResult
	}
	eth.RewriteMACs(ep.HostMAC, ep.PodMAC)
	return c.cfg.Delivery.Deliver(ep)
}

// TunnelDevice returns the ifindex of the tunnel device, if one is known.
func (c *Classifier) TunnelDevice() (uint32, bool) {
	dev, ok := c.tables.Devices.LookupLocalDevice(bpfmap.DeviceTunnel)
	return dev.IfIndex, ok
}
