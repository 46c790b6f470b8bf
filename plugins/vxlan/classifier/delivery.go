package classifier

import (
	"github.com/pkg/errors"

	bpfmap "vxlancni/plugins/vxlan/map"
)

var ErrUnknownDelivery = errors.New("unknown delivery strategy")

const (
	DELIVERY_REDIRECT      = "redirect"
	DELIVERY_REDIRECT_PEER = "redirect-peer"
)

// Delivery decides how a frame already rewritten for a local pod crosses into
// the pod's namespace.
type Delivery interface {
	Name() string
	Deliver(ep bpfmap.EndpointRecord) Result
}

// redirectDelivery sends the frame out of the pod side interface, the variant
// that reliably delivers replies.
type redirectDelivery struct{}

func (redirectDelivery) Name() string { return DELIVERY_REDIRECT }

func (redirectDelivery) Deliver(ep bpfmap.EndpointRecord) Result {
	return RedirectTo(ep.PodIfIndex)
}

// peerDelivery hands the frame to the peer of the host side veth. Replies
// have been observed to go missing with it.
type peerDelivery struct{}

func (peerDelivery) Name() string { return DELIVERY_REDIRECT_PEER }

func (peerDelivery) Deliver(ep bpfmap.EndpointRecord) Result {
	return RedirectPeerTo(ep.HostIfIndex)
}

var (
	DeliverRedirect     Delivery = redirectDelivery{}
	DeliverRedirectPeer Delivery = peerDelivery{}
)

func ParseDelivery(name string) (Delivery, error) {
	switch name {
	case "", DELIVERY_REDIRECT:
		return DeliverRedirect, nil
	case DELIVERY_REDIRECT_PEER:
		return DeliverRedirectPeer, nil
	}
	return nil, errors.Wrapf(ErrUnknownDelivery, "%q", name)
}
