package classifier

import (
	"fmt"

	"github.com/pkg/errors"

	"vxlancni/plugins/vxlan/header"
)

// ErrNoTunnelMetadata is returned by an Skb that cannot carry a tunnel key,
// for example one that did not arrive on a tunnel device.
var ErrNoTunnelMetadata = errors.New("frame cannot carry tunnel metadata")

// TunnelDescriptor is the per packet encapsulation request handed to the
// tunnel device. It is never stored.
type TunnelDescriptor struct {
	RemoteIP       header.Addr
	TunnelID       uint32
	TOS            uint8
	TTL            uint8
	ZeroChecksumTx bool
}

func (t TunnelDescriptor) String() string {
	return fmt.Sprintf("remote=%s vni=%d ttl=%d tos=%d zero-csum=%t",
		t.RemoteIP, t.TunnelID, t.TTL, t.TOS, t.ZeroChecksumTx)
}

// Skb is the frame handed to a classifier together with the metadata the
// classifiers read or set.
type Skb interface {
	// Data is the frame starting at the ethernet header. Classifiers may
	// rewrite it in place but never change its length.
	Data() []byte
	// IfIndex is the interface the frame arrived on.
	IfIndex() uint32
	SetTunnelKey(t TunnelDescriptor) error
}

// Buffer is an Skb backed by a byte slice.
type Buffer struct {
	Frame   []byte
	Ingress uint32
	// NoTunnel makes SetTunnelKey fail with ErrNoTunnelMetadata.
	NoTunnel bool

	tunnel    TunnelDescriptor
	hasTunnel bool
}

func NewBuffer(frame []byte, ingress uint32) *Buffer {
	return &Buffer{Frame: frame, Ingress: ingress}
}

func (b *Buffer) Data() []byte {
	return b.Frame
}

func (b *Buffer) IfIndex() uint32 {
	return b.Ingress
}

func (b *Buffer) SetTunnelKey(t TunnelDescriptor) error {
	if b.NoTunnel {
		return ErrNoTunnelMetadata
	}
	b.tunnel = t
	b.hasTunnel = true
	return nil
}

// TunnelKey returns the descriptor attached by the egress classifier.
func (b *Buffer) TunnelKey() (TunnelDescriptor, bool) {
	return b.tunnel, b.hasTunnel
}

// Reset clears the tunnel key so the buffer can be classified again.
func (b *Buffer) Reset(frame []byte, ingress uint32) {
	b.Frame = frame
	b.Ingress = ingress
	b.tunnel = TunnelDescriptor{}
	b.hasTunnel = false
}
