package runner

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"vxlancni/plugins/vxlan/classifier"
	"vxlancni/plugins/vxlan/header"
)

type Direction int

const (
	// FromPod is traffic a pod sends into its veth.
	FromPod Direction = iota
	// FromWire is decapsulated traffic coming out of the tunnel device.
	FromWire
)

func (d Direction) String() string {
	if d == FromWire {
		return "from-wire"
	}
	return "from-pod"
}

func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(s) {
	case "", "from-pod", "pod":
		return FromPod, nil
	case "from-wire", "wire":
		return FromWire, nil
	}
	return FromPod, errors.Errorf("unknown direction %q, expected from-pod or from-wire", s)
}

const (
	PROG_VETH_INGRESS  = "veth_ingress"
	PROG_VXLAN_EGRESS  = "vxlan_egress"
	PROG_VXLAN_INGRESS = "vxlan_ingress"
)

type Step struct {
	Program string
	IfIndex uint32
	Result  classifier.Result
}

func (s Step) String() string {
	return fmt.Sprintf("%s@%d: %s", s.Program, s.IfIndex, s.Result)
}

const (
	OutcomeLocal    = "local"
	OutcomeTunnel   = "tunnel"
	OutcomePass     = "pass"
	OutcomeDrop     = "drop"
	OutcomeARPReply = "arp-reply"
)

// Trace is what happened to one frame across the programs it went through.
type Trace struct {
	Direction Direction
	Steps     []Step
	Final     classifier.Result
	Tunnel    classifier.TunnelDescriptor
	Tunneled  bool
	Outcome   string
}

func (t Trace) String() string {
	parts := make([]string, 0, len(t.Steps)+1)
	for _, s := range t.Steps {
		parts = append(parts, s.String())
	}
	res := strings.Join(parts, " -> ")
	if t.Tunneled {
		res += " [" + t.Tunnel.String() + "]"
	}
	return res + " => " + t.Outcome
}

// Pipeline chains the classifiers the way they are attached on a node: the
// veth ingress program hands remote traffic to the tunnel device whose egress
// program then asks for encapsulation.
type Pipeline struct {
	c *classifier.Classifier
}

func NewPipeline(c *classifier.Classifier) *Pipeline {
	return &Pipeline{c: c}
}

func (p *Pipeline) Classifier() *classifier.Classifier {
	return p.c
}

func (p *Pipeline) Run(dir Direction, skb *classifier.Buffer) Trace {
	if dir == FromWire {
		return p.FromWire(skb)
	}
	return p.FromPod(skb)
}

func (p *Pipeline) FromPod(skb *classifier.Buffer) Trace {
	t := Trace{Direction: FromPod}
	ingress := skb.IfIndex()
	res := p.c.VethIngress(skb)
	t.Steps = append(t.Steps, Step{Program: PROG_VETH_INGRESS, IfIndex: ingress, Result: res})
	t.Final = res

	tunnel, ok := p.c.TunnelDevice()
	toTunnel := ok && res.Verdict == classifier.Redirect && res.IfIndex == tunnel
	if toTunnel {
		skb.Ingress = tunnel
		eg := p.c.VxlanEgress(skb)
		t.Steps = append(t.Steps, Step{Program: PROG_VXLAN_EGRESS, IfIndex: tunnel, Result: eg})
		t.Tunnel, t.Tunneled = skb.TunnelKey()
		if eg.Verdict != classifier.Pass {
			t.Final = eg
		}
	}

	switch {
	case t.Final.Verdict == classifier.Drop:
		t.Outcome = OutcomeDrop
	case toTunnel:
		t.Outcome = OutcomeTunnel
	case t.Final.IsRedirect() && isARP(skb.Frame):
		t.Outcome = OutcomeARPReply
	case t.Final.IsRedirect():
		t.Outcome = OutcomeLocal
	default:
		t.Outcome = OutcomePass
	}
	return t
}

func isARP(frame []byte) bool {
	t, ok := header.EtherType(frame)
	return ok && t == header.EthPARP
}

func (p *Pipeline) FromWire(skb *classifier.Buffer) Trace {
	t := Trace{Direction: FromWire}
	res := p.c.VxlanIngress(skb)
	t.Steps = append(t.Steps, Step{Program: PROG_VXLAN_INGRESS, IfIndex: skb.IfIndex(), Result: res})
	t.Final = res
	if res.IsRedirect() {
		t.Outcome = OutcomeLocal
	} else {
		t.Outcome = OutcomePass
	}
	return t
}
