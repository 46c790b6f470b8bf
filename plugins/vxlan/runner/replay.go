package runner

import (
	"context"
	"io"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"vxlancni/plugins/vxlan/classifier"
	"vxlancni/utils"
)

var log = utils.Logger().WithField(utils.LogSubsys, "runner")

type Summary struct {
	Frames   int            `json:"frames"`
	Written  int            `json:"written"`
	Outcomes map[string]int `json:"outcomes"`
}

type Replayer struct {
	pipeline *Pipeline
	metrics  *Metrics
	// OnTrace, when set, is called for every classified frame.
	OnTrace func(n int, t Trace)
}

func NewReplayer(p *Pipeline, m *Metrics) *Replayer {
	return &Replayer{pipeline: p, metrics: m}
}

// Replay classifies every frame of the ethernet pcap in as if it arrived on
// ifindex. When out is not nil the frames that were not dropped are written
// to it as a pcap, after whatever rewrite the classifiers did.
func (r *Replayer) Replay(ctx context.Context, in io.Reader, out io.Writer, dir Direction, ifindex uint32) (Summary, error) {
	sum := Summary{Outcomes: map[string]int{}}

	reader, err := pcapgo.NewReader(in)
	if err != nil {
		return sum, errors.Wrap(err, "unable to read pcap header")
	}
	if reader.LinkType() != layers.LinkTypeEthernet {
		return sum, errors.Errorf("unsupported link type %s, need ethernet", reader.LinkType())
	}

	var writer *pcapgo.Writer
	if out != nil {
		writer = pcapgo.NewWriter(out)
		if err := writer.WriteFileHeader(reader.Snaplen(), layers.LinkTypeEthernet); err != nil {
			return sum, errors.Wrap(err, "unable to write pcap header")
		}
	}

	skb := &classifier.Buffer{}
	for {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		data, ci, err := reader.ReadPacketData()
		if err == io.EOF {
			break
		}
		if err != nil {
			return sum, errors.Wrapf(err, "frame %d", sum.Frames+1)
		}

		sum.Frames++
		skb.Reset(data, ifindex)
		t := r.pipeline.Run(dir, skb)
		sum.Outcomes[t.Outcome]++
		if r.metrics != nil {
			r.metrics.Observe(t)
		}
		if r.OnTrace != nil {
			r.OnTrace(sum.Frames, t)
		}

		if writer == nil || t.Final.Verdict == classifier.Drop {
			continue
		}
		if err := writer.WritePacket(ci, skb.Frame); err != nil {
			return sum, errors.Wrapf(err, "unable to write frame %d", sum.Frames)
		}
		sum.Written++
	}

	log.WithFields(logrus.Fields{
		"frames":    sum.Frames,
		"written":   sum.Written,
		"direction": dir,
	}).Info("replay done")
	return sum, nil
}
