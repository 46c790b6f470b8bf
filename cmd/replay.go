package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"vxlancni/plugins/vxlan/classifier"
	"vxlancni/plugins/vxlan/runner"
)

func newReplayCmd() *cobra.Command {
	var (
		tables    string
		in        string
		out       string
		direction string
		ifindex   uint32
		trace     bool
	)
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Classify every frame of a pcap file",
		Example: `  vxlancni replay --tables tables.yaml --in pod.pcap --out result.pcap
  vxlancni replay --in wire.pcap --direction from-wire --ifindex 4`,
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadConf()
			if err != nil {
				return err
			}
			dir, err := runner.ParseDirection(direction)
			if err != nil {
				return err
			}
			mt, err := loadTables(conf, tables)
			if err != nil {
				return err
			}
			cfg, err := conf.ClassifierConfig()
			if err != nil {
				return err
			}
			c, err := classifier.New(cfg, mt.Tables())
			if err != nil {
				return err
			}

			input, err := os.Open(in)
			if err != nil {
				return errors.Wrap(err, "unable to open input pcap")
			}
			defer input.Close()

			var output io.Writer
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return errors.Wrap(err, "unable to create output pcap")
				}
				defer f.Close()
				output = f
			}

			metrics, err := runner.NewMetrics(prometheus.NewRegistry())
			if err != nil {
				return err
			}
			r := runner.NewReplayer(runner.NewPipeline(c), metrics)
			if trace {
				r.OnTrace = func(n int, t runner.Trace) {
					fmt.Fprintf(cmd.OutOrStdout(), "#%d %s\n", n, t)
				}
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			sum, err := r.Replay(ctx, input, output, dir, ifindex)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(sum)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&tables, FLAG_TABLES, "", "Table fixture yaml, the pinned tables are snapshotted when empty")
	flags.StringVarP(&in, "in", "i", "", "Input pcap (ethernet)")
	flags.StringVarP(&out, "out", "o", "", "Write the frames that were not dropped to this pcap")
	flags.StringVar(&direction, "direction", "from-pod", "from-pod or from-wire")
	flags.Uint32Var(&ifindex, "ifindex", 0, "Ifindex the frames arrive on")
	flags.BoolVar(&trace, "trace", false, "Print the trace of every frame")
	cmd.MarkFlagRequired("in")
	return cmd
}
