package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"vxlancni/plugins/vxlan/classifier"
	"vxlancni/plugins/vxlan/header"
	bpfmap "vxlancni/plugins/vxlan/map"
	"vxlancni/plugins/vxlan/runner"
)

func newExplainCmd() *cobra.Command {
	var (
		tables    string
		direction string
		ifindex   uint32
		verbose   bool
	)
	cmd := &cobra.Command{
		Use:   "explain <src ip> <dst ip>",
		Short: "Show the path a frame between two addresses takes",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := header.ParseAddr(args[0])
			if err != nil {
				return err
			}
			dst, err := header.ParseAddr(args[1])
			if err != nil {
				return err
			}
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

			frame, err := runner.ProbeFrame(src, dst, header.MAC{0x02, 0, 0, 0, 0, 0x01}, cfg.GatewayMAC)
			if err != nil {
				return err
			}
			skb := classifier.NewBuffer(frame, ifindex)
			t := runner.NewPipeline(c).Run(dir, skb)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s -> %s (%s, key order %s)\n", src, dst, dir, mt.Order)
			for _, s := range t.Steps {
				name := bpfmap.IfIndexName(s.Result.IfIndex)
				if s.Result.IsRedirect() && name != "" {
					fmt.Fprintf(out, "  %s [%s]\n", s, name)
				} else {
					fmt.Fprintf(out, "  %s\n", s)
				}
			}
			if t.Tunneled {
				fmt.Fprintf(out, "  tunnel: %s\n", t.Tunnel)
			}
			fmt.Fprintf(out, "  outcome: %s\n", t.Outcome)
			if verbose {
				fmt.Fprintln(out, runner.Summarize(skb.Frame))
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&tables, FLAG_TABLES, "", "Table fixture yaml, the pinned tables are snapshotted when empty")
	flags.StringVar(&direction, "direction", "from-pod", "from-pod or from-wire")
	flags.Uint32Var(&ifindex, "ifindex", 0, "Ifindex the frame arrives on")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Dump the resulting frame")
	return cmd
}
