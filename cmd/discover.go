package cmd

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"vxlancni/plugins/vxlan/header"
	bpfmap "vxlancni/plugins/vxlan/map"
)

const DEFAULT_POD_IFNAME = "eth0"

// parseEndpointFlag reads <host veth>=<netns path>[:<pod ifname>].
func parseEndpointFlag(s string) (veth, netns, ifname string, err error) {
	parts := strings.SplitN(s, "=", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", "", errors.Errorf("invalid endpoint %q, expected <host veth>=<netns path>[:<ifname>]", s)
	}
	veth, netns, ifname = parts[0], parts[1], DEFAULT_POD_IFNAME
	if i := strings.LastIndex(netns, ":"); i > 0 {
		netns, ifname = netns[:i], netns[i+1:]
	}
	return veth, netns, ifname, nil
}

func newDiscoverCmd() *cobra.Command {
	var (
		endpoints []string
		nodeIP    string
	)
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Build a table fixture from the devices of this node",
		Example: `  vxlancni discover --endpoint veth1a2b=/var/run/netns/pod1 --node-ip 192.168.64.19 > tables.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadConf()
			if err != nil {
				return err
			}
			order, err := conf.KeyOrder()
			if err != nil {
				return err
			}
			mt := bpfmap.NewMemoryTables(order)

			devices, err := bpfmap.DiscoverLocalDevices(conf.TunnelDevice, conf.UplinkDevice)
			if err != nil {
				return err
			}
			mt.Devices.Replace(devices)

			var node header.Addr
			if nodeIP != "" {
				if node, err = header.ParseAddr(nodeIP); err != nil {
					return errors.Wrap(err, "--node-ip")
				}
			}
			for _, ep := range endpoints {
				veth, netns, ifname, err := parseEndpointFlag(ep)
				if err != nil {
					return err
				}
				podIP, rec, err := bpfmap.DiscoverEndpoint(veth, netns, ifname)
				if err != nil {
					return err
				}
				mt.SetEndpoint(podIP, rec)
				if node != 0 {
					mt.SetPodLocation(podIP, bpfmap.PodLocationRecord{NodeIP: node})
				}
				log.WithField("pod", podIP).Debugf("discovered endpoint %s", rec)
			}

			out, err := bpfmap.FixtureFromTables(mt).Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	flags := cmd.Flags()
	flags.StringArrayVar(&endpoints, "endpoint", nil, "Pod endpoint as <host veth>=<netns path>[:<ifname>], repeatable")
	flags.StringVar(&nodeIP, "node-ip", "", "Also add a pod location entry on this node ip for every endpoint")
	return cmd
}
