package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"vxlancni/cni"
	"vxlancni/consts"
	bpfmap "vxlancni/plugins/vxlan/map"
	"vxlancni/utils"
)

var log = utils.Logger().WithField(utils.LogSubsys, "cmd")

// Version is set at build time with -ldflags "-X vxlancni/cmd.Version=..."
var Version = "dev"

const (
	FLAG_CONFIG         = "config"
	FLAG_DEBUG          = "debug"
	FLAG_LOG_FILE       = "log-file"
	FLAG_LOG_FORMAT     = "log-format"
	FLAG_KEY_BYTE_ORDER = "key-byte-order"
	FLAG_DELIVERY       = "delivery"
	FLAG_TUNNEL_ID      = "tunnel-id"
	FLAG_RESPOND_ARP    = "respond-arp"
	FLAG_PIN_ROOT       = "pin-root"
	FLAG_TABLES         = "tables"
)

var rootCmd = &cobra.Command{
	Use:           "vxlancni",
	Short:         "vxlan overlay datapath tool",
	Long:          "vxlancni - run, replay and inspect the forwarding decisions of the vxlan overlay datapath",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String(FLAG_CONFIG, consts.KUBE_TEST_CNI_DEFAULT_CONF_PATH, "Datapath netconf json file")
	flags.BoolP(FLAG_DEBUG, "D", false, "Enable debug messages")
	flags.String(FLAG_LOG_FILE, "", "Also write logs to this file (rotated)")
	flags.String(FLAG_LOG_FORMAT, "text", "Log format, text or json")
	flags.String(FLAG_KEY_BYTE_ORDER, "", "Byte order of ip keys in the tables, host or network")
	flags.String(FLAG_DELIVERY, "", "Local delivery strategy, redirect or redirect-peer")
	flags.Uint32(FLAG_TUNNEL_ID, 0, "Overlay wide vxlan id")
	flags.Bool(FLAG_RESPOND_ARP, false, "Answer gateway ARP requests in the veth ingress program")
	flags.String(FLAG_PIN_ROOT, "", "Directory holding the pinned tables")
	viper.BindPFlags(flags)

	viper.SetEnvPrefix("VXLANCNI")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	rootCmd.AddCommand(
		newReplayCmd(),
		newExplainCmd(),
		newDiscoverCmd(),
		newSyncCmd(),
		newVersionCmd(),
	)
}

// loadConf reads the netconf document and lets flags and VXLANCNI_*
// environment variables override it.
func loadConf() (*cni.DatapathConf, error) {
	conf, err := cni.LoadConf(viper.GetString(FLAG_CONFIG))
	if err != nil {
		return nil, err
	}
	if viper.IsSet(FLAG_KEY_BYTE_ORDER) && viper.GetString(FLAG_KEY_BYTE_ORDER) != "" {
		conf.KeyByteOrder = viper.GetString(FLAG_KEY_BYTE_ORDER)
	}
	if viper.IsSet(FLAG_DELIVERY) && viper.GetString(FLAG_DELIVERY) != "" {
		conf.Delivery = viper.GetString(FLAG_DELIVERY)
	}
	if id := viper.GetUint32(FLAG_TUNNEL_ID); id != 0 {
		conf.TunnelID = id
	}
	if viper.GetBool(FLAG_RESPOND_ARP) {
		conf.RespondARP = true
	}
	if root := viper.GetString(FLAG_PIN_ROOT); root != "" {
		conf.PinRoot = root
	}
	if viper.GetBool(FLAG_DEBUG) {
		conf.LogLevel = "debug"
	}
	if f := viper.GetString(FLAG_LOG_FILE); f != "" {
		conf.LogFile = f
	} else if !utils.PathExists(viper.GetString(FLAG_CONFIG)) {
		// no netconf, keep the cli quiet on disk
		conf.LogFile = ""
	}
	if format := viper.GetString(FLAG_LOG_FORMAT); format != "" {
		conf.LogFormat = format
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	opts := conf.LogOptions()
	opts.Stderr = true
	if err := utils.InitLog(opts); err != nil {
		return nil, err
	}
	return conf, nil
}

// loadTables builds in-memory tables from a fixture, or from a snapshot of
// the pinned tables when no fixture is given.
func loadTables(conf *cni.DatapathConf, fixture string) (*bpfmap.MemoryTables, error) {
	order, err := conf.KeyOrder()
	if err != nil {
		return nil, err
	}
	if fixture != "" {
		f, err := bpfmap.LoadFixture(fixture)
		if err != nil {
			return nil, err
		}
		return f.Build(order), nil
	}

	mm, err := bpfmap.OpenPinnedMaps(conf.PinRoot, order)
	if err != nil {
		return nil, errors.Wrap(err, "no --tables fixture given and the pinned tables are not usable")
	}
	defer mm.Close()
	return mm.Snapshot()
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "vxlancni %s\n", Version)
		},
	}
}
