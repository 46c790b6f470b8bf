package cmd

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"vxlancni/cni"
	"vxlancni/consts"
	"vxlancni/etcd"
	bpfmap "vxlancni/plugins/vxlan/map"
	"vxlancni/plugins/vxlan/watcher"
	"vxlancni/utils"
)

type syncOptions struct {
	daemon      bool
	listen      string
	writePinned bool
	endpoints   string
}

func newSyncCmd() *cobra.Command {
	opts := syncOptions{}
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Follow pod locations in etcd and keep the pod location table current",
		Long: `Follow <prefix>/<pod ip> = <node ip> in etcd.

Without --write-pinned the pod locations are only tracked in memory, for the
health endpoint and the metrics. Pass --write-pinned to push every change into
the pinned pod location table the datapath reads.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadConf()
			if err != nil {
				return err
			}
			if opts.endpoints != "" {
				if conf.Etcd == nil {
					conf.Etcd = &etcd.EtcdConfig{}
				}
				conf.Etcd.EtcdEndpoints = opts.endpoints
			}
			if conf.Etcd == nil || len(conf.Etcd.Endpoints()) == 0 {
				return errors.New("no etcd endpoints, set them in the netconf or with --etcd-endpoints")
			}

			if !opts.daemon {
				return runSync(cmd.Context(), conf, opts)
			}

			child, err := utils.StartDeamon(utils.DaemonOptions{
				PidFile: consts.KUBE_TEST_CNI_TMP_DEAMON_DEFAULT_PATH + ".pid",
				LogFile: conf.LogFile,
				Args:    os.Args,
			}, func() {
				if err := runSync(context.Background(), conf, opts); err != nil {
					log.WithError(err).Error("sync process exited")
				}
			})
			if err != nil {
				return err
			}
			if child != nil {
				// 父进程记一下子进程的 pid 就可以退出了
				return utils.CreateFile(consts.KUBE_TEST_CNI_TMP_DEAMON_DEFAULT_PATH, []byte(strconv.Itoa(child.Pid)), 0644)
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.BoolVar(&opts.daemon, "daemon", false, "Fork into the background")
	flags.StringVar(&opts.listen, "listen", ":"+consts.DEFAULT_TMP_PORT, "Address of the health and metrics endpoint")
	flags.BoolVar(&opts.writePinned, "write-pinned", false, "Push changes into the pinned pod location table, otherwise they are only tracked in memory")
	flags.StringVar(&opts.endpoints, "etcd-endpoints", "", "Comma separated etcd endpoints, overrides the netconf")
	return cmd
}

func runSync(parent context.Context, conf *cni.DatapathConf, opts syncOptions) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	order, err := conf.KeyOrder()
	if err != nil {
		return err
	}
	log.WithField("daemon", utils.IsDaemonChild()).Info("starting pod location sync")
	client, err := etcd.NewEtcdClient(ctx, conf.Etcd)
	if err != nil {
		return err
	}
	defer client.Close()

	sinks := []watcher.Sink{bpfmap.NewPodLocationMap()}
	if opts.writePinned {
		mm, err := bpfmap.OpenPinnedMaps(conf.PinRoot, order)
		if err != nil {
			return err
		}
		defer mm.Close()
		w, err := mm.PodLocationWriter()
		if err != nil {
			return err
		}
		defer w.Close()
		sinks = append(sinks, w)
	}

	w := watcher.NewPodLocationWatcher(client, conf.PodLocationPrefix, order, sinks...)
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if err := w.RegisterMetrics(reg); err != nil {
		return err
	}

	errs := make(chan error, 2)
	go func() { errs <- watcher.ServeHealth(ctx, opts.listen, w, reg) }()
	go func() { errs <- w.Run(ctx) }()

	err = <-errs
	cancel()
	return err
}
