package etcd

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.etcd.io/etcd/api/v3/mvccpb"
	"go.etcd.io/etcd/api/v3/v3rpc/rpctypes"
	"go.etcd.io/etcd/client/pkg/v3/transport"
	etcd "go.etcd.io/etcd/client/v3"

	"vxlancni/utils"
)

var log = utils.Logger().WithField(utils.LogSubsys, "etcd")

type WatchCallback func(_type mvccpb.Event_EventType, key, value []byte)

type EtcdConfig struct {
	EtcdEndpoints  string `json:"etcdEndpoints" mapstructure:"endpoints"`
	EtcdUsername   string `json:"etcdUsername,omitempty" mapstructure:"username"`
	EtcdPassword   string `json:"etcdPassword,omitempty" mapstructure:"password"`
	EtcdKeyFile    string `json:"etcdKeyFile,omitempty" mapstructure:"key-file"`
	EtcdCertFile   string `json:"etcdCertFile,omitempty" mapstructure:"cert-file"`
	EtcdCACertFile string `json:"etcdCACertFile,omitempty" mapstructure:"ca-file"`
}

func (c *EtcdConfig) Endpoints() []string {
	res := []string{}
	for _, ep := range strings.Split(c.EtcdEndpoints, ",") {
		if ep = strings.TrimSpace(ep); ep != "" {
			res = append(res, ep)
		}
	}
	return res
}

type EtcdClient struct {
	client  *etcd.Client
	Version string
}

const (
	clientTimeout = 30 * time.Second
	etcdTimeout   = 2 * time.Second
	rewatchDelay  = time.Second
)

func newEtcdClient(config *EtcdConfig) (*etcd.Client, error) {
	etcdLocation := config.Endpoints()
	if len(etcdLocation) == 0 {
		return nil, errors.New("找不到 etcd, no endpoints configured")
	}

	cfg := etcd.Config{
		Endpoints:   etcdLocation,
		DialTimeout: clientTimeout,
		Username:    config.EtcdUsername,
		Password:    config.EtcdPassword,
	}
	if config.EtcdCertFile != "" || config.EtcdCACertFile != "" {
		tlsInfo := transport.TLSInfo{
			CertFile:      config.EtcdCertFile,
			KeyFile:       config.EtcdKeyFile,
			TrustedCAFile: config.EtcdCACertFile,
		}
		tlsConfig, err := tlsInfo.ClientConfig()
		if err != nil {
			return nil, errors.Wrap(err, "invalid etcd tls config")
		}
		cfg.TLS = tlsConfig
	}

	return etcd.New(cfg)
}

// NewEtcdClient dials etcd and records the server version of the first
// endpoint that answers.
func NewEtcdClient(ctx context.Context, config *EtcdConfig) (*EtcdClient, error) {
	client, err := newEtcdClient(config)
	if err != nil {
		return nil, err
	}

	c := &EtcdClient{client: client}
	for _, ep := range config.Endpoints() {
		sctx, cancel := context.WithTimeout(ctx, etcdTimeout)
		status, err := client.Status(sctx, ep)
		cancel()
		if err != nil {
			log.WithError(err).WithField("endpoint", ep).Warn("无法获取到 etcd 版本")
			continue
		}
		c.Version = status.Version
		break
	}
	if c.Version == "" {
		client.Close()
		return nil, errors.New("no etcd endpoint answered")
	}
	log.WithField("version", c.Version).Info("etcd client ready")
	return c, nil
}

func (c *EtcdClient) Close() error {
	return c.client.Close()
}

func (c *EtcdClient) Set(ctx context.Context, key, value string) error {
	_, err := c.client.Put(ctx, key, value)
	return err
}

func (c *EtcdClient) Del(ctx context.Context, key string, opts ...etcd.OpOption) error {
	_, err := c.client.Delete(ctx, key, opts...)
	return err
}

func (c *EtcdClient) Get(ctx context.Context, key string) (string, error) {
	resp, err := c.client.Get(ctx, key)
	if err != nil {
		return "", err
	}
	if len(resp.Kvs) > 0 {
		return string(resp.Kvs[len(resp.Kvs)-1].Value), nil
	}
	return "", nil
}

// GetPrefix returns every key under prefix and the store revision the read
// was served at, so a following Watch can resume right after it.
func (c *EtcdClient) GetPrefix(ctx context.Context, prefix string) (map[string]string, int64, error) {
	resp, err := c.client.Get(ctx, prefix, etcd.WithPrefix())
	if err != nil {
		return nil, 0, errors.Wrapf(err, "get prefix %s", prefix)
	}
	res := make(map[string]string, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		res[string(kv.Key)] = string(kv.Value)
	}
	return res, resp.Header.Revision, nil
}

// Watch calls cb for every change under prefix after revision rev until ctx
// is done. A broken watch channel is reopened from the last seen revision.
func (c *EtcdClient) Watch(ctx context.Context, prefix string, rev int64, cb WatchCallback) error {
	next := rev + 1
	for {
		change := c.client.Watch(etcd.WithRequireLeader(ctx), prefix, etcd.WithPrefix(), etcd.WithRev(next))
		for wresp := range change {
			if err := wresp.Err(); err != nil {
				if IsCompacted(err) {
					return errors.Wrapf(err, "watch %s fell behind compaction at %d", prefix, wresp.CompactRevision)
				}
				log.WithError(err).WithField("prefix", prefix).Warn("watch error")
				break
			}
			for _, ev := range wresp.Events {
				cb(ev.Type, ev.Kv.Key, ev.Kv.Value)
				next = ev.Kv.ModRevision + 1
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(rewatchDelay):
		}
		log.WithField("prefix", prefix).Debug("reopening watch")
	}
}

func IsCompacted(err error) bool {
	return errors.Is(err, rpctypes.ErrCompacted)
}
