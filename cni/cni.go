package cni

import (
	"encoding/json"
	"os"

	cniTypes "github.com/containernetworking/cni/pkg/types"
	"github.com/pkg/errors"

	"vxlancni/consts"
	"vxlancni/etcd"
	"vxlancni/plugins/vxlan/classifier"
	"vxlancni/plugins/vxlan/header"
	bpfmap "vxlancni/plugins/vxlan/map"
	"vxlancni/utils"
)

// DatapathConf is the network config of the vxlan datapath. It is read from
// the same kind of json document as the cni plugin config, e.g.
//
//	{
//	  "cniVersion": "0.3.0",
//	  "name": "testcni",
//	  "type": "testcni",
//	  "mode": "vxlan",
//	  "tunnelId": 13190,
//	  "keyByteOrder": "host",
//	  "delivery": "redirect",
//	  "etcd": {"etcdEndpoints": "https://192.168.64.19:2379"}
//	}
type DatapathConf struct {
	// NetConf 里头指定了一个 plugin 的最基本的信息, 比如 CNIVersion, Name, Type 等
	cniTypes.NetConf

	Mode string `json:"mode"`
	// 0 表示用默认的 vni
	TunnelID   uint32 `json:"tunnelId,omitempty"`
	GatewayMAC string `json:"gatewayMac,omitempty"`
	// host 或者 network, 必须和写 map 的那一方一致
	KeyByteOrder string `json:"keyByteOrder,omitempty"`
	Delivery     string `json:"delivery,omitempty"`
	RespondARP   bool   `json:"respondArp,omitempty"`

	PinRoot      string `json:"pinRoot,omitempty"`
	TunnelDevice string `json:"tunnelDevice,omitempty"`
	UplinkDevice string `json:"uplinkDevice,omitempty"`

	Etcd              *etcd.EtcdConfig `json:"etcd,omitempty"`
	PodLocationPrefix string           `json:"podLocationPrefix,omitempty"`

	LogLevel  string `json:"logLevel,omitempty"`
	LogFormat string `json:"logFormat,omitempty"`
	LogFile   string `json:"logFile,omitempty"`
}

func DefaultConf() *DatapathConf {
	c := &DatapathConf{}
	c.SetDefaults()
	return c
}

func (c *DatapathConf) SetDefaults() {
	if c.Mode == "" {
		c.Mode = consts.MODE_VXLAN
	}
	if c.TunnelID == 0 {
		c.TunnelID = consts.DEFAULT_TUNNEL_ID
	}
	if c.GatewayMAC == "" {
		c.GatewayMAC = consts.DEFAULT_GATEWAY_MAC
	}
	if c.KeyByteOrder == "" {
		c.KeyByteOrder = bpfmap.HostOrder.String()
	}
	if c.Delivery == "" {
		c.Delivery = classifier.DELIVERY_REDIRECT
	}
	if c.PinRoot == "" {
		c.PinRoot = bpfmap.DEFAULT_TC_MAP_PREFIX
	}
	if c.TunnelDevice == "" {
		c.TunnelDevice = consts.DEFAULT_TUNNEL_DEVICE
	}
	if c.UplinkDevice == "" {
		c.UplinkDevice = consts.DEFAULT_UPLINK_DEVICE
	}
	if c.PodLocationPrefix == "" {
		c.PodLocationPrefix = consts.DEFAULT_POD_LOCATION_PREFIX
	}
	if c.LogFile == "" {
		c.LogFile = consts.KUBE_TEST_CNI_DEFAULT_LOG_PATH
	}
}

func (c *DatapathConf) Validate() error {
	if c.Mode != consts.MODE_VXLAN {
		return errors.Errorf("unsupported mode %q, only %q is handled by this datapath", c.Mode, consts.MODE_VXLAN)
	}
	_, err := c.ClassifierConfig()
	return err
}

func (c *DatapathConf) KeyOrder() (bpfmap.KeyOrder, error) {
	return bpfmap.ParseKeyOrder(c.KeyByteOrder)
}

// ClassifierConfig turns the document into the classifier settings.
func (c *DatapathConf) ClassifierConfig() (classifier.Config, error) {
	cfg := classifier.Config{
		TunnelID:   c.TunnelID,
		RespondARP: c.RespondARP,
	}
	var err error
	if cfg.GatewayMAC, err = header.ParseMAC(c.GatewayMAC); err != nil {
		return cfg, errors.Wrap(err, "gatewayMac")
	}
	if cfg.Order, err = c.KeyOrder(); err != nil {
		return cfg, err
	}
	if cfg.Delivery, err = classifier.ParseDelivery(c.Delivery); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *DatapathConf) LogOptions() utils.LogOptions {
	return utils.LogOptions{
		Level:  c.LogLevel,
		Format: c.LogFormat,
		File:   c.LogFile,
	}
}

// ParseConf reads a json document, applies defaults and validates it.
func ParseConf(data []byte) (*DatapathConf, error) {
	conf := &DatapathConf{}
	if err := json.Unmarshal(data, conf); err != nil {
		return nil, errors.Wrap(err, "failed to load netconf")
	}
	conf.SetDefaults()
	if err := conf.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid netconf")
	}
	return conf, nil
}

// LoadConf reads path, or returns the defaults when path does not exist.
func LoadConf(path string) (*DatapathConf, error) {
	if path == "" || !utils.PathExists(path) {
		return DefaultConf(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read %s", path)
	}
	return ParseConf(data)
}
