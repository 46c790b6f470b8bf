package consts

const (
	MODE_VXLAN = "vxlan"
)

const (
	DEFAULT_TEST_CNI_API = "/testcni/api/v1"
	DEFAULT_TMP_PORT     = "3190"
	// 子进程健康检查以及 metrics 的路径
	DEFAULT_HEALTH_PATH  = DEFAULT_TEST_CNI_API + "/childprocess/health"
	DEFAULT_METRICS_PATH = "/metrics"
)

const (
	KUBE_TEST_CNI_DEFAULT_PATH            = "/opt/testcni"
	KUBE_TEST_CNI_TMP_DEAMON_DEFAULT_PATH = KUBE_TEST_CNI_DEFAULT_PATH + "/deamon"
	KUBE_TEST_CNI_DEFAULT_CONF_PATH       = KUBE_TEST_CNI_DEFAULT_PATH + "/vxlan.conf"
	KUBE_TEST_CNI_DEFAULT_LOG_PATH        = KUBE_TEST_CNI_DEFAULT_PATH + "/vxlan.log"
)

const (
	// etcd 中存放 pod ip -> node ip 的前缀, 完整的 key 是 <prefix>/<pod ip>
	DEFAULT_POD_LOCATION_PREFIX = "/testcni/vxlan/pods"
	DEFAULT_ETCD_CA_PATH        = "/etc/kubernetes/pki/etcd/ca.crt"
	DEFAULT_ETCD_CERT_PATH      = "/etc/kubernetes/pki/etcd/healthcheck-client.crt"
	DEFAULT_ETCD_KEY_PATH       = "/etc/kubernetes/pki/etcd/healthcheck-client.key"
)

const (
	// overlay 全局唯一的 vni
	DEFAULT_TUNNEL_ID = 13190
	// vni 只有 24 位
	MAX_TUNNEL_ID   = 1<<24 - 1
	DEFAULT_TTL     = 64
	DEFAULT_TOS     = 0
	// pod 把网关当成这个假 mac, 由数据面自己应答 arp
	DEFAULT_GATEWAY_MAC = "de:ad:be:ef:c0:de"
)

const (
	DEFAULT_TUNNEL_DEVICE = "ding_vxlan"
	DEFAULT_UPLINK_DEVICE = "eth0"
)
