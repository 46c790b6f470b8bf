package bpf_map

const (
	APP_PREFIX = "ding"
)

const (
	DEFAULT_MAP_ROOT   = "/sys/fs/bpf"
	DEFAULT_MAP_PREFIX = "tc/globals"
)

const (
	// 绑 veth 网卡的 ip 以及对应的 mac 地址还有 ifindex
	LXC_MAP_NAME = APP_PREFIX + "_lxc"
	// 绑每个 pod ip 对应的 node ip 地址
	POD_MAP_NAME = APP_PREFIX + "_ip"
	// 用来存本机的网卡设备们的 ifindex
	NODE_LOCAL_MAP_NAME = APP_PREFIX + "_local"
)

const (
	DEFAULT_TC_MAP_PREFIX       = DEFAULT_MAP_ROOT + "/" + DEFAULT_MAP_PREFIX
	LXC_MAP_DEFAULT_PATH        = DEFAULT_TC_MAP_PREFIX + "/" + LXC_MAP_NAME
	POD_MAP_DEFAULT_PATH        = DEFAULT_TC_MAP_PREFIX + "/" + POD_MAP_NAME
	NODE_LOCAL_MAP_DEFAULT_PATH = DEFAULT_TC_MAP_PREFIX + "/" + NODE_LOCAL_MAP_NAME
)

const MAX_ENTRIES = 255
