package bpf_map

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/rlimit"
	"github.com/stretchr/testify/assert"

	"vxlancni/plugins/vxlan/header"
)

const testFixture = `
endpoints:
  - ip: 10.244.1.5
    hostIfIndex: 7
    podIfIndex: 6
    podMac: 0a:58:0a:f4:01:05
    hostMac: 6e:2a:51:09:3c:1e
pods:
  - ip: 10.244.2.9
    node: 192.168.1.12
devices:
  tunnel: 4
  uplink: 2
`

func TestKeyOrder(t *testing.T) {
	test := assert.New(t)
	ip := header.MustParseAddr("10.0.0.4")

	test.Equal(IPKey{4, 0, 0, 10}, HostOrder.EncodeAddr(ip))
	test.Equal(IPKey{10, 0, 0, 4}, NetworkOrder.EncodeAddr(ip))
	test.Equal(ip, HostOrder.DecodeAddr(HostOrder.EncodeAddr(ip)))
	test.Equal(ip, NetworkOrder.DecodeAddr(NetworkOrder.EncodeAddr(ip)))
	test.NotEqual(ip, HostOrder.DecodeAddr(NetworkOrder.EncodeAddr(ip)))

	o, err := ParseKeyOrder("network")
	test.Nil(err)
	test.Equal(NetworkOrder, o)
	o, err = ParseKeyOrder("")
	test.Nil(err)
	test.Equal(HostOrder, o)
	_, err = ParseKeyOrder("middle")
	test.NotNil(err)
}

func TestValueLayouts(t *testing.T) {
	test := assert.New(t)

	rec := EndpointRecord{
		HostIfIndex: 0x01020304,
		PodIfIndex:  9,
		PodMAC:      header.MustParseMAC("0a:58:0a:f4:01:05"),
		HostMAC:     header.MustParseMAC("6e:2a:51:09:3c:1e"),
	}
	v := NewEndpointValue(rec)
	test.Equal([]byte{4, 3, 2, 1}, v[0:4])
	test.Equal([]byte{9, 0, 0, 0}, v[4:8])
	test.Equal([]byte{0x0a, 0x58, 0x0a, 0xf4, 0x01, 0x05, 0, 0}, v[8:16])
	test.Equal([]byte{0x6e, 0x2a, 0x51, 0x09, 0x3c, 0x1e, 0, 0}, v[16:24])
	test.Equal(rec, v.Record())

	node := header.MustParseAddr("192.168.1.12")
	pv := NewPodLocationValue(HostOrder, PodLocationRecord{NodeIP: node})
	test.Equal(PodLocationValue{12, 1, 168, 192}, pv)
	test.Equal(node, pv.Record(HostOrder).NodeIP)

	test.Equal(DeviceKey{1, 0, 0, 0}, NewDeviceKey(DeviceTunnel))
	test.Equal(DeviceUplink, NewDeviceKey(DeviceUplink).Role())
	test.Equal(uint32(42), NewDeviceValue(LocalDeviceRecord{IfIndex: 42}).Record().IfIndex)
	test.Equal("tunnel", DeviceTunnel.String())
}

func TestMemoryTables(t *testing.T) {
	test := assert.New(t)
	mt := NewMemoryTables(HostOrder)
	pod := header.MustParseAddr("10.244.1.5")
	key := HostOrder.EncodeAddr(pod)

	/********* test miss on empty tables *********/
	_, ok := mt.Endpoints.LookupEndpoint(key)
	test.False(ok)
	_, ok = mt.Devices.LookupLocalDevice(DeviceTunnel)
	test.False(ok)

	/********* test set and lookup *********/
	mt.SetEndpoint(pod, EndpointRecord{HostIfIndex: 7, PodIfIndex: 6})
	mt.SetLocalDevice(DeviceTunnel, 4)
	r, ok := mt.Endpoints.LookupEndpoint(key)
	test.True(ok)
	test.Equal(uint32(6), r.PodIfIndex)
	d, ok := mt.Devices.LookupLocalDevice(DeviceTunnel)
	test.True(ok)
	test.Equal(uint32(4), d.IfIndex)

	/********* test replace copies its input *********/
	entries := map[IPKey]PodLocationRecord{key: {NodeIP: header.MustParseAddr("192.168.1.12")}}
	mt.PodLocations.Replace(entries)
	delete(entries, key)
	_, ok = mt.PodLocations.LookupPodLocation(key)
	test.True(ok)

	/********* test batch *********/
	other := HostOrder.EncodeAddr(header.MustParseAddr("10.244.3.3"))
	mt.PodLocations.Batch(map[IPKey]PodLocationRecord{other: {NodeIP: 1}}, []IPKey{key})
	_, ok = mt.PodLocations.LookupPodLocation(key)
	test.False(ok)
	_, ok = mt.PodLocations.LookupPodLocation(other)
	test.True(ok)
	test.Equal(1, mt.PodLocations.Len())

	/********* test delete *********/
	mt.Endpoints.Delete(key)
	test.Equal(0, mt.Endpoints.Len())
	test.True(mt.Tables().Valid())
	test.False(Tables{}.Valid())
}

func TestMemoryTablesConcurrentReaders(t *testing.T) {
	test := assert.New(t)
	m := NewPodLocationMap()
	key := IPKey{1, 2, 3, 4}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					if r, ok := m.LookupPodLocation(key); ok && r.NodeIP == 0 {
						t.Error("observed a zero node ip")
						return
					}
				}
			}
		}()
	}
	for i := 1; i <= 1000; i++ {
		m.Set(key, PodLocationRecord{NodeIP: header.Addr(i)})
	}
	close(stop)
	wg.Wait()

	r, ok := m.LookupPodLocation(key)
	test.True(ok)
	test.Equal(header.Addr(1000), r.NodeIP)
}

func TestFixture(t *testing.T) {
	test := assert.New(t)
	f, err := ParseFixture([]byte(testFixture))
	test.Nil(err)
	test.Len(f.Endpoints, 1)
	test.Equal(uint32(7), f.Endpoints[0].HostIfIndex)
	test.Equal(header.MustParseMAC("0a:58:0a:f4:01:05"), f.Endpoints[0].PodMAC)

	pod := header.MustParseAddr("10.244.1.5")
	remote := header.MustParseAddr("10.244.2.9")
	for _, order := range []KeyOrder{HostOrder, NetworkOrder} {
		mt := f.Build(order)
		_, ok := mt.Endpoints.LookupEndpoint(order.EncodeAddr(pod))
		test.True(ok, order.String())
		loc, ok := mt.PodLocations.LookupPodLocation(order.EncodeAddr(remote))
		test.True(ok, order.String())
		test.Equal(header.MustParseAddr("192.168.1.12"), loc.NodeIP)
		dev, ok := mt.Devices.LookupLocalDevice(DeviceUplink)
		test.True(ok)
		test.Equal(uint32(2), dev.IfIndex)
	}

	/********* test reading with the other byte order misses *********/
	mt := f.Build(HostOrder)
	_, ok := mt.Endpoints.LookupEndpoint(NetworkOrder.EncodeAddr(pod))
	test.False(ok)

	/********* test dump back to yaml *********/
	out, err := FixtureFromTables(mt).Marshal()
	test.Nil(err)
	again, err := ParseFixture(out)
	test.Nil(err)
	test.Equal(f, again)

	/********* test invalid fixtures *********/
	_, err = ParseFixture([]byte("pods:\n  - ip: 10.0.0.1\n"))
	test.NotNil(err)
	_, err = ParseFixture([]byte("endpoints:\n  - ip: 10.0.0.300\n"))
	test.NotNil(err)
	_, err = ParseFixture([]byte("endpoints:\n  - ip: 10.0.0.1\n  - ip: 10.0.0.1\n"))
	test.NotNil(err)
}

/********* pinned tables, needs root and a bpffs mount *********/

func pinTestMap(t *testing.T, dir, name string, keySize, valueSize uint32) *ebpf.Map {
	m, err := ebpf.NewMap(&ebpf.MapSpec{
		Name:       name,
		Type:       ebpf.Hash,
		KeySize:    keySize,
		ValueSize:  valueSize,
		MaxEntries: MAX_ENTRIES,
	})
	if err != nil {
		t.Fatalf("create %s: %v", name, err)
	}
	if err := m.Pin(filepath.Join(dir, name)); err != nil {
		m.Close()
		// /sys/fs/bpf 存在但没挂 bpffs 的容器里 pin 会失败
		t.Skipf("unable to pin %s, bpffs not usable: %v", name, err)
	}
	t.Cleanup(func() {
		m.Unpin()
		m.Close()
	})
	return m
}

func TestPinnedMaps(t *testing.T) {
	if os.Geteuid() != 0 {
		t.Skip("needs root")
	}
	if _, err := os.Stat(DEFAULT_MAP_ROOT); err != nil {
		t.Skip("bpffs not mounted")
	}
	if err := rlimit.RemoveMemlock(); err != nil {
		t.Skipf("unable to lift memlock: %v", err)
	}
	dir := filepath.Join(DEFAULT_MAP_ROOT, fmt.Sprintf("vxlancni-test-%d", time.Now().UnixNano()))
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Skipf("bpffs not mounted: %v", err)
	}
	defer os.RemoveAll(dir)
	test := assert.New(t)

	lxc := pinTestMap(t, dir, LXC_MAP_NAME, 4, EndpointValueSize)
	pod := pinTestMap(t, dir, POD_MAP_NAME, 4, PodLocationValueSize)
	local := pinTestMap(t, dir, NODE_LOCAL_MAP_NAME, DeviceKeySize, DeviceValueSize)

	podIP := header.MustParseAddr("10.244.1.5")
	remoteIP := header.MustParseAddr("10.244.2.9")
	nodeIP := header.MustParseAddr("192.168.1.12")
	rec := EndpointRecord{HostIfIndex: 7, PodIfIndex: 6, PodMAC: header.MustParseMAC("0a:58:0a:f4:01:05")}

	test.Nil(SetMap(lxc, HostOrder.EncodeAddr(podIP), NewEndpointValue(rec)))
	test.Nil(SetMap(pod, HostOrder.EncodeAddr(remoteIP), NewPodLocationValue(HostOrder, PodLocationRecord{NodeIP: nodeIP})))
	test.Nil(SetMap(local, NewDeviceKey(DeviceTunnel), NewDeviceValue(LocalDeviceRecord{IfIndex: 4})))

	/********* test attach and lookup *********/
	mm, err := OpenPinnedMaps(dir, HostOrder)
	test.Nil(err)
	if err != nil {
		return
	}
	defer mm.Close()

	tables := mm.Tables()
	got, ok := tables.Endpoints.LookupEndpoint(HostOrder.EncodeAddr(podIP))
	test.True(ok)
	test.Equal(rec, got)
	_, ok = tables.Endpoints.LookupEndpoint(NetworkOrder.EncodeAddr(podIP))
	test.False(ok)
	loc, ok := tables.PodLocations.LookupPodLocation(HostOrder.EncodeAddr(remoteIP))
	test.True(ok)
	test.Equal(nodeIP, loc.NodeIP)
	dev, ok := tables.Devices.LookupLocalDevice(DeviceTunnel)
	test.True(ok)
	test.Equal(uint32(4), dev.IfIndex)
	_, ok = tables.Devices.LookupLocalDevice(DeviceUplink)
	test.False(ok)

	/********* test snapshot *********/
	mt, err := mm.Snapshot()
	test.Nil(err)
	test.Equal(1, mt.Endpoints.Len())
	test.Equal(1, mt.PodLocations.Len())
	test.Equal(1, mt.Devices.Len())

	/********* test writer *********/
	w, err := mm.PodLocationWriter()
	test.Nil(err)
	w.Batch(nil, []IPKey{HostOrder.EncodeAddr(remoteIP)})
	w.Close()
	_, ok = tables.PodLocations.LookupPodLocation(HostOrder.EncodeAddr(remoteIP))
	test.False(ok)

	/********* test layout mismatch *********/
	bad := filepath.Join(dir, "bad")
	test.Nil(os.MkdirAll(bad, 0755))
	pinTestMap(t, bad, LXC_MAP_NAME, 4, 16)
	pinTestMap(t, bad, POD_MAP_NAME, 4, PodLocationValueSize)
	pinTestMap(t, bad, NODE_LOCAL_MAP_NAME, DeviceKeySize, DeviceValueSize)
	_, err = OpenPinnedMaps(bad, HostOrder)
	test.ErrorIs(err, ErrLayoutMismatch)
}
