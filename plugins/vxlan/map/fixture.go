package bpf_map

import (
	"os"
	"sort"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"vxlancni/plugins/vxlan/header"
)

// Fixture is a yaml description of the three tables, used by tests, the
// replay command and the discover command.
//
//	endpoints:
//	  - ip: 10.244.1.5
//	    hostIfIndex: 7
//	    podIfIndex: 6
//	    podMac: 0a:58:0a:f4:01:05
//	    hostMac: 6e:2a:51:09:3c:1e
//	pods:
//	  - ip: 10.244.2.9
//	    node: 192.168.1.12
//	devices:
//	  tunnel: 4
//	  uplink: 2
type Fixture struct {
	Endpoints []FixtureEndpoint `yaml:"endpoints,omitempty"`
	Pods      []FixturePod      `yaml:"pods,omitempty"`
	Devices   FixtureDevices    `yaml:"devices"`
}

type FixtureEndpoint struct {
	IP             header.Addr `yaml:"ip"`
	EndpointRecord `yaml:",inline"`
}

type FixturePod struct {
	IP   header.Addr `yaml:"ip"`
	Node header.Addr `yaml:"node"`
}

type FixtureDevices struct {
	Tunnel uint32 `yaml:"tunnel,omitempty"`
	Uplink uint32 `yaml:"uplink,omitempty"`
}

func ParseFixture(data []byte) (*Fixture, error) {
	f := &Fixture{}
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, errors.Wrap(err, "invalid table fixture")
	}
	seen := map[header.Addr]bool{}
	for _, ep := range f.Endpoints {
		if ep.IP == 0 {
			return nil, errors.New("fixture endpoint without ip")
		}
		if seen[ep.IP] {
			return nil, errors.Errorf("duplicate fixture endpoint %s", ep.IP)
		}
		seen[ep.IP] = true
	}
	for _, p := range f.Pods {
		if p.IP == 0 || p.Node == 0 {
			return nil, errors.Errorf("fixture pod entry needs ip and node: %+v", p)
		}
	}
	return f, nil
}

func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read fixture %s", path)
	}
	return ParseFixture(data)
}

// Build encodes the fixture into in-memory tables using order for every ip
// key and for the node ip values.
func (f *Fixture) Build(order KeyOrder) *MemoryTables {
	mt := NewMemoryTables(order)

	endpoints := make(map[IPKey]EndpointRecord, len(f.Endpoints))
	for _, ep := range f.Endpoints {
		endpoints[order.EncodeAddr(ep.IP)] = ep.EndpointRecord
	}
	pods := make(map[IPKey]PodLocationRecord, len(f.Pods))
	for _, p := range f.Pods {
		pods[order.EncodeAddr(p.IP)] = PodLocationRecord{NodeIP: p.Node}
	}
	devices := map[DeviceRole]LocalDeviceRecord{}
	if f.Devices.Tunnel != 0 {
		devices[DeviceTunnel] = LocalDeviceRecord{IfIndex: f.Devices.Tunnel}
	}
	if f.Devices.Uplink != 0 {
		devices[DeviceUplink] = LocalDeviceRecord{IfIndex: f.Devices.Uplink}
	}

	mt.Endpoints.Replace(endpoints)
	mt.PodLocations.Replace(pods)
	mt.Devices.Replace(devices)
	return mt
}

// FixtureFromTables turns in-memory tables back into a fixture.
func FixtureFromTables(mt *MemoryTables) *Fixture {
	f := &Fixture{}
	for k, r := range mt.Endpoints.Dump() {
		f.Endpoints = append(f.Endpoints, FixtureEndpoint{IP: mt.Order.DecodeAddr(k), EndpointRecord: r})
	}
	for k, r := range mt.PodLocations.Dump() {
		f.Pods = append(f.Pods, FixturePod{IP: mt.Order.DecodeAddr(k), Node: r.NodeIP})
	}
	devices := mt.Devices.Dump()
	f.Devices.Tunnel = devices[DeviceTunnel].IfIndex
	f.Devices.Uplink = devices[DeviceUplink].IfIndex
	f.sort()
	return f
}

func (f *Fixture) sort() {
	sortByAddr(f.Endpoints, func(e FixtureEndpoint) header.Addr { return e.IP })
	sortByAddr(f.Pods, func(p FixturePod) header.Addr { return p.IP })
}

func (f *Fixture) Marshal() ([]byte, error) {
	return yaml.Marshal(f)
}

func sortByAddr[T any](s []T, addr func(T) header.Addr) {
	sort.Slice(s, func(i, j int) bool { return addr(s[i]) < addr(s[j]) })
}
