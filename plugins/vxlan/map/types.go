package bpf_map

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"vxlancni/plugins/vxlan/header"
)

// KeyOrder is the convention used to turn an address into the 4 key bytes of
// the ding_lxc and ding_ip tables (and the node ip value of ding_ip). The
// writer of the tables and every reader must agree on it.
type KeyOrder int

const (
	// HostOrder stores the numeric address as a little endian u32. This is
	// what htonl(ip->daddr) produces on the datapath side and what
	// InetIpToUInt32 + a native endian map update produces on the writer side.
	HostOrder KeyOrder = iota
	// NetworkOrder stores the address bytes as they appear on the wire.
	NetworkOrder
)

func ParseKeyOrder(s string) (KeyOrder, error) {
	switch strings.ToLower(s) {
	case "", "host":
		return HostOrder, nil
	case "network":
		return NetworkOrder, nil
	}
	return HostOrder, errors.Errorf("unknown key byte order %q, expected host or network", s)
}

func (o KeyOrder) String() string {
	switch o {
	case HostOrder:
		return "host"
	case NetworkOrder:
		return "network"
	}
	return fmt.Sprintf("KeyOrder(%d)", int(o))
}

func (o KeyOrder) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *KeyOrder) UnmarshalText(text []byte) error {
	v, err := ParseKeyOrder(string(text))
	if err != nil {
		return err
	}
	*o = v
	return nil
}

// IPKey is the 4 byte key of ding_lxc and ding_ip.
type IPKey [4]byte

func (o KeyOrder) EncodeAddr(a header.Addr) IPKey {
	var k IPKey
	if o == NetworkOrder {
		binary.BigEndian.PutUint32(k[:], uint32(a))
	} else {
		binary.LittleEndian.PutUint32(k[:], uint32(a))
	}
	return k
}

func (o KeyOrder) DecodeAddr(k [4]byte) header.Addr {
	if o == NetworkOrder {
		return header.Addr(binary.BigEndian.Uint32(k[:]))
	}
	return header.Addr(binary.LittleEndian.Uint32(k[:]))
}

/********* 存本机每个 veth pair 的信息 *********/
/********* pin name: ding_lxc *********/

// EndpointRecord describes a pod scheduled on this node.
type EndpointRecord struct {
	HostIfIndex uint32     `yaml:"hostIfIndex" json:"hostIfIndex"`
	PodIfIndex  uint32     `yaml:"podIfIndex" json:"podIfIndex"`
	PodMAC      header.MAC `yaml:"podMac" json:"podMac"`
	HostMAC     header.MAC `yaml:"hostMac" json:"hostMac"`
}

func (r EndpointRecord) String() string {
	return fmt.Sprintf("hostIfIndex=%d podIfIndex=%d podMac=%s hostMac=%s",
		r.HostIfIndex, r.PodIfIndex, r.PodMAC, r.HostMAC)
}

//
// struct endpointInfo {
//   __u32 ifIndex;
//   __u32 lxcIfIndex;
//   __u8 mac[8];
//   __u8 nodeMac[8];
// };
const EndpointValueSize = 24

type EndpointValue [EndpointValueSize]byte

func NewEndpointValue(r EndpointRecord) EndpointValue {
	var v EndpointValue
	binary.LittleEndian.PutUint32(v[0:4], r.HostIfIndex)
	binary.LittleEndian.PutUint32(v[4:8], r.PodIfIndex)
	copy(v[8:14], r.PodMAC[:])
	copy(v[16:22], r.HostMAC[:])
	return v
}

func (v EndpointValue) HostIfIndex() uint32 {
	return binary.LittleEndian.Uint32(v[0:4])
}

func (v EndpointValue) PodIfIndex() uint32 {
	return binary.LittleEndian.Uint32(v[4:8])
}

func (v EndpointValue) PodMAC() header.MAC {
	var m header.MAC
	copy(m[:], v[8:14])
	return m
}

func (v EndpointValue) HostMAC() header.MAC {
	var m header.MAC
	copy(m[:], v[16:22])
	return m
}

func (v EndpointValue) Record() EndpointRecord {
	return EndpointRecord{
		HostIfIndex: v.HostIfIndex(),
		PodIfIndex:  v.PodIfIndex(),
		PodMAC:      v.PodMAC(),
		HostMAC:     v.HostMAC(),
	}
}

/********* 存整个集群的 pod ip 以及对应的 node ip *********/
/********* pin name: ding_ip *********/

type PodLocationRecord struct {
	NodeIP header.Addr `yaml:"nodeIp" json:"nodeIp"`
}

const PodLocationValueSize = 4

type PodLocationValue [PodLocationValueSize]byte

func NewPodLocationValue(o KeyOrder, r PodLocationRecord) PodLocationValue {
	return PodLocationValue(o.EncodeAddr(r.NodeIP))
}

func (v PodLocationValue) Record(o KeyOrder) PodLocationRecord {
	return PodLocationRecord{NodeIP: o.DecodeAddr(v)}
}

/********* 存本机网络设备的 ifindex *********/
/********* pin name: ding_local *********/

type DeviceRole uint32

const (
	DeviceTunnel DeviceRole = 1
	DeviceUplink DeviceRole = 2
)

func (r DeviceRole) String() string {
	switch r {
	case DeviceTunnel:
		return "tunnel"
	case DeviceUplink:
		return "uplink"
	}
	return fmt.Sprintf("DeviceRole(%d)", uint32(r))
}

func ParseDeviceRole(s string) (DeviceRole, error) {
	switch strings.ToLower(s) {
	case "tunnel", "vxlan":
		return DeviceTunnel, nil
	case "uplink":
		return DeviceUplink, nil
	}
	return 0, errors.Errorf("unknown device role %q", s)
}

type LocalDeviceRecord struct {
	IfIndex uint32 `yaml:"ifIndex" json:"ifIndex"`
}

const (
	DeviceKeySize   = 4
	DeviceValueSize = 4
)

type DeviceKey [DeviceKeySize]byte

func NewDeviceKey(r DeviceRole) DeviceKey {
	var k DeviceKey
	binary.LittleEndian.PutUint32(k[:], uint32(r))
	return k
}

func (k DeviceKey) Role() DeviceRole {
	return DeviceRole(binary.LittleEndian.Uint32(k[:]))
}

type DeviceValue [DeviceValueSize]byte

func NewDeviceValue(r LocalDeviceRecord) DeviceValue {
	var v DeviceValue
	binary.LittleEndian.PutUint32(v[:], r.IfIndex)
	return v
}

func (v DeviceValue) Record() LocalDeviceRecord {
	return LocalDeviceRecord{IfIndex: binary.LittleEndian.Uint32(v[:])}
}
