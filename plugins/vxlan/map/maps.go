package bpf_map

import (
	"github.com/cilium/ebpf"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// MapsManager owns the read-only handles of the three pinned tables.
type MapsManager struct {
	root  string
	order KeyOrder

	lxc   *ebpf.Map
	pod   *ebpf.Map
	local *ebpf.Map
}

// OpenPinnedMaps attaches to ding_lxc, ding_ip and ding_local under root by
// name and checks that their layouts match what this package encodes.
func OpenPinnedMaps(root string, order KeyOrder) (*MapsManager, error) {
	if root == "" {
		root = DEFAULT_TC_MAP_PREFIX
	}
	mm := &MapsManager{root: root, order: order}
	opts := &ebpf.LoadPinOptions{ReadOnly: true}

	var err error
	if mm.lxc, err = openChecked(root, LXC_MAP_NAME, 4, EndpointValueSize, opts); err != nil {
		mm.Close()
		return nil, err
	}
	if mm.pod, err = openChecked(root, POD_MAP_NAME, 4, PodLocationValueSize, opts); err != nil {
		mm.Close()
		return nil, err
	}
	if mm.local, err = openChecked(root, NODE_LOCAL_MAP_NAME, DeviceKeySize, DeviceValueSize, opts); err != nil {
		mm.Close()
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"root":  root,
		"order": order,
	}).Info("attached to pinned tables")
	return mm, nil
}

func openChecked(root, name string, keySize, valueSize uint32, opts *ebpf.LoadPinOptions) (*ebpf.Map, error) {
	m, err := GetMapByPinned(MapPath(root, name), opts)
	if err != nil {
		return nil, err
	}
	if err := checkLayout(m, name, keySize, valueSize); err != nil {
		m.Close()
		return nil, err
	}
	return m, nil
}

func (mm *MapsManager) Order() KeyOrder {
	return mm.order
}

// Tables exposes the pinned maps directly. Every lookup is a syscall; use
// Snapshot for the hot path.
func (mm *MapsManager) Tables() Tables {
	return Tables{
		Endpoints:    &PinnedEndpointTable{m: mm.lxc},
		PodLocations: &PinnedPodLocationTable{m: mm.pod, order: mm.order},
		Devices:      &PinnedLocalDeviceTable{m: mm.local},
	}
}

// Snapshot copies the current content of the pinned tables into memory.
func (mm *MapsManager) Snapshot() (*MemoryTables, error) {
	mt := NewMemoryTables(mm.order)

	endpoints, err := (&PinnedEndpointTable{m: mm.lxc}).dump()
	if err != nil {
		return nil, err
	}
	pods, err := (&PinnedPodLocationTable{m: mm.pod, order: mm.order}).dump()
	if err != nil {
		return nil, err
	}
	devices, err := (&PinnedLocalDeviceTable{m: mm.local}).dump()
	if err != nil {
		return nil, err
	}

	mt.Endpoints.Replace(endpoints)
	mt.PodLocations.Replace(pods)
	mt.Devices.Replace(devices)
	log.WithFields(logrus.Fields{
		"endpoints": len(endpoints),
		"pods":      len(pods),
		"devices":   len(devices),
	}).Debug("snapshot of pinned tables")
	return mt, nil
}

// PodLocationWriter opens a second, writable handle on ding_ip.
func (mm *MapsManager) PodLocationWriter() (*PinnedPodLocationWriter, error) {
	m, err := openChecked(mm.root, POD_MAP_NAME, 4, PodLocationValueSize, &ebpf.LoadPinOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "unable to open pod location table for update")
	}
	return &PinnedPodLocationWriter{m: m, order: mm.order}, nil
}

func (mm *MapsManager) Close() error {
	var first error
	for _, m := range []*ebpf.Map{mm.lxc, mm.pod, mm.local} {
		if m == nil {
			continue
		}
		if err := m.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
