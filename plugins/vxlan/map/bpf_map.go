package bpf_map

import (
	"path/filepath"

	"github.com/cilium/ebpf"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ErrLayoutMismatch is returned when a pinned table does not have the key or
// value size this package encodes.
var ErrLayoutMismatch = errors.New("pinned table layout mismatch")

func MapPath(root, name string) string {
	if root == "" {
		root = DEFAULT_TC_MAP_PREFIX
	}
	return filepath.Join(root, name)
}

func GetMapByPinned(pinPath string, opts ...*ebpf.LoadPinOptions) (*ebpf.Map, error) {
	var options *ebpf.LoadPinOptions
	if len(opts) == 0 {
		options = &ebpf.LoadPinOptions{}
	} else {
		options = opts[0]
	}
	m, err := ebpf.LoadPinnedMap(pinPath, options)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to load pinned map %s", pinPath)
	}
	return m, nil
}

func checkLayout(m *ebpf.Map, name string, keySize, valueSize uint32) error {
	if m.KeySize() != keySize || m.ValueSize() != valueSize {
		return errors.Wrapf(ErrLayoutMismatch,
			"%s: key/value size %d/%d, expected %d/%d",
			name, m.KeySize(), m.ValueSize(), keySize, valueSize)
	}
	return nil
}

func lookupFailed(name string, key interface{}, err error) {
	if errors.Is(err, ebpf.ErrKeyNotExist) {
		if debugMiss() {
			logMiss(name, key)
		}
		return
	}
	log.WithError(err).WithFields(logrus.Fields{
		"table": name,
		"key":   key,
	}).Warn("pinned table lookup failed")
}

/********* pinned read-only tables *********/

type PinnedEndpointTable struct {
	m *ebpf.Map
}

func (t *PinnedEndpointTable) LookupEndpoint(key IPKey) (EndpointRecord, bool) {
	var v EndpointValue
	if err := t.m.Lookup(key, &v); err != nil {
		lookupFailed(LXC_MAP_NAME, key, err)
		return EndpointRecord{}, false
	}
	return v.Record(), true
}

func (t *PinnedEndpointTable) dump() (map[IPKey]EndpointRecord, error) {
	out := map[IPKey]EndpointRecord{}
	var (
		k IPKey
		v EndpointValue
	)
	iter := t.m.Iterate()
	for iter.Next(&k, &v) {
		out[k] = v.Record()
	}
	return out, errors.Wrap(iter.Err(), "iterate "+LXC_MAP_NAME)
}

type PinnedPodLocationTable struct {
	m     *ebpf.Map
	order KeyOrder
}

func (t *PinnedPodLocationTable) LookupPodLocation(key IPKey) (PodLocationRecord, bool) {
	var v PodLocationValue
	if err := t.m.Lookup(key, &v); err != nil {
		lookupFailed(POD_MAP_NAME, key, err)
		return PodLocationRecord{}, false
	}
	return v.Record(t.order), true
}

func (t *PinnedPodLocationTable) dump() (map[IPKey]PodLocationRecord, error) {
	out := map[IPKey]PodLocationRecord{}
	var (
		k IPKey
		v PodLocationValue
	)
	iter := t.m.Iterate()
	for iter.Next(&k, &v) {
		out[k] = v.Record(t.order)
	}
	return out, errors.Wrap(iter.Err(), "iterate "+POD_MAP_NAME)
}

type PinnedLocalDeviceTable struct {
	m *ebpf.Map
}

func (t *PinnedLocalDeviceTable) LookupLocalDevice(role DeviceRole) (LocalDeviceRecord, bool) {
	var v DeviceValue
	if err := t.m.Lookup(NewDeviceKey(role), &v); err != nil {
		lookupFailed(NODE_LOCAL_MAP_NAME, role, err)
		return LocalDeviceRecord{}, false
	}
	return v.Record(), true
}

func (t *PinnedLocalDeviceTable) dump() (map[DeviceRole]LocalDeviceRecord, error) {
	out := map[DeviceRole]LocalDeviceRecord{}
	var (
		k DeviceKey
		v DeviceValue
	)
	iter := t.m.Iterate()
	for iter.Next(&k, &v) {
		out[k.Role()] = v.Record()
	}
	return out, errors.Wrap(iter.Err(), "iterate "+NODE_LOCAL_MAP_NAME)
}

/********* pinned pod location writer *********/

// PinnedPodLocationWriter pushes pod location changes into ding_ip for the
// kernel datapath. It is the only writer in this package and is used by the
// sync command, never by the classifiers.
type PinnedPodLocationWriter struct {
	m     *ebpf.Map
	order KeyOrder
}

func (w *PinnedPodLocationWriter) Batch(set map[IPKey]PodLocationRecord, del []IPKey) {
	for _, k := range del {
		if err := DelKey(w.m, k); err != nil && !errors.Is(err, ebpf.ErrKeyNotExist) {
			log.WithError(err).WithField("key", k).Warn("unable to delete pod location")
		}
	}
	for k, r := range set {
		if err := SetMap(w.m, k, NewPodLocationValue(w.order, r)); err != nil {
			log.WithError(err).WithField("key", k).Warn("unable to set pod location")
		}
	}
}

func (w *PinnedPodLocationWriter) Close() error {
	return w.m.Close()
}

func DelKey(m *ebpf.Map, key interface{}) error {
	return m.Delete(key)
}

func SetMap(m *ebpf.Map, key, value interface{}) error {
	return m.Put(key, value)
}
