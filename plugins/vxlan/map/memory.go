package bpf_map

import (
	"sync"
	"sync/atomic"

	"vxlancni/plugins/vxlan/header"
)

// cowMap is a copy-on-write map: readers load the current snapshot without
// taking a lock, writers build a new map and swap it in.
type cowMap[K comparable, V any] struct {
	mu sync.Mutex
	m  atomic.Pointer[map[K]V]
}

func (c *cowMap[K, V]) load() map[K]V {
	p := c.m.Load()
	if p == nil {
		return nil
	}
	return *p
}

func (c *cowMap[K, V]) get(k K) (V, bool) {
	v, ok := c.load()[k]
	return v, ok
}

func (c *cowMap[K, V]) replace(entries map[K]V) {
	next := make(map[K]V, len(entries))
	for k, v := range entries {
		next[k] = v
	}
	c.mu.Lock()
	c.m.Store(&next)
	c.mu.Unlock()
}

func (c *cowMap[K, V]) update(fn func(m map[K]V)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cur := c.load()
	next := make(map[K]V, len(cur)+1)
	for k, v := range cur {
		next[k] = v
	}
	fn(next)
	c.m.Store(&next)
}

func (c *cowMap[K, V]) dump() map[K]V {
	cur := c.load()
	out := make(map[K]V, len(cur))
	for k, v := range cur {
		out[k] = v
	}
	return out
}

func (c *cowMap[K, V]) size() int {
	return len(c.load())
}

/********* in-memory tables *********/

type EndpointMap struct {
	entries cowMap[IPKey, EndpointRecord]
}

func NewEndpointMap() *EndpointMap {
	return &EndpointMap{}
}

func (t *EndpointMap) LookupEndpoint(key IPKey) (EndpointRecord, bool) {
	r, ok := t.entries.get(key)
	if !ok && debugMiss() {
		logMiss(LXC_MAP_NAME, key)
	}
	return r, ok
}

func (t *EndpointMap) Replace(entries map[IPKey]EndpointRecord) {
	t.entries.replace(entries)
}

func (t *EndpointMap) Set(key IPKey, r EndpointRecord) {
	t.entries.update(func(m map[IPKey]EndpointRecord) { m[key] = r })
}

func (t *EndpointMap) Delete(key IPKey) {
	t.entries.update(func(m map[IPKey]EndpointRecord) { delete(m, key) })
}

func (t *EndpointMap) Dump() map[IPKey]EndpointRecord {
	return t.entries.dump()
}

func (t *EndpointMap) Len() int {
	return t.entries.size()
}

type PodLocationMap struct {
	entries cowMap[IPKey, PodLocationRecord]
}

func NewPodLocationMap() *PodLocationMap {
	return &PodLocationMap{}
}

func (t *PodLocationMap) LookupPodLocation(key IPKey) (PodLocationRecord, bool) {
	r, ok := t.entries.get(key)
	if !ok && debugMiss() {
		logMiss(POD_MAP_NAME, key)
	}
	return r, ok
}

func (t *PodLocationMap) Replace(entries map[IPKey]PodLocationRecord) {
	t.entries.replace(entries)
}

func (t *PodLocationMap) Set(key IPKey, r PodLocationRecord) {
	t.entries.update(func(m map[IPKey]PodLocationRecord) { m[key] = r })
}

func (t *PodLocationMap) Delete(key IPKey) {
	t.entries.update(func(m map[IPKey]PodLocationRecord) { delete(m, key) })
}

// Batch applies several sets and deletes as one swap, so readers never see
// half of a watch event batch.
func (t *PodLocationMap) Batch(set map[IPKey]PodLocationRecord, del []IPKey) {
	t.entries.update(func(m map[IPKey]PodLocationRecord) {
		for _, k := range del {
			delete(m, k)
		}
		for k, v := range set {
			m[k] = v
		}
	})
}

func (t *PodLocationMap) Dump() map[IPKey]PodLocationRecord {
	return t.entries.dump()
}

func (t *PodLocationMap) Len() int {
	return t.entries.size()
}

type LocalDeviceMap struct {
	entries cowMap[DeviceRole, LocalDeviceRecord]
}

func NewLocalDeviceMap() *LocalDeviceMap {
	return &LocalDeviceMap{}
}

func (t *LocalDeviceMap) LookupLocalDevice(role DeviceRole) (LocalDeviceRecord, bool) {
	r, ok := t.entries.get(role)
	if !ok && debugMiss() {
		logMiss(NODE_LOCAL_MAP_NAME, role)
	}
	return r, ok
}

func (t *LocalDeviceMap) Replace(entries map[DeviceRole]LocalDeviceRecord) {
	t.entries.replace(entries)
}

func (t *LocalDeviceMap) Set(role DeviceRole, r LocalDeviceRecord) {
	t.entries.update(func(m map[DeviceRole]LocalDeviceRecord) { m[role] = r })
}

func (t *LocalDeviceMap) Delete(role DeviceRole) {
	t.entries.update(func(m map[DeviceRole]LocalDeviceRecord) { delete(m, role) })
}

func (t *LocalDeviceMap) Dump() map[DeviceRole]LocalDeviceRecord {
	return t.entries.dump()
}

func (t *LocalDeviceMap) Len() int {
	return t.entries.size()
}

// MemoryTables is a process local copy of the three tables.
type MemoryTables struct {
	Order        KeyOrder
	Endpoints    *EndpointMap
	PodLocations *PodLocationMap
	Devices      *LocalDeviceMap
}

func NewMemoryTables(order KeyOrder) *MemoryTables {
	return &MemoryTables{
		Order:        order,
		Endpoints:    NewEndpointMap(),
		PodLocations: NewPodLocationMap(),
		Devices:      NewLocalDeviceMap(),
	}
}

func (mt *MemoryTables) Tables() Tables {
	return Tables{
		Endpoints:    mt.Endpoints,
		PodLocations: mt.PodLocations,
		Devices:      mt.Devices,
	}
}

func (mt *MemoryTables) SetEndpoint(podIP header.Addr, r EndpointRecord) {
	mt.Endpoints.Set(mt.Order.EncodeAddr(podIP), r)
}

func (mt *MemoryTables) SetPodLocation(podIP header.Addr, r PodLocationRecord) {
	mt.PodLocations.Set(mt.Order.EncodeAddr(podIP), r)
}

func (mt *MemoryTables) SetLocalDevice(role DeviceRole, ifindex uint32) {
	mt.Devices.Set(role, LocalDeviceRecord{IfIndex: ifindex})
}
