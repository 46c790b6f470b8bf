package watcher

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.etcd.io/etcd/api/v3/mvccpb"

	"vxlancni/etcd"
	"vxlancni/plugins/vxlan/header"
	bpfmap "vxlancni/plugins/vxlan/map"
	"vxlancni/utils"
)

var log = utils.Logger().WithField(utils.LogSubsys, "watcher")

// Source is the part of the etcd client the watcher needs.
type Source interface {
	GetPrefix(ctx context.Context, prefix string) (map[string]string, int64, error)
	Watch(ctx context.Context, prefix string, rev int64, cb etcd.WatchCallback) error
}

// Sink receives pod location changes. Both the in-memory table and the
// pinned ding_ip writer are sinks.
type Sink interface {
	Batch(set map[bpfmap.IPKey]bpfmap.PodLocationRecord, del []bpfmap.IPKey)
}

// PodLocationWatcher mirrors <prefix>/<pod ip> = <node ip> from etcd into
// its sinks. Sync and Handle must not be called concurrently; Run calls them
// from a single goroutine.
type PodLocationWatcher struct {
	src    Source
	prefix string
	order  bpfmap.KeyOrder
	sinks  []Sink
	known  map[bpfmap.IPKey]struct{}

	synced   atomic.Bool
	events   atomic.Uint64
	ignored  atomic.Uint64
	lastSeen atomic.Int64
}

func NewPodLocationWatcher(src Source, prefix string, order bpfmap.KeyOrder, sinks ...Sink) *PodLocationWatcher {
	return &PodLocationWatcher{
		src:    src,
		prefix: strings.TrimSuffix(prefix, "/"),
		order:  order,
		sinks:  sinks,
		known:  map[bpfmap.IPKey]struct{}{},
	}
}

// 从 key 中拿到 pod ip, key 的格式是 <prefix>/<pod ip>
func (w *PodLocationWatcher) podFromKey(key string) (header.Addr, bool) {
	rest := strings.TrimPrefix(key, w.prefix+"/")
	if rest == key || strings.Contains(rest, "/") {
		return 0, false
	}
	ip, err := header.ParseAddr(rest)
	if err != nil {
		return 0, false
	}
	return ip, true
}

func (w *PodLocationWatcher) apply(set map[bpfmap.IPKey]bpfmap.PodLocationRecord, del []bpfmap.IPKey) {
	if len(set) == 0 && len(del) == 0 {
		return
	}
	for _, s := range w.sinks {
		s.Batch(set, del)
	}
}

// Sync loads everything under the prefix and pushes it to the sinks. It
// returns the revision to resume watching from.
func (w *PodLocationWatcher) Sync(ctx context.Context) (int64, error) {
	kvs, rev, err := w.src.GetPrefix(ctx, w.prefix+"/")
	if err != nil {
		return 0, err
	}
	set := make(map[bpfmap.IPKey]bpfmap.PodLocationRecord, len(kvs))
	for k, v := range kvs {
		pod, ok := w.podFromKey(k)
		if !ok {
			w.ignore(k, v, "key")
			continue
		}
		node, err := header.ParseAddr(strings.TrimSpace(v))
		if err != nil {
			w.ignore(k, v, "value")
			continue
		}
		set[w.order.EncodeAddr(pod)] = bpfmap.PodLocationRecord{NodeIP: node}
	}
	// 上次有这次没有的要删掉
	del := []bpfmap.IPKey{}
	for k := range w.known {
		if _, ok := set[k]; !ok {
			del = append(del, k)
		}
	}
	w.known = make(map[bpfmap.IPKey]struct{}, len(set))
	for k := range set {
		w.known[k] = struct{}{}
	}
	w.apply(set, del)
	w.synced.Store(true)
	w.lastSeen.Store(time.Now().Unix())
	log.WithFields(logrus.Fields{
		"prefix":   w.prefix,
		"pods":     len(set),
		"removed":  len(del),
		"revision": rev,
	}).Info("初始化 pod location 成功")
	return rev, nil
}

func (w *PodLocationWatcher) ignore(key, value, what string) {
	w.ignored.Add(1)
	log.WithFields(logrus.Fields{
		"key":   key,
		"value": value,
	}).Warnf("ignoring pod location with malformed %s", what)
}

// Handle applies one watch event.
func (w *PodLocationWatcher) Handle(_type mvccpb.Event_EventType, key, value []byte) {
	w.events.Add(1)
	w.lastSeen.Store(time.Now().Unix())

	pod, ok := w.podFromKey(string(key))
	if !ok {
		w.ignore(string(key), string(value), "key")
		return
	}
	podKey := w.order.EncodeAddr(pod)

	switch _type {
	case mvccpb.PUT:
		node, err := header.ParseAddr(strings.TrimSpace(string(value)))
		if err != nil {
			w.ignore(string(key), string(value), "value")
			return
		}
		w.known[podKey] = struct{}{}
		w.apply(map[bpfmap.IPKey]bpfmap.PodLocationRecord{podKey: {NodeIP: node}}, nil)
		log.WithFields(logrus.Fields{"pod": pod, "node": node}).Debug("pod location set")
	case mvccpb.DELETE:
		delete(w.known, podKey)
		w.apply(nil, []bpfmap.IPKey{podKey})
		log.WithField("pod", pod).Debug("pod location deleted")
	}
}

// Run syncs and then follows changes until ctx is done. A watch that fell
// behind compaction triggers a full resync.
func (w *PodLocationWatcher) Run(ctx context.Context) error {
	for {
		rev, err := w.Sync(ctx)
		if err != nil {
			return errors.Wrap(err, "initial pod location sync failed")
		}
		err = w.src.Watch(ctx, w.prefix+"/", rev, w.Handle)
		if ctx.Err() != nil {
			return nil
		}
		if !etcd.IsCompacted(err) {
			return err
		}
		log.WithError(err).Warn("resyncing pod locations")
	}
}

func (w *PodLocationWatcher) Synced() bool {
	return w.synced.Load()
}

type Stats struct {
	Synced   bool   `json:"synced"`
	Events   uint64 `json:"events"`
	Ignored  uint64 `json:"ignored"`
	LastSeen int64  `json:"lastSeen"`
}

func (w *PodLocationWatcher) Stats() Stats {
	return Stats{
		Synced:   w.synced.Load(),
		Events:   w.events.Load(),
		Ignored:  w.ignored.Load(),
		LastSeen: w.lastSeen.Load(),
	}
}
