package bpf_map

import (
	"github.com/sirupsen/logrus"

	"vxlancni/utils"
)

var log = utils.Logger().WithField(utils.LogSubsys, "bpf-map")

// EndpointTable answers "is this pod ip on this node". Keys are encoded with
// the KeyOrder the table was populated with.
type EndpointTable interface {
	LookupEndpoint(key IPKey) (EndpointRecord, bool)
}

// PodLocationTable answers "which node hosts this pod ip".
type PodLocationTable interface {
	LookupPodLocation(key IPKey) (PodLocationRecord, bool)
}

// LocalDeviceTable holds the ifindex of the node's tunnel and uplink devices.
type LocalDeviceTable interface {
	LookupLocalDevice(role DeviceRole) (LocalDeviceRecord, bool)
}

// Tables is the read-only view handed to the classifiers. The datapath never
// writes through it.
type Tables struct {
	Endpoints    EndpointTable
	PodLocations PodLocationTable
	Devices      LocalDeviceTable
}

func (t Tables) Valid() bool {
	return t.Endpoints != nil && t.PodLocations != nil && t.Devices != nil
}

// debugMiss guards logMiss so the lookup path does not box the key unless
// debug logging is on.
func debugMiss() bool {
	return log.Logger.IsLevelEnabled(logrus.DebugLevel)
}

func logMiss(table string, key interface{}) {
	log.WithFields(logrus.Fields{
		"table": table,
		"key":   key,
	}).Debug("lookup miss")
}
