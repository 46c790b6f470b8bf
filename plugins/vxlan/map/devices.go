package bpf_map

import (
	"github.com/containernetworking/plugins/pkg/ns"
	"github.com/pkg/errors"
	"github.com/vishvananda/netlink"

	"vxlancni/plugins/vxlan/header"
)

// DiscoverLocalDevices resolves the ifindex of the tunnel and uplink devices
// by name. An empty name skips that role.
func DiscoverLocalDevices(tunnel, uplink string) (map[DeviceRole]LocalDeviceRecord, error) {
	res := map[DeviceRole]LocalDeviceRecord{}
	for role, name := range map[DeviceRole]string{DeviceTunnel: tunnel, DeviceUplink: uplink} {
		if name == "" {
			continue
		}
		link, err := netlink.LinkByName(name)
		if err != nil {
			return nil, errors.Wrapf(err, "unable to find %s device %q", role, name)
		}
		res[role] = LocalDeviceRecord{IfIndex: uint32(link.Attrs().Index)}
	}
	return res, nil
}

// DiscoverEndpoint builds the ding_lxc entry for one pod: the host side of the
// veth pair is looked up in the current namespace, the pod side inside the
// netns at netnsPath. It returns the pod's first ipv4 address as well.
func DiscoverEndpoint(hostVeth, netnsPath, podIfName string) (header.Addr, EndpointRecord, error) {
	var rec EndpointRecord

	hostLink, err := netlink.LinkByName(hostVeth)
	if err != nil {
		return 0, rec, errors.Wrapf(err, "unable to find host veth %q", hostVeth)
	}
	rec.HostIfIndex = uint32(hostLink.Attrs().Index)
	if rec.HostMAC, err = header.MACFromHardwareAddr(hostLink.Attrs().HardwareAddr); err != nil {
		return 0, rec, errors.Wrapf(err, "host veth %q", hostVeth)
	}

	var podIP header.Addr
	err = ns.WithNetNSPath(netnsPath, func(ns.NetNS) error {
		podLink, err := netlink.LinkByName(podIfName)
		if err != nil {
			return errors.Wrapf(err, "unable to find %q in %s", podIfName, netnsPath)
		}
		rec.PodIfIndex = uint32(podLink.Attrs().Index)
		if rec.PodMAC, err = header.MACFromHardwareAddr(podLink.Attrs().HardwareAddr); err != nil {
			return err
		}
		addrs, err := netlink.AddrList(podLink, netlink.FAMILY_V4)
		if err != nil {
			return errors.Wrap(err, "unable to list pod addresses")
		}
		for _, a := range addrs {
			if ip, ok := header.AddrFromIP(a.IP); ok {
				podIP = ip
				return nil
			}
		}
		return errors.Errorf("%q in %s has no ipv4 address", podIfName, netnsPath)
	})
	if err != nil {
		return 0, rec, err
	}
	return podIP, rec, nil
}

// IfIndexName returns the device name for ifindex, or "" when unknown.
func IfIndexName(ifindex uint32) string {
	link, err := netlink.LinkByIndex(int(ifindex))
	if err != nil {
		return ""
	}
	return link.Attrs().Name
}
