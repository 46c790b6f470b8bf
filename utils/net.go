package utils

import (
	"encoding/binary"
	"net"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

func CheckIP(ip string) bool {
	address := net.ParseIP(ip)
	return address != nil && address.To4() != nil
}

// InetUint32ToIp 把主机序的数值形式转回点分十进制
func InetUint32ToIp(intIP uint32) string {
	var bytes [4]byte
	binary.BigEndian.PutUint32(bytes[:], intIP)
	return net.IPv4(bytes[0], bytes[1], bytes[2], bytes[3]).String()
}

// InetIpToUInt32 parses a dotted IPv4 string into its numeric value, so
// "10.0.0.4" becomes 0x0a000004.
func InetIpToUInt32(ip string) (uint32, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return 0, errors.Errorf("invalid ip %q", ip)
	}
	v4 := parsed.To4()
	if v4 == nil {
		return 0, errors.Errorf("%q is not an ipv4 address", ip)
	}
	return binary.BigEndian.Uint32(v4), nil
}

func PathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil || !os.IsNotExist(err)
}

func GetParentDirectory(path string) string {
	return filepath.Dir(path)
}

func CreateFile(path string, content []byte, perm os.FileMode) error {
	if err := os.MkdirAll(GetParentDirectory(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, content, perm)
}

func ReadContentFromFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func DeleteFile(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
