package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestUtils(t *testing.T) {
	test := assert.New(t)

	/***** test ip <-> uint32 *****/
	v, err := InetIpToUInt32("10.0.0.4")
	test.Nil(err)
	test.Equal(uint32(0x0a000004), v)
	test.Equal("10.0.0.4", InetUint32ToIp(v))

	v, err = InetIpToUInt32("192.168.1.5")
	test.Nil(err)
	test.Equal("192.168.1.5", InetUint32ToIp(v))

	_, err = InetIpToUInt32("10.0.0")
	test.NotNil(err)
	_, err = InetIpToUInt32("fe80::1")
	test.NotNil(err)

	test.True(CheckIP("1.2.3.4"))
	test.False(CheckIP("fe80::1"))
	test.False(CheckIP("nope"))

	/***** test file helpers *****/
	dir := t.TempDir()
	p := filepath.Join(dir, "sub", "pid")
	test.False(PathExists(p))
	test.Nil(CreateFile(p, []byte("123"), 0644))
	test.True(PathExists(p))
	content, err := ReadContentFromFile(p)
	test.Nil(err)
	test.Equal("123", content)
	test.Equal(filepath.Join(dir, "sub"), GetParentDirectory(p))
	test.Nil(DeleteFile(p))
	test.Nil(DeleteFile(p))
	test.False(PathExists(p))
}

func TestInitLog(t *testing.T) {
	test := assert.New(t)
	defer func() {
		_ = InitLog(LogOptions{Level: "info", Stderr: true})
	}()

	err := InitLog(LogOptions{Level: "verbose"})
	test.NotNil(err)
	err = InitLog(LogOptions{Format: "xml"})
	test.NotNil(err)

	file := filepath.Join(t.TempDir(), "vxlan.log")
	err = InitLog(LogOptions{Level: "debug", Format: "json", File: file})
	test.Nil(err)
	test.Equal(logrus.DebugLevel, Logger().GetLevel())

	Logger().WithField(LogSubsys, "test").Info("hello")
	data, err := os.ReadFile(file)
	test.Nil(err)
	test.Contains(string(data), `"subsys":"test"`)
}
