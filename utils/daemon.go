package utils

import (
	"os"

	"github.com/pkg/errors"
	"github.com/sevlyar/go-daemon"
)

var daemonLog = Logger().WithField(LogSubsys, "daemon")

type DaemonOptions struct {
	PidFile string
	LogFile string
	WorkDir string
	Args    []string
}

// StartDeamon forks the current binary into the background. In the parent it
// returns the child process; in the child it runs f and returns nil once f is
// done.
func StartDeamon(opts DaemonOptions, f func()) (*os.Process, error) {
	context := &daemon.Context{
		PidFileName: opts.PidFile,
		PidFilePerm: 0644,
		LogFileName: opts.LogFile,
		LogFilePerm: 0640,
		WorkDir:     opts.WorkDir,
		Umask:       027,
		Args:        opts.Args,
	}
	if context.WorkDir == "" {
		context.WorkDir = "/"
	}

	child, err := context.Reborn()
	if err != nil {
		return nil, errors.Wrap(err, "unable to start daemon")
	}
	if child != nil {
		daemonLog.WithField("pid", child.Pid).Info("daemon started")
		return child, nil
	}

	defer func() {
		if err := context.Release(); err != nil {
			daemonLog.WithError(err).Warn("unable to release pid-file")
		}
	}()
	daemonLog.Info("running in daemon child")
	f()
	return nil, nil
}

// IsDaemonChild reports whether the current process was started by StartDeamon.
func IsDaemonChild() bool {
	return daemon.WasReborn()
}
