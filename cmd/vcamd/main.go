package main

import (
	"os"
	"runtime"

	"github.com/tacusci/logging/v2"
	"github.com/takama/daemon"
)

const (
	name        = "vcamd"
	description = "Virtual camera daemon which stamps camera frames and streams them to a v4l2 loopback device"
)

type Service struct {
	daemon.Daemon
}

// Manage runs one of the service manager actions.
func (service *Service) Manage(action string, args ...string) (string, error) {
	usage := "Usage: vcamd --service install | remove | start | stop | status"

	switch action {
	case "install":
		return service.Install(args...)
	case "remove":
		return service.Remove()
	case "start":
		return service.Start()
	case "stop":
		return service.Stop()
	case "status":
		return service.Status()
	default:
		return usage, nil
	}
}

var newDaemon = func() (daemon.Daemon, error) {
	daemonType := daemon.SystemDaemon
	if runtime.GOOS == "darwin" {
		daemonType = daemon.UserAgent
	}
	return daemon.New(name, description, daemonType)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logging.Error(err.Error()) //nolint
		os.Exit(1)
	}
}
