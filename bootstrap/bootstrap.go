// Package bootstrap wires one node's subsystems together with a
// dig.New-plus-Provide-plus-Invoke container.
package bootstrap

import (
	"fmt"
	"log"
	"time"

	"github.com/viant/afs"
	"go.uber.org/dig"

	"ringlog/internal/platform/client"
	"ringlog/internal/platform/config"
	"ringlog/internal/platform/diag"
	"ringlog/internal/platform/ltb"
	"ringlog/internal/platform/logger"
	"ringlog/internal/platform/monitor"
	"ringlog/internal/platform/publisher"
	"ringlog/internal/platform/server"
)

// statsBroadcastInterval is how often Run polls the subsystem and
// publishes its state on the monitor socket.
const statsBroadcastInterval = 10 * time.Second

// Run builds the container, wires every subsystem, and blocks serving
// the REST control plane.
func Run() (bool, error) {
	container := dig.New()

	providers := []interface{}{
		config.LoadConfig,
		newFileSystem,
		newSubsystem,
		newConfigServerClient,
		newPublisherConfig,
		publisher.New,
		newInstance,
		newLogger,
		newRecordSink,
		newMonitor,
		newServer,
	}
	for _, p := range providers {
		if err := container.Provide(p); err != nil {
			return false, err
		}
	}

	err := container.Invoke(func(
		cfg config.Config,
		cli *client.ConfigServerClient,
		sink *diag.RecordSink,
		logg *logger.Logger,
		bcast *monitor.Broadcaster,
		sub *ltb.Subsystem,
		srv server.Server,
	) error {
		sink.Enable(logg)
		defer sink.Disable()

		if cfg.ControlPlaneURL != "" {
			selfAddr := fmt.Sprintf("0.0.0.0:%d", cfg.ServerPort)
			if _, err := cli.RegisterNode(cfg.Name, selfAddr); err != nil {
				sink.Warnf("control plane registration failed: %v", err)
			}
		}

		stop := make(chan struct{})
		defer close(stop)
		go broadcastStats(bcast, sub, stop)

		return srv.Run()
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// newFileSystem returns the afs-backed filesystem every pool directory
// is read and written through, satisfying ltb.FileSystem structurally —
// afs.New()'s Service exposes every method the interface names, the
// same "any afs.Service works" contract pool.FileSystem documents.
func newFileSystem() ltb.FileSystem {
	return afs.New()
}

func newSubsystem(cfg config.Config) *ltb.Subsystem {
	return ltb.NewSubsystem(ltb.Config{NbFilesLim: cfg.NbFilesLim})
}

func newConfigServerClient(cfg config.Config) *client.ConfigServerClient {
	return client.NewConfigServerClient(cfg.ControlPlaneURL)
}

// newPublisherConfig resolves the remote CoAP target a node publishes
// to: the control plane's descriptor if one is reachable, the static
// config values otherwise.
func newPublisherConfig(cfg config.Config, cli *client.ConfigServerClient) publisher.Config {
	target := publisher.Target{Addr: cfg.PublisherAddr, Path: cfg.PublisherPath}

	if cfg.ControlPlaneURL != "" {
		if fetched, err := cli.FetchPublishTarget(); err == nil {
			target = fetched
		} else {
			log.Printf("bootstrap: falling back to configured publish target: %v", err)
		}
	}

	return publisher.Config{Target: target, RetryCount: cfg.PublisherRetryCount, Debug: cfg.PublisherDebug}
}

// newInstance attaches the single configured LTB instance to the
// subsystem, sending drained files to the publisher.
func newInstance(sub *ltb.Subsystem, fs ltb.FileSystem, pub *publisher.Publisher, cfg config.Config) (*ltb.Instance, error) {
	return sub.CreateInstance(ltb.InstanceConfig{
		Name:     cfg.Name,
		PoolPath: cfg.PoolPath,
		FS:       fs,
		Sender:   pub,
	})
}

func newLogger(cfg config.Config, inst *ltb.Instance) (*logger.Logger, error) {
	return logger.NewLogger(logger.Config{
		RecordQueueSize: cfg.RecordQueueSize,
		EncodingBufSize: cfg.EncodingBufSize,
		BaseName:        cfg.BaseName,
		Name:            cfg.Name,
	}, inst)
}

func newRecordSink() *diag.RecordSink {
	return diag.NewRecordSink()
}

func newMonitor(cfg config.Config) (*monitor.Broadcaster, error) {
	return monitor.NewBroadcaster(cfg.MonitorAddr)
}

func newServer(cfg config.Config, sub *ltb.Subsystem) server.Server {
	return server.NewServer("0.0.0.0", cfg.ServerPort, sub)
}

// broadcastStats polls sub on a fixed interval and publishes its state
// under monitor.TopicStats until stop is closed.
func broadcastStats(bcast *monitor.Broadcaster, sub *ltb.Subsystem, stop <-chan struct{}) {
	ticker := time.NewTicker(statsBroadcastInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			st := sub.Stats()
			ev := monitor.Event{FilesTotal: st.FilesTotal, FilesLimit: st.FilesLimit, Publishing: st.Publishing}
			if err := bcast.Publish(monitor.TopicStats, ev); err != nil {
				log.Printf("bootstrap: stats broadcast failed: %v", err)
			}
		}
	}
}
