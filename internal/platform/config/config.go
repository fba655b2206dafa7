// Package config loads a node's runtime settings from a CLI flag, a
// .env file, and the process environment.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

var portCmd = flag.Int("port", 8080, "HTTP control-plane port")

// Config holds every knob a logging node needs.
type Config struct {
	ServerPort int

	PoolPath        string
	BaseName        string
	Name            string
	RecordQueueSize int
	EncodingBufSize int
	NbFilesLim      int

	PublisherAddr       string
	PublisherPath       string
	PublisherRetryCount int
	PublisherDebug      bool

	MonitorAddr string

	ControlPlaneURL string
}

// LoadConfig reads .env (if present) and the environment, falling back
// to the values logg_init_t/ltb_subsys_init_t default to in the
// original. Returns an error on a malformed numeric field instead of
// panicking or silently zeroing it.
func LoadConfig() (Config, error) {
	_ = godotenv.Load(".env")

	recordQueueSize, err := intEnv("RECORD_QUEUE_SIZE", 8)
	if err != nil {
		return Config{}, err
	}
	encodingBufSize, err := intEnv("ENCODING_BUF_SIZE", 512)
	if err != nil {
		return Config{}, err
	}
	nbFilesLim, err := intEnv("NB_FILES_LIM", 4)
	if err != nil {
		return Config{}, err
	}
	retryCount, err := intEnv("PUBLISHER_RETRY_COUNT", 3)
	if err != nil {
		return Config{}, err
	}

	return Config{
		ServerPort: *portCmd,

		PoolPath:        envOr("POOL_PATH", "./pool"),
		BaseName:        os.Getenv("BASE_NAME"),
		Name:            envOr("STREAM_NAME", "main"),
		RecordQueueSize: recordQueueSize,
		EncodingBufSize: encodingBufSize,
		NbFilesLim:      nbFilesLim,

		PublisherAddr:       os.Getenv("PUBLISHER_ADDR"),
		PublisherPath:       envOr("PUBLISHER_PATH", "/condalf"),
		PublisherRetryCount: retryCount,
		PublisherDebug:      os.Getenv("PUBLISHER_DEBUG") != "",

		MonitorAddr: envOr("MONITOR_ADDR", "tcp://*:5560"),

		ControlPlaneURL: os.Getenv("CONTROL_PLANE_URL"),
	}, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}
