package config

import (
	"os"
	"runtime"
	"time"

	"github.com/koding/multiconfig"
)

// Config defines cpplab server configuration
type Config struct {
	// artifact lifecycle
	WorkDir       string        `flagUsage:"specifies directory to store sources and compiled artifacts" default:"cpps"`
	StoreFile     string        `flagUsage:"specifies the artifact metadata file" default:"cpp_files.json"`
	ToolchainConf string        `flagUsage:"specifies toolchain configuration file" default:"toolchain.yaml"`
	Retention     time.Duration `flagUsage:"specifies the artifact validity window" default:"24h"`
	RunTimeout    time.Duration `flagUsage:"specifies the wall clock budget for each run" default:"10s"`
	Parallelism   int           `flagUsage:"control the # of concurrency execution (default equal to number of cpu)"`

	// server config
	HTTPAddr      string `flagUsage:"specifies the http binding address" default:":5348"`
	MonitorAddr   string `flagUsage:"specifies the metrics binding address" default:":5349"`
	AuthToken     string `flagUsage:"bearer token auth for REST / WebSocket"`
	EnableDebug   bool   `flagUsage:"enable debug endpoint"`
	EnableMetrics bool   `flagUsage:"enable promethus metrics endpoint"`

	// logger config
	Release bool `flagUsage:"release level of logs"`
	Silent  bool `flagUsage:"do not print logs"`

	// show version and exit
	Version bool `flagUsage:"show version and exit"`
}

// Load loads config from flag & environment variables
func (c *Config) Load() error {
	cl := multiconfig.MultiLoader(
		&multiconfig.TagLoader{},
		&multiconfig.EnvironmentLoader{
			Prefix:    "CL",
			CamelCase: true,
		},
		&multiconfig.FlagLoader{
			CamelCase: true,
			EnvPrefix: "CL",
		},
	)
	if os.Getpid() == 1 {
		c.Release = true
	}
	if c.Parallelism <= 0 {
		c.Parallelism = runtime.NumCPU()
	}
	return cl.Load(c)
}
