// Package toolchain describes the external compiler and profiler commands
// used to build and analyze submitted programs.
package toolchain

import (
	"os"

	"github.com/goccy/go-yaml"
)

// Config defines the external toolchain invocation contract. CompileFlags are
// fixed for the deployment; they are not configurable per request.
type Config struct {
	Compiler     string   `yaml:"compiler"`
	CompileFlags []string `yaml:"compileFlags"`
	Profiler     string   `yaml:"profiler"`
	ProfileData  string   `yaml:"profileData"`
}

// Default returns the clang++ / gprof toolchain with profiling and address
// sanitizer instrumentation enabled.
func Default() Config {
	return Config{
		Compiler:     "clang++",
		CompileFlags: []string{"-pg", "-fsanitize=address"},
		Profiler:     "gprof",
		ProfileData:  "gmon.out",
	}
}

// Load reads a toolchain configuration file. A missing file yields the
// default toolchain; fields left empty in the file keep their defaults.
func Load(p string) (Config, error) {
	c := Default()
	d, err := os.ReadFile(p)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return c, err
	}
	var f Config
	if err := yaml.Unmarshal(d, &f); err != nil {
		return c, err
	}
	if f.Compiler != "" {
		c.Compiler = f.Compiler
	}
	if f.CompileFlags != nil {
		c.CompileFlags = f.CompileFlags
	}
	if f.Profiler != "" {
		c.Profiler = f.Profiler
	}
	if f.ProfileData != "" {
		c.ProfileData = f.ProfileData
	}
	return c, nil
}
