package config

import (
	"fmt"
	"path/filepath"
	"time"
)

type Config struct {
	Debug      bool
	Library    Library
	Paths      Paths
	Emulator   Emulator
	Storage    Storage
	Monitoring Monitoring
	Recording  Recording
}

// Library points to the core and the game it runs.
type Library struct {
	Core string
	Rom  string
	// a list of extensions (nes|sfc) used when the core reports none
	Extensions string
}

type Paths struct {
	System string `default:"system"`
	Save   string `default:"saves"`
	Assets string `default:"assets"`
}

type Emulator struct {
	// 0 disables autosave
	AutosaveSec int
	// forces the frame rate reported by the core
	Fps float64
	// max frame pacing correction in seconds
	RateControlDelta float64 `default:"0.005"`
	Audio            Audio
	// core options which override the defaults of the core
	Options      map[string]string
	OptionsFile  string
	WatchOptions bool
	Username     string `default:"retrohost"`
	Language     uint32
	LogLevel     int
}

type Audio struct {
	Hz int `default:"48000"`
	// speex (sinc) or linear
	Resampler string `default:"speex"`
	Quality   int    `default:"5"`
	// ring buffer capacity in samples
	Buffer int `default:"600000"`
}

type Storage struct {
	// s3, dir or empty
	Provider string
	// the folder of the dir provider
	Dir string
	// keeps the files zipped in the storage
	Compress          bool
	S3Endpoint        string
	S3BucketName      string
	S3AccessKeyId     string
	S3SecretAccessKey string
	S3Insecure        bool
}

type Recording struct {
	Enabled bool
	Dir     string `default:"recordings"`
	// %date:<go time layout>%, %game%, %user%, %rand:<n>%
	Name          string `default:"%date:20060102-150405%-%game%"`
	CompressLevel int
	Timecode      bool
}

type Monitoring struct {
	Port             int `default:"6601"`
	URLPrefix        string
	MetricEnabled    bool
	ProfilingEnabled bool
}

func (c *Monitoring) IsEnabled() bool { return c.MetricEnabled || c.ProfilingEnabled }

func (e Emulator) Autosave() time.Duration { return time.Duration(e.AutosaveSec) * time.Second }

// OptionsPath returns the core options file path for a library.
func (c *Config) OptionsPath(library string) string {
	if c.Emulator.OptionsFile != "" {
		return c.Emulator.OptionsFile
	}
	return filepath.Join(c.Paths.Save, library, library+".opt")
}

func (c *Config) Validate() error {
	if c.Library.Core == "" {
		return fmt.Errorf("no core library set")
	}
	if c.Emulator.RateControlDelta < 0 {
		return fmt.Errorf("negative rate control delta %v", c.Emulator.RateControlDelta)
	}
	return nil
}
