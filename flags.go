package certgen

import (
	"github.com/flanksource/commons/logger"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// AllFlags are the global flags shared by every command.
type AllFlags struct {
	logger.Flags `yaml:",inline"`
	NoColor      bool `yaml:"no_color"`
}

var Flags AllFlags = AllFlags{
	Flags: logger.Flags{
		Level:        "info",
		LevelCount:   0,
		JsonLogs:     false,
		ReportCaller: false,
		LogToStderr:  true,
	},
}

// BindAllFlags adds the global flags to a pflag set (for cobra)
func BindAllFlags(flags *pflag.FlagSet) AllFlags {
	flags.CountVarP(&Flags.Flags.LevelCount, "loglevel", "v", "Increase logging level")
	flags.StringVar(&Flags.Flags.Level, "log-level", "info", "Set the default log level")
	flags.BoolVar(&Flags.Flags.JsonLogs, "json-logs", false, "Print logs in json format to stderr")
	flags.BoolVar(&Flags.Flags.ReportCaller, "report-caller", false, "Report log caller info")
	flags.BoolVar(&Flags.Flags.LogToStderr, "log-to-stderr", true, "Log to stderr instead of stdout")
	flags.BoolVar(&Flags.NoColor, "no-color", false, "Disable colored output")
	return Flags
}

func (a AllFlags) String() string {
	s, _ := yaml.Marshal(a)
	return string(s)
}

func (a AllFlags) UseFlags() {
	logger.Configure(a.Flags)
	logger.Debugf("Using logger flags: %s", a)
}
