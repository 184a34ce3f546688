// Package config loads kbmerge's layered job configuration: CLI flags over
// environment variables over an optional job file (TOML or YAML), via a
// viper singleton, following the same precedence pattern the CLI layer
// uses elsewhere in this codebase.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var v *viper.Viper

// bound remembers every flag passed to BindPFlag, so flags bound before
// Initialize are bound again on the viper instance Initialize creates.
var bound = map[string]*pflag.Flag{}

// Initialize sets up the viper configuration singleton. Should be called
// once at application startup, before any Get* accessor.
func Initialize(jobFile string) error {
	v = viper.New()
	for key, flag := range bound {
		if err := v.BindPFlag(key, flag); err != nil {
			return err
		}
	}

	v.SetEnvPrefix("KBMERGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("first_sep", "|")
	v.SetDefault("second_sep", "|")
	v.SetDefault("id_prefix", "kb")
	v.SetDefault("deduplicate_kb1", false)
	v.SetDefault("deduplicate_kb2", false)
	v.SetDefault("treshold", 1)
	v.SetDefault("watch", false)
	v.SetDefault("report", false)

	if jobFile == "" {
		return nil
	}

	v.SetConfigFile(jobFile)
	switch {
	case strings.HasSuffix(jobFile, ".toml"):
		v.SetConfigType("toml")
	case strings.HasSuffix(jobFile, ".yaml"), strings.HasSuffix(jobFile, ".yml"):
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("config: reading job file %q: %w", jobFile, err)
	}
	return nil
}

// Job is the fully-resolved set of merge parameters, after flags, env, and
// job file have been layered by viper.
type Job struct {
	First           string
	Second          string
	FirstFields     string
	SecondFields    string
	RelConf         string
	OutputConf      string
	OtherOutputConf string
	FirstSep        string
	SecondSep       string
	IDPrefix        string
	DeduplicateKB1  bool
	DeduplicateKB2  bool
	IDFields        []string
	Output          string
	SecondOutput    string
	Threshold       int
	Watch           bool
	Report          bool
}

// Source reports where a key's effective value came from, mirroring the
// layered-config transparency the CLI exposes for its other flags.
type Source int

const (
	SourceDefault Source = iota
	SourceJobFile
	SourceEnv
	SourceFlag
)

func (s Source) String() string {
	switch s {
	case SourceJobFile:
		return "job file"
	case SourceEnv:
		return "environment"
	case SourceFlag:
		return "flag"
	default:
		return "default"
	}
}

// BindPFlag wires a cobra/pflag flag into the viper singleton, so an
// explicitly-set flag outranks the job file and a default registered via
// SetDefault, matching the rest of this codebase's flag/config layering.
// It may be called before Initialize (e.g. from a command's init function).
func BindPFlag(key string, flag *pflag.Flag) error {
	bound[key] = flag
	if v == nil {
		return nil
	}
	return v.BindPFlag(key, flag)
}

// ValueSource reports which layer supplied key's current value. Viper
// doesn't expose this directly, so it is inferred the same way: an
// explicitly-set flag always wins and is reported first, then env, then
// the job file, then the registered default.
func ValueSource(key string, flagChanged bool) Source {
	if flagChanged {
		return SourceFlag
	}
	envKey := "KBMERGE_" + strings.NewReplacer(".", "_", "-", "_").Replace(strings.ToUpper(key))
	if _, ok := os.LookupEnv(envKey); ok {
		return SourceEnv
	}
	if v.InConfig(key) {
		return SourceJobFile
	}
	return SourceDefault
}

func GetString(key string) string        { return v.GetString(key) }
func GetBool(key string) bool            { return v.GetBool(key) }
func GetInt(key string) int              { return v.GetInt(key) }
func GetStringSlice(key string) []string { return v.GetStringSlice(key) }

// BuildJob materialises a Job from the current viper state, for handing off
// to the merge pipeline.
func BuildJob() Job {
	return Job{
		First:           GetString("first"),
		Second:          GetString("second"),
		FirstFields:     GetString("first_fields"),
		SecondFields:    GetString("second_fields"),
		RelConf:         GetString("rel_conf"),
		OutputConf:      GetString("output_conf"),
		OtherOutputConf: GetString("other_output_conf"),
		FirstSep:        GetString("first_sep"),
		SecondSep:       GetString("second_sep"),
		IDPrefix:        GetString("id_prefix"),
		DeduplicateKB1:  GetBool("deduplicate_kb1"),
		DeduplicateKB2:  GetBool("deduplicate_kb2"),
		IDFields:        GetStringSlice("id_fields"),
		Output:          GetString("output"),
		SecondOutput:    GetString("second_output"),
		Threshold:       GetInt("treshold"),
		Watch:           GetBool("watch"),
		Report:          GetBool("report"),
	}
}
