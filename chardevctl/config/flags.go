// Copyright 2026 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/mychardev/mychardev/pkg/sentry/devices/chardev"
)

// RegisterFlags registers flags used to populate Config.
func RegisterFlags(flagSet *flag.FlagSet) {
	flagSet.String("root", "", "root directory for storage of server state.")
	flagSet.String("config", "", "TOML file of flag defaults, keyed by flag name. Flags given on the command line win.")

	// Debugging flags.
	flagSet.Bool("debug", false, "enable debug logging.")
	flagSet.String("log", "", "file path where internal debug information is written, default is stderr.")
	flagSet.String("log-format", "text", "log format: text (default), json, or logrus.")
	flagSet.String("debug-log", "", "additional location for logs. If it ends with '/', log files are created inside the directory with default names. The following variables are available: %TIMESTAMP%, %COMMAND%.")
	flagSet.String("debug-log-format", "text", "log format: text (default), json, or logrus.")
	flagSet.Bool("alsologtostderr", false, "send log messages to stderr.")

	// Flags that control the device.
	flagSet.String("device-name", chardev.DeviceName, "name the device registers and is exposed under.")
	flagSet.String("allocator", string(chardev.FreshAllocator), "session context allocator: fresh (default) or pooled.")
	flagSet.Int("max-sessions", 0, "maximum number of open sessions; further opens fail with ENOMEM. 0 means unbounded.")
	flagSet.Duration("alert-every", 0, "log at most one caller-triggered alert per interval. 0 logs every alert.")
	flagSet.Bool("memdev", false, "also register the null and zero memory devices.")

	// Flags that control the FUSE mount.
	flagSet.Bool("fuse-debug", false, "trace FUSE requests.")
	flagSet.Bool("allow-other", false, "allow users other than the server's to access the mount.")
}

// NewFromFlags creates a new Config with values coming from command line
// flags and, if --config is set, from the named TOML file.
func NewFromFlags(flagSet *flag.FlagSet) (*Config, error) {
	if fl := flagSet.Lookup("config"); fl != nil && fl.Value.String() != "" {
		if err := applyFile(flagSet, fl.Value.String()); err != nil {
			return nil, err
		}
	}

	conf := &Config{}
	obj := reflect.ValueOf(conf).Elem()
	st := obj.Type()
	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		name, ok := f.Tag.Lookup("flag")
		if !ok {
			// No flag set for this field.
			continue
		}
		fl := flagSet.Lookup(name)
		if fl == nil {
			panic(fmt.Sprintf("Flag %q not found", name))
		}
		x := reflect.ValueOf(fl.Value.(flag.Getter).Get())
		obj.Field(i).Set(x.Convert(f.Type))
	}

	if len(conf.RootDir) == 0 {
		// If not set, set default root dir to something (hopefully) user-writeable.
		conf.RootDir = "/var/run/chardevctl"
		// NOTE: empty values for XDG_RUNTIME_DIR should be ignored.
		if runtimeDir := os.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
			conf.RootDir = filepath.Join(runtimeDir, "chardevctl")
		}
	}

	if err := conf.validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// applyFile sets every flag named in the TOML file at path that was not set
// on the command line.
func applyFile(flagSet *flag.FlagSet, path string) error {
	values := map[string]any{}
	if _, err := toml.DecodeFile(path, &values); err != nil {
		return fmt.Errorf("error reading config file %q: %w", path, err)
	}
	explicit := map[string]bool{}
	flagSet.Visit(func(fl *flag.Flag) {
		explicit[fl.Name] = true
	})
	for name, value := range values {
		if name == "config" {
			return fmt.Errorf("config file %q: key %q is not allowed", path, name)
		}
		fl := flagSet.Lookup(name)
		if fl == nil {
			return fmt.Errorf("config file %q: unknown flag %q", path, name)
		}
		if explicit[name] {
			continue
		}
		str, err := tomlString(value)
		if err != nil {
			return fmt.Errorf("config file %q: key %q: %w", path, name, err)
		}
		if err := flagSet.Set(name, str); err != nil {
			return fmt.Errorf("config file %q: error setting flag %s=%q: %w", path, name, str, err)
		}
	}
	return nil
}

func tomlString(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case bool:
		return strconv.FormatBool(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case time.Duration:
		return v.String(), nil
	default:
		return "", fmt.Errorf("unsupported value type %T", value)
	}
}

// ToFlags returns a slice of flags that correspond to the given Config.
// Flags equal to their default are omitted.
func (c *Config) ToFlags() []string {
	var rv []string

	// Construct a temporary set for default plumbing.
	flagSet := flag.NewFlagSet("tmp", flag.ContinueOnError)
	RegisterFlags(flagSet)

	obj := reflect.ValueOf(c).Elem()
	st := obj.Type()
	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		name, ok := f.Tag.Lookup("flag")
		if !ok {
			continue
		}
		fl := flagSet.Lookup(name)
		if fl == nil {
			panic(fmt.Sprintf("Flag %q not found", name))
		}
		val := fmt.Sprint(obj.Field(i).Interface())
		if val == fl.DefValue {
			continue
		}
		rv = append(rv, fmt.Sprintf("--%s=%s", fl.Name, val))
	}
	return rv
}
