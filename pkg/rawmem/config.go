// Copyright 2024 The gVisor Authors.
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

package rawmem

import (
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
)

// Environment variables read by ConfigFromEnv.
const (
	// ConfigEnv names a TOML file holding a Config.
	ConfigEnv = "RAWMEM_CONFIG"

	// NoUnsafeEnv overrides Config.NoUnsafe.
	NoUnsafeEnv = "RAWMEM_NO_UNSAFE"

	// NoUnalignedEnv overrides Config.NoUnaligned.
	NoUnalignedEnv = "RAWMEM_NO_UNALIGNED"

	// NoExplicitReleaseEnv overrides Config.NoExplicitRelease.
	NoExplicitReleaseEnv = "RAWMEM_NO_EXPLICIT_RELEASE"

	// NoBulkCopyEnv overrides Config.NoBulkCopy.
	NoBulkCopyEnv = "RAWMEM_NO_BULK_COPY"
)

// Config turns capabilities off regardless of what the host supports. The
// zero value leaves every capability to the probe.
type Config struct {
	// NoUnsafe disables raw memory access, and with it every capability.
	NoUnsafe bool `toml:"no_unsafe"`

	// NoUnaligned forces the byte-composed accessor path.
	NoUnaligned bool `toml:"no_unaligned"`

	// NoExplicitRelease makes Release a no-op.
	NoExplicitRelease bool `toml:"no_explicit_release"`

	// NoBulkCopy makes Copy use a byte-slice copy instead of memmove.
	NoBulkCopy bool `toml:"no_bulk_copy"`
}

// LoadConfig decodes the TOML file at path. Unknown keys are an error.
func LoadConfig(path string) (Config, error) {
	var c Config
	md, err := toml.DecodeFile(path, &c)
	if err != nil {
		return Config{}, fmt.Errorf("decoding config %q: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("config %q: unknown keys %v", path, undecoded)
	}
	return c, nil
}

// ConfigFromEnv builds a Config from the file named by ConfigEnv, if set, and
// then applies the boolean overrides in the other RAWMEM_* variables.
func ConfigFromEnv() (Config, error) {
	return configFromLookup(os.LookupEnv)
}

func configFromLookup(lookup func(string) (string, bool)) (Config, error) {
	var c Config
	if path, ok := lookup(ConfigEnv); ok && path != "" {
		var err error
		if c, err = LoadConfig(path); err != nil {
			return Config{}, err
		}
	}

	for _, o := range []struct {
		env string
		dst *bool
	}{
		{NoUnsafeEnv, &c.NoUnsafe},
		{NoUnalignedEnv, &c.NoUnaligned},
		{NoExplicitReleaseEnv, &c.NoExplicitRelease},
		{NoBulkCopyEnv, &c.NoBulkCopy},
	} {
		v, ok := lookup(o.env)
		if !ok || v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("%s=%q: %w", o.env, v, err)
		}
		*o.dst = b
	}
	return c, nil
}
