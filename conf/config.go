/*
 * Copyright 2018 The CovenantSQL Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package conf loads the YAML configuration shared by the build and server
// commands.
package conf

import (
	"io/ioutil"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/CovenantSQL/verichain/crypto/asymmetric"
	"github.com/CovenantSQL/verichain/types"
	"github.com/CovenantSQL/verichain/utils/log"
)

// ErrInvalidConfig indicates a configuration that fails validation.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds all the config read from yaml config file.
type Config struct {
	// chain parameter, fixed when the chain is created
	BitLengths       []uint8 `yaml:"BitLengths"`
	SkipListMaxLevel uint8   `yaml:"SkipListMaxLevel"`
	LeafCapacity     uint32  `yaml:"LeafCapacity"`
	IntraIndex       *bool   `yaml:"IntraIndex"`
	AccSeed          string  `yaml:"AccSeed"`

	AccCacheSize    int    `yaml:"AccCacheSize"`
	WorkingRoot     string `yaml:"WorkingRoot"`
	DataDir         string `yaml:"DataDir"`
	ListenAddr      string `yaml:"ListenAddr"`
	WebsocketAddr   string `yaml:"WebsocketAddr"`
	LogLevel        string `yaml:"LogLevel"`
	ProducerKeyFile string `yaml:"ProducerKeyFile"`
}

// GConf is the global config pointer.
var GConf *Config

// LoadConfig loads config from configPath, applies defaults and validates it.
func LoadConfig(configPath string) (config *Config, err error) {
	configBytes, err := ioutil.ReadFile(configPath)
	if err != nil {
		log.WithError(err).Error("read config file failed")
		return
	}
	config = &Config{}
	if err = yaml.Unmarshal(configBytes, config); err != nil {
		log.WithError(err).Error("unmarshal config file failed")
		return nil, err
	}
	if config.WorkingRoot == "" {
		config.WorkingRoot = filepath.Dir(configPath)
	}
	config.SetDefaults()
	if err = config.Validate(); err != nil {
		return nil, err
	}
	return
}

// SetDefaults fills every unset optional field.
func (c *Config) SetDefaults() {
	if c.LeafCapacity == 0 {
		c.LeafCapacity = types.DefaultLeafCapacity
	}
	if c.IntraIndex == nil {
		intra := true
		c.IntraIndex = &intra
	}
	if c.AccSeed == "" {
		c.AccSeed = DefaultAccSeed
	}
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate checks the config is usable.
func (c *Config) Validate() error {
	if err := c.Parameter().Validate(); err != nil {
		return errors.Wrap(ErrInvalidConfig, err.Error())
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrapf(ErrInvalidConfig, "log level %q", c.LogLevel)
	}
	if c.AccCacheSize < 0 {
		return errors.Wrapf(ErrInvalidConfig, "negative accumulator cache size %d", c.AccCacheSize)
	}
	return nil
}

// Parameter returns the chain parameter of the config.
func (c *Config) Parameter() *types.Parameter {
	p := &types.Parameter{
		BitLengths:       append([]uint8(nil), c.BitLengths...),
		SkipListMaxLevel: c.SkipListMaxLevel,
		LeafCapacity:     c.LeafCapacity,
		IntraIndex:       true,
		AccSeed:          c.AccSeed,
	}
	if c.IntraIndex != nil {
		p.IntraIndex = *c.IntraIndex
	}
	return p
}

// Path resolves p against the working root.
func (c *Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.WorkingRoot, p)
}

// LoadProducerKey loads the tip signing key, nil if none is configured.
func (c *Config) LoadProducerKey() (*asymmetric.PrivateKey, error) {
	if c.ProducerKeyFile == "" {
		return nil, nil
	}
	return asymmetric.LoadPrivateKey(c.Path(c.ProducerKeyFile))
}
