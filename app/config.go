/*
 * Copyright (c) 2020 The sitelock developers.
 * See the LICENSE file for more information.
 */

package app

import (
	"bytes"
	"io/ioutil"

	"github.com/sitewatch/sitelock/lock"
	"github.com/sitewatch/sitelock/log"
	"github.com/sitewatch/sitelock/storage"
	"gopkg.in/yaml.v2"
)

// metricsConfig represents metrics server configuration.
type metricsConfig struct {
	Port int `yaml:"port"`
}

// Config represents a global configuration.
type Config struct {
	PIDFile string         `yaml:"pid_path"`
	Logger  log.Config     `yaml:"logger"`
	Metrics *metricsConfig `yaml:"metrics"`
	Storage storage.Config `yaml:"storage"`
	Lock    lock.Config    `yaml:"lock"`
}

// FromFile loads default global configuration from
// a specified file.
func (cfg *Config) FromFile(configFile string) error {
	b, err := ioutil.ReadFile(configFile)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(b, cfg)
}

// FromBuffer loads default global configuration from
// a specified byte buffer.
func (cfg *Config) FromBuffer(buf *bytes.Buffer) error {
	return yaml.Unmarshal(buf.Bytes(), cfg)
}
