/*
 * Copyright (c) 2020 The sitelock developers.
 * See the LICENSE file for more information.
 */

package lock

import (
	"fmt"
	"time"
)

const (
	defaultLeaseTimeout    = time.Duration(300) * time.Second
	defaultCleanupInterval = time.Duration(60) * time.Second
	defaultPollInterval    = time.Duration(1) * time.Second
)

// Config represents a lock manager configuration.
type Config struct {
	DefaultTimeout  time.Duration
	CleanupInterval time.Duration
	PollInterval    time.Duration
}

type configProxyType struct {
	DefaultTimeout  int `yaml:"default_timeout"`
	CleanupInterval int `yaml:"cleanup_interval"`
	PollInterval    int `yaml:"poll_interval"`
}

// UnmarshalYAML satisfies Unmarshaler interface.
func (c *Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	p := configProxyType{}
	if err := unmarshal(&p); err != nil {
		return err
	}
	if p.DefaultTimeout < 0 || p.CleanupInterval < 0 || p.PollInterval < 0 {
		return fmt.Errorf("lock.Config: negative interval value")
	}
	c.DefaultTimeout = time.Duration(p.DefaultTimeout) * time.Second
	c.CleanupInterval = time.Duration(p.CleanupInterval) * time.Second
	c.PollInterval = time.Duration(p.PollInterval) * time.Second
	if c.DefaultTimeout == 0 {
		c.DefaultTimeout = defaultLeaseTimeout
	}
	if c.CleanupInterval == 0 {
		c.CleanupInterval = defaultCleanupInterval
	}
	if c.PollInterval == 0 {
		c.PollInterval = defaultPollInterval
	}
	return nil
}
