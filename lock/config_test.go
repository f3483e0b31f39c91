/*
 * Copyright (c) 2020 The sitelock developers.
 * See the LICENSE file for more information.
 */

package lock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	yaml "gopkg.in/yaml.v2"
)

func TestLockConfig(t *testing.T) {
	cfg := Config{}

	err := yaml.Unmarshal([]byte("default_timeout: 120\ncleanup_interval: 30\npoll_interval: 2"), &cfg)
	require.Nil(t, err)
	require.Equal(t, 120*time.Second, cfg.DefaultTimeout)
	require.Equal(t, 30*time.Second, cfg.CleanupInterval)
	require.Equal(t, 2*time.Second, cfg.PollInterval)

	err = yaml.Unmarshal([]byte("{}"), &cfg)
	require.Nil(t, err)
	require.Equal(t, defaultLeaseTimeout, cfg.DefaultTimeout)
	require.Equal(t, defaultCleanupInterval, cfg.CleanupInterval)
	require.Equal(t, defaultPollInterval, cfg.PollInterval)

	err = yaml.Unmarshal([]byte("default_timeout: -1"), &cfg)
	require.NotNil(t, err)
}

func TestOwnerID(t *testing.T) {
	id := OwnerID()
	require.NotEmpty(t, id)
	require.Equal(t, id, OwnerID()) // stable for the process lifetime
}
