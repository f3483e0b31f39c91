/*
 * Copyright (c) 2020 The sitelock developers.
 * See the LICENSE file for more information.
 */

package app

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/sitewatch/sitelock/version"
	"github.com/stretchr/testify/require"
)

type writerBuffer struct {
	mu  sync.RWMutex
	buf *bytes.Buffer
}

func newWriterBuffer() *writerBuffer {
	return &writerBuffer{buf: bytes.NewBuffer(nil)}
}

func (wb *writerBuffer) Write(p []byte) (int, error) {
	wb.mu.Lock()
	defer wb.mu.Unlock()
	return wb.buf.Write(p)
}

func (wb *writerBuffer) String() string {
	wb.mu.RLock()
	defer wb.mu.RUnlock()
	return wb.buf.String()
}

func TestApplicationEmptyArgs(t *testing.T) {
	err := New(newWriterBuffer(), nil).Run()
	require.NotNil(t, err)
}

func TestApplicationShowUsage(t *testing.T) {
	w := newWriterBuffer()
	err := New(w, []string{"./sitelock", "-h"}).Run()
	require.Nil(t, err)
	require.Equal(t, usageStr+"\n", w.String())
}

func TestApplicationPrintVersion(t *testing.T) {
	w := newWriterBuffer()
	err := New(w, []string{"./sitelock", "--version"}).Run()
	require.Nil(t, err)
	require.Equal(t, fmt.Sprintf("sitelock version: %v\n", version.ApplicationVersion), w.String())
}

func TestApplicationBadConfigFile(t *testing.T) {
	w := newWriterBuffer()
	err := New(w, []string{"./sitelock", "-c", "/a/path/that/does/not/exist.yml", "list"}).Run()
	require.NotNil(t, err)
}

func writeTestConfig(t *testing.T) (string, func()) {
	t.Helper()
	dir, err := ioutil.TempDir("", "sitelock")
	require.Nil(t, err)

	cfgFile := filepath.Join(dir, "sitelock.yml")
	cfg := "logger:\n  level: error\nstorage:\n  type: memory\nlock:\n  default_timeout: 60\n"
	require.Nil(t, ioutil.WriteFile(cfgFile, []byte(cfg), 0644))
	return cfgFile, func() { _ = os.RemoveAll(dir) }
}

func TestApplicationListCommand(t *testing.T) {
	cfgFile, cleanup := writeTestConfig(t)
	defer cleanup()

	w := newWriterBuffer()
	err := New(w, []string{"./sitelock", "-c", cfgFile, "list"}).Run()
	require.Nil(t, err)
	require.Contains(t, w.String(), "no live locks")
}

func TestApplicationLockCycle(t *testing.T) {
	cfgFile, cleanup := writeTestConfig(t)
	defer cleanup()

	// memory storage is per-process, so each command sees its own store;
	// acquire and release within one invocation via hold is covered in
	// the lock package. Here the unlock of an unheld name must fail.
	w := newWriterBuffer()
	err := New(w, []string{"./sitelock", "-c", cfgFile, "unlock", "report-job"}).Run()
	require.NotNil(t, err)

	w = newWriterBuffer()
	err = New(w, []string{"./sitelock", "-c", cfgFile, "info", "report-job"}).Run()
	require.Nil(t, err)
	require.Contains(t, w.String(), "no lease stored")

	w = newWriterBuffer()
	err = New(w, []string{"./sitelock", "-c", cfgFile, "cleanup"}).Run()
	require.Nil(t, err)
	require.Contains(t, w.String(), "removed 0 stale lease(s)")
}

func TestApplicationUnknownCommand(t *testing.T) {
	cfgFile, cleanup := writeTestConfig(t)
	defer cleanup()

	w := newWriterBuffer()
	err := New(w, []string{"./sitelock", "-c", cfgFile, "frobnicate"}).Run()
	require.NotNil(t, err)
}
