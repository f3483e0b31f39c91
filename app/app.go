/*
 * Copyright (c) 2020 The sitelock developers.
 * See the LICENSE file for more information.
 */

package app

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sitewatch/sitelock/lock"
	"github.com/sitewatch/sitelock/log"
	"github.com/sitewatch/sitelock/storage"
	"github.com/sitewatch/sitelock/version"
)

const defaultConfigFile = "/etc/sitelock/sitelock.yml"

const usageStr = `
Usage: sitelock [options] <command>

Commands:
    list                     Show every live lock
    info <name>              Show the stored lease for a lock
    lock <name> [duration]   Acquire a lock
    unlock <name>            Release an owned lock
    force-unlock <name>      Release a lock bypassing the owner check
    cleanup                  Remove every stale lease
    release-owned            Release every lock owned by this identity
    hold <name> <duration>   Hold a lock, heartbeating until released

Options:
    -c, --config <file>      Configuration file path
    -h, --help               Show this message
    -v, --version            Show version
`

// Application encapsulates a sitelock command invocation.
type Application struct {
	output     io.Writer
	args       []string
	manager    *lock.Manager
	metricsSrv *http.Server
	waitStopCh chan os.Signal
}

// New returns a runnable application given an output and a command line arguments array.
func New(output io.Writer, args []string) *Application {
	return &Application{
		output:     output,
		args:       args,
		waitStopCh: make(chan os.Signal, 1),
	}
}

// Run runs sitelock application until the requested command completes
// or an error occurs.
func (a *Application) Run() error {
	if len(a.args) == 0 {
		return errors.New("empty command-line arguments")
	}
	var configFile string
	var showVersion, showUsage bool

	fs := flag.NewFlagSet("sitelock", flag.ExitOnError)
	fs.SetOutput(a.output)

	fs.BoolVar(&showUsage, "help", false, "Show this message")
	fs.BoolVar(&showUsage, "h", false, "Show this message")
	fs.BoolVar(&showVersion, "version", false, "Print version information.")
	fs.BoolVar(&showVersion, "v", false, "Print version information.")
	fs.StringVar(&configFile, "config", defaultConfigFile, "Configuration file path.")
	fs.StringVar(&configFile, "c", defaultConfigFile, "Configuration file path.")
	fs.Usage = func() {
		_, _ = fmt.Fprintf(a.output, "%s\n", usageStr)
	}
	_ = fs.Parse(a.args[1:])

	// print usage
	if showUsage || len(fs.Args()) == 0 {
		fs.Usage()
		return nil
	}
	// print version
	if showVersion {
		_, _ = fmt.Fprintf(a.output, "sitelock version: %v\n", version.ApplicationVersion)
		return nil
	}
	// load configuration
	var cfg Config
	if err := cfg.FromFile(configFile); err != nil {
		return err
	}
	// create PID file
	if err := a.createPIDFile(cfg.PIDFile); err != nil {
		return err
	}
	// initialize logger
	if err := log.Initialize(&cfg.Logger, a.output); err != nil {
		return err
	}
	defer log.Shutdown()

	// initialize storage
	repContainer, err := storage.New(&cfg.Storage)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
		defer cancel()
		_ = repContainer.Close(ctx)
	}()

	// initialize metrics server
	var metrics *lock.Metrics
	if cfg.Metrics != nil && cfg.Metrics.Port > 0 {
		metrics = lock.NewMetrics(prometheus.DefaultRegisterer)
		if err := a.initMetricsServer(cfg.Metrics.Port); err != nil {
			return err
		}
		defer a.shutdownMetricsServer()
	}
	a.manager = lock.New(&cfg.Lock, repContainer.Lock(), lock.OwnerID(), metrics)

	return a.runCommand(fs.Args())
}

func (a *Application) createPIDFile(pidFile string) error {
	if len(pidFile) == 0 {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(pidFile), os.ModePerm); err != nil {
		return err
	}
	file, err := os.Create(pidFile)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	currentPid := os.Getpid()
	if _, err := file.WriteString(strconv.FormatInt(int64(currentPid), 10)); err != nil {
		return err
	}
	return nil
}

func (a *Application) initMetricsServer(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	a.metricsSrv = &http.Server{Handler: mux}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return err
	}
	go func() { _ = a.metricsSrv.Serve(ln) }()
	log.Infof("metrics server listening at %d...", port)
	return nil
}

func (a *Application) shutdownMetricsServer() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	_ = a.metricsSrv.Shutdown(ctx)
}
