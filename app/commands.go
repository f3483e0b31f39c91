/*
 * Copyright (c) 2020 The sitelock developers.
 * See the LICENSE file for more information.
 */

package app

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/sitewatch/sitelock/log"
	"github.com/sitewatch/sitelock/model"
)

func (a *Application) runCommand(args []string) error {
	ctx := context.Background()

	switch cmd := args[0]; cmd {
	case "list":
		return a.cmdList(ctx)
	case "info":
		name, err := commandName(args)
		if err != nil {
			return err
		}
		return a.cmdInfo(ctx, name)
	case "lock":
		name, err := commandName(args)
		if err != nil {
			return err
		}
		var timeout time.Duration
		if len(args) > 2 {
			timeout, err = time.ParseDuration(args[2])
			if err != nil {
				return err
			}
		}
		return a.cmdLock(ctx, name, timeout)
	case "unlock":
		name, err := commandName(args)
		if err != nil {
			return err
		}
		return a.cmdUnlock(ctx, name)
	case "force-unlock":
		name, err := commandName(args)
		if err != nil {
			return err
		}
		return a.cmdForceUnlock(ctx, name)
	case "cleanup":
		return a.cmdCleanup(ctx)
	case "release-owned":
		return a.cmdReleaseOwned(ctx)
	case "hold":
		if len(args) < 3 {
			return errors.New("hold: missing lock name or duration")
		}
		duration, err := time.ParseDuration(args[2])
		if err != nil {
			return err
		}
		return a.cmdHold(ctx, args[1], duration)
	default:
		return fmt.Errorf("unrecognized command: %s", cmd)
	}
}

func commandName(args []string) (string, error) {
	if len(args) < 2 {
		return "", fmt.Errorf("%s: missing lock name", args[0])
	}
	return args[1], nil
}

func (a *Application) cmdList(ctx context.Context) error {
	active, err := a.manager.GetActiveLocks(ctx)
	if err != nil {
		return err
	}
	if len(active) == 0 {
		_, _ = fmt.Fprintln(a.output, "no live locks")
		return nil
	}
	for _, lease := range active {
		_, _ = fmt.Fprintf(a.output, "%s\towner=%s\texpires=%s\n",
			lease.LockName, lease.Owner, lease.ExpiresAt.Format(time.RFC3339))
	}
	return nil
}

func (a *Application) cmdInfo(ctx context.Context, name string) error {
	lease, err := a.manager.GetLockInfo(ctx, name)
	if err != nil {
		return err
	}
	if lease == nil {
		_, _ = fmt.Fprintf(a.output, "no lease stored for %s\n", name)
		return nil
	}
	a.printLease(lease)
	return nil
}

func (a *Application) printLease(lease *model.Lease) {
	_, _ = fmt.Fprintf(a.output, "name:       %s\n", lease.LockName)
	_, _ = fmt.Fprintf(a.output, "id:         %s\n", lease.LockID)
	_, _ = fmt.Fprintf(a.output, "owner:      %s\n", lease.Owner)
	_, _ = fmt.Fprintf(a.output, "acquired:   %s\n", lease.AcquiredAt.Format(time.RFC3339))
	_, _ = fmt.Fprintf(a.output, "expires:    %s\n", lease.ExpiresAt.Format(time.RFC3339))
	_, _ = fmt.Fprintf(a.output, "timeout:    %ds\n", lease.TimeoutSeconds)
	_, _ = fmt.Fprintf(a.output, "heartbeat:  %s\n", lease.HeartbeatAt.Format(time.RFC3339))
	for k, v := range lease.Metadata {
		_, _ = fmt.Fprintf(a.output, "meta:       %s=%s\n", k, v)
	}
}

func (a *Application) cmdLock(ctx context.Context, name string, timeout time.Duration) error {
	acquired, err := a.manager.Acquire(ctx, name, timeout, nil)
	if err != nil {
		return err
	}
	if !acquired {
		return fmt.Errorf("lock %s is busy", name)
	}
	_, _ = fmt.Fprintf(a.output, "acquired %s as %s\n", name, a.manager.Owner())
	return nil
}

func (a *Application) cmdUnlock(ctx context.Context, name string) error {
	released, err := a.manager.Release(ctx, name)
	if err != nil {
		return err
	}
	if !released {
		return fmt.Errorf("lock %s is not owned by %s", name, a.manager.Owner())
	}
	_, _ = fmt.Fprintf(a.output, "released %s\n", name)
	return nil
}

func (a *Application) cmdForceUnlock(ctx context.Context, name string) error {
	released, err := a.manager.ForceRelease(ctx, name)
	if err != nil {
		return err
	}
	if !released {
		_, _ = fmt.Fprintf(a.output, "no lease stored for %s\n", name)
		return nil
	}
	_, _ = fmt.Fprintf(a.output, "force released %s\n", name)
	return nil
}

func (a *Application) cmdCleanup(ctx context.Context) error {
	count, err := a.manager.CleanupStaleLocks(ctx)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(a.output, "removed %d stale lease(s)\n", count)
	return nil
}

func (a *Application) cmdReleaseOwned(ctx context.Context) error {
	count, err := a.manager.ReleaseAllOwnedLocks(ctx)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(a.output, "released %d lock(s) owned by %s\n", count, a.manager.Owner())
	return nil
}

// cmdHold acquires a lock and keeps it alive, heartbeating at a third
// of the lease duration, until the duration elapses or a stop signal
// arrives. Owned locks are always released on the way out.
func (a *Application) cmdHold(ctx context.Context, name string, duration time.Duration) error {
	acquired, err := a.manager.Acquire(ctx, name, duration, nil)
	if err != nil {
		return err
	}
	if !acquired {
		return fmt.Errorf("lock %s is busy", name)
	}
	_, _ = fmt.Fprintf(a.output, "holding %s for %s as %s\n", name, duration, a.manager.Owner())

	defer func() {
		count, err := a.manager.ReleaseAllOwnedLocks(ctx)
		if err != nil {
			log.Error(err)
			return
		}
		_, _ = fmt.Fprintf(a.output, "released %d lock(s)\n", count)
	}()

	heartbeatInterval := duration / 3
	if heartbeatInterval < time.Second {
		heartbeatInterval = time.Second
	}
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	expired := time.After(duration)
	signal.Notify(a.waitStopCh, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(a.waitStopCh)

	for {
		select {
		case <-ticker.C:
			ok, err := a.manager.Heartbeat(ctx, name)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("lost ownership of %s", name)
			}
			log.Debugf("heartbeat sent for %s", name)
		case <-expired:
			return nil
		case sig := <-a.waitStopCh:
			log.Infof("received %s signal... releasing...", sig.String())
			return nil
		}
	}
}
