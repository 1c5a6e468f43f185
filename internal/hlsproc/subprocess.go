// Package hlsproc manages the external subprocesses the pipeline shells
// out to (ffmpeg's concat demuxer, the aria2c downloader), adapted from
// shaka-streamer-go's NodeBase lifecycle: a process group so a stop signal
// reaches any children, SIGTERM with a grace period before SIGKILL.
package hlsproc

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
)

// ProcessStatus describes the status of a subprocess.
type ProcessStatus int

const (
	Finished ProcessStatus = iota
	Running
	Errored
)

// Node runs a single subprocess to completion, unlike the teacher's
// NodeBase which supervised a long-lived transcode; this pipeline only
// ever needs one-shot wait-for-exit processes (ffmpeg concat, aria2c).
type Node struct {
	Process *exec.Cmd
}

// Params describes a subprocess invocation.
type Params struct {
	Args     []string
	Env      map[string]string
	MergeEnv bool
	Stdout   io.Writer
	Stderr   io.Writer
}

func formatEnv(env map[string]string) []string {
	formatted := make([]string, 0, len(env))
	for k, v := range env {
		formatted = append(formatted, fmt.Sprintf("%s=%s", k, v))
	}
	return formatted
}

// Start launches the subprocess in its own process group so Stop can
// signal the whole group, not just the direct child.
func (n *Node) Start(params Params) error {
	cmd := exec.Command(params.Args[0], params.Args[1:]...)

	if params.MergeEnv {
		cmd.Env = append(os.Environ(), formatEnv(params.Env)...)
	} else if params.Env != nil {
		cmd.Env = formatEnv(params.Env)
	}

	cmd.Stdin = nil
	cmd.Stdout = params.Stdout
	cmd.Stderr = params.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", strings.Join(params.Args, " "), err)
	}

	n.Process = cmd
	return nil
}

// CheckStatus reports the current status of the node's process.
func (n *Node) CheckStatus() ProcessStatus {
	if n.Process == nil || n.Process.ProcessState == nil {
		return Running
	}
	if n.Process.ProcessState.Exited() {
		if n.Process.ProcessState.Success() {
			return Finished
		}
		return Errored
	}
	return Running
}

// Stop sends SIGTERM to the process group, waits a second, then SIGKILL if
// the process is still alive.
func (n *Node) Stop() {
	if n.Process == nil || n.Process.Process == nil {
		return
	}

	pgid, err := syscall.Getpgid(n.Process.Process.Pid)
	if err == nil {
		syscall.Kill(-pgid, syscall.SIGTERM)
	}

	if n.CheckStatus() == Running {
		time.Sleep(time.Second)
	}

	if n.CheckStatus() == Running {
		pgid, err := syscall.Getpgid(n.Process.Process.Pid)
		if err == nil {
			syscall.Kill(-pgid, syscall.SIGKILL)
		}
		n.Process.Wait()
	}
}

// Run starts params and waits for it to exit, honoring ctx cancellation by
// calling Stop on the subprocess group.
func Run(ctx context.Context, params Params) error {
	log.Info().Str("run", params.Args[0]).Strs("args", params.Args[1:]).Msg("subprocess")

	n := &Node{}
	if err := n.Start(params); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() { done <- n.Process.Wait() }()

	select {
	case <-ctx.Done():
		n.Stop()
		return ctx.Err()
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%s exited with error: %w", params.Args[0], err)
		}
		return nil
	}
}
