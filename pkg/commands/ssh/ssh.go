// Package ssh tunnels an ssh:// DOCKER_HOST to a local unix socket, since the
// engine API client can only talk to sockets and tcp.
package ssh

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"os/exec"
	"path"
	"time"
)

const (
	hostEnvKey   = "DOCKER_HOST"
	remoteSocket = "/var/run/docker.sock"
	// how long the tunnel gets to come up before we give up on it
	socketTunnelTimeout = 8 * time.Second
)

// CmdKiller is what we need from OSCommand to manage the ssh process
type CmdKiller interface {
	Kill(cmd *exec.Cmd) error
	PrepareForChildren(cmd *exec.Cmd)
}

// SSHHandler sets up the tunnel
type SSHHandler struct {
	oSCommand CmdKiller

	dialContext func(ctx context.Context, network, addr string) (io.Closer, error)
	startCmd    func(*exec.Cmd) error
	tempDir     func(dir string, pattern string) (name string, err error)
	removeAll   func(path string) error
	getenv      func(key string) string
	setenv      func(key, value string) error
	retryEvery  time.Duration
}

// NewSSHHandler returns a handler killing its tunnel through oSCommand
func NewSSHHandler(oSCommand CmdKiller) *SSHHandler {
	return &SSHHandler{
		oSCommand: oSCommand,

		dialContext: func(ctx context.Context, network, addr string) (io.Closer, error) {
			return (&net.Dialer{}).DialContext(ctx, network, addr)
		},
		startCmd:   func(cmd *exec.Cmd) error { return cmd.Start() },
		tempDir:    os.MkdirTemp,
		removeAll:  os.RemoveAll,
		getenv:     os.Getenv,
		setenv:     os.Setenv,
		retryEvery: 250 * time.Millisecond,
	}
}

// HandleSSHDockerHost points DOCKER_HOST at a local socket tunneled over ssh
// when it names an ssh:// host. The docker cli we shell out to inherits the
// override, so everything talks to the same engine. Closing the result tears
// the tunnel down.
func (self *SSHHandler) HandleSSHDockerHost(ctx context.Context) (io.Closer, error) {
	u, err := url.Parse(self.getenv(hostEnvKey))
	if err != nil || u.Scheme != "ssh" {
		return noopCloser{}, nil
	}

	destination := u.Hostname()
	if u.User != nil && u.User.Username() != "" {
		destination = u.User.Username() + "@" + destination
	}

	tunnel, err := self.createDockerHostTunnel(ctx, destination, u.Port())
	if err != nil {
		return noopCloser{}, fmt.Errorf("tunnel ssh docker host: %w", err)
	}
	if err := self.setenv(hostEnvKey, tunnel.socketPath); err != nil {
		_ = tunnel.Close()
		return noopCloser{}, fmt.Errorf("override %s to tunneled socket: %w", hostEnvKey, err)
	}

	return tunnel, nil
}

type noopCloser struct{}

func (noopCloser) Close() error { return nil }

type tunneledDockerHost struct {
	socketPath string
	socketDir  string
	cmd        *exec.Cmd
	oSCommand  CmdKiller
	removeAll  func(path string) error
}

var _ io.Closer = (*tunneledDockerHost)(nil)

// Close kills the ssh process and removes the directory holding its socket
func (t *tunneledDockerHost) Close() error {
	err := t.oSCommand.Kill(t.cmd)
	if rmErr := t.removeAll(t.socketDir); err == nil {
		err = rmErr
	}
	return err
}

func (self *SSHHandler) createDockerHostTunnel(ctx context.Context, destination string, port string) (*tunneledDockerHost, error) {
	socketDir, err := self.tempDir("/tmp", "gdev-sshtunnel-")
	if err != nil {
		return nil, fmt.Errorf("create ssh tunnel tmp dir: %w", err)
	}
	localSocket := path.Join(socketDir, "dockerhost.sock")

	cmd, err := self.tunnelSSH(destination, port, localSocket)
	if err != nil {
		_ = self.removeAll(socketDir)
		return nil, fmt.Errorf("tunnel docker host over ssh: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, socketTunnelTimeout)
	defer cancel()

	if err := self.retrySocketDial(ctx, localSocket); err != nil {
		_ = self.oSCommand.Kill(cmd)
		_ = self.removeAll(socketDir)
		return nil, fmt.Errorf("ssh tunneled socket never became available: %w", err)
	}

	return &tunneledDockerHost{
		socketPath: (&url.URL{Scheme: "unix", Path: localSocket}).String(),
		socketDir:  socketDir,
		cmd:        cmd,
		oSCommand:  self.oSCommand,
		removeAll:  self.removeAll,
	}, nil
}

// retrySocketDial dials the socket until it answers or ctx is done
func (self *SSHHandler) retrySocketDial(ctx context.Context, socketPath string) error {
	for {
		conn, err := self.dialContext(ctx, "unix", socketPath)
		if err == nil {
			return conn.Close()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(self.retryEvery):
		}
	}
}

// the tunnel must outlive any single command, so it is not tied to ctx
func (self *SSHHandler) tunnelSSH(destination string, port string, localSocket string) (*exec.Cmd, error) {
	args := []string{"-L", localSocket + ":" + remoteSocket}
	if port != "" {
		args = append(args, "-p", port)
	}
	args = append(args, destination, "-N")

	cmd := exec.Command("ssh", args...)
	self.oSCommand.PrepareForChildren(cmd)
	if err := self.startCmd(cmd); err != nil {
		return nil, err
	}
	return cmd, nil
}
