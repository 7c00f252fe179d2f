// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package watch

import (
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/net/proxy"

	"go.chromium.org/junitreport/errors"
	"go.chromium.org/junitreport/internal/logging"
	"go.chromium.org/junitreport/internal/shutil"
)

const (
	defaultSSHUser    = "root"
	defaultSSHPort    = 22
	sshConnectTimeout = 30 * time.Second
)

// targetRegexp matches "[user@]host[:port]".
var targetRegexp = regexp.MustCompile("^([^@]+@)?([^@]+)$")

// SSHOptions describes how to reach a remote log.
type SSHOptions struct {
	// User is the user to log in as.
	User string
	// Hostname is the "host:port" address of the SSH server.
	Hostname string
	// KeyFile is an optional private key file.
	KeyFile string
	// KeyDir is a directory searched for well-known private key files.
	KeyDir string
}

// ParseSSHTarget parses target of the form "[user@]host[:port]" into o,
// defaulting to user root and port 22.
func ParseSSHTarget(target string, o *SSHOptions) error {
	m := targetRegexp.FindStringSubmatch(target)
	if m == nil || m[2] == "" {
		return errors.Errorf("couldn't parse %q as \"[user@]host[:port]\"", target)
	}
	o.User = defaultSSHUser
	if m[1] != "" {
		o.User = m[1][:len(m[1])-1]
	}
	if _, _, err := net.SplitHostPort(m[2]); err != nil {
		o.Hostname = net.JoinHostPort(m[2], strconv.Itoa(defaultSSHPort))
	} else {
		o.Hostname = m[2]
	}
	return nil
}

// authMethods returns the authentication methods to try: the configured
// keys followed by the ssh-agent, if one is running. The returned connection
// to the agent is nil if none was made; the caller must close it otherwise.
func authMethods(ctx context.Context, o *SSHOptions) (methods []ssh.AuthMethod, agentConn net.Conn, err error) {
	var signers []ssh.Signer
	if o.KeyFile != "" {
		s, _, err := readPrivateKey(o.KeyFile)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "failed to read private key %s", o.KeyFile)
		}
		signers = append(signers, s)
	}
	if o.KeyDir != "" {
		for _, fn := range []string{"testing_rsa", "id_ecdsa", "id_ed25519", "id_rsa"} {
			p := filepath.Join(o.KeyDir, fn)
			if p == o.KeyFile {
				continue
			}
			if s, rok, err := readPrivateKey(p); err == nil {
				signers = append(signers, s)
			} else if rok {
				logging.Infof(ctx, "Failed to parse %s: %v", p, err)
			}
		}
	}

	if len(signers) > 0 {
		methods = append(methods, ssh.PublicKeys(signers...))
	}
	if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
		if a, err := net.Dial("unix", sock); err == nil {
			agentConn = a
			methods = append(methods, ssh.PublicKeysCallback(agent.NewClient(a).Signers))
		} else {
			logging.Infof(ctx, "Failed to connect to ssh-agent at %s: %v", sock, err)
		}
	}
	if len(methods) == 0 {
		return nil, nil, errors.New("no SSH keys or agent available")
	}
	return methods, agentConn, nil
}

// readPrivateKey reads a passphraseless private key from path. rok reports
// whether the file was read, in which case err describes a parse failure.
func readPrivateKey(path string) (s ssh.Signer, rok bool, err error) {
	k, err := os.ReadFile(path)
	if err != nil {
		return nil, false, err
	}
	s, err = ssh.ParsePrivateKey(k)
	return s, true, err
}

type sshSource struct {
	*readerSource
	cl        *ssh.Client
	sess      *ssh.Session
	agentConn net.Conn // nil if no ssh-agent is used
	once      sync.Once
}

// NewSSHSource runs args on the host described by o and returns a Source
// reading the command's standard output. Closing the Source signals the
// remote command and closes the connection.
func NewSSHSource(ctx context.Context, o SSHOptions, args []string) (Source, error) {
	if len(args) == 0 {
		return nil, errors.New("empty log command")
	}
	if o.User == "" {
		o.User = defaultSSHUser
	}
	methods, agentConn, err := authMethods(ctx, &o)
	if err != nil {
		return nil, err
	}
	src, err := dialSSH(ctx, o, methods, args)
	if err != nil {
		if agentConn != nil {
			agentConn.Close()
		}
		return nil, err
	}
	src.agentConn = agentConn
	return src, nil
}

// dialSSH connects to o.Hostname and starts args there.
func dialSSH(ctx context.Context, o SSHOptions, methods []ssh.AuthMethod, args []string) (*sshSource, error) {
	cfg := &ssh.ClientConfig{
		User:            o.User,
		Auth:            methods,
		Timeout:         sshConnectTimeout,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
	}

	conn, err := proxy.FromEnvironment().Dial("tcp", o.Hostname)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to %s", o.Hostname)
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, o.Hostname, cfg)
	if err != nil {
		conn.Close()
		return nil, errors.Wrapf(err, "failed to establish SSH connection to %s", o.Hostname)
	}
	cl := ssh.NewClient(c, chans, reqs)

	sess, err := cl.NewSession()
	if err != nil {
		cl.Close()
		return nil, errors.Wrap(err, "failed to create SSH session")
	}
	stdout, err := sess.StdoutPipe()
	if err != nil {
		cl.Close()
		return nil, errors.Wrap(err, "failed to create pipe")
	}
	cmd := shutil.EscapeSlice(args)
	if err := sess.Start(cmd); err != nil {
		cl.Close()
		return nil, errors.Wrapf(err, "failed to run %s on %s", cmd, o.Hostname)
	}
	logging.Debugf(ctx, "Started log command on %s: %s", o.Hostname, cmd)

	return &sshSource{
		readerSource: newReaderSource(io.NopCloser(stdout)),
		cl:           cl,
		sess:         sess,
	}, nil
}

func (s *sshSource) Close() error {
	var err error
	s.once.Do(func() {
		s.readerSource.Close()
		// Not every server honors signals; closing the session ends the
		// command anyway.
		s.sess.Signal(ssh.SIGTERM)
		s.sess.Close()
		err = s.cl.Close()
		if s.agentConn != nil {
			s.agentConn.Close()
		}
	})
	return err
}
