package mcp

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// SSHConfig describes the jump to a machine running the host add-on.
type SSHConfig struct {
	Host                        string
	Port                        string
	User                        string
	KeyPath                     string
	Passphrase                  []byte
	KnownHostsPath              string
	InsecureSkipHostKeyChecking bool
	Timeout                     time.Duration
	// Remote is the host add-on address as seen from the SSH server.
	Remote string
}

// Tunnel reaches Remote through one SSH connection. It implements Dialer:
// each dial opens a fresh remote channel, so a closed remote port fails the
// dial itself. The channel is bridged through net.Pipe, which keeps the
// client's per-read deadlines working.
type Tunnel struct {
	cfg        SSHConfig
	client     *ssh.Client
	dialRemote func(ctx context.Context, network, address string) (net.Conn, error)

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// OpenTunnel connects to the SSH server.
func OpenTunnel(ctx context.Context, cfg SSHConfig) (*Tunnel, error) {
	if strings.TrimSpace(cfg.Remote) == "" {
		return nil, fmt.Errorf("mcp: tunnel remote address is required")
	}
	client, err := cfg.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: ssh: %v", ErrUnreachable, err)
	}
	t := newTunnel(cfg, client.DialContext)
	t.client = client
	log.Info().
		Str("ssh", client.RemoteAddr().String()).
		Str("remote", cfg.Remote).
		Msg("mcp.tunnel open")
	return t, nil
}

func newTunnel(cfg SSHConfig, dial func(ctx context.Context, network, address string) (net.Conn, error)) *Tunnel {
	return &Tunnel{cfg: cfg, dialRemote: dial}
}

// Addr is the host add-on address as seen from the SSH server.
func (t *Tunnel) Addr() string {
	return t.cfg.Remote
}

// DialContext opens a channel to Remote; address is ignored.
func (t *Tunnel) DialContext(ctx context.Context, network, _ string) (net.Conn, error) {
	remote, err := t.dialRemote(ctx, network, t.cfg.Remote)
	if err != nil {
		log.Warn().Str("remote", t.cfg.Remote).Err(err).Msg("mcp.tunnel dial failed")
		return nil, err
	}
	local, peer := net.Pipe()
	t.wg.Add(1)
	go t.bridge(peer, remote)
	return local, nil
}

func (t *Tunnel) Close() error {
	var err error
	t.closeOnce.Do(func() {
		if t.client != nil {
			err = t.client.Close()
		}
		t.wg.Wait()
		log.Info().Str("remote", t.cfg.Remote).Msg("mcp.tunnel closed")
	})
	return err
}

// bridge copies both ways until either side ends, then closes both.
func (t *Tunnel) bridge(peer, remote net.Conn) {
	defer t.wg.Done()
	done := make(chan struct{}, 2)
	pipe := func(dst io.Writer, src io.Reader) {
		_, _ = io.Copy(dst, src)
		done <- struct{}{}
	}
	go pipe(remote, peer)
	go pipe(peer, remote)
	<-done
	_ = peer.Close()
	_ = remote.Close()
	<-done
}

func (c SSHConfig) dial(ctx context.Context) (*ssh.Client, error) {
	address, err := c.address()
	if err != nil {
		return nil, err
	}
	config, err := c.clientConfig()
	if err != nil {
		return nil, err
	}

	dialer := net.Dialer{Timeout: c.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}
	clientConn, chans, reqs, err := ssh.NewClientConn(conn, address, config)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return ssh.NewClient(clientConn, chans, reqs), nil
}

func (c SSHConfig) address() (string, error) {
	host := strings.TrimSpace(c.Host)
	if host == "" {
		return "", fmt.Errorf("ssh host is required")
	}
	if c.Port != "" {
		return net.JoinHostPort(host, c.Port), nil
	}
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host, nil
	}
	return net.JoinHostPort(host, "22"), nil
}

func (c SSHConfig) clientConfig() (*ssh.ClientConfig, error) {
	if c.User == "" {
		return nil, fmt.Errorf("ssh user is required")
	}
	signer, err := c.signer()
	if err != nil {
		return nil, err
	}

	var hostKeyCallback ssh.HostKeyCallback
	if c.InsecureSkipHostKeyChecking {
		hostKeyCallback = ssh.InsecureIgnoreHostKey()
	} else {
		callback, err := c.knownHostsCallback()
		if err != nil {
			return nil, err
		}
		hostKeyCallback = callback
	}

	return &ssh.ClientConfig{
		User:            c.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: hostKeyCallback,
		Timeout:         c.Timeout,
	}, nil
}

func (c SSHConfig) signer() (ssh.Signer, error) {
	if c.KeyPath == "" {
		return nil, fmt.Errorf("ssh key path is required")
	}
	privateKey, err := os.ReadFile(c.KeyPath)
	if err != nil {
		return nil, err
	}
	if len(c.Passphrase) > 0 {
		return ssh.ParsePrivateKeyWithPassphrase(privateKey, c.Passphrase)
	}
	return ssh.ParsePrivateKey(privateKey)
}

func (c SSHConfig) knownHostsCallback() (ssh.HostKeyCallback, error) {
	path := strings.TrimSpace(c.KnownHostsPath)
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("known hosts path not set and home dir unavailable")
		}
		path = filepath.Join(home, ".ssh", "known_hosts")
	}
	return knownhosts.New(path)
}
