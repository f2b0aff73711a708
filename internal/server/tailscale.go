// ABOUTME: Optional tsnet listener so the API can be served on a tailnet
// ABOUTME: Supports plain HTTP, HTTPS with tailnet certs, and Funnel

package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"tailscale.com/ipn/ipnstate"
	"tailscale.com/tsnet"

	"github.com/2389/notebox/internal/config"
)

// tailnetMode is how the API is exposed on the tailnet.
type tailnetMode int

const (
	tailnetHTTP tailnetMode = iota
	tailnetHTTPS
	tailnetFunnel
)

// tailnetModeFor picks the exposure mode. Funnel implies HTTPS.
func tailnetModeFor(cfg config.TailscaleConfig) tailnetMode {
	switch {
	case cfg.Funnel:
		return tailnetFunnel
	case cfg.HTTPS:
		return tailnetHTTPS
	default:
		return tailnetHTTP
	}
}

func (m tailnetMode) addr() string {
	if m == tailnetHTTP {
		return ":80"
	}
	return ":443"
}

// url is the address clients reach the node at, given its MagicDNS name.
func (m tailnetMode) url(dnsName string) string {
	host := strings.TrimSuffix(dnsName, ".")
	if host == "" {
		return ""
	}
	if m == tailnetHTTP {
		return "http://" + host
	}
	return "https://" + host
}

// resolveTailscaleStateDir returns the configured state dir or
// ~/.local/share/notebox/tailscale.
func resolveTailscaleStateDir(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory for tailscale state (set tailscale.state_dir explicitly): %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "notebox", "tailscale"), nil
}

// resolveTailscaleAuthKey returns the auth key from config or TS_AUTHKEY.
func resolveTailscaleAuthKey(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	if key := os.Getenv("TS_AUTHKEY"); key != "" {
		return key, nil
	}
	return "", errors.New("tailscale auth key required: set tailscale.auth_key or TS_AUTHKEY")
}

// newTailnetNode builds an unstarted tsnet node, creating its state dir.
func newTailnetNode(cfg config.TailscaleConfig) (*tsnet.Server, error) {
	stateDir, err := resolveTailscaleStateDir(cfg.StateDir)
	if err != nil {
		return nil, err
	}
	authKey, err := resolveTailscaleAuthKey(cfg.AuthKey)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return nil, fmt.Errorf("creating tailscale state dir: %w", err)
	}
	return &tsnet.Server{
		Hostname:  cfg.Hostname,
		Dir:       stateDir,
		Ephemeral: cfg.Ephemeral,
		AuthKey:   authKey,
	}, nil
}

func (s *Server) setupTailscaleListener(ctx context.Context) (net.Listener, error) {
	tsCfg := s.config.Tailscale

	node, err := newTailnetNode(tsCfg)
	if err != nil {
		return nil, err
	}
	s.tsnetServer = node

	s.logger.Info("starting tailscale node", "hostname", tsCfg.Hostname, "state_dir", node.Dir, "ephemeral", tsCfg.Ephemeral)
	status, err := node.Up(ctx)
	if err != nil {
		return nil, fmt.Errorf("starting tailscale: %w", err)
	}

	mode := tailnetModeFor(tsCfg)
	s.logTailscaleStatus(mode, status)
	return s.listenTailnet(mode)
}

func (s *Server) logTailscaleStatus(mode tailnetMode, status *ipnstate.Status) {
	var ip, dnsName string
	if len(status.TailscaleIPs) > 0 {
		ip = status.TailscaleIPs[0].String()
	} else {
		s.logger.Warn("tailscale node has no IP addresses assigned")
	}
	if status.Self != nil {
		dnsName = status.Self.DNSName
	}

	url := mode.url(dnsName)
	s.logger.Info("tailscale node ready", "tailscale_ip", ip, "url", url)
	if url != "" && s.config.Server.BaseURL != url {
		s.logger.Warn("image URLs use server.base_url, not the tailnet address",
			"base_url", s.config.Server.BaseURL, "tailnet_url", url)
	}
}

func (s *Server) listenTailnet(mode tailnetMode) (net.Listener, error) {
	switch mode {
	case tailnetFunnel:
		ln, err := s.tsnetServer.ListenFunnel("tcp", mode.addr())
		if err != nil {
			return nil, fmt.Errorf("listening on tailscale funnel: %w", err)
		}
		return ln, nil

	case tailnetHTTPS:
		ln, err := s.tsnetServer.Listen("tcp", mode.addr())
		if err != nil {
			return nil, fmt.Errorf("listening on tailscale HTTPS port: %w", err)
		}
		lc, err := s.tsnetServer.LocalClient()
		if err != nil {
			_ = ln.Close()
			return nil, fmt.Errorf("getting tailscale local client: %w", err)
		}
		return tls.NewListener(ln, &tls.Config{
			GetCertificate: lc.GetCertificate,
			MinVersion:     tls.VersionTLS12,
		}), nil

	default:
		ln, err := s.tsnetServer.Listen("tcp", mode.addr())
		if err != nil {
			return nil, fmt.Errorf("listening on tailscale HTTP port: %w", err)
		}
		return ln, nil
	}
}
