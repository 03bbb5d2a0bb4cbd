package server

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/juju/clock"
)

// defaultCertCheckInterval limits how often the key pair files are stat'ed.
const defaultCertCheckInterval = time.Minute

// CertLoader serves a TLS key pair and reloads it when either file changes
// on disk, so renewed certificates are picked up without a restart.
type CertLoader struct {
	certFile      string
	keyFile       string
	logger        *slog.Logger
	clock         clock.Clock
	checkInterval time.Duration

	mu        sync.RWMutex
	cert      *tls.Certificate // protected by mu
	loadedAt  time.Time        // protected by mu
	lastCheck time.Time        // protected by mu
}

// NewCertLoader loads the key pair and returns a loader serving it.
func NewCertLoader(certFile, keyFile string, logger *slog.Logger, clk clock.Clock) (*CertLoader, error) {
	if clk == nil {
		clk = clock.WallClock
	}
	l := &CertLoader{
		certFile:      certFile,
		keyFile:       keyFile,
		logger:        logger,
		clock:         clk,
		checkInterval: defaultCertCheckInterval,
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.reload(); err != nil {
		return nil, err
	}
	l.lastCheck = clk.Now()
	return l, nil
}

// GetCertificate implements tls.Config.GetCertificate. On any error the
// previously loaded certificate keeps being served.
func (l *CertLoader) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	l.mu.RLock()
	if l.clock.Now().Sub(l.lastCheck) < l.checkInterval {
		defer l.mu.RUnlock()
		return l.cert, nil
	}
	l.mu.RUnlock()

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.clock.Now().Sub(l.lastCheck) < l.checkInterval {
		return l.cert, nil
	}
	l.lastCheck = l.clock.Now()

	changed, err := l.changed()
	if err != nil {
		l.logger.Error("failed to stat certificate files", "error", err)
		return l.cert, nil
	}
	if changed {
		if err := l.reload(); err != nil {
			l.logger.Error("failed to reload certificate", "error", err)
		}
	}
	return l.cert, nil
}

// TLSConfig returns a server TLS config backed by the loader.
func (l *CertLoader) TLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion:     tls.VersionTLS12,
		GetCertificate: l.GetCertificate,
	}
}

// changed must be called with mu held.
func (l *CertLoader) changed() (bool, error) {
	for _, f := range []string{l.certFile, l.keyFile} {
		st, err := os.Stat(f)
		if err != nil {
			return false, err
		}
		if st.ModTime().After(l.loadedAt) {
			return true, nil
		}
	}
	return false, nil
}

// reload must be called with mu held.
func (l *CertLoader) reload() error {
	cert, err := tls.LoadX509KeyPair(l.certFile, l.keyFile)
	if err != nil {
		return fmt.Errorf("failed to load key pair: %w", err)
	}

	l.cert = &cert
	l.loadedAt = time.Now()
	l.logger.Info("loaded tls certificate", "cert", l.certFile, "key", l.keyFile)
	return nil
}
