package httpclient

import (
	"context"
	"crypto/x509"
	"fmt"
	"net"
	"os"
	"time"
)

// netDialer applies the per-download connect-phase timeout
// (Config.ConnTimeout) without touching the shared transport's other
// pooling settings.
type netDialer struct {
	timeout time.Duration
}

func (d *netDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: d.timeout}
	return dialer.DialContext(ctx, network, addr)
}

func loadCAPool(path string) (*x509.CertPool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("httpclient: read CA bundle: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return nil, fmt.Errorf("httpclient: no certificates found in %s", path)
	}
	return pool, nil
}
