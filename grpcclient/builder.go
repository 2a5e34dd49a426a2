package grpcclient

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/Stoyan-Iliev/go-sessionx/events"
	"github.com/Stoyan-Iliev/go-sessionx/session"
)

// Builder provides a fluent interface for constructing gRPC client connections
// authenticated through a session coordinator, with TLS/mTLS support.
type Builder struct {
	address string

	// Session configuration
	coordinator *session.Coordinator

	// TLS configuration
	tlsEnabled    bool
	tlsCAFile     string
	tlsCertFile   string
	tlsKeyFile    string
	tlsServerName string
	insecureConn  bool

	// Additional dial options
	dialOpts []grpc.DialOption
}

// NewBuilder creates a new gRPC client builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// WithAddress sets the server address (e.g., "server.example.com:9090").
func (b *Builder) WithAddress(address string) *Builder {
	b.address = address
	return b
}

// WithSession attaches per-RPC Bearer credentials from the coordinator.
func (b *Builder) WithSession(coord *session.Coordinator) *Builder {
	b.coordinator = coord
	return b
}

// WithTLS enables TLS for the connection.
//
// Parameters:
//   - caFile: Path to CA certificate for server verification (required)
//   - certFile: Path to client certificate for mTLS (optional, must be paired with keyFile)
//   - keyFile: Path to client private key for mTLS (optional, must be paired with certFile)
//   - serverName: Expected server name for TLS verification (optional, overrides SNI)
func (b *Builder) WithTLS(caFile, certFile, keyFile, serverName string) *Builder {
	b.tlsEnabled = true
	b.tlsCAFile = caFile
	b.tlsCertFile = certFile
	b.tlsKeyFile = keyFile
	b.tlsServerName = serverName
	return b
}

// WithInsecureTransport disables transport security (NOT RECOMMENDED for
// production). Per-RPC credentials will not require TLS either. This should
// only be used for testing or development purposes.
func (b *Builder) WithInsecureTransport() *Builder {
	b.insecureConn = true
	return b
}

// WithDialOptions adds custom gRPC dial options.
// These options are applied after session and TLS options.
func (b *Builder) WithDialOptions(opts ...grpc.DialOption) *Builder {
	b.dialOpts = append(b.dialOpts, opts...)
	return b
}

// Build constructs the gRPC client connection with the configured options.
//
// Returns:
//   - *grpc.ClientConn: Established gRPC connection
//   - error: Error if configuration is invalid
func (b *Builder) Build() (*grpc.ClientConn, error) {
	if b.address == "" {
		return nil, errors.New("grpcclient: server address is required")
	}

	var opts []grpc.DialOption

	// Attach per-RPC session credentials if a coordinator is set
	if b.coordinator != nil {
		creds := NewSessionCredentials(b.coordinator, !b.insecureConn)
		opts = append(opts, grpc.WithPerRPCCredentials(creds))
	}

	// Transport security
	switch {
	case b.insecureConn:
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	case b.tlsEnabled:
		tlsConfig, err := b.buildTLSConfig()
		if err != nil {
			return nil, fmt.Errorf("grpcclient: TLS config failed: %w", err)
		}
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(tlsConfig)))
	default:
		// Default to TLS with system roots to avoid accidental plaintext connections.
		// Set MinVersion to TLS 1.2 for secure defaults.
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{
			MinVersion: tls.VersionTLS12,
		})))
	}

	// Add custom dial options
	opts = append(opts, b.dialOpts...)

	conn, err := grpc.NewClient(b.address, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpcclient: dial failed: %w", err)
	}

	return conn, nil
}

// buildTLSConfig constructs the TLS configuration for the gRPC connection.
func (b *Builder) buildTLSConfig() (*tls.Config, error) {
	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
	}

	if b.tlsServerName != "" {
		tlsConfig.ServerName = b.tlsServerName
	}

	// Load CA certificate for server verification
	if b.tlsCAFile != "" {
		caCert, err := os.ReadFile(b.tlsCAFile)
		if err != nil {
			return nil, fmt.Errorf("read CA file: %w", err)
		}

		certPool := x509.NewCertPool()
		if !certPool.AppendCertsFromPEM(caCert) {
			return nil, errors.New("failed to parse CA certificate")
		}
		tlsConfig.RootCAs = certPool
	}

	// Load client certificate for mTLS (if both cert and key are provided)
	if b.tlsCertFile != "" && b.tlsKeyFile != "" {
		cert, err := tls.LoadX509KeyPair(b.tlsCertFile, b.tlsKeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	} else if b.tlsCertFile != "" || b.tlsKeyFile != "" {
		return nil, errors.New("both TLS cert and key files must be provided for mTLS")
	}

	return tlsConfig, nil
}

// CloseOnSessionEnd closes the connection when the session ends (Expired or
// Cleared), so long-lived streams fail fast instead of lingering with revoked
// credentials. Returns a stop function that detaches the watcher.
func CloseOnSessionEnd(conn *grpc.ClientConn, coord *session.Coordinator) (stop func()) {
	return coord.Subscribe(func(e events.Event) {
		if e.Type == events.Expired || e.Type == events.Cleared {
			_ = conn.Close()
		}
	})
}
