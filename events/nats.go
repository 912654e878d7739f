package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Options configures Connect.
type Options struct {
	// URL of an external server. Ignored when Embedded is set.
	URL string

	// Embedded starts an in-process server on a random port.
	Embedded bool

	// StoreDir holds JetStream data for the embedded server.
	StoreDir string

	// Stream, when set, is created (or updated) to retain every subject
	// under SubjectPrefix.
	Stream        string
	SubjectPrefix string

	Logger *slog.Logger
}

// Bus owns a NATS connection and, when embedded, the server behind it.
type Bus struct {
	conn     *nats.Conn
	embedded *server.Server
	js       jetstream.JetStream
	logger   *slog.Logger
}

// Connect connects to NATS as described by opts.
func Connect(ctx context.Context, opts Options) (*Bus, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bus{logger: logger}

	url := opts.URL
	if opts.Embedded {
		ns, err := startEmbedded(opts.StoreDir)
		if err != nil {
			return nil, err
		}
		b.embedded = ns
		url = ns.ClientURL()
		logger.Info("Started embedded NATS server", "url", url)
	}
	if url == "" {
		return nil, fmt.Errorf("nats url is required")
	}

	conn, err := nats.Connect(url,
		nats.Name("adpilot"),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		b.shutdownServer()
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	b.conn = conn

	if opts.Stream != "" {
		prefix := opts.SubjectPrefix
		if prefix == "" {
			prefix = DefaultSubjectPrefix
		}
		if err := b.ensureStream(ctx, opts.Stream, prefix+".campaign.>"); err != nil {
			b.Close()
			return nil, err
		}
	}
	return b, nil
}

func startEmbedded(storeDir string) (*server.Server, error) {
	opts := &server.Options{
		Port:      -1,
		JetStream: true,
		StoreDir:  storeDir,
		NoLog:     true,
		NoSigs:    true,
	}
	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create embedded NATS server: %w", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(5 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("embedded NATS server failed to start")
	}
	return ns, nil
}

func (b *Bus) ensureStream(ctx context.Context, name, subject string) error {
	js, err := jetstream.New(b.conn)
	if err != nil {
		return fmt.Errorf("create JetStream context: %w", err)
	}
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     name,
		Subjects: []string{subject},
		Storage:  jetstream.FileStorage,
		MaxAge:   7 * 24 * time.Hour,
	})
	if err != nil {
		return fmt.Errorf("create stream %s: %w", name, err)
	}
	b.js = js
	return nil
}

// Conn returns the connection for publishing.
func (b *Bus) Conn() *nats.Conn {
	return b.conn
}

// StreamMessages returns how many messages the named stream holds.
func (b *Bus) StreamMessages(ctx context.Context, name string) (uint64, error) {
	if b.js == nil {
		return 0, fmt.Errorf("no stream configured")
	}
	stream, err := b.js.Stream(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("get stream %s: %w", name, err)
	}
	info, err := stream.Info(ctx)
	if err != nil {
		return 0, fmt.Errorf("stream info %s: %w", name, err)
	}
	return info.State.Msgs, nil
}

// Close flushes pending events, closes the connection and stops the
// embedded server, if any.
func (b *Bus) Close() {
	if b.conn != nil {
		if err := b.conn.FlushTimeout(2 * time.Second); err != nil {
			b.logger.Debug("NATS flush failed", "error", err)
		}
		b.conn.Close()
	}
	b.shutdownServer()
}

func (b *Bus) shutdownServer() {
	if b.embedded != nil {
		b.embedded.Shutdown()
		b.embedded.WaitForShutdown()
		b.embedded = nil
	}
}
