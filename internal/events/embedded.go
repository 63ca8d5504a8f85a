package events

import (
	"fmt"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
)

// Embedded is an in-process NATS server.
type Embedded struct {
	srv *natsserver.Server
}

// StartEmbedded runs a NATS server on host:port. A port of -1 picks a
// random free port.
func StartEmbedded(host string, port int) (*Embedded, error) {
	if host == "" {
		host = "127.0.0.1"
	}
	srv, err := natsserver.NewServer(&natsserver.Options{
		Host:           host,
		Port:           port,
		NoLog:          true,
		NoSigs:         true,
		MaxControlLine: 2048,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedded NATS server: %w", err)
	}

	go srv.Start()

	if !srv.ReadyForConnections(5 * time.Second) {
		srv.Shutdown()
		return nil, fmt.Errorf("embedded NATS server not ready on %s:%d", host, port)
	}
	return &Embedded{srv: srv}, nil
}

// URL is the client URL of the running server.
func (e *Embedded) URL() string {
	return e.srv.ClientURL()
}

// Shutdown stops the server and waits for it to exit.
func (e *Embedded) Shutdown() {
	e.srv.Shutdown()
	e.srv.WaitForShutdown()
}
