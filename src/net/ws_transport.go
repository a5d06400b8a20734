package net

import (
	"context"
	"fmt"
	stdnet "net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// wsPath is the HTTP path on which the stream layer upgrades connections.
const wsPath = "/net"

// WSStreamLayer implements StreamLayer over WebSocket. It runs an HTTP
// server that upgrades incoming requests and hands the resulting
// connections to Accept, while Dial upgrades outgoing connections.
type WSStreamLayer struct {
	advertise string
	listener  stdnet.Listener
	server    *http.Server
	upgrader  websocket.Upgrader

	acceptCh chan *WSConn
	closeCh  chan struct{}

	logger *logrus.Entry
}

// NewWSStreamLayer binds the HTTP server and starts upgrading connections.
func NewWSStreamLayer(bindAddr string, advertise string, logger *logrus.Entry) (*WSStreamLayer, error) {
	listener, err := stdnet.Listen("tcp", bindAddr)
	if err != nil {
		return nil, err
	}

	ws := &WSStreamLayer{
		advertise: advertise,
		listener:  listener,
		acceptCh:  make(chan *WSConn),
		closeCh:   make(chan struct{}),
		logger:    logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc(wsPath, ws.handleUpgrade)
	ws.server = &http.Server{Handler: mux}

	go func() {
		if err := ws.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			ws.logger.WithError(err).Error("websocket server stopped")
		}
	}()

	return ws, nil
}

func (w *WSStreamLayer) handleUpgrade(rw http.ResponseWriter, req *http.Request) {
	conn, err := w.upgrader.Upgrade(rw, req, nil)
	if err != nil {
		w.logger.WithError(err).Error("websocket upgrade failed")
		return
	}

	select {
	case w.acceptCh <- NewWSConn(conn):
	case <-w.closeCh:
		conn.Close()
	}
}

// Dial implements the StreamLayer interface.
func (w *WSStreamLayer) Dial(address string, timeout time.Duration) (stdnet.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: timeout}

	conn, _, err := dialer.Dial(fmt.Sprintf("ws://%s%s", address, wsPath), nil)
	if err != nil {
		return nil, err
	}

	return NewWSConn(conn), nil
}

// Accept implements the net.Listener interface.
func (w *WSStreamLayer) Accept() (stdnet.Conn, error) {
	select {
	case conn := <-w.acceptCh:
		return conn, nil
	case <-w.closeCh:
		return nil, ErrTransportShutdown
	}
}

// Close implements the net.Listener interface.
func (w *WSStreamLayer) Close() error {
	select {
	case <-w.closeCh:
		return nil
	default:
		close(w.closeCh)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return w.server.Shutdown(ctx)
}

// Addr implements the net.Listener interface.
func (w *WSStreamLayer) Addr() stdnet.Addr {
	return w.listener.Addr()
}

// AdvertiseAddr implements the StreamLayer interface.
func (w *WSStreamLayer) AdvertiseAddr() string {
	if w.advertise != "" {
		return w.advertise
	}
	return w.listener.Addr().String()
}

// NewWSTransport returns a NetworkTransport built on top of a WebSocket
// stream layer.
func NewWSTransport(
	bindAddr string,
	advertise string,
	maxPool int,
	timeout time.Duration,
	logger *logrus.Entry,
) (*NetworkTransport, error) {

	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	stream, err := NewWSStreamLayer(bindAddr, advertise, logger)
	if err != nil {
		return nil, err
	}

	return NewNetworkTransport(stream, maxPool, timeout, logger), nil
}
