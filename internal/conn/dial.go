package conn

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/coder/websocket"

	"github.com/DoyleJ11/werewolf-client/internal/protocol"
)

var ErrEmptyAddress = errors.New("empty server address")

// Dialer opens the byte stream to a game server.
type Dialer func(ctx context.Context, address string) (net.Conn, error)

// NewDialer returns the default Dialer. Addresses starting with ws:// or wss://
// are dialed as WebSockets whose text messages carry the record stream;
// anything else is plain TCP, with defaultPort added when the address has none.
func NewDialer(defaultPort string) Dialer {
	return func(ctx context.Context, address string) (net.Conn, error) {
		address = strings.TrimSpace(address)
		if address == "" {
			return nil, ErrEmptyAddress
		}

		if strings.HasPrefix(address, "ws://") || strings.HasPrefix(address, "wss://") {
			ws, _, err := websocket.Dial(ctx, address, nil)
			if err != nil {
				return nil, err
			}
			ws.SetReadLimit(protocol.DefaultMaxRecordBytes)
			// The stream outlives the dial context; it ends on Close.
			return websocket.NetConn(context.Background(), ws, websocket.MessageText), nil
		}

		target, err := TCPAddress(address, defaultPort)
		if err != nil {
			return nil, err
		}
		var d net.Dialer
		return d.DialContext(ctx, "tcp", target)
	}
}

// TCPAddress returns host:port for address, filling in defaultPort.
func TCPAddress(address, defaultPort string) (string, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return "", ErrEmptyAddress
	}
	if _, _, err := net.SplitHostPort(address); err == nil {
		return address, nil
	}
	if defaultPort == "" {
		defaultPort = protocol.DefaultPort
	}
	host := strings.TrimSuffix(strings.TrimPrefix(address, "["), "]")
	if host == "" {
		return "", fmt.Errorf("bad server address %q", address)
	}
	return net.JoinHostPort(host, defaultPort), nil
}
