package discovery

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/dSock/rpc/transport"
	"golang.org/x/net/ipv4"
	"net"
	"os"
	"strings"
	"time"
)

// Reply is one answer to a discovery request
type Reply struct {
	Name string   // name the server was set up with
	Addr string   // advertised host:port of the server
	From net.Addr // sender of the datagram
}

// ParseReply parses a reply of the form "<name> [<host>:<port>]"
func ParseReply(text string) (Reply, error) {
	text = strings.TrimSpace(text)
	open := strings.LastIndex(text, " [")
	if open < 0 || !strings.HasSuffix(text, "]") {
		return Reply{}, fmt.Errorf("malformed discovery reply: %q", text)
	}

	reply := Reply{
		Name: text[:open],
		Addr: text[open+2 : len(text)-1],
	}
	if _, _, err := net.SplitHostPort(reply.Addr); err != nil {
		return Reply{}, fmt.Errorf("malformed address in discovery reply %q: %w", text, err)
	}
	return reply, nil
}

// Probe sends a discovery request to the multicast group and collects the replies
// received within wait (or until ctx is done). Malformed replies are skipped.
func Probe(ctx context.Context, group string, port int, wait time.Duration) ([]Reply, error) {
	ip := net.ParseIP(group)
	if ip == nil || ip.To4() == nil {
		return nil, fmt.Errorf("invalid IPv4 multicast group: %q", group)
	}

	conn, err := net.ListenPacket("udp4", "0.0.0.0:0")
	if err != nil {
		return nil, fmt.Errorf("failed to open probe socket: %w", err)
	}
	defer conn.Close()

	pconn := ipv4.NewPacketConn(conn)
	if err := pconn.SetMulticastTTL(DefaultTTL); err != nil {
		Logger.Debugf("Failed to set multicast TTL: %v", err)
	}
	if err := pconn.SetMulticastLoopback(true); err != nil {
		Logger.Debugf("Failed to enable multicast loopback: %v", err)
	}

	if _, err := pconn.WriteTo([]byte(transport.DiscoverRequest), nil, &net.UDPAddr{IP: ip, Port: port}); err != nil {
		return nil, fmt.Errorf("failed to send discovery request: %w", err)
	}

	deadline := time.Now().Add(wait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return nil, err
	}

	// unblock the read once ctx is done
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	var replies []Reply
	buf := make([]byte, maxDatagramSize)
	for {
		n, _, src, err := pconn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				return replies, nil
			}
			return replies, err
		}

		reply, err := ParseReply(string(buf[:n]))
		if err != nil {
			Logger.Debugf("Ignoring datagram from %s: %v", src, err)
			continue
		}
		reply.From = src
		replies = append(replies, reply)
	}
}
