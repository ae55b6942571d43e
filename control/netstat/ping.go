package netstat

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
)

// protocolICMP is the IANA protocol number of ICMP for IPv4.
const protocolICMP = 1

// Pinger checks reachability with an ICMP echo on an unprivileged datagram socket.  If the kernel
// does not allow those (net.ipv4.ping_group_range), it falls back to checking that a UDP route to
// the host's NTP port exists.
type Pinger struct {
	Timeout time.Duration
	// CacheFor is how long a resolved address is reused.  A failed probe forgets it early.
	CacheFor time.Duration
	// Resolve looks up host's IPv4 address.
	Resolve func(ctx context.Context, host string) (net.IP, error)

	seq   int
	cache map[string]cachedIP
}

type cachedIP struct {
	ip      net.IP
	expires time.Time
}

var _ Prober = (*Pinger)(nil)

// NewPinger returns a Pinger with a one second timeout that caches addresses for five minutes.
func NewPinger() *Pinger {
	return &Pinger{Timeout: time.Second, CacheFor: 5 * time.Minute, Resolve: resolve}
}

// Reachable implements Prober.
func (p *Pinger) Reachable(host string) bool {
	ctx, c := context.WithTimeout(context.Background(), p.Timeout)
	defer c()
	ip, err := p.lookup(ctx, host, time.Now())
	if err != nil {
		return false
	}
	p.seq++
	err = p.ping(ctx, ip)
	if err == nil {
		return true
	}
	if errors.Is(err, os.ErrPermission) && routable(ctx, ip) {
		return true
	}
	p.forget(host)
	return false
}

func (p *Pinger) lookup(ctx context.Context, host string, now time.Time) (net.IP, error) {
	if c, ok := p.cache[host]; ok && now.Before(c.expires) {
		return c.ip, nil
	}
	ip, err := p.Resolve(ctx, host)
	if err != nil {
		return nil, err
	}
	if p.cache == nil {
		p.cache = make(map[string]cachedIP)
	}
	p.cache[host] = cachedIP{ip: ip, expires: now.Add(p.CacheFor)}
	return ip, nil
}

func (p *Pinger) forget(host string) {
	delete(p.cache, host)
}

func resolve(ctx context.Context, host string) (net.IP, error) {
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", host, err)
	}
	for _, a := range addrs {
		if v4 := a.IP.To4(); v4 != nil {
			return v4, nil
		}
	}
	return nil, fmt.Errorf("resolve %s: no ipv4 address", host)
}

func (p *Pinger) ping(ctx context.Context, ip net.IP) error {
	conn, err := icmp.ListenPacket("udp4", "0.0.0.0")
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return fmt.Errorf("set deadline: %w", err)
		}
	}

	msg := icmp.Message{
		Type: ipv4.ICMPTypeEcho,
		Code: 0,
		Body: &icmp.Echo{ID: os.Getpid() & 0xffff, Seq: p.seq & 0xffff, Data: []byte("neopixel-clock")},
	}
	b, err := msg.Marshal(nil)
	if err != nil {
		return fmt.Errorf("marshal echo: %w", err)
	}
	if _, err := conn.WriteTo(b, &net.UDPAddr{IP: ip}); err != nil {
		return fmt.Errorf("write echo: %w", err)
	}

	buf := make([]byte, 1500)
	for {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			return fmt.Errorf("read reply: %w", err)
		}
		reply, err := icmp.ParseMessage(protocolICMP, buf[:n])
		if err != nil {
			continue
		}
		if isReply(reply, p.seq) {
			return nil
		}
	}
}

// isReply reports whether msg answers echo request seq, and not an earlier request whose reply
// arrived late.  The identifier is not compared: the kernel rewrites it on datagram sockets.
func isReply(msg *icmp.Message, seq int) bool {
	if msg.Type != ipv4.ICMPTypeEchoReply {
		return false
	}
	echo, ok := msg.Body.(*icmp.Echo)
	return ok && echo.Seq == seq&0xffff
}

// routable reports whether the kernel has a route to ip.  Connecting a UDP socket sends nothing.
func routable(ctx context.Context, ip net.IP) bool {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp4", net.JoinHostPort(ip.String(), "123"))
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
