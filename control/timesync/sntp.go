package timesync

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/facebookincubator/ntp/protocol/ntp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/net/trace"
)

var (
	syncCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sntp_sync_total",
		Help: "count of SNTP queries, by result",
	}, []string{"result"})

	offsetMetric = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sntp_offset_seconds",
		Help: "most recently measured offset of the time server relative to the local clock",
	})
)

const (
	clientSettings = 0x23 // leap 0, version 4, mode 3 (client)
	modeServer     = 4
	leapAlarm      = 3
	packetSize     = 48
)

// SNTP is a simple NTP client (RFC 4330).  It does not discipline the system clock; it measures the
// offset to a server and applies it to the local clock when asked for the time.
type SNTP struct {
	// Interval is how often to resynchronize after a successful query.
	Interval time.Duration
	// Retry is how long to wait after a failed query.
	Retry time.Duration
	// Timeout bounds one query.
	Timeout time.Duration

	mu       sync.Mutex
	started  bool
	offset   time.Duration // must hold mu.
	lastSync time.Time     // must hold mu; zero until the first good reply.
	cancel   context.CancelFunc
}

var _ Source = (*SNTP)(nil)

// NewSNTP returns a client with the usual intervals.
func NewSNTP() *SNTP {
	return &SNTP{Interval: time.Hour, Retry: 30 * time.Second, Timeout: 5 * time.Second}
}

// Start begins synchronizing against server in the background.  server may include a port.
func (s *SNTP) Start(server string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.loop(ctx, withPort(server))
	return nil
}

// Stop stops the background synchronization.  The last measured offset remains usable.
func (s *SNTP) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

// Now implements Source.
func (s *SNTP) Now() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Now().Add(s.offset).UTC(), !s.lastSync.IsZero()
}

// LastSync returns when the offset was last measured; the zero time if the client is started but
// has no reply yet.  It returns ErrNotStarted before Start.
func (s *SNTP) LastSync() (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return time.Time{}, ErrNotStarted
	}
	return s.lastSync, nil
}

func withPort(server string) string {
	if _, _, err := net.SplitHostPort(server); err == nil {
		return server
	}
	return net.JoinHostPort(server, "123")
}

func (s *SNTP) loop(ctx context.Context, addr string) {
	l := trace.NewEventLog("timesync", addr)
	defer l.Finish()
	for {
		wait := s.Interval
		offset, err := Query(ctx, addr, s.Timeout)
		if err != nil {
			syncCounter.WithLabelValues("error").Inc()
			l.Errorf("query %s: %v", addr, err)
			wait = s.Retry
		} else {
			syncCounter.WithLabelValues("ok").Inc()
			offsetMetric.Set(offset.Seconds())
			l.Printf("offset %v", offset)
			s.mu.Lock()
			s.offset = offset
			s.lastSync = time.Now()
			s.mu.Unlock()
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// Query makes one SNTP request to addr and returns the server's clock offset relative to ours.
func Query(ctx context.Context, addr string, timeout time.Duration) (time.Duration, error) {
	ctx, c := context.WithTimeout(ctx, timeout)
	defer c()
	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", addr)
	if err != nil {
		return 0, fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return 0, fmt.Errorf("set deadline: %w", err)
		}
	}

	sent := time.Now()
	sec, frac := ntp.Time(sent)
	req := &ntp.Packet{Settings: clientSettings, TxTimeSec: sec, TxTimeFrac: frac}
	buf, err := req.Bytes()
	if err != nil {
		return 0, fmt.Errorf("marshal request: %w", err)
	}
	if _, err := conn.Write(buf); err != nil {
		return 0, fmt.Errorf("write request: %w", err)
	}

	reply := make([]byte, packetSize)
	n, err := conn.Read(reply)
	if err != nil {
		return 0, fmt.Errorf("read reply: %w", err)
	}
	received := time.Now()
	res, err := ntp.BytesToPacket(reply[:n])
	if err != nil {
		return 0, fmt.Errorf("unmarshal reply: %w", err)
	}
	if err := validate(res, req); err != nil {
		return 0, err
	}

	serverRx := ntp.Unix(res.RxTimeSec, res.RxTimeFrac)
	serverTx := ntp.Unix(res.TxTimeSec, res.TxTimeFrac)
	return (serverRx.Sub(sent) + serverTx.Sub(received)) / 2, nil
}

func validate(res, req *ntp.Packet) error {
	if mode := res.Settings & 0x7; mode != modeServer {
		return fmt.Errorf("reply has mode %d, not server", mode)
	}
	if leap := res.Settings >> 6; leap == leapAlarm {
		return errors.New("server clock is unsynchronized")
	}
	if res.Stratum == 0 {
		return fmt.Errorf("kiss of death from server (refid %x)", res.ReferenceID)
	}
	if res.OrigTimeSec != req.TxTimeSec || res.OrigTimeFrac != req.TxTimeFrac {
		return errors.New("reply does not match request")
	}
	return nil
}
