package timesync

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/facebookincubator/ntp/protocol/chrony"
	"golang.org/x/net/trace"
)

// leapUnsynchronized is chrony's LEAP_Unsynchronised; see chrony/ntp.h.
const leapUnsynchronized = 3

// Chrony is a Source for hosts where chronyd disciplines the system clock.  The system clock is the
// time; chronyd's tracking report says whether to believe it.
type Chrony struct {
	// Addr is chronyd's command port.
	Addr string
	// Poll is the minimum time between tracking queries.
	Poll time.Duration

	mu       sync.Mutex
	client   *chrony.Client
	conn     net.Conn
	l        trace.EventLog
	checked  time.Time
	synced   bool
	tracking chrony.Tracking
}

var _ Source = (*Chrony)(nil)

// NewChrony returns a client for the local chronyd.
func NewChrony() *Chrony {
	return &Chrony{Addr: "localhost:323", Poll: 30 * time.Second}
}

// Start connects to chronyd.  server is only recorded; chronyd has its own source configuration.
func (c *Chrony) Start(server string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		return ErrAlreadyStarted
	}
	conn, err := net.DialTimeout("udp", c.Addr, time.Second)
	if err != nil {
		return fmt.Errorf("dial chronyd: %w", err)
	}
	c.conn = conn
	c.client = &chrony.Client{Sequence: 1, Connection: conn}
	c.l = trace.NewEventLog("chrony", c.Addr)
	c.l.Printf("started; clock expected to follow %s", server)
	return nil
}

// Now implements Source.  It asks chronyd for a tracking report when the last one is older than
// Poll; the query is bounded by a one second deadline.
func (c *Chrony) Now() (time.Time, bool) {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return now.UTC(), false
	}
	if now.Sub(c.checked) < c.Poll {
		return now.UTC(), c.synced
	}
	c.checked = now
	synced, err := c.check(now)
	if err != nil {
		c.l.Errorf("get tracking info: %v", err)
		c.synced = false
		return now.UTC(), false
	}
	c.synced = synced
	return now.UTC(), synced
}

// Tracking returns the most recent tracking report.  It returns ErrNotStarted before Start.
func (c *Chrony) Tracking() (chrony.Tracking, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return chrony.Tracking{}, ErrNotStarted
	}
	return c.tracking, nil
}

func (c *Chrony) check(now time.Time) (bool, error) {
	if err := c.conn.SetReadDeadline(now.Add(time.Second)); err != nil {
		return false, fmt.Errorf("set read deadline: %w", err)
	}
	res, err := c.client.Communicate(chrony.NewTrackingPacket())
	if err != nil {
		return false, fmt.Errorf("communicate: %w", err)
	}
	tracking, ok := res.(*chrony.ReplyTracking)
	if !ok {
		return false, fmt.Errorf("tracking reply was of unexpected type: %T", res)
	}
	c.tracking = tracking.Tracking
	c.l.Printf("tracking: stratum=%v leap=%v offset=%v", tracking.Stratum, tracking.LeapStatus, tracking.LastOffset)
	return tracking.LeapStatus != leapUnsynchronized, nil
}
