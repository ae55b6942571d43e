// Package netstat answers "is the wireless link up" and "can we reach the time server", and asks the
// system to join the configured network.  Everything here is cheap to call on every loop iteration,
// except Acquire, which only starts an association and returns.
package netstat

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Link is the local wireless association.
type Link interface {
	// Linked reports whether the link is currently up with an address.
	Linked() bool
	// Acquire starts joining the network.  It does not wait for the association to finish.
	Acquire(ssid, passphrase string) error
}

// Prober checks upstream reachability.
type Prober interface {
	Reachable(host string) bool
}

// Runner runs a command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Interface is a Linux network interface managed by wpa_supplicant.
type Interface struct {
	Name string
	// WPACLI is the wpa_cli binary.
	WPACLI string
	// SysRoot is where /sys/class/net lives; tests point it elsewhere.
	SysRoot string
	// Run runs wpa_cli.
	Run Runner
	// Addrs returns the interface's addresses.
	Addrs func(name string) ([]net.Addr, error)
}

var _ Link = (*Interface)(nil)

// NewInterface returns an Interface for the named network device, e.g. "wlan0".
func NewInterface(name string) *Interface {
	return &Interface{
		Name:    name,
		WPACLI:  "wpa_cli",
		SysRoot: "/sys/class/net",
		Run:     execRunner,
		Addrs:   interfaceAddrs,
	}
}

func interfaceAddrs(name string) ([]net.Addr, error) {
	ifi, err := net.InterfaceByName(name)
	if err != nil {
		return nil, fmt.Errorf("lookup interface: %w", err)
	}
	addrs, err := ifi.Addrs()
	if err != nil {
		return nil, fmt.Errorf("get addresses: %w", err)
	}
	return addrs, nil
}

// Linked implements Link.  The interface must be operationally up and have an IPv4 address.
func (i *Interface) Linked() bool {
	state, err := os.ReadFile(filepath.Join(i.SysRoot, i.Name, "operstate"))
	if err != nil {
		return false
	}
	if strings.TrimSpace(string(state)) != "up" {
		return false
	}
	addrs, err := i.Addrs(i.Name)
	if err != nil {
		return false
	}
	for _, a := range addrs {
		if ipn, ok := a.(*net.IPNet); ok && ipn.IP.To4() != nil && !ipn.IP.IsLoopback() {
			return true
		}
	}
	return false
}

// Acquire implements Link by selecting a network through wpa_cli.  The network entry for ssid is
// reused across calls, so retrying during a long outage does not grow wpa_supplicant's list; any
// duplicate entries for ssid are removed.
func (i *Interface) Acquire(ssid, passphrase string) error {
	ctx, c := context.WithTimeout(context.Background(), 10*time.Second)
	defer c()
	ids, err := i.networks(ctx, ssid)
	if err != nil {
		return fmt.Errorf("list networks: %w", err)
	}
	var id string
	if len(ids) > 0 {
		id = ids[0]
		for _, dup := range ids[1:] {
			if _, err := i.wpa(ctx, "remove_network", dup); err != nil {
				return fmt.Errorf("remove duplicate network %s: %w", dup, err)
			}
		}
	} else {
		id, err = i.wpa(ctx, "add_network")
		if err != nil {
			return fmt.Errorf("add network: %w", err)
		}
	}
	if _, err := i.wpa(ctx, "set_network", id, "ssid", quote(ssid)); err != nil {
		return fmt.Errorf("set ssid: %w", err)
	}
	if passphrase == "" {
		if _, err := i.wpa(ctx, "set_network", id, "key_mgmt", "NONE"); err != nil {
			return fmt.Errorf("set open network: %w", err)
		}
	} else if _, err := i.wpa(ctx, "set_network", id, "psk", quote(passphrase)); err != nil {
		return fmt.Errorf("set passphrase: %w", err)
	}
	if _, err := i.wpa(ctx, "select_network", id); err != nil {
		return fmt.Errorf("select network %s: %w", id, err)
	}
	return nil
}

// networks returns the ids of the configured networks named ssid.  list_networks prints a header
// line, then one tab-separated "id ssid bssid flags" line per network.
func (i *Interface) networks(ctx context.Context, ssid string) ([]string, error) {
	out, err := i.wpa(ctx, "list_networks")
	if err != nil {
		return nil, err
	}
	var ids []string
	for n, line := range strings.Split(out, "\n") {
		if n == 0 {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) >= 2 && fields[1] == ssid {
			ids = append(ids, strings.TrimSpace(fields[0]))
		}
	}
	return ids, nil
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

// wpa runs one wpa_cli command and returns its trimmed output.  wpa_cli exits 0 even when the
// command fails, so "FAIL" output is turned into an error.
func (i *Interface) wpa(ctx context.Context, args ...string) (string, error) {
	out, err := i.Run(ctx, i.WPACLI, append([]string{"-i", i.Name}, args...)...)
	if err != nil {
		return "", fmt.Errorf("run %s: %w (output: %s)", i.WPACLI, err, bytes.TrimSpace(out))
	}
	result := strings.TrimSpace(string(out))
	if result == "FAIL" || strings.HasPrefix(result, "FAIL-") {
		return "", fmt.Errorf("%s %s: %s", i.WPACLI, args[0], result)
	}
	return result, nil
}
