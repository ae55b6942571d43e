package netstat

// FakeLink is a Link for tests.  Each call to Linked consumes the next scripted result; once the
// script runs out, the last result repeats.
type FakeLink struct {
	Results    []bool
	Calls      int
	Acquires   []string
	AcquireErr error

	index int
}

var _ Link = (*FakeLink)(nil)

func (f *FakeLink) Linked() bool {
	f.Calls++
	if len(f.Results) == 0 {
		return false
	}
	r := f.Results[f.index]
	if f.index < len(f.Results)-1 {
		f.index++
	}
	return r
}

func (f *FakeLink) Acquire(ssid, passphrase string) error {
	f.Acquires = append(f.Acquires, ssid)
	return f.AcquireErr
}

// FakeProber is a Prober for tests, scripted the same way as FakeLink.
type FakeProber struct {
	Results []bool
	Hosts   []string

	index int
}

var _ Prober = (*FakeProber)(nil)

func (f *FakeProber) Reachable(host string) bool {
	f.Hosts = append(f.Hosts, host)
	if len(f.Results) == 0 {
		return false
	}
	r := f.Results[f.index]
	if f.index < len(f.Results)-1 {
		f.index++
	}
	return r
}
