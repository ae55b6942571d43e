package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jrockway/neopixel-clock/control/animation"
	"github.com/jrockway/neopixel-clock/control/clock"
	"github.com/jrockway/neopixel-clock/control/config"
	"github.com/jrockway/neopixel-clock/control/connection"
	"github.com/jrockway/neopixel-clock/control/display"
	"github.com/jrockway/neopixel-clock/control/netstat"
	"github.com/jrockway/neopixel-clock/control/pixel"
	"github.com/jrockway/neopixel-clock/control/timesync"
	"github.com/jrockway/periphflag"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

var (
	bind       = flag.String("bind", ":8080", "address to bind for debug/metrics server")
	configFile = flag.String("config", "", "optional toml file overriding the built-in settings")
	spidevPath = flag.String("spidev", "", "write to this spidev device directly instead of opening -spi with periph")
	iface      = flag.String("iface", "wlan0", "wireless interface to keep connected")
	wpaCLI     = flag.String("wpa_cli", "wpa_cli", "path to wpa_cli")
	spi        string
)

func loadConfig() *config.Config {
	if *configFile == "" {
		return config.Default()
	}
	f, err := os.Open(*configFile)
	if err != nil {
		log.Fatalf("open config: %v", err)
	}
	defer f.Close()
	c, err := config.Load(f)
	if err != nil {
		log.Fatalf("load config %s: %v", *configFile, err)
	}
	return c
}

func main() {
	if _, err := host.Init(); err != nil {
		log.Fatalf("init periph.io: %v", err)
	}
	periphflag.SPIDevVar(&spi, "spi", "", "spi bus that the leds are on")
	flag.Parse()

	cfg := loadConfig()
	n := cfg.Layout.Len()

	// The strand always exists for the preview; it only drives the LEDs when periph owns the bus.
	var (
		strand  *pixel.Strand
		surface pixel.Surface
		closer  func() error
	)
	if *spidevPath != "" {
		dev, err := pixel.OpenSPIDev(*spidevPath, n)
		if err != nil {
			log.Fatalf("open spidev %s: %v", *spidevPath, err)
		}
		strand, err = pixel.NewStrand(nil, cfg.Layout)
		if err != nil {
			log.Fatalf("init preview: %v", err)
		}
		surface = pixel.Tee{dev, strand}
	} else {
		port, err := spireg.Open(spi)
		if err != nil {
			log.Fatalf("open spi port %q: %v", spi, err)
		}
		closer = port.Close
		strand, err = pixel.NewStrand(port, cfg.Layout)
		if err != nil {
			log.Fatalf("init leds: %v", err)
		}
		surface = strand
	}
	surface.SetBrightness(cfg.Brightness)
	if err := surface.Clear(); err != nil {
		log.Printf("blank leds: %v", err)
	}

	var (
		source   timesync.Source
		stopSync = func() {}
	)
	switch cfg.TimeSource {
	case config.SourceChrony:
		c := timesync.NewChrony()
		c.Addr = cfg.ChronyAddr
		source = c
	default:
		s := timesync.NewSNTP()
		source, stopSync = s, s.Stop
	}

	link := netstat.NewInterface(*iface)
	link.WPACLI = *wpaCLI
	player := &animation.Player{Surface: surface, Sleeper: animation.RealTime{}}
	face := display.New(cfg.Layout, cfg.Pacing, animation.DefaultPalette, player)
	machine := connection.New(cfg.Network, link, netstat.NewPinger(), source, cfg.Zone, face, surface, animation.RealTime{})

	http.HandleFunc("/", func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, "/display.png", http.StatusFound)
	})
	http.Handle("/display.png", strand)
	http.Handle("/metrics", promhttp.Handler())

	ctx, cancel := context.WithCancel(context.Background())

	httpDoneCh := make(chan error)
	httpServer := http.Server{Addr: *bind}
	go func() {
		log.Printf("http server listening on %s", httpServer.Addr)
		err := httpServer.ListenAndServe()
		select {
		case httpDoneCh <- err:
		case <-ctx.Done():
		}
		close(httpDoneCh)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	loopDoneCh := startLoop(ctx, clock.New(machine))
	log.Printf("clock running; %d leds, joining %q on %s", n, cfg.Network.SSID, *iface)

	httpAlive := true
	select {
	case err := <-httpDoneCh:
		log.Printf("http server died: %v", err)
		httpAlive = false
	case err := <-loopDoneCh:
		log.Printf("clock loop died: %v", err)
	case <-sigCh:
		log.Printf("interrupt")
	}
	signal.Stop(sigCh)
	stopLoop(cancel, loopDoneCh, surface)
	stopSync()
	machine.Close()
	if closer != nil {
		if err := closer(); err != nil {
			log.Printf("close spi port: %v", err)
		}
	}
	if httpAlive {
		tctx, c := context.WithTimeout(context.Background(), time.Second)
		httpServer.Shutdown(tctx)
		c()
	}
	os.Exit(1)
}
