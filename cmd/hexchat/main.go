package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/whisprer/hexchat/internal/config"
	"github.com/whisprer/hexchat/internal/irc"
	"github.com/whisprer/hexchat/internal/text"
)

// Version information - set at build time via ldflags
var (
	version   = "dev"
	buildDate = "unknown"
	gitCommit = "unknown"
)

func main() {
	configPath := flag.String("c", "", "Path to configuration file")
	server := flag.String("server", "", "Server hostname (overrides config)")
	port := flag.Int("port", 0, "Server port (overrides config)")
	useTLS := flag.Bool("tls", true, "Connect over TLS")
	insecure := flag.Bool("insecure", false, "Skip TLS certificate verification")
	nick := flag.String("nick", "", "Nickname (overrides config)")
	username := flag.String("user", "", "Username (overrides config)")
	realname := flag.String("realname", "", "Realname (overrides config)")
	join := flag.String("join", "", "Comma-separated channels to join after registration")
	saslPlain := flag.String("sasl-plain", "", "SASL PLAIN credentials as user:password")
	saslExternal := flag.Bool("sasl-external", false, "Authenticate with SASL EXTERNAL")
	metricsAddr := flag.String("metrics", "", "Listen address for Prometheus metrics (empty disables)")
	showVersion := flag.Bool("v", false, "Show version information and exit")
	showVersionLong := flag.Bool("version", false, "Show version information and exit")
	flag.Parse()

	if *showVersion || *showVersionLong {
		fmt.Printf("hexchat version %s\n", version)
		fmt.Printf("Built: %s\n", buildDate)
		fmt.Printf("Commit: %s\n", gitCommit)
		os.Exit(0)
	}

	irc.Version = version

	profile := &config.Profile{}
	if *configPath != "" {
		path := *configPath
		if !filepath.IsAbs(path) {
			wd, _ := os.Getwd()
			path = filepath.Join(wd, path)
		}
		loaded, err := config.Load(path)
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
		profile = loaded
	}

	if *server != "" {
		profile.Server = *server
	}
	if *port != 0 {
		profile.Port = *port
	}
	if *configPath == "" || *server != "" {
		profile.TLS = *useTLS
	}
	if *insecure {
		profile.Insecure = true
	}
	if *nick != "" {
		profile.Nick = *nick
	}
	if *username != "" {
		profile.Username = *username
	}
	if *realname != "" {
		profile.Realname = *realname
	}
	if *join != "" {
		profile.AutoJoin = strings.Split(*join, ",")
	}
	if *saslPlain != "" {
		user, pass, ok := strings.Cut(*saslPlain, ":")
		if !ok {
			log.Fatal("-sasl-plain wants user:password")
		}
		profile.SASL = config.SASL{Mechanism: "PLAIN", Username: user, Password: pass}
	}
	if *saslExternal {
		profile.SASL = config.SASL{Mechanism: "EXTERNAL"}
	}

	if profile.Server == "" {
		log.Fatal("No server configured; pass -server or -c config file")
	}
	profile.ApplyDefaults()

	opts := []irc.Option{
		irc.WithLogger(log.New(os.Stderr, profile.Network+" ", log.LstdFlags)),
	}
	if *metricsAddr != "" {
		reg := prometheus.NewRegistry()
		opts = append(opts, irc.WithMetrics(irc.NewMetrics(reg, profile.Network)))
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				log.Printf("Metrics listener failed: %v", err)
			}
		}()
	}

	client := irc.NewClient(profile, opts...)
	client.Subscribe(irc.ObserverFunc(printEvent))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Printf("Received signal %v, shutting down...", sig)
		client.Quit("Received shutdown signal")
	}()

	log.Printf("Connecting to %s...", profile.Addr())
	if err := client.Run(ctx); err != nil {
		log.Fatalf("Connection ended: %v", err)
	}
}

// printEvent renders one notification per line, with formatting codes
// stripped for terminal output.
func printEvent(ev irc.Event) {
	switch ev.Kind {
	case irc.EventStateChanged:
		log.Printf("-- state: %s", ev.State)
	case irc.EventWelcome:
		log.Printf("-- registered as %s", ev.Nick)
	case irc.EventJoined:
		log.Printf("-- %s joined %s", ev.Nick, ev.Target)
	case irc.EventParted:
		log.Printf("-- %s left %s", ev.Nick, ev.Target)
	case irc.EventKicked:
		log.Printf("-- %s kicked from %s: %s", ev.Nick, ev.Target, ev.Text)
	case irc.EventQuit:
		log.Printf("-- %s quit: %s", ev.Nick, ev.Text)
	case irc.EventNickChanged:
		log.Printf("-- %s is now known as %s", ev.Nick, ev.Text)
	case irc.EventTopicChanged:
		log.Printf("-- topic in %s: %s", ev.Target, text.Strip(ev.Text))
	case irc.EventModeChanged:
		log.Printf("-- mode %s on %s by %s", ev.Mode, ev.Target, ev.Nick)
	case irc.EventMessage:
		log.Printf("<%s:%s> %s", ev.Nick, ev.Target, text.Strip(ev.Text))
	case irc.EventNotice:
		log.Printf("-%s:%s- %s", ev.Nick, ev.Target, text.Strip(ev.Text))
	case irc.EventCTCP:
		log.Printf("-- CTCP %s from %s: %s", ev.CTCP.Verb, ev.Nick, ev.CTCP.Arg)
	case irc.EventDCCOffer:
		o := ev.Offer
		log.Printf("-- DCC %s offer from %s: %s (%s:%d, %d bytes)",
			o.Kind, ev.Nick, o.Filename, o.Addr, o.Port, o.Size)
	case irc.EventError:
		log.Printf("!! %v", ev.Err)
	}
}
