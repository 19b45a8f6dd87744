package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nixxel-company-limited/epos-bridge/adapter"
	"github.com/nixxel-company-limited/epos-bridge/bridge"
	"github.com/nixxel-company-limited/epos-bridge/config"
	"github.com/nixxel-company-limited/epos-bridge/discovery"
	"github.com/nixxel-company-limited/epos-bridge/epos"
	"github.com/nixxel-company-limited/epos-bridge/printer"
	"github.com/nixxel-company-limited/epos-bridge/server"
	"github.com/nixxel-company-limited/epos-bridge/session"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	dialer := &adapter.Dialer{
		DialTimeout: cfg.TCP.DialTimeout,
		ReadTimeout: cfg.Device.ReadTimeout,
		SerialBaud:  cfg.Bluetooth.Baud,
		Bluetooth:   cfg.Bluetooth.Devices,
	}

	sess := session.New(printer.NewDriver(dialer), session.Options{
		SendTimeout:    cfg.Print.SendTimeout,
		ReceiptGrace:   cfg.Print.ReceiptGrace,
		SettingTimeout: cfg.Print.SettingTimeout,
		PulseAfterJob:  cfg.Print.PulseAfterJob,
		Classifier:     epos.Classifier{Extended: cfg.Status.ExtendedChecks},
	})

	scanner := discovery.Multi{
		discovery.NewTCPScanner(discovery.TCPOptions{
			Port:         cfg.Discovery.TCP.Port,
			Subnet:       cfg.Discovery.TCP.Subnet,
			Workers:      cfg.Discovery.TCP.Workers,
			Rate:         cfg.Discovery.TCP.Rate,
			ProbeTimeout: cfg.Discovery.TCP.ProbeTimeout,
			QueryModel:   cfg.Discovery.QueryModel,
		}),
		discovery.NewUSBScanner(),
		discovery.NewBluetoothScanner(discovery.BluetoothOptions{
			Devices:    cfg.Bluetooth.Devices,
			Baud:       cfg.Bluetooth.Baud,
			QueryModel: cfg.Discovery.QueryModel,
			Timeout:    cfg.Device.ReadTimeout,
		}),
	}
	coordinator := discovery.NewCoordinator(scanner, discovery.Options{
		Window:    cfg.Discovery.Window,
		USBWindow: cfg.Discovery.USBWindow,
	})

	dispatcher := bridge.New(sess, coordinator)

	var methods *server.MethodServer
	if cfg.Server.Address != "" {
		log.Printf("Method server will listen on: %s", cfg.Server.Address)
		methods = server.NewMethodServer(dispatcher, cfg.Server.Address)
		if err := methods.StartAsync(); err != nil {
			log.Fatalf("Failed to start method server: %v", err)
		}
	}

	var raw *server.Server
	if cfg.Raw.Address != "" {
		port, address := adapter.ParseTarget(cfg.Raw.Target)
		series, ok := epos.ParseSeries(cfg.Raw.Series)
		if !ok {
			log.Printf("Unknown raw series %q, using %s", cfg.Raw.Series, series)
		}
		target := epos.PrinterTarget{Address: address, Series: series, PortType: port}

		log.Printf("Raw passthrough will listen on: %s", cfg.Raw.Address)
		raw = server.New(sess, target, cfg.Raw.Address)
		if err := raw.StartAsync(); err != nil {
			log.Fatalf("Failed to start raw server: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	log.Printf("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if methods != nil {
		if err := methods.Stop(shutdownCtx); err != nil {
			log.Printf("Error stopping method server: %v", err)
		}
	}
	if raw != nil {
		if err := raw.Stop(); err != nil {
			log.Printf("Error stopping raw server: %v", err)
		}
	}
}
