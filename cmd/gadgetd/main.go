package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"
	"github.com/tarm/serial"

	"github.com/evilcrow/subghz-gadget/internal/bruteforce"
	"github.com/evilcrow/subghz-gadget/internal/diag"
	"github.com/evilcrow/subghz-gadget/internal/dispatch"
	"github.com/evilcrow/subghz-gadget/internal/frame"
	"github.com/evilcrow/subghz-gadget/internal/fsx"
	"github.com/evilcrow/subghz-gadget/internal/notify"
	"github.com/evilcrow/subghz-gadget/internal/nrf"
	"github.com/evilcrow/subghz-gadget/internal/protocol"
	"github.com/evilcrow/subghz-gadget/internal/protocol/fixedcode"
	"github.com/evilcrow/subghz-gadget/internal/protocol/rolling"
	"github.com/evilcrow/subghz-gadget/internal/radio"
)

var (
	flagPort       = pflag.StringP("port", "p", "/dev/ttyGS0", "serial transport device (overrides config file)")
	flagBaud       = pflag.IntP("baud", "b", 115200, "serial baud rate (overrides config file); the persisted serial_baud_rate setting is not applied to the port")
	flagDataDir    = pflag.StringP("data-dir", "d", "/data/gadget", "root of the internal flash + SD filesystem areas (overrides config file)")
	flagConfigPath = pflag.StringP("config", "c", "/etc/gadgetd.yaml", "YAML process bootstrap config path")
	flagLogLevel   = pflag.String("log-level", "", "log level: debug|info|warn|error (overrides config file)")
	flagBackend    = pflag.String("backend", "", "radio backend: auto|real|dummy (overrides config file)")
)

func main() {
	pflag.Parse()
	log.SetReportTimestamp(false)
	if err := run(); err != nil {
		log.Error("gadgetd: fatal", "err", err)
		os.Exit(2)
	}
}

// run wires the daemon in this order: platform → serial port →
// notification queue → storage → settings → worker task → command
// dispatcher → transport read loop. Settings are read from storage, so
// they are loaded after storage and the queue. Each collaborator is a concrete, explicit dependency
// (internal/dispatch.Deps), not an interface, mirroring the teacher's
// own "construct the app object, then loop" cmd/controller shape.
func run() error {
	cfg, err := loadConfig(*flagConfigPath, pflag.CommandLine.Changed("config"))
	if err != nil {
		return err
	}
	if pflag.CommandLine.Changed("port") {
		cfg.Port = *flagPort
	}
	if pflag.CommandLine.Changed("baud") {
		cfg.Baud = *flagBaud
	}
	if pflag.CommandLine.Changed("data-dir") {
		cfg.DataDir = *flagDataDir
	}
	if *flagLogLevel != "" {
		cfg.LogLevel = *flagLogLevel
	}
	if *flagBackend != "" {
		cfg.Backend = *flagBackend
	}
	log.SetLevel(parseLogLevel(cfg.LogLevel))

	platform, err := InitPlatform(cfg)
	if err != nil {
		return fmt.Errorf("gadgetd: platform init: %w", err)
	}
	defer platform.Close()

	port, err := serial.OpenPort(&serial.Config{Name: cfg.Port, Baud: cfg.Baud})
	if err != nil {
		return fmt.Errorf("gadgetd: open serial port %s: %w", cfg.Port, err)
	}
	defer port.Close()

	// notification queue, then storage: fsx.Store needs a sink to report
	// file-operation results to, so the queue over the transport-facing
	// Emitter is built first, and settings are read once the store is
	// open.
	collector := diag.NewCollector()
	emitter := frame.NewEmitter(port)
	sink := notify.NewQueue(emitter)

	store, err := fsx.NewStore(cfg.DataDir, sink, collector)
	if err != nil {
		return fmt.Errorf("gadgetd: open storage at %s: %w", cfg.DataDir, err)
	}
	defer store.Close()

	set := dispatch.LoadSettings(store)
	collector.SetTempOffset(set.CPUTempOffsetDeciC)

	decoders := append(fixedcode.All(), rolling.All(rolling.Keystore{})...)
	history := protocol.NewHistory()
	router := protocol.NewRouter(decoders, history, nil)

	worker := radio.NewWorker(platform.Radios(), platform.Bus(), sink, store, router)
	go worker.Run()
	defer worker.Stop()

	persist := dispatch.NewFlashStatePersister(store)
	bruter := bruteforce.NewEngine(worker, sink, persist)
	bruter.SetHeapSource(worker.FreeHeapBytes)

	scanner := nrf.NewScanner(platform.NrfRadio(), sink)
	attacker := nrf.NewAttacker(platform.NrfFrameSink())
	jammer := nrf.NewJammer(platform.NrfJamRadio(), sink)

	d := dispatch.New(dispatch.Deps{
		Worker:   worker,
		Bruter:   bruter,
		Persist:  persist,
		Store:    store,
		Scanner:  scanner,
		Attacker: attacker,
		Jammer:   jammer,
		History:  history,
		Router:   router,
		Sink:     sink,
		Diag:     collector,
		Settings: set,
		Version:  dispatch.Version{Major: 1, Minor: 0, Patch: 0},
	})

	// transport, last: only once every collaborator above can answer a
	// command does the daemon start reading frames off the wire.
	reassembler := frame.NewReassembler(frame.Callbacks{
		IsUploadOpcode: fsx.IsUploadOpcode,
		Dispatch:       d.Dispatch,
		BeginUpload:    store.BeginUpload,
		AppendUpload:   store.AppendUpload,
		FinishUpload:   store.FinishUpload,
	})

	log.Info("gadgetd: ready", "port", cfg.Port, "data_dir", cfg.DataDir, "backend", cfg.Backend)
	reader := frame.NewStreamReader(port)
	for {
		f, err := reader.Next()
		if err != nil {
			return fmt.Errorf("gadgetd: serial read: %w", err)
		}
		reassembler.Feed(f)
	}
}
