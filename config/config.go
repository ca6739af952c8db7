package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"
)

// PortEnv replaces the default port when --port is not given
const PortEnv = "UART_TEST_PORT"

type Config struct {
	Port        string // Serial port name (e.g. COM3, /dev/ttyUSB0, tcp://host:port, loop://)
	BaudRate    int
	List        bool
	QuitKey     byte
	ReadTimeout time.Duration
	Interval    time.Duration
	WSAddr      string // monitor address, empty disables
	LogDir      string // diagnostic log directory, empty disables
}

// DefaultPort is the example port for the host OS
func DefaultPort() string {
	if runtime.GOOS == "windows" {
		return "COM3"
	}
	return "/dev/ttyUSB0"
}

// Load parses the process flags; bad flags exit with status 2
func Load() *Config {
	cfg, err := Parse(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}
	return cfg
}

// Parse reads args into a Config, writing usage and errors to output
func Parse(args []string, output io.Writer) (*Config, error) {
	defaultPort := DefaultPort()
	// Allow environment variable override
	if envPort := os.Getenv(PortEnv); envPort != "" {
		defaultPort = envPort
	}

	fs := flag.NewFlagSet("uart-test", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Test UART communication with FPGA")
		fmt.Fprintln(fs.Output())
		fs.PrintDefaults()
	}

	cfg := &Config{}
	fs.StringVar(&cfg.Port, "port", defaultPort, "Serial port (e.g. COM3, /dev/ttyUSB0, tcp://host:port, loop://)")
	fs.IntVar(&cfg.BaudRate, "baud", 115200, "Baud rate")
	fs.BoolVar(&cfg.List, "list", false, "List available ports")
	quit := fs.String("quit", "q", "Key that ends the session (never transmitted)")
	fs.DurationVar(&cfg.ReadTimeout, "read-timeout", 10*time.Millisecond, "Upper bound on one serial read")
	fs.DurationVar(&cfg.Interval, "interval", 10*time.Millisecond, "Pause between polls")
	fs.StringVar(&cfg.WSAddr, "ws", "", "Serve a read-only WebSocket monitor on this address (e.g. :8989)")
	fs.StringVar(&cfg.LogDir, "log-dir", "", "Write diagnostic logs to this directory")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if len(*quit) != 1 {
		err := fmt.Errorf("invalid -quit %q: must be exactly one ASCII character", *quit)
		fmt.Fprintln(fs.Output(), err)
		return nil, err
	}
	cfg.QuitKey = (*quit)[0]

	if cfg.BaudRate <= 0 {
		err := fmt.Errorf("invalid -baud %d: must be positive", cfg.BaudRate)
		fmt.Fprintln(fs.Output(), err)
		return nil, err
	}
	if cfg.ReadTimeout <= 0 || cfg.Interval <= 0 {
		err := errors.New("invalid -read-timeout/-interval: must be positive")
		fmt.Fprintln(fs.Output(), err)
		return nil, err
	}

	return cfg, nil
}
