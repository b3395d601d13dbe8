package picprog

import (
	"log/slog"

	"github.com/valerio/go-picprog/picprog/device"
	"github.com/valerio/go-picprog/picprog/progress"
)

// Flags are the session switches shared by every operation.
type Flags struct {
	// Debug logs every word transferred.
	Debug bool
	// Client selects the machine readable progress protocol.
	Client bool
	// NoVerify skips the read back after Write.
	NoVerify bool
}

// Config holds the driver configuration.
type Config struct {
	Flags    Flags
	Logger   *slog.Logger
	Reporter progress.Reporter
	// Devices overrides the family's built in descriptor table.
	Devices device.Table
}

func defaultConfig() Config {
	return Config{
		Logger:   slog.Default(),
		Reporter: progress.Nop{},
	}
}

// Option is a functional option for configuring a Chip.
type Option func(*Config)

func WithFlags(flags Flags) Option {
	return func(c *Config) {
		c.Flags = flags
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// WithReporter sets where operations report their progress.
func WithReporter(reporter progress.Reporter) Option {
	return func(c *Config) {
		if reporter != nil {
			c.Reporter = reporter
		}
	}
}

// WithDevices replaces the descriptor table used to resolve device IDs.
//
// Example:
//
//	chip, err := picprog.New(picprog.FamilyPIC10F322, port,
//	    picprog.WithDevices(device.Table{{ID: 0xCC, Name: "PIC10F322", CodeMemorySize: 0x200}}),
//	)
func WithDevices(table device.Table) Option {
	return func(c *Config) {
		c.Devices = table
	}
}
