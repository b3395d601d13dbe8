package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli"

	"github.com/valerio/go-picprog/picprog"
	"github.com/valerio/go-picprog/picprog/gpio"
	"github.com/valerio/go-picprog/picprog/hexfile"
	"github.com/valerio/go-picprog/picprog/memory"
	"github.com/valerio/go-picprog/picprog/progress"
	"github.com/valerio/go-picprog/picprog/sim"
)

func main() {
	err := newApp().Run(os.Args)
	if err != nil {
		slog.Error("Error running picprog", "error", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "picprog"
	app.Description = "Program PIC microcontrollers over bit-banged GPIO (ICSP)"
	app.Usage = "picprog [options] <command> [arguments]"
	app.Version = "1.0.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "family",
			Usage:  "Chip family",
			Value:  string(picprog.FamilyPIC10F322),
			EnvVar: "PICPROG_FAMILY",
		},
		cli.StringFlag{
			Name:   "gpio",
			Usage:  "BCM pin numbers as PGC,PGD,MCLR (e.g. 23,24,18)",
			EnvVar: "PICPROG_GPIO",
		},
		cli.StringFlag{
			Name:   "pgc",
			Usage:  "Clock pin name",
			Value:  gpio.DefaultPinNames.Clock,
			EnvVar: "PICPROG_PGC",
		},
		cli.StringFlag{
			Name:   "pgd",
			Usage:  "Data pin name",
			Value:  gpio.DefaultPinNames.Data,
			EnvVar: "PICPROG_PGD",
		},
		cli.StringFlag{
			Name:   "mclr",
			Usage:  "Reset pin name",
			Value:  gpio.DefaultPinNames.MCLR,
			EnvVar: "PICPROG_MCLR",
		},
		cli.BoolFlag{
			Name:   "debug",
			Usage:  "Log every word transferred",
			EnvVar: "PICPROG_DEBUG",
		},
		cli.BoolFlag{
			Name:   "client",
			Usage:  "Report progress as @NNN/@FIN tokens on stdout",
			EnvVar: "PICPROG_CLIENT",
		},
		cli.BoolFlag{
			Name:   "noverify",
			Usage:  "Skip the read back after writing",
			EnvVar: "PICPROG_NOVERIFY",
		},
		cli.BoolFlag{
			Name:  "tui",
			Usage: "Show a full screen progress bar",
		},
		cli.BoolFlag{
			Name:  "simulate",
			Usage: "Run against a simulated PIC10F322 instead of GPIO",
		},
		cli.StringFlag{
			Name:  "sim-image",
			Usage: "Hex file preloaded into the simulated chip",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:      "read",
			Usage:     "Read the chip into a hex file",
			ArgsUsage: "<hex file>",
			Flags: []cli.Flag{
				cli.IntFlag{Name: "start", Usage: "First word address"},
				cli.IntFlag{Name: "count", Usage: "Number of words (0 = to end of memory)"},
			},
			Action: readChip,
		},
		{
			Name:      "write",
			Usage:     "Erase the chip and program a hex file",
			ArgsUsage: "<hex file>",
			Action:    writeChip,
		},
		{
			Name:   "erase",
			Usage:  "Bulk erase program memory",
			Action: eraseChip,
		},
		{
			Name:   "blankcheck",
			Usage:  "Check that program memory is erased",
			Action: blankCheck,
		},
		{
			Name:   "devid",
			Usage:  "Identify the chip",
			Action: deviceID,
		},
		{
			Name:   "dumpconfig",
			Usage:  "Print the configuration word",
			Action: dumpConfig,
		},
	}
	return app
}

func readChip(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		cli.ShowCommandHelp(c, "read")
		return errors.New("no hex file provided")
	}
	return withChip(c, "Reading "+path, func(chip picprog.Chip) error {
		if err := chip.Read(path, c.Int("start"), c.Int("count")); err != nil {
			return err
		}
		slog.Info("Read completed", "path", path)
		return nil
	})
}

func writeChip(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		cli.ShowCommandHelp(c, "write")
		return errors.New("no hex file provided")
	}
	return withChip(c, "Writing "+path, func(chip picprog.Chip) error {
		if err := chip.Write(path); err != nil {
			return err
		}
		slog.Info("Write completed", "path", path, "verified", !c.GlobalBool("noverify"))
		return nil
	})
}

func eraseChip(c *cli.Context) error {
	return withChip(c, "Erasing", func(chip picprog.Chip) error {
		if err := chip.BulkErase(); err != nil {
			return err
		}
		slog.Info("Bulk erase completed")
		return nil
	})
}

func blankCheck(c *cli.Context) error {
	return withChip(c, "Blank check", func(chip picprog.Chip) error {
		if err := chip.BlankCheck(); err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, "Chip is blank.")
		return nil
	})
}

func deviceID(c *cli.Context) error {
	return withChip(c, "Device ID", func(picprog.Chip) error {
		return nil
	})
}

func dumpConfig(c *cli.Context) error {
	return withChip(c, "Configuration", func(chip picprog.Chip) error {
		word, err := chip.DumpConfigurationRegisters()
		if err != nil {
			return err
		}
		fmt.Println("Configuration Words:")
		fmt.Printf(" - CONFIG1 = 0x%03X\n", word)
		return nil
	})
}

// withChip opens the port, enters program mode, identifies the chip and
// runs op. Program mode is always left again, whatever op returns.
func withChip(c *cli.Context, title string, op func(chip picprog.Chip) error) (err error) {
	level := slog.LevelInfo
	if c.GlobalBool("debug") {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	reporter, err := newReporter(c, title)
	if err != nil {
		return err
	}
	screen, tui := reporter.(*progress.Screen)
	if tui {
		defer screen.Done()
		// the screen owns the terminal; logs show under the bar
		logger = slog.New(screen.LogHandler(level))
	}

	port, err := openPort(c, logger)
	if err != nil {
		return err
	}

	chip, err := picprog.New(picprog.Family(c.GlobalString("family")), port,
		picprog.WithFlags(picprog.Flags{
			Debug:    c.GlobalBool("debug"),
			Client:   c.GlobalBool("client"),
			NoVerify: c.GlobalBool("noverify"),
		}),
		picprog.WithLogger(logger),
		picprog.WithReporter(reporter),
	)
	if err != nil {
		return err
	}

	if err := chip.EnterProgramMode(); err != nil {
		return err
	}
	defer func() {
		if exitErr := chip.ExitProgramMode(); exitErr != nil && err == nil {
			err = exitErr
		}
	}()

	info, err := chip.ReadDeviceID()
	if err != nil {
		return err
	}
	if !tui {
		fmt.Fprintf(os.Stderr, "Device ID: %s\n", info)
	}

	return op(chip)
}

func openPort(c *cli.Context, logger *slog.Logger) (gpio.Port, error) {
	if c.GlobalBool("simulate") {
		target := sim.New(sim.WithLogger(logger))
		if path := c.GlobalString("sim-image"); path != "" {
			img := memory.NewImage(0x8000)
			if _, err := hexfile.Load(path, img); err != nil {
				return nil, err
			}
			target.Flash(img)
		}
		logger.Info("Using simulated target", "words", target.CodeMemorySize())
		return target, nil
	}

	names := gpio.PinNames{
		Clock: c.GlobalString("pgc"),
		Data:  c.GlobalString("pgd"),
		MCLR:  c.GlobalString("mclr"),
	}
	if mapping := c.GlobalString("gpio"); mapping != "" {
		parsed, err := gpio.ParseBCM(mapping)
		if err != nil {
			return nil, err
		}
		names = parsed
	}

	port, err := gpio.OpenPeriph(names)
	if err != nil {
		return nil, err
	}
	return port, nil
}

func newReporter(c *cli.Context, title string) (progress.Reporter, error) {
	switch {
	case c.GlobalBool("client"):
		return progress.NewClient(os.Stdout), nil
	case c.GlobalBool("tui"):
		screen, err := progress.NewScreen(title)
		if err != nil {
			return nil, err
		}
		return screen, nil
	case c.GlobalBool("debug"):
		// word traces would interleave with the indicator
		return progress.Nop{}, nil
	default:
		return progress.NewConsole(os.Stderr), nil
	}
}
