// Command tclcompiler compiles scripts to .tbc files: each input is
// compiled through the reference front end, the procedure definitions
// are rewritten to precompiled bodies, and the result is serialized as
// a guarded loadable script.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/fatih/color"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/tcltk-depot/tclcompiler/compiler"
	"github.com/tcltk-depot/tclcompiler/dis"
	"github.com/tcltk-depot/tclcompiler/internal/scriptc"
	"github.com/tcltk-depot/tclcompiler/tbc"
)

const defaultConfigFile = ".tclcompiler.toml"

type config struct {
	TclVersion string `toml:"tcl_version"`
	Instrument bool   `toml:"instrument"`
	Preamble   string `toml:"preamble"`
}

func main() {
	var (
		output      = flag.String("o", "", "output file (single input only; default input with .tbc extension)")
		preamble    = flag.String("preamble", "", "text prepended to the generated file")
		disassemble = flag.Bool("dis", false, "print a disassembly listing instead of writing output")
		instrument  = flag.Bool("instrument", false, "emit command prefix instrumentation")
		tclVersion  = flag.String("tcl-version", "", "language version recorded in the signature line")
		configPath  = flag.String("config", "", "config file (default "+defaultConfigFile+" if present)")
		verbose     = flag.Bool("v", false, "enable debug logging")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: tclcompiler [flags] file...\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	if *output != "" && flag.NArg() > 1 {
		fmt.Fprintln(os.Stderr, "tclcompiler: -o requires exactly one input file")
		os.Exit(2)
	}

	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).With().Timestamp().Logger()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("tclcompiler: %v", err))
		os.Exit(1)
	}
	if *instrument {
		cfg.Instrument = true
	}
	if *preamble != "" {
		cfg.Preamble = *preamble
	}
	if *tclVersion != "" {
		cfg.TclVersion = *tclVersion
	}

	var opts []scriptc.Option
	if cfg.Instrument {
		opts = append(opts, scriptc.WithInstrumentation())
	}
	c := compiler.New(
		compiler.WithHost(scriptc.New(opts...)),
		compiler.WithLogger(logger),
	)

	var result *multierror.Error
	for _, input := range flag.Args() {
		if err := compileFile(c, cfg, input, *output, *disassemble); err != nil {
			logger.Error().Str("file", input).Err(err).Msg("compilation failed")
			result = multierror.Append(result, fmt.Errorf("%s: %w", input, err))
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("%v", err))
		os.Exit(1)
	}
}

func loadConfig(path string) (config, error) {
	cfg := config{TclVersion: "8.6"}
	explicit := path != ""
	if !explicit {
		path = defaultConfigFile
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func compileFile(c *compiler.Compiler, cfg config, input, output string, disassemble bool) error {
	source, err := os.ReadFile(input)
	if err != nil {
		return err
	}

	ctx := compiler.NewContext()
	u, err := c.Compile(ctx, string(source))
	if err != nil {
		return err
	}

	if disassemble {
		return dis.Print(u, os.Stdout)
	}

	if output == "" {
		output = strings.TrimSuffix(input, filepath.Ext(input)) + tbc.Extension
	}
	f, err := os.Create(output)
	if err != nil {
		return err
	}
	if err := tbc.Serialize(u, f, cfg.Preamble, tbc.WithTclVersion(cfg.TclVersion)); err != nil {
		f.Close()
		os.Remove(output)
		return err
	}
	return f.Close()
}
