package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"lukechampine.com/flagg"

	"github.com/aswearingen91/pngsteg/internal/crypto"
	"github.com/aswearingen91/pngsteg/internal/deflate"
	"github.com/aswearingen91/pngsteg/internal/logging"
	"github.com/aswearingen91/pngsteg/internal/pipeline"
	"github.com/aswearingen91/pngsteg/internal/steg"
)

var errUsage = errors.New("usage")

// settings holds the flags shared by every subcommand.
type settings struct {
	seed       uint64
	passphrase string
	framing    string
	hint       int
	adaptive   bool
	level      int
	message    string
	verbose    bool
	hide       bool
}

func (s *settings) register(fs *flag.FlagSet, hide bool) {
	s.hide = hide
	fs.Uint64Var(&s.seed, "seed", pipeline.DefaultSeed, "schedule seed")
	fs.StringVar(&s.passphrase, "passphrase", "", "derive the schedule seed from a passphrase instead of -seed")
	fs.StringVar(&s.framing, "framing", "length", "payload framing: length or nul")
	fs.BoolVar(&s.verbose, "v", false, "debug logging")
	if hide {
		fs.StringVar(&s.message, "m", "", "message to hide instead of reading FILE or stdin")
		fs.BoolVar(&s.adaptive, "adaptive", false, "use adaptive scanline filters")
		fs.IntVar(&s.level, "level", deflate.DefaultCompression, "zlib compression level (-1 to 9)")
	} else {
		fs.IntVar(&s.hint, "hint", pipeline.DefaultHint, "bytes to read with -framing nul")
	}
}

func (s *settings) options() (pipeline.Options, error) {
	opts := pipeline.DefaultOptions()
	f, err := steg.ParseFraming(s.framing)
	if err != nil {
		return opts, err
	}
	opts.Framing = f
	opts.Seed = s.seed
	if s.passphrase != "" {
		if opts.Seed, err = crypto.DeriveSeed(s.passphrase); err != nil {
			return opts, err
		}
	}
	if s.hide {
		opts.Adaptive = s.adaptive
		if s.level != deflate.DefaultCompression {
			opts.Codec = deflate.Zlib{Level: s.level}
		}
		return opts, nil
	}
	if s.hint <= 0 {
		return opts, fmt.Errorf("-hint must be a positive integer, got %d", s.hint)
	}
	opts.Hint = s.hint
	return opts, nil
}

// hide embeds FILE, stdin or -m into in.png and writes out.png.
func hide(s *settings, args []string, stdin io.Reader) error {
	if len(args) < 2 || len(args) > 3 {
		return errUsage
	}
	opts, err := s.options()
	if err != nil {
		return err
	}

	var payload []byte
	switch {
	case s.message != "":
		payload = []byte(s.message)
	case len(args) == 3:
		if payload, err = os.ReadFile(args[2]); err != nil {
			return fmt.Errorf("could not read payload: %w", err)
		}
	default:
		if payload, err = io.ReadAll(stdin); err != nil {
			return fmt.Errorf("could not read payload: %w", err)
		}
	}

	if err := pipeline.EmbedFile(args[0], args[1], payload, opts); err != nil {
		return err
	}
	log.Info().Str("output", args[1]).Int("bytes", len(payload)).Msg("payload embedded")
	return nil
}

// reveal writes the payload hidden in in.png to FILE or stdout.
func reveal(s *settings, args []string, stdout io.Writer) error {
	if len(args) < 1 || len(args) > 2 {
		return errUsage
	}
	opts, err := s.options()
	if err != nil {
		return err
	}
	payload, err := pipeline.ExtractFile(args[0], opts)
	if err != nil {
		return err
	}
	if len(args) == 2 {
		return os.WriteFile(args[1], payload, 0o644)
	}
	_, err = stdout.Write(payload)
	return err
}

// capacity prints how many payload bytes in.png can carry.
func capacity(s *settings, args []string, stdout io.Writer) error {
	if len(args) != 1 {
		return errUsage
	}
	opts, err := s.options()
	if err != nil {
		return err
	}
	rep, err := pipeline.CapacityFile(args[0], opts)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(stdout, "%dx%d image: %d bytes of payload (%s framing)\n", rep.Width, rep.Height, rep.Bytes, opts.Framing)
	return err
}

func main() {
	flagg.Root.Usage = flagg.SimpleUsage(flagg.Root, `Usage: pngsteg [command] [args]

Commands:
    pngsteg hide in.png out.png [FILE]
    pngsteg reveal in.png [FILE]
    pngsteg capacity in.png
`)
	var hideS, revealS, capS settings
	cmdHide := flagg.New("hide", `Usage:
    pngsteg hide [flags] in.png out.png [FILE]
      Hide FILE (or stdin, or -m) in in.png, writing the result to out.png
`)
	hideS.register(cmdHide, true)
	cmdReveal := flagg.New("reveal", `Usage:
    pngsteg reveal [flags] in.png [FILE]
      Write the hidden contents of in.png to FILE (or stdout)
`)
	revealS.register(cmdReveal, false)
	cmdCapacity := flagg.New("capacity", `Usage:
    pngsteg capacity [flags] in.png
      Report how many payload bytes in.png can hold
`)
	capS.register(cmdCapacity, false)

	cmd := flagg.Parse(flagg.Tree{
		Cmd: flagg.Root,
		Sub: []flagg.Tree{
			{Cmd: cmdHide},
			{Cmd: cmdReveal},
			{Cmd: cmdCapacity},
		},
	})

	var err error
	switch cmd {
	case cmdHide:
		logging.Setup(nil, hideS.verbose)
		err = hide(&hideS, cmd.Args(), os.Stdin)
	case cmdReveal:
		logging.Setup(nil, revealS.verbose)
		err = reveal(&revealS, cmd.Args(), os.Stdout)
	case cmdCapacity:
		logging.Setup(nil, capS.verbose)
		err = capacity(&capS, cmd.Args(), os.Stdout)
	default:
		flagg.Root.Usage()
		return
	}
	if errors.Is(err, errUsage) {
		cmd.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal().Err(err).Msg(cmd.Name() + " failed")
	}
}
