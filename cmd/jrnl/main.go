package main

import (
	"errors"
	"io"
	"os"

	"github.com/alecthomas/kong"
	"github.com/julianstephens/go-utils/cliutil"

	"github.com/julianstephens/jrnl/internal/cli"
	"github.com/julianstephens/jrnl/internal/jrnl/recovery"
	"github.com/julianstephens/jrnl/internal/logger"
)

var (
	version = "jrnl v0.1.0"
)

type CLI struct {
	Init     cli.InitCmd     `cmd:"" help:"Create a journal directory and its manifest"`
	Load     cli.LoadCmd     `cmd:"" help:"Replay a journal and report its state"`
	Inspect  cli.InspectCmd  `cmd:"" help:"Decode journal files without loading them"`
	Stress   cli.StressCmd   `cmd:"" help:"Append transactions from concurrent writers"`
	Reclaim  cli.ReclaimCmd  `cmd:"" help:"Delete journal files load no longer needs"`
	Backends cli.BackendsCmd `cmd:"" help:"List the I/O backends this platform supports"`

	LogOpts cli.LogOpts      `embed:"" prefix:"log-" help:"Logging options"`
	Version kong.VersionFlag `                       help:"Show version information" short:"V"`
}

func main() {
	cliApp := &CLI{}
	ctx := kong.Parse(cliApp,
		kong.Name("jrnl"),
		kong.Description("A transactional append-only journal"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)

	lg, err := cli.NewLogger(cliApp.LogOpts)
	if err != nil {
		ctx.FatalIfErrorf(err)
	}
	ctx.BindTo(lg, (*logger.Logger)(nil))
	ctx.BindTo(os.Stdout, (*io.Writer)(nil))

	err = ctx.Run()
	if c, ok := lg.(logger.Closeable); ok {
		_ = c.Close()
	}
	if err != nil {
		cliutil.PrintError(err.Error())
		if errors.Is(err, recovery.ErrInDoubtTransaction) {
			os.Exit(3)
		}
		os.Exit(1)
	}
}
