// Command cogniseal is the wallet-side client of a CogniSeal ledger node. It
// encrypts answers locally, submits transactions and decrypts scores with
// the user's own keys.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/cogniseal/cogniseal-ledger/internal/logger"
)

const usage = `usage: cogniseal [-profile path] <command> [flags]

commands:
  wallet new            create and encrypt a new wallet keystore
  wallet show           print the keystore address
  exams                 list exams
  exam -id N            show one exam and its questions
  create -file F        create an exam from a YAML definition
  take -id N            answer an exam interactively or with -answers
  results               list your submissions
  decrypt -submission N decrypt one of your scores
  mint -submission N -exam N
                        mint a certificate for a passing score
  certificates          list exams you hold a certificate for
  watch                 stream ledger events
`

type command func(ctx context.Context, app *app, args []string) error

var commands = map[string]command{
	"wallet":       runWallet,
	"exams":        runExams,
	"exam":         runExam,
	"create":       runCreate,
	"take":         runTake,
	"results":      runResults,
	"decrypt":      runDecrypt,
	"mint":         runMint,
	"certificates": runCertificates,
	"watch":        runWatch,
}

// app carries what every command needs.
type app struct {
	profile *profile
	log     zerolog.Logger
}

func main() {
	fs := flag.NewFlagSet("cogniseal", flag.ExitOnError)
	profilePath := fs.String("profile", defaultProfilePath(), "Path to the CLI profile")
	fs.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	_ = fs.Parse(os.Args[1:])

	if fs.NArg() == 0 {
		fs.Usage()
		os.Exit(2)
	}
	cmd, ok := commands[fs.Arg(0)]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", fs.Arg(0))
		fs.Usage()
		os.Exit(2)
	}

	// ─── Load Profile ──────────────────────────────────────────────────
	p, err := loadProfile(*profilePath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(p.LogLevel, p.LogFormat, "")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd(ctx, &app{profile: p, log: log}, fs.Args()[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
