package main

import (
	"context"
	"crypto/rand"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"xdao.co/sealsweep/aggregate"
	"xdao.co/sealsweep/cidutil"
	"xdao.co/sealsweep/config"
	"xdao.co/sealsweep/keys"
	"xdao.co/sealsweep/model"
	"xdao.co/sealsweep/output"
	"xdao.co/sealsweep/pipeline"
	"xdao.co/sealsweep/report"
	"xdao.co/sealsweep/seal"
	"xdao.co/sealsweep/source"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)
		return 2
	}

	switch args[0] {
	case "run":
		return cmdRun(args[1:], out, errOut)
	case "keygen":
		return cmdKeygen(args[1:], out, errOut)
	case "seal":
		return cmdSeal(args[1:], out, errOut)
	case "fingerprint":
		return cmdFingerprint(args[1:], out, errOut)
	case "help", "-h", "--help":
		printUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown command: %s\n\n", args[0])
		printUsage(errOut)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "sealsweep: audit sealed records across installations")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  sealsweep run --config <file> [--verbose]")
	fmt.Fprintln(w, "  sealsweep keygen --id <key-id> --root <dir> [--force]")
	fmt.Fprintln(w, "  sealsweep seal --root <dir> --key-id <key-id> --in <file> --out <file>")
	fmt.Fprintln(w, "  sealsweep fingerprint <file>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - each root holds keyring.json and any number of *.sealed envelopes")
	fmt.Fprintln(w, "  - keygen writes keyring.json with 0600 permissions")
	fmt.Fprintln(w, "  - a webhook url of "+report.Placeholder+" disables delivery")
	fmt.Fprintln(w, "  - run exits 1 only when delivery fails; per-record failures are logged")
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func cmdRun(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(errOut)
	cfgPath := fs.String("config", "", "config file")
	verbose := fs.Bool("verbose", false, "log at debug level")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *cfgPath == "" {
		fmt.Fprintln(errOut, "usage: sealsweep run --config <file>")
		return 2
	}
	cfg, err := config.LoadFile(*cfgPath)
	if err != nil {
		fmt.Fprintf(errOut, "load config: %v\n", err)
		return 1
	}
	logger := newLogger(errOut, *verbose)

	lookup, closeLookup, err := cfg.OpenLookup()
	if err != nil {
		fmt.Fprintf(errOut, "open lookup: %v\n", err)
		return 1
	}
	defer closeLookup()

	signer, err := cfg.Signer()
	if err != nil {
		fmt.Fprintf(errOut, "signer: %v\n", err)
		return 1
	}

	var tree *output.Tree
	if cfg.OutputDir != "" {
		tree, err = output.New(cfg.OutputDir)
		if err != nil {
			fmt.Fprintf(errOut, "output dir: %v\n", err)
			return 1
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	hook := &report.Webhook{
		URL:     cfg.Webhook.URL,
		Timeout: time.Duration(cfg.Webhook.Timeout),
		Signer:  signer,
		Logger:  logger,
	}
	r := &pipeline.Run{
		Source:   source.Source{Roots: cfg.Roots, Pattern: cfg.Pattern},
		Lookup:   lookup,
		Reporter: hook,
		Tree:     tree,
		Agg:      aggregate.New(),
		Limit:    cfg.Concurrency,
		Logger:   logger,
	}
	sum, runErr := r.Execute(ctx)
	printSummary(out, sum)
	if runErr != nil {
		fmt.Fprintf(errOut, "run: %v\n", runErr)
		return 1
	}
	return 0
}

func printSummary(w io.Writer, sum pipeline.Summary) {
	s := sum.Aggregate
	fmt.Fprintf(w, "state: %s\n", sum.State)
	for _, c := range aggregate.Categories() {
		fmt.Fprintf(w, "%-10s %d\n", c.String()+":", s.Count(c))
	}
	fmt.Fprintf(w, "errors:    source=%d transform=%d lookup=%d\n",
		s.Counters.SourceErrors, s.Counters.TransformErrors, s.Counters.EnrichErrors)
	switch {
	case sum.Delivery.Skipped:
		fmt.Fprintln(w, "delivery:  skipped (webhook not configured)")
	default:
		fmt.Fprintf(w, "delivery:  %d message(s)\n", sum.Delivery.Sent)
	}
	if sum.FallbackPath != "" {
		fmt.Fprintf(w, "fallback:  %s\n", sum.FallbackPath)
	}
}

func cmdKeygen(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	fs.SetOutput(errOut)
	id := fs.String("id", "", "key id")
	root := fs.String("root", "", "installation root")
	force := fs.Bool("force", false, "replace an existing keyring")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *id == "" || *root == "" {
		fmt.Fprintln(errOut, "usage: sealsweep keygen --id <key-id> --root <dir> [--force]")
		return 2
	}
	path := filepath.Join(*root, keys.FileName)

	var existing []model.Key
	if !*force {
		ks, err := keys.Load(path)
		switch {
		case err == nil:
			existing = ks
		case errors.Is(err, os.ErrNotExist):
		default:
			fmt.Fprintf(errOut, "load keyring: %v\n", err)
			return 1
		}
	}
	if _, ok := keys.Lookup(existing, *id); ok {
		fmt.Fprintf(errOut, "key %q already exists in %s\n", *id, path)
		return 1
	}
	k, err := keys.Generate(rand.Reader, *id)
	if err != nil {
		fmt.Fprintf(errOut, "generate key: %v\n", err)
		return 1
	}
	if err := keys.Save(path, append(existing, k), true); err != nil {
		fmt.Fprintf(errOut, "save keyring: %v\n", err)
		return 1
	}
	fmt.Fprintln(out, path)
	return 0
}

func cmdSeal(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("seal", flag.ContinueOnError)
	fs.SetOutput(errOut)
	root := fs.String("root", "", "installation root holding keyring.json")
	keyID := fs.String("key-id", "", "key id")
	in := fs.String("in", "", "plaintext input file")
	dst := fs.String("out", "", "envelope output file")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *root == "" || *keyID == "" || *in == "" || *dst == "" {
		fmt.Fprintln(errOut, "usage: sealsweep seal --root <dir> --key-id <key-id> --in <file> --out <file>")
		return 2
	}
	ks, err := keys.Load(filepath.Join(*root, keys.FileName))
	if err != nil {
		fmt.Fprintf(errOut, "load keyring: %v\n", err)
		return 1
	}
	k, ok := keys.Lookup(ks, *keyID)
	if !ok {
		fmt.Fprintf(errOut, "no key %q in keyring\n", *keyID)
		return 1
	}
	plain, err := os.ReadFile(*in)
	if err != nil {
		fmt.Fprintf(errOut, "read input: %v\n", err)
		return 1
	}
	b, err := seal.Seal(plain, k, rand.Reader)
	if err != nil {
		fmt.Fprintf(errOut, "seal: %v\n", err)
		return 1
	}
	if err := os.WriteFile(*dst, b, 0o600); err != nil {
		fmt.Fprintf(errOut, "write envelope: %v\n", err)
		return 1
	}
	fmt.Fprintln(out, cidutil.Fingerprint(plain))
	return 0
}

func cmdFingerprint(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("fingerprint", flag.ContinueOnError)
	fs.SetOutput(errOut)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: sealsweep fingerprint <file>")
		return 2
	}
	b, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(errOut, "read file: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(out, cidutil.Fingerprint(b))
	return 0
}
