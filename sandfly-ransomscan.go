// Sandfly Security ransomware triage scanner
package main

/*
This utility sweeps a directory tree for files that look like they were encrypted by ransomware: file names
carrying extensions that ransomware families append, and file content that is as random as ciphertext. Every
flagged file is reported and moved into a quarantine directory so it is out of the way of users and backup jobs
while the incident is worked. Nothing is deleted and nothing is decrypted.

Sandfly Security produces an agentless endpoint detection and incident response platform (EDR) for Linux. You can
find out more about how it works at: https://www.sandflysecurity.com

MIT License

Copyright (c) 2019-2022 Sandfly Security Ltd.
https://www.sandflysecurity.com

Permission is hereby granted, free of charge, to any person obtaining a copy of this software and associated
documentation files (the "Software"), to deal in the Software without restriction, including without limitation the
rights to use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of the Software, and to
permit persons to whom the Software is furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all copies or substantial portions of
the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR IMPLIED, INCLUDING BUT NOT LIMITED TO
THE WARRANTIES OF MERCHANTABILITY, FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER IN AN ACTION OF CONTRACT,
TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.

Version: 1.0.0
Author: @SandflySecurity
*/

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"go.uber.org/zap"
)

const (
	// constVersion Version
	constVersion = "1.0.0"
	// constDelimeterDefault default delimiter for CSV output.
	constDelimeterDefault = ","

	exitOK          = 0
	exitFatalConfig = 1
	exitUsage       = 2
	exitInterrupted = 130
)

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, err := newConfigFromArgs(args, stderr)
	switch {
	case errors.Is(err, flag.ErrHelp):
		return exitOK
	case errors.Is(err, ErrFatalConfig):
		_, _ = fmt.Fprintf(stderr, "(!) %v\n", err)
		return exitFatalConfig
	case err != nil:
		return exitUsage
	}

	if cfg.version {
		_, _ = fmt.Fprintf(stdout, "sandfly-ransomscan Version %s\n", constVersion)
		_, _ = fmt.Fprintf(stdout, "Copyright (c) 2019-2022 Sandfly Security - www.sandflysecurity.com\n\n")
		return exitOK
	}

	log := newLogger(stderr, cfg.verbose)
	defer func() {
		_ = log.Sync()
	}()

	scanner, err := newScanner(cfg, log)
	if err != nil {
		log.Error("scan not started", zap.Error(err))
		return exitFatalConfig
	}

	sum, err := scanner.Run(ctx)
	if err != nil {
		log.Error("scan not started", zap.Error(err))
		return exitFatalConfig
	}

	if err = cfg.output(stdout, sum); err != nil {
		log.Error("error writing results", zap.Error(err))
	}

	if sum.Canceled {
		return exitInterrupted
	}

	return exitOK
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
