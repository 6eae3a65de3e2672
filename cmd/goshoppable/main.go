/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Command goshoppable edits the shoppable-image metadata of a document:
// focal point, hotspots and polygons on top of one image.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"goshoppable/internal/config"
	"goshoppable/internal/crash"
	applog "goshoppable/internal/log"
	"goshoppable/internal/telemetry"
	"goshoppable/internal/version"
)

// errUsage makes run print usage and exit with 2.
var errUsage = errors.New("usage")

func usage(w io.Writer) {
	fmt.Fprintln(w, "goshoppable - shoppable image metadata editor")
	fmt.Fprintf(w, "Version: %s\n", version.String())
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  goshoppable version|-v|--version                 Show version")
	fmt.Fprintln(w, "  goshoppable init <file> [imageURL] [-w W -h H]    Create a document for an image")
	fmt.Fprintln(w, "  goshoppable show <file>                           Print a summary of the document")
	fmt.Fprintln(w, "  goshoppable validate <file>                       Check a document file against the schema")
	fmt.Fprintln(w, "  goshoppable swap <file> <imageURL> [-w W -h H]    Replace the image and clear its metadata")
	fmt.Fprintln(w, "  goshoppable detect <file> [-find a,b] [-apply]    Detect products; -apply adds them as hotspots")
	fmt.Fprintln(w, "  goshoppable replay <file> <script>                Replay a gesture script (.txt or .yaml)")
	fmt.Fprintln(w, "  goshoppable export svg|png|mask|pdf <file> <out>  Export an overlay or proof sheet")
	fmt.Fprintln(w, "  goshoppable export batch <file> <dir> [-preset web|print|mask]")
	fmt.Fprintln(w, "  goshoppable history <file> [-n N]                 List logged revisions")
	fmt.Fprintln(w, "  goshoppable serve [addr] [-memory]                Run the HTTP field server")
	fmt.Fprintln(w, "  goshoppable ui [<file>]                           Launch the desktop editor (build with -tags fyne)")
	fmt.Fprintln(w, "  goshoppable config list|path|get <key>|set <key> <value>|token [value]")
}

func main() {
	defer crash.Recover(nil, nil)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one command and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, token, err := config.Load()
	if err != nil {
		// defaults keep `config set` usable with a broken file
		fmt.Fprintln(stderr, "Warning:", err)
		cfg = config.Defaults()
	}
	opts := cfg.LogOptions()
	opts.Output = stderr
	applog.Init(opts)
	defer applog.Close()
	telemetry.NewDefault(cfg.TelemetryConfig())
	defer telemetry.Default().Close()

	l := applog.WithComponent("cli")
	l.Debug("start", slog.Int("args", len(args)))

	if len(args) == 0 {
		usage(stdout)
		return 0
	}
	a := &app{cfg: cfg, token: token, out: stdout, log: l}
	err = a.dispatch(ctx, args[0], args[1:])
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage):
		fmt.Fprintln(stderr, err)
		usage(stderr)
		return 2
	default:
		l.Error("command failed", slog.String("cmd", args[0]), slog.Any("err", err))
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
}

func (a *app) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "version", "--version", "-v":
		fmt.Fprintln(a.out, "goshoppable")
		fmt.Fprintln(a.out, version.String())
		return nil
	case "help", "-h", "--help":
		usage(a.out)
		return nil
	case "init":
		return a.cmdInit(ctx, args)
	case "show":
		return a.cmdShow(ctx, args)
	case "validate":
		return a.cmdValidate(args)
	case "swap":
		return a.cmdSwap(ctx, args)
	case "detect":
		return a.cmdDetect(ctx, args)
	case "replay":
		return a.cmdReplay(ctx, args)
	case "export":
		return a.cmdExport(ctx, args)
	case "history":
		return a.cmdHistory(ctx, args)
	case "serve":
		return a.cmdServe(ctx, args)
	case "ui":
		return a.cmdUI(ctx, args)
	case "config":
		return a.cmdConfig(args)
	}
	return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
}
