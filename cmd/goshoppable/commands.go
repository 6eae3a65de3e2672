/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"goshoppable/internal/backend"
	"goshoppable/internal/config"
	"goshoppable/internal/crash"
	"goshoppable/internal/domain"
	"goshoppable/internal/editor"
	"goshoppable/internal/export"
	"goshoppable/internal/geometry"
	"goshoppable/internal/host"
	"goshoppable/internal/script"
	"goshoppable/internal/telemetry"
	"goshoppable/internal/ui"
)

// parseArgs lets flags and positional arguments appear in any order.
func parseArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	fs.SetOutput(io.Discard)
	var pos []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, fmt.Errorf("%w: %v", errUsage, err)
		}
		args = fs.Args()
		if len(args) == 0 {
			return pos, nil
		}
		pos = append(pos, args[0])
		args = args[1:]
	}
}

func needArgs(cmd string, pos []string, n int, what string) error {
	if len(pos) < n {
		return fmt.Errorf("%w: %s requires %s", errUsage, cmd, what)
	}
	return nil
}

func imageFromArgs(raw string, w, h int) (domain.ImageRef, error) {
	img, err := domain.ParseImageURL(raw)
	if err != nil {
		return img, err
	}
	img.ID = img.Endpoint + "/" + img.Name
	img.Width, img.Height = w, h
	return img, nil
}

func (a *app) cmdInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	w := fs.Int("w", 0, "image width in pixels")
	h := fs.Int("h", 0, "image height in pixels")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if err := needArgs("init", pos, 1, "<file>"); err != nil {
		return err
	}
	doc := domain.New(nil)
	if len(pos) > 1 {
		img, err := imageFromArgs(pos[1], *w, *h)
		if err != nil {
			return err
		}
		doc.Image = &img
	}
	d, err := a.openField(ctx, pos[0])
	if err != nil {
		return err
	}
	defer d.Close()
	if _, err := d.field.Read(ctx); err == nil {
		return fmt.Errorf("%s already holds a document", d.name)
	} else if !errors.Is(err, host.ErrEmpty) {
		return err
	}
	if err := d.field.Write(ctx, doc); err != nil {
		return err
	}
	a.log.Info("document created", slog.String("field", d.name), slog.String("kind", d.kind))
	fmt.Fprintln(a.out, "Created", d.name)
	return nil
}

func (a *app) readDoc(ctx context.Context, arg string) (domain.Document, *openDoc, error) {
	d, err := a.openField(ctx, arg)
	if err != nil {
		return domain.Document{}, nil, err
	}
	doc, err := d.field.Read(ctx)
	if err != nil {
		_ = d.Close()
		return domain.Document{}, nil, err
	}
	return doc, d, nil
}

func (a *app) cmdShow(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	asJSON := fs.Bool("json", false, "print the raw document")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	doc, d, err := a.readDoc(ctx, firstNonEmpty(pos...))
	if err != nil {
		return err
	}
	defer d.Close()
	if *asJSON {
		b, err := domain.Marshal(doc)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(a.out, string(b))
		return err
	}
	printSummary(a.out, d.name, doc)
	return nil
}

func printSummary(w io.Writer, name string, doc domain.Document) {
	fmt.Fprintf(w, "Document: %s\n", name)
	if doc.Image.Empty() {
		fmt.Fprintln(w, "Image: none")
	} else {
		fmt.Fprintf(w, "Image: %s", doc.Image.URL(""))
		if doc.Image.Width > 0 && doc.Image.Height > 0 {
			fmt.Fprintf(w, " (%dx%d)", doc.Image.Width, doc.Image.Height)
		}
		fmt.Fprintln(w)
	}
	if fp := doc.FocalPoint; fp != nil {
		fmt.Fprintf(w, "Focal point: x=%.3f y=%.3f w=%.3f h=%.3f\n", fp.X, fp.Y, fp.W, fp.H)
	}
	fmt.Fprintf(w, "Hotspots: %d\n", len(doc.Hotspots))
	for _, h := range doc.Hotspots {
		fmt.Fprintf(w, "  %s  (%.3f, %.3f)  %s  %s\n", h.ID, h.Point.X, h.Point.Y, h.Target, h.Selector)
	}
	fmt.Fprintf(w, "Polygons: %d\n", len(doc.Polygons))
	for _, p := range doc.Polygons {
		b := geometry.PolygonBounds(p.Points)
		fmt.Fprintf(w, "  %s  %d points  [%.3f,%.3f %.3fx%.3f]  %s  %s\n", p.ID, len(p.Points), b.X, b.Y, b.W, b.H, p.Target, p.Selector)
	}
}

func (a *app) cmdValidate(args []string) error {
	if err := needArgs("validate", args, 1, "<file>"); err != nil {
		return err
	}
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	if err := domain.ValidateJSON(raw); err != nil {
		return err
	}
	doc, err := domain.Unmarshal(raw)
	if err != nil {
		return err
	}
	if err := doc.Validate(); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s: ok (%d hotspots, %d polygons)\n", args[0], len(doc.Hotspots), len(doc.Polygons))
	return nil
}

func (a *app) cmdSwap(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("swap", flag.ContinueOnError)
	w := fs.Int("w", 0, "image width in pixels")
	h := fs.Int("h", 0, "image height in pixels")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if err := needArgs("swap", pos, 2, "<file> and <imageURL>"); err != nil {
		return err
	}
	img, err := imageFromArgs(pos[1], *w, *h)
	if err != nil {
		return err
	}
	s, d, err := a.openSession(ctx, pos[0])
	if err != nil {
		return err
	}
	defer d.Close()
	defer s.Close()
	defer crash.Recover(d.file, s.Doc.Snapshot)
	if !s.SwapImage(img) {
		return errors.New("swap: document not loaded")
	}
	fmt.Fprintln(a.out, "Image replaced:", s.ImageURL())
	return nil
}

func (a *app) cmdDetect(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("detect", flag.ContinueOnError)
	find := fs.String("find", "", "comma separated things to look for")
	noCache := fs.Bool("no-cache", false, "ignore cached results")
	apply := fs.Bool("apply", false, "add every new candidate to the document")
	as := fs.String("as", "hotspot", "shape for -apply: hotspot or polygon")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	s, d, err := a.openSession(ctx, firstNonEmpty(pos...))
	if err != nil {
		return err
	}
	defer d.Close()
	defer s.Close()
	defer crash.Recover(d.file, s.Doc.Snapshot)

	if *find != "" {
		err = s.Find(ctx, splitList(*find))
	} else {
		err = s.Detect(ctx, !*noCache)
	}
	if err != nil {
		return err
	}
	ai := s.AI()
	fmt.Fprintf(a.out, "%d candidates for %s\n", len(ai.Candidates), ai.ImageURL)
	for _, c := range ai.Candidates {
		fmt.Fprintf(a.out, "  %-20s (%.3f, %.3f)  %s\n", c.Label, c.Center.X, c.Center.Y, c.Selector)
	}
	if !*apply {
		return nil
	}
	switch *as {
	case "hotspot":
		s.ChangeMode(editor.Hotspot)
	case "polygon":
		s.ChangeMode(editor.PolygonRect)
	default:
		return fmt.Errorf("%w: -as must be hotspot or polygon", errUsage)
	}
	n := s.ApplyAll()
	fmt.Fprintf(a.out, "Added %d %ss\n", n, *as)
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (a *app) cmdReplay(ctx context.Context, args []string) error {
	if err := needArgs("replay", args, 2, "<file> and <script>"); err != nil {
		return err
	}
	raw, err := os.ReadFile(args[1])
	if err != nil {
		return err
	}
	var sc script.Script
	var perrs []script.Error
	switch strings.ToLower(filepath.Ext(args[1])) {
	case ".yaml", ".yml":
		sc, perrs = script.ParseYAML(raw)
	default:
		sc, perrs = script.Parse(string(raw))
	}
	if len(perrs) > 0 {
		errs := make([]error, len(perrs))
		for i, e := range perrs {
			errs[i] = e
		}
		return fmt.Errorf("%s: %w", args[1], errors.Join(errs...))
	}

	s, d, err := a.openSession(ctx, args[0])
	if err != nil {
		return err
	}
	defer d.Close()
	defer s.Close()
	defer crash.Recover(d.file, s.Doc.Snapshot)
	s.Attach()

	res, err := script.Run(s, sc)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Replayed %d steps (%d changed the document): %d hotspots, %d polygons\n",
		res.Steps, res.Changed, res.Hotspots, res.Polygons)
	return nil
}

func (a *app) cmdExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	width := fs.Int("width", 0, "output width in pixels")
	focal := fs.Bool("focal", false, "draw the focal point")
	labels := fs.Bool("labels", true, "draw shape labels")
	bg := fs.Bool("background", false, "reference the image behind the SVG overlay")
	preset := fs.String("preset", "web", "batch preset: web, print or mask")
	formats := fs.String("formats", "", "batch formats, comma separated")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if err := needArgs("export", pos, 3, "<format> <file> <out>"); err != nil {
		return err
	}
	format, out := pos[0], pos[2]
	doc, d, err := a.readDoc(ctx, pos[1])
	if err != nil {
		return err
	}
	defer d.Close()

	var written []string
	switch format {
	case "svg":
		err = export.ExportSVG(out, doc, export.SVGOptions{Width: *width, Background: *bg, IncludeFocal: *focal, Labels: *labels})
		written = []string{out}
	case "png", "mask":
		err = export.ExportPNG(out, doc, export.PNGOptions{Width: *width, Mask: format == "mask", IncludeFocal: *focal, Labels: *labels})
		written = []string{out}
	case "pdf":
		err = export.ExportPDF(out, doc, export.PDFOptions{Title: d.name, IncludeFocal: *focal, Table: true})
		written = []string{out}
	case "batch":
		opt := export.BatchOptions{
			Preset:  export.PresetName(*preset),
			Formats: splitList(*formats),
			Name:    strings.TrimSuffix(d.name, filepath.Ext(d.name)),
			Width:   *width,
			OutDir:  out,
		}
		fs.Visit(func(f *flag.Flag) {
			if f.Name == "focal" {
				opt.IncludeFocal = focal
			}
		})
		written, err = export.Batch(doc, opt)
	default:
		return fmt.Errorf("%w: unknown export format %q", errUsage, format)
	}
	if err != nil {
		return err
	}
	telemetry.Event(telemetry.EventExport, map[string]any{"format": format, "files": len(written)})
	for _, p := range written {
		fmt.Fprintln(a.out, "Wrote", p)
	}
	return nil
}

func (a *app) cmdHistory(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	n := fs.Int("n", 20, "number of revisions")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	d, err := a.openField(ctx, firstNonEmpty(pos...))
	if err != nil {
		return err
	}
	defer d.Close()
	if d.index == nil {
		return fmt.Errorf("no revision log for host kind %q", d.kind)
	}
	revs, err := d.index.ListRevisions(ctx, d.name, *n)
	if err != nil {
		return err
	}
	if len(revs) == 0 {
		fmt.Fprintln(a.out, "No revisions logged for", d.name)
		return nil
	}
	for _, r := range revs {
		fmt.Fprintf(a.out, "%6d  %s  %d hotspots  %d polygons\n", r.ID, r.At.Local().Format("2006-01-02 15:04:05"), r.Hotspots, r.Polygons)
	}
	return nil
}

func (a *app) cmdServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	memory := fs.Bool("memory", false, "keep fields in memory instead of postgres")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	cfg := backend.ServerConfigFromEnv()
	if len(pos) > 0 {
		cfg.Addr = pos[0]
	}
	var store backend.Store
	if *memory || a.cfg.Host.DSN == "" {
		a.log.Info("using in-memory field store")
		store = backend.NewMemoryStore()
	} else {
		pg, err := backend.OpenPG(ctx, a.cfg.Host.DSN)
		if err != nil {
			return err
		}
		defer pg.Close()
		store = pg
	}
	return backend.NewServer(store, cfg).ListenAndServe(ctx)
}

func (a *app) cmdUI(ctx context.Context, args []string) error {
	s, d, err := a.openSession(ctx, firstNonEmpty(args...))
	if err != nil {
		return err
	}
	defer d.Close()
	if d.file != nil {
		a.rememberRecent(d.file.Path)
	}
	return ui.Run(ui.Options{Session: s, Title: "goshoppable - " + d.name, CrashFile: d.file, Theme: a.cfg.UI.Theme})
}

// rememberRecent stores path in ui.recent of the on-disk config.
func (a *app) rememberRecent(path string) {
	cfgPath, err := config.ConfigPath()
	if err != nil {
		return
	}
	onDisk, err := config.ReadFile(cfgPath)
	if err != nil {
		return
	}
	onDisk.AddRecent(path)
	if err := config.SaveTo(cfgPath, onDisk); err != nil {
		a.log.Warn("recent list not saved", slog.Any("err", err))
	}
}

func (a *app) cmdConfig(args []string) error {
	if len(args) == 0 {
		args = []string{"list"}
	}
	switch args[0] {
	case "path":
		p, err := config.ConfigPath()
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, p)
	case "list":
		for _, k := range config.Keys() {
			v, _ := a.cfg.Get(k)
			if env, ok := config.EnvOverrideFor(k); ok {
				fmt.Fprintf(a.out, "%s = %s  (from %s)\n", k, v, env)
				continue
			}
			fmt.Fprintf(a.out, "%s = %s\n", k, v)
		}
	case "get":
		if err := needArgs("config get", args[1:], 1, "<key>"); err != nil {
			return err
		}
		v, err := a.cfg.Get(args[1])
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, v)
	case "set":
		if err := needArgs("config set", args[1:], 2, "<key> <value>"); err != nil {
			return err
		}
		p, err := config.ConfigPath()
		if err != nil {
			return err
		}
		onDisk, err := config.ReadFile(p)
		if err != nil {
			// a broken file is replaced
			onDisk = config.Defaults()
		}
		if err := onDisk.Set(args[1], args[2]); err != nil {
			return err
		}
		if err := config.SaveTo(p, onDisk); err != nil {
			return err
		}
		if env, ok := config.EnvOverrideFor(args[1]); ok {
			fmt.Fprintf(a.out, "Saved; note %s overrides it in this environment\n", env)
			return nil
		}
		fmt.Fprintln(a.out, "Saved")
	case "token":
		if len(args) < 2 {
			tok, err := config.Token()
			if err != nil {
				return err
			}
			if tok == "" {
				fmt.Fprintln(a.out, "token: not set")
			} else {
				fmt.Fprintln(a.out, "token: set")
			}
			return nil
		}
		val := args[1]
		if val == "-" {
			val = ""
		}
		if err := config.SetToken(val); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Token updated")
	default:
		return fmt.Errorf("%w: unknown config command %q", errUsage, args[0])
	}
	return nil
}
