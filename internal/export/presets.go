/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0
 */

package export

import (
	"fmt"
	"path/filepath"
	"strings"

	"goshoppable/internal/domain"
)

// PresetName represents a named export preset.
type PresetName string

const (
	PresetWeb   PresetName = "web"
	PresetPrint PresetName = "print"
	PresetMask  PresetName = "mask"
)

// BatchOptions controls a batch export of one document into several formats.
//
// Path semantics:
//   - OutDir defaults to the preset name.
//   - Files are named <Name>.<ext>; the mask is written as <Name>-mask.png.
type BatchOptions struct {
	Preset       PresetName
	Formats      []string // allowed: svg, png, mask, pdf; empty means preset defaults
	Name         string   // base file name; defaults to "overlay"
	Width        int      // raster/vector width in pixels; 0 uses the preset default
	IncludeFocal *bool    // when set, overrides the preset's default
	OutDir       string
}

// Batch runs exports according to the given preset and returns the written paths.
func Batch(d domain.Document, opt BatchOptions) ([]string, error) {
	formats := opt.Formats
	if len(formats) == 0 {
		formats = presetDefaultFormats(opt.Preset)
	}
	baseOut := opt.OutDir
	if baseOut == "" {
		baseOut = string(opt.Preset)
	}
	name := opt.Name
	if name == "" {
		name = "overlay"
	}
	width := opt.Width
	if width <= 0 {
		width = presetWidth(opt.Preset)
	}
	focal := presetIncludeFocal(opt.Preset)
	if opt.IncludeFocal != nil {
		focal = *opt.IncludeFocal
	}

	var written []string
	for _, f := range formats {
		f = strings.ToLower(strings.TrimSpace(f))
		var out string
		var err error
		switch f {
		case "svg":
			out = filepath.Join(baseOut, name+".svg")
			err = ExportSVG(out, d, SVGOptions{Width: width, IncludeFocal: focal, Labels: true})
		case "png":
			out = filepath.Join(baseOut, name+".png")
			err = ExportPNG(out, d, PNGOptions{Width: width, IncludeFocal: focal, Labels: opt.Preset != PresetMask})
		case "mask":
			out = filepath.Join(baseOut, name+"-mask.png")
			err = ExportPNG(out, d, PNGOptions{Width: width, Mask: true})
		case "pdf":
			out = filepath.Join(baseOut, name+".pdf")
			err = ExportPDF(out, d, PDFOptions{IncludeFocal: focal, Table: true})
		default:
			return written, fmt.Errorf("unknown format: %s", f)
		}
		if err != nil {
			return written, fmt.Errorf("%s: %w", f, err)
		}
		written = append(written, out)
	}
	return written, nil
}

func presetDefaultFormats(p PresetName) []string {
	switch p {
	case PresetWeb:
		return []string{"svg", "png"}
	case PresetPrint:
		return []string{"pdf"}
	case PresetMask:
		return []string{"mask"}
	default:
		return []string{"svg"}
	}
}

func presetWidth(p PresetName) int {
	switch p {
	case PresetPrint:
		return 2400
	default:
		return DefaultWidth
	}
}

func presetIncludeFocal(p PresetName) bool {
	return p == PresetPrint
}
