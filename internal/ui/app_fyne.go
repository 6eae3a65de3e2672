//go:build fyne && cgo

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"goshoppable/internal/crash"
	"goshoppable/internal/detect"
	"goshoppable/internal/editor"
	applog "goshoppable/internal/log"
	"goshoppable/internal/session"
	"goshoppable/internal/version"
)

// Run opens the editor window for opts.Session and blocks until it closes.
func Run(opts Options) error {
	s := opts.Session
	if s == nil {
		return errors.New("ui: no session")
	}
	l := applog.WithComponent("ui")
	l.Info("starting UI", slog.String("version", version.String()))
	defer s.Close()
	defer crash.Recover(opts.CrashFile, s.Doc.Snapshot)

	fyneApp := app.NewWithID("goshoppable")
	switch opts.Theme {
	case "dark":
		fyneApp.Settings().SetTheme(theme.DarkTheme())
	case "light":
		fyneApp.Settings().SetTheme(theme.LightTheme())
	}
	title := opts.Title
	if title == "" {
		title = "goshoppable"
	}
	w := fyneApp.NewWindow(title)
	prefs := fyneApp.Preferences()
	winW := max(prefs.IntWithFallback("window.width", 1200), 800)
	winH := max(prefs.IntWithFallback("window.height", 800), 600)
	w.Resize(fyne.NewSize(float32(winW), float32(winH)))

	ed := &editorWindow{s: s, w: w, log: l}
	w.SetContent(ed.build())
	ed.bindKeys()
	s.Attach()
	ed.refresh()

	w.SetOnClosed(func() {
		sz := w.Canvas().Size()
		prefs.SetInt("window.width", int(sz.Width))
		prefs.SetInt("window.height", int(sz.Height))
		l.Info("UI closed")
	})
	w.ShowAndRun()
	return nil
}

type editorWindow struct {
	s   *session.Session
	w   fyne.Window
	log *slog.Logger

	canvas   *EditorCanvas
	tools    *widget.RadioGroup
	status   *widget.Label
	undo     *widget.Button
	redo     *widget.Button
	target   *widget.Entry
	selector *widget.Entry
	meta     *fyne.Container
	aiState  *widget.Label
	list     *widget.List
	drawer   *fyne.Container

	// candidates is the list model; only touched on the UI goroutine.
	candidates []detect.Candidate
}

func (e *editorWindow) build() fyne.CanvasObject {
	e.canvas = NewEditorCanvas(e.s)
	e.canvas.OnChange = e.refresh

	labels := make([]string, len(ToolModes))
	for i, m := range ToolModes {
		labels[i] = ToolLabel(m)
	}
	e.tools = widget.NewRadioGroup(labels, func(sel string) {
		for _, m := range ToolModes {
			if ToolLabel(m) == sel && e.s.Mode() != m {
				e.s.ChangeMode(m)
				e.refresh()
			}
		}
	})
	e.tools.Horizontal = true

	e.undo = widget.NewButtonWithIcon("", theme.ContentUndoIcon(), func() { e.s.Undo(); e.refresh() })
	e.redo = widget.NewButtonWithIcon("", theme.ContentRedoIcon(), func() { e.s.Redo(); e.refresh() })
	del := widget.NewButtonWithIcon("", theme.DeleteIcon(), func() { e.s.DeleteSelection(); e.refresh() })
	clearImg := widget.NewButton(ToolLabel(editor.Delete), func() {
		dialog.ShowConfirm("Delete image", "Remove the image and all its metadata?", func(ok bool) {
			if ok {
				e.s.ChangeMode(editor.Delete)
				e.refresh()
			}
		}, e.w)
	})
	aiBtn := widget.NewButtonWithIcon("Detect", theme.SearchIcon(), func() {
		e.s.ToggleDrawer()
		e.refresh()
		if e.s.AI().DrawerOpen {
			e.runDetect(true)
		}
	})
	toolbar := container.NewHBox(e.tools, widget.NewSeparator(), e.undo, e.redo, del, widget.NewSeparator(), aiBtn, clearImg)

	e.target = widget.NewEntry()
	e.selector = widget.NewEntry()
	apply := widget.NewButton("Apply", e.applyMeta)
	e.meta = container.NewVBox(
		widget.NewLabelWithStyle("Selected shape", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		widget.NewForm(widget.NewFormItem("Target", e.target), widget.NewFormItem("Selector", e.selector)),
		apply,
	)

	e.aiState = widget.NewLabel("")
	e.list = widget.NewList(
		func() int { return len(e.candidates) },
		func() fyne.CanvasObject { return widget.NewLabel("candidate") },
		func(id widget.ListItemID, o fyne.CanvasObject) {
			c := e.candidates[id]
			text := c.Label
			if e.s.CandidateExists(c) {
				text += " (added)"
			}
			o.(*widget.Label).SetText(text)
		},
	)
	e.list.OnSelected = func(id widget.ListItemID) {
		if id < len(e.candidates) {
			c := e.candidates[id]
			if e.s.CandidateExists(c) {
				e.s.RemoveCandidate(c)
			} else {
				e.s.ApplyCandidate(c)
			}
		}
		e.list.UnselectAll()
		e.refresh()
	}
	addAll := widget.NewButton("Add all", func() { e.s.ApplyAll(); e.refresh() })
	retry := widget.NewButtonWithIcon("", theme.ViewRefreshIcon(), func() { e.runDetect(false) })
	e.drawer = container.NewBorder(
		container.NewVBox(widget.NewLabelWithStyle("Detected products", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}), e.aiState),
		container.NewHBox(addAll, retry), nil, nil, e.list)

	side := container.NewVBox(e.meta)
	e.status = widget.NewLabel("Ready")
	right := container.NewBorder(side, nil, nil, nil, e.drawer)
	return container.NewBorder(toolbar, e.status, nil, container.NewGridWrap(fyne.NewSize(260, 0), right), e.canvas)
}

// bindKeys routes undo/redo chords and delete keys through the shortcut bus.
func (e *editorWindow) bindKeys() {
	c := e.w.Canvas()
	chord := func(key fyne.KeyName, shift bool) {
		mod := fyne.KeyModifierShortcutDefault
		if shift {
			mod |= fyne.KeyModifierShift
		}
		c.AddShortcut(&desktop.CustomShortcut{KeyName: key, Modifier: mod}, func(fyne.Shortcut) {
			if e.s.HandleKey(KeyFromName(string(key), true, false, shift, e.inputFocused())) {
				e.refresh()
			}
		})
	}
	chord(fyne.KeyZ, false)
	chord(fyne.KeyZ, true)
	chord(fyne.KeyY, false)
	c.SetOnTypedKey(func(ev *fyne.KeyEvent) {
		if e.s.HandleKey(KeyFromName(string(ev.Name), false, false, false, e.inputFocused())) {
			e.refresh()
		}
	})
}

func (e *editorWindow) inputFocused() bool {
	_, ok := e.w.Canvas().Focused().(*widget.Entry)
	return ok
}

func (e *editorWindow) applyMeta() {
	sel := e.s.Machine.Selection()
	if sel == nil {
		return
	}
	switch sel.Target.Kind {
	case editor.HotspotShape:
		e.s.UpdateHotspot(sel.Target.ID, e.target.Text, e.selector.Text)
	case editor.PolygonShape:
		e.s.UpdatePolygon(sel.Target.ID, e.target.Text, e.selector.Text)
	}
	e.refresh()
}

// runDetect resolves the image URL on the UI goroutine, calls the detector
// off it and refreshes when done.
func (e *editorWindow) runDetect(useCache bool) {
	url := e.s.ImageURL()
	go func() {
		err := e.s.DetectURL(context.Background(), url, useCache)
		fyne.Do(func() {
			if err != nil && !errors.Is(err, detect.ErrCancelled) {
				e.log.Warn("detection failed", slog.Any("err", err))
			}
			e.refresh()
		})
	}()
	e.refresh()
}

// refresh syncs every widget with the session.
func (e *editorWindow) refresh() {
	e.canvas.Refresh()
	sc := e.canvas.scene

	e.tools.SetSelected(ToolLabel(sc.Mode))
	if sc.CanUndo {
		e.undo.Enable()
	} else {
		e.undo.Disable()
	}
	if sc.CanRedo {
		e.redo.Enable()
	} else {
		e.redo.Disable()
	}

	if sel := e.s.Machine.Selection(); sel != nil {
		target, selector := "", ""
		if d := e.s.Doc.Document(); d != nil {
			if h := sel.Target.Hotspot(d); h != nil {
				target, selector = h.Target, h.Selector
			} else if p := sel.Target.Polygon(d); p != nil {
				target, selector = p.Target, p.Selector
			}
		}
		if !e.inputFocused() {
			e.target.SetText(target)
			e.selector.SetText(selector)
		}
		e.meta.Show()
	} else {
		e.meta.Hide()
	}

	ai := e.s.AI()
	e.candidates = ai.Candidates
	e.aiState.SetText(ai.State.String())
	if ai.DrawerOpen {
		e.drawer.Show()
	} else {
		e.drawer.Hide()
	}
	e.list.Refresh()

	hs, ps := 0, 0
	if d := e.s.Doc.Document(); d != nil {
		hs, ps = len(d.Hotspots), len(d.Polygons)
	}
	e.status.SetText(fmt.Sprintf("%s  |  %d hotspots, %d polygons", ToolLabel(sc.Mode), hs, ps))
}
