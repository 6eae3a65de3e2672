//go:build fyne && !cgo

package ui

import "errors"

// errNoCgo is returned by Run when the binary was built with -tags fyne but
// without cgo; the fyne drivers need OpenGL through a C toolchain.
var errNoCgo = errors.New("desktop editor needs cgo for OpenGL: rebuild with CGO_ENABLED=1 go build -tags fyne ./cmd/goshoppable")

// Run closes the session it was handed and reports errNoCgo.
func Run(opts Options) error {
	if opts.Session != nil {
		opts.Session.Close()
	}
	return errNoCgo
}
