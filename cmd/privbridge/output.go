// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// colorMode is the --color setting.
type colorMode string

const (
	colorAuto   colorMode = "auto"
	colorAlways colorMode = "always"
	colorNever  colorMode = "never"
)

func parseColorMode(text string) (colorMode, error) {
	switch mode := colorMode(text); mode {
	case colorAuto, colorAlways, colorNever:
		return mode, nil
	default:
		return "", fmt.Errorf("invalid --color %q: want auto, always, or never", text)
	}
}

// output writes command results. JSON is syntax-highlighted when
// color is on.
type output struct {
	w     io.Writer
	color bool
}

// newOutput resolves auto against the terminal and NO_COLOR.
func newOutput(w io.Writer, mode colorMode) output {
	switch mode {
	case colorAlways:
		return output{w: w, color: true}
	case colorNever:
		return output{w: w}
	}
	file, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(file.Fd())) || termenv.EnvNoColor() {
		return output{w: w}
	}
	return output{w: w, color: termenv.NewOutput(file).Profile != termenv.Ascii}
}

func (o output) Write(p []byte) (int, error) { return o.w.Write(p) }

func (o output) writeJSON(value any) error {
	var buffer bytes.Buffer
	encoder := json.NewEncoder(&buffer)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(value); err != nil {
		return err
	}
	if !o.color {
		_, err := o.w.Write(buffer.Bytes())
		return err
	}
	return quick.Highlight(o.w, buffer.String(), "json", "terminal256", "monokai")
}
