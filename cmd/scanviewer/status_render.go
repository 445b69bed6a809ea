package main

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"scanviewer/internal/annotation"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

func renderFrameStatus(status annotation.Status, colorize bool) string {
	label := string(status)
	if !colorize {
		return label
	}
	if color := frameStatusColor(status); color != "" {
		return color + label + ansiReset
	}
	return label
}

func frameStatusColor(status annotation.Status) string {
	switch status {
	case annotation.StatusValid:
		return ansiGreen
	case annotation.StatusLoading:
		return ansiBlue
	case annotation.StatusFailed:
		return ansiRed
	case annotation.StatusInvalid:
		return ansiYellow
	default:
		return ""
	}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
