package logging

import (
	"io"
	"log"

	"gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// New returns a logger writing to a rotated file plus any extra writers, and a function closing the file.
// With no file configured only the extra writers receive output.
func New(opts Options, extra ...io.Writer) (*log.Logger, func() error) {
	writers := make([]io.Writer, 0, len(extra)+1)
	closeFn := func() error { return nil }

	if opts.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   opts.Compress,
		}
		writers = append(writers, rotator)
		closeFn = rotator.Close
	}
	for _, w := range extra {
		if w != nil {
			writers = append(writers, w)
		}
	}

	var out io.Writer = io.Discard
	switch len(writers) {
	case 0:
	case 1:
		out = writers[0]
	default:
		out = io.MultiWriter(writers...)
	}
	return log.New(out, "", log.LstdFlags|log.Lmicroseconds), closeFn
}
