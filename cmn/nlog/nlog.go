// Package nlog is gridd's own logger: leveled, buffered, periodically
// flushed, and size-rotated. No external logging library - every
// package in this module logs through nlog, never through the stdlib
// "log" package or fmt.Println.
/*
 * Copyright (c) 2023, NVIDIA CORPORATION. All rights reserved.
 */
package nlog

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MaxSize is the size, in bytes, past which a severity's log file is
// rotated on the next Flush.
var MaxSize int64 = 4 * 1024 * 1024

type severity int

const (
	sevInfo severity = iota
	sevWarn
	sevErr
)

var sevChar = "IWE"

type logger struct {
	mu      sync.Mutex
	sev     severity
	w       *bufio.Writer
	file    *os.File
	written int64
	last    time.Time
	oob     bool
	erred   bool
}

var (
	toStderr     bool
	alsoToStderr bool
	logDir       string
	role         string
	title        string

	onceInit sync.Once
	loggers  [3]*logger
)

func InitFlags(flset *flag.FlagSet) {
	flset.BoolVar(&toStderr, "logtostderr", false, "log to standard error instead of files")
	flset.BoolVar(&alsoToStderr, "alsologtostderr", false, "log to standard error as well as files")
}

func SetLogDirRole(dir, r string) { logDir, role = dir, r }
func SetTitle(s string)           { title = s }

func InfoDepth(depth int, args ...any)    { logv(sevInfo, depth, "", args...) }
func Infoln(args ...any)                  { logv(sevInfo, 0, "", args...) }
func Infof(format string, args ...any)    { logv(sevInfo, 0, format, args...) }
func Warningln(args ...any)               { logv(sevWarn, 0, "", args...) }
func Warningf(format string, args ...any) { logv(sevWarn, 0, format, args...) }
func ErrorDepth(depth int, args ...any)   { logv(sevErr, depth, "", args...) }
func Errorln(args ...any)                 { logv(sevErr, 0, "", args...) }
func Errorf(format string, args ...any)   { logv(sevErr, 0, format, args...) }

func ensureInit() {
	onceInit.Do(func() {
		for s := sevInfo; s <= sevErr; s++ {
			loggers[s] = &logger{sev: s}
		}
	})
}

func logv(sev severity, depth int, format string, args ...any) {
	ensureInit()

	line := formatLine(sev, depth+1, format, args...)

	if !flag.Parsed() || toStderr {
		os.Stderr.WriteString(line)
		return
	}
	if alsoToStderr || sev >= sevWarn {
		os.Stderr.WriteString(line)
	}
	if sev >= sevWarn {
		loggers[sevErr].write(line)
	}
	loggers[sevInfo].write(line)
}

func (l *logger) write(line string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.w == nil {
		if err := l.open(time.Now()); err != nil {
			l.erred = true
		}
	}
	if l.erred || l.w == nil {
		return
	}
	n, _ := l.w.WriteString(line)
	l.written += int64(n)
	l.last = time.Now()
	if l.w.Buffered() > maxLineSize {
		l.oob = true
	}
}

const maxLineSize = 2 * 1024

func (l *logger) open(now time.Time) error {
	name, _ := logfname(sevText(l.sev), now)
	dir := logDir
	if dir == "" {
		dir = os.TempDir()
	}
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	l.file = f
	l.w = bufio.NewWriterSize(f, 32*1024)
	l.written = 0
	hdr := fmt.Sprintf("Started up at %s, host %s, %s for %s/%s\n",
		now.Format("2006/01/02 15:04:05"), host(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
	if title != "" {
		hdr += title + "\n"
	}
	l.w.WriteString(hdr)
	return nil
}

// Flush flushes buffered lines to disk; with exit=true it also syncs
// and closes the underlying file (used on process shutdown).
func Flush(exit ...bool) {
	ensureInit()
	ex := len(exit) > 0 && exit[0]
	// warnings piggyback on the info and err files, so only those two
	// carry writers to flush
	for _, l := range []*logger{loggers[sevInfo], loggers[sevErr]} {
		l.mu.Lock()
		if l.w == nil {
			l.mu.Unlock()
			continue
		}
		if ex || l.oob || time.Since(l.last) > 10*time.Second {
			l.w.Flush()
			l.oob = false
		}
		if ex {
			l.w.Flush()
			l.file.Sync()
			l.file.Close()
			l.w = nil
		} else if l.written >= MaxSize {
			l.w.Flush()
			l.file.Close()
			l.w = nil // reopened (rotated) on the next write
		}
		l.mu.Unlock()
	}
}

func Since() time.Duration {
	ensureInit()
	now := time.Now()
	a := now.Sub(loggers[sevInfo].last)
	b := now.Sub(loggers[sevErr].last)
	if a > b {
		return a
	}
	return b
}

func OOB() bool {
	ensureInit()
	return loggers[sevInfo].oob || loggers[sevErr].oob
}

func sevText(s severity) string {
	switch s {
	case sevWarn, sevErr:
		return "ERROR"
	default:
		return "INFO"
	}
}

func InfoLogName() string { return sname() + ".INFO" }
func ErrLogName() string  { return sname() + ".ERROR" }

func sname() string {
	if role != "" {
		return role
	}
	return "gridd"
}

func host() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return h
}

var pid = os.Getpid()

func logfname(tag string, t time.Time) (name, link string) {
	s := sname()
	name = fmt.Sprintf("%s.%s.%s.%02d%02d-%02d%02d%02d.%d",
		s, host(), tag, t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), pid)
	return name, s + "." + tag
}

func formatLine(sev severity, depth int, format string, args ...any) string {
	var b strings.Builder
	b.WriteByte(sevChar[sev])
	b.WriteByte(' ')
	b.WriteString(time.Now().Format("15:04:05.000000"))
	b.WriteByte(' ')
	if _, fn, ln, ok := runtime.Caller(2 + depth); ok {
		if idx := strings.LastIndexByte(fn, filepath.Separator); idx >= 0 {
			fn = fn[idx+1:]
		}
		b.WriteString(fn)
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(ln))
		b.WriteByte(' ')
	}
	if format == "" {
		fmt.Fprintln(&b, args...)
	} else {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}
	return b.String()
}
