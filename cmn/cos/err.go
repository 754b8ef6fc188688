// Package cos provides common low-level types and utilities shared by
// every package in this module.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package cos

import (
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	ratomic "sync/atomic"
	"syscall"

	"github.com/coreserve/gridd/cmn/debug"
	"github.com/coreserve/gridd/cmn/nlog"
)

// Errs accumulates up to maxErrs distinct errors, deduplicated by
// message, under a mutex; used where several independent
// sub-operations (e.g. fanout sub-queue construction) may each fail.
type Errs struct {
	errs []error
	cnt  int64
	mu   sync.Mutex
}

const maxErrs = 4

func (e *Errs) Add(err error) {
	debug.Assert(err != nil)
	e.mu.Lock()
	for _, added := range e.errs {
		if added.Error() == err.Error() {
			e.mu.Unlock()
			return
		}
	}
	if len(e.errs) < maxErrs {
		e.errs = append(e.errs, err)
		ratomic.StoreInt64(&e.cnt, int64(len(e.errs)))
	}
	e.mu.Unlock()
}

func (e *Errs) Cnt() int { return int(ratomic.LoadInt64(&e.cnt)) }

func (e *Errs) JoinErr() (cnt int, err error) {
	if cnt = e.Cnt(); cnt > 0 {
		e.mu.Lock()
		err = errors.Join(e.errs...)
		e.mu.Unlock()
	}
	return
}

func (e *Errs) Error() (s string) {
	var (
		err error
		cnt = e.Cnt()
	)
	if cnt == 0 {
		return
	}
	e.mu.Lock()
	if cnt = len(e.errs); cnt > 0 {
		err = e.errs[0]
	}
	e.mu.Unlock()
	if err == nil {
		return
	}
	if cnt > 1 {
		err = fmt.Errorf("%v (and %d more errors)", err, cnt-1)
	}
	s = err.Error()
	return
}

//
// IS-syscall helpers -- the transport classifies a connection's
// terminal error with these to decide whether it should flip the
// dispatcher's I/O-health flag.
//

func IsErrConnectionRefused(err error) bool { return errors.Is(err, syscall.ECONNREFUSED) }
func IsErrConnectionReset(err error) bool   { return errors.Is(err, syscall.ECONNRESET) }
func IsErrBrokenPipe(err error) bool        { return errors.Is(err, syscall.EPIPE) }

func IsRetriableConnErr(err error) bool {
	return IsErrConnectionRefused(err) || IsErrConnectionReset(err) || IsErrBrokenPipe(err)
}

func IsEOF(err error) bool {
	return err != nil && (errors.Is(err, os.ErrClosed) || errors.Is(err, net.ErrClosed) || err.Error() == "EOF")
}

const fatalPrefix = "FATAL ERROR: "

// ExitLogf logs a formatted fatal message, flushes the logger, and
// terminates the process -- the one way a binary built on top of this
// module dies loudly on a misconfiguration.
func ExitLogf(f string, a ...any) {
	msg := fmt.Sprintf(fatalPrefix+f, a...)
	nlog.ErrorDepth(1, msg)
	nlog.Flush(true)
	os.Exit(1)
}
