// Package cos provides common low-level types and utilities shared by every package in this module.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package cos_test

import (
	"errors"
	"fmt"
	"syscall"
	"testing"

	"github.com/coreserve/gridd/cmn/cos"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRetriableConnErrClassifiesWrappedSyscallErrors(t *testing.T) {
	for _, errno := range []error{syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.EPIPE} {
		wrapped := fmt.Errorf("write tcp 127.0.0.1:6000: %w", errno)
		assert.True(t, cos.IsRetriableConnErr(wrapped), "%v", errno)
	}
	assert.False(t, cos.IsRetriableConnErr(errors.New("asn1/ber decode: truncated")))
	assert.False(t, cos.IsRetriableConnErr(syscall.ENOENT))
}

func TestErrsDeduplicatesAndJoins(t *testing.T) {
	var errs cos.Errs
	errs.Add(errors.New("dial failed"))
	errs.Add(errors.New("dial failed")) // same message: not counted twice
	errs.Add(errors.New("no topic"))
	require.Equal(t, 2, errs.Cnt())

	cnt, joined := errs.JoinErr()
	require.Equal(t, 2, cnt)
	assert.Contains(t, joined.Error(), "dial failed")
	assert.Contains(t, joined.Error(), "no topic")
}
