// Package memsys governs the process-wide memory budget for request decoding.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package memsys_test

import (
	"testing"

	"github.com/coreserve/gridd/memsys"
	"github.com/stretchr/testify/assert"
)

func TestBudgetReserveRelease(t *testing.T) {
	b := memsys.NewBudget(100)

	assert.True(t, b.HasFree(50))
	assert.True(t, b.Reserve(60))
	assert.Equal(t, int64(60), b.InUse())

	assert.False(t, b.HasFree(50))
	assert.False(t, b.Reserve(50))

	b.Release(60)
	assert.Equal(t, int64(0), b.InUse())
	assert.True(t, b.Reserve(100))
	assert.False(t, b.Reserve(1))
}
