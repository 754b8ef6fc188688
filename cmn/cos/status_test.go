// Package cos provides common low-level types and utilities shared by every package in this module.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package cos_test

import (
	"testing"

	"github.com/coreserve/gridd/cmn/cos"
	"github.com/stretchr/testify/assert"
)

func TestStatusCanonicalize(t *testing.T) {
	tests := []struct {
		name string
		in   cos.Status
		want cos.Status
	}{
		{"ok-on-error-path-becomes-internal", cos.StatusOK, cos.StatusInternalError},
		{"temp-becomes-internal", cos.StatusTemp, cos.StatusInternalError},
		{"network-becomes-proxy", cos.NetworkStatus(), cos.StatusProxyError},
		{"not-found-passes-through", cos.StatusNotFound, cos.StatusNotFound},
		{"redirect-passes-through", cos.StatusRedirect, cos.StatusRedirect},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.in.Canonicalize())
		})
	}
}

func TestStatusClassification(t *testing.T) {
	assert.True(t, cos.StatusTemp.IsTemp())
	assert.False(t, cos.StatusTemp.IsFinal())
	assert.True(t, cos.StatusOK.IsFinal())
	assert.True(t, cos.StatusOK.IsOK())
	assert.True(t, cos.StatusRedirect.IsRedirect())
	assert.True(t, cos.NetworkStatus().IsNetwork())
}
