// Package debug provides assertion helpers that are permanent no-ops:
// call sites read like normal assertions and document invariants, but
// nothing is evaluated at run time. Invariants that must hold in
// production are enforced separately (e.g. the transport synthesizes a
// reply when a handler returns without one).
/*
 * Copyright (c) 2018-2021, NVIDIA CORPORATION. All rights reserved.
 */
package debug

import "sync"

func ON() bool { return false }

func Infof(_ string, _ ...any) {}

func Assert(_ bool, _ ...any)            {}
func AssertFunc(_ func() bool, _ ...any) {}
func AssertNoErr(_ error)                {}
func Assertf(_ bool, _ string, _ ...any) {}

func AssertMutexLocked(_ *sync.Mutex)      {}
func AssertRWMutexLocked(_ *sync.RWMutex)  {}
func AssertRWMutexRLocked(_ *sync.RWMutex) {}
