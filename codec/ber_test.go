// Package codec defines the message model and the ASN.1/BER decode/encode boundary.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package codec_test

import (
	"testing"

	"github.com/coreserve/gridd/codec"
	"github.com/stretchr/testify/require"
)

func TestBERRoundTrip(t *testing.T) {
	in := codec.NewMessage("REQ_PING")
	in.ID = []byte("req-123")
	in.AddFieldString(codec.FieldTimeout, "5000")
	in.Body = []byte("hello")

	var c codec.BER
	encoded, err := c.Encode(in)
	require.NoError(t, err)

	out, err := c.Decode(encoded)
	require.NoError(t, err)

	require.Equal(t, in.Name, out.Name)
	require.Equal(t, in.ID, out.ID)
	require.Equal(t, in.Body, out.Body)
	v, ok := out.FieldString(codec.FieldTimeout)
	require.True(t, ok)
	require.Equal(t, "5000", v)
}

func TestBERDecodeRejectsTrailingBytes(t *testing.T) {
	in := codec.NewMessage("REQ_PING")
	var c codec.BER
	encoded, err := c.Encode(in)
	require.NoError(t, err)

	_, err = c.Decode(append(encoded, 0xff))
	require.Error(t, err)
}
