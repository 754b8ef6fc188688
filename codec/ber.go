// Package codec defines the message model and the ASN.1/BER decode/encode boundary.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package codec

import (
	"encoding/asn1"
	"fmt"
)

// BER is the default Codec, built on the standard library's
// encoding/asn1. It exists so the module is self-contained and
// testable without a vendored ASN.1 library; production deployments
// are free to swap in a dedicated BER implementation (e.g. one
// generated from the storage dialect's real schema) by implementing
// Codec -- nothing outside this file needs to change. See DESIGN.md
// for why this boundary default stays on the standard library instead
// of a third-party dependency.
type BER struct{}

// wireField/wireMessage are the ASN.1 SEQUENCE shapes BER marshals
// to/from. encoding/asn1 has no native map support, so named fields
// round-trip as a SEQUENCE OF {name, value}.
type wireField struct {
	Name  string
	Value []byte
}

type wireMessage struct {
	Name   string
	ID     []byte
	Fields []wireField `asn1:"optional"`
	Body   []byte      `asn1:"optional"`
}

func (BER) Decode(payload []byte) (*Message, error) {
	var w wireMessage
	rest, err := asn1.Unmarshal(payload, &w)
	if err != nil {
		return nil, fmt.Errorf("asn1/ber decode: %w", err)
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("asn1/ber decode: %d trailing bytes", len(rest))
	}
	m := &Message{
		Name:   w.Name,
		ID:     w.ID,
		Fields: make(map[string][]byte, len(w.Fields)),
		Body:   w.Body,
	}
	for _, f := range w.Fields {
		m.Fields[f.Name] = f.Value
	}
	return m, nil
}

func (BER) Encode(m *Message) ([]byte, error) {
	w := wireMessage{Name: m.Name, ID: m.ID, Body: m.Body}
	for name, value := range m.Fields {
		w.Fields = append(w.Fields, wireField{Name: name, Value: value})
	}
	out, err := asn1.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("asn1/ber encode: %w", err)
	}
	return out, nil
}

// interface guard
var _ Codec = BER{}
