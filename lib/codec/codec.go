// Copyright 2026 The Toolgate Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides deterministic CBOR encoding for Toolgate.
//
// Signature payloads and argument snapshots must serialize to
// identical bytes every time they are encoded; an HMAC recomputed at
// verification time has to match the one computed at creation time
// byte for byte. CBOR Core Deterministic Encoding (RFC 8949 §4.2)
// guarantees this: sorted map keys, smallest integer encoding, no
// indefinite-length items. It also removes delimiter-injection
// ambiguity that naive string concatenation of MAC inputs would have.
package codec

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// encMode is the CBOR encoder configured with Core Deterministic
// Encoding. Same logical data always produces identical bytes.
var encMode cbor.EncMode

// decMode is the CBOR decoder configured to accept standard CBOR.
// Unknown fields are ignored for forward compatibility.
var decMode cbor.DecMode

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		// Toolgate never uses non-string map keys. When decoding into
		// an any-typed target (argument snapshots are arbitrary JSON
		// objects), pick map[string]any rather than the CBOR default
		// map[interface{}]interface{}, which encoding/json cannot
		// handle.
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v to CBOR using Core Deterministic Encoding.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}
