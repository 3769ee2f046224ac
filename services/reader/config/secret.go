// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"fmt"

	"github.com/awnumar/memguard"
)

// Secret holds a credential in an encrypted memguard enclave.
//
// The plaintext only exists in locked memory while Reveal runs.
type Secret struct {
	enclave *memguard.Enclave
}

// NewSecret seals value. An empty value returns nil.
func NewSecret(value string) *Secret {
	if value == "" {
		return nil
	}
	// NewEnclave wipes the source slice.
	return &Secret{enclave: memguard.NewEnclave([]byte(value))}
}

// Reveal returns the plaintext. A nil Secret reveals "".
func (s *Secret) Reveal() (string, error) {
	if s == nil || s.enclave == nil {
		return "", nil
	}
	buf, err := s.enclave.Open()
	if err != nil {
		return "", fmt.Errorf("open secret: %w", err)
	}
	defer buf.Destroy()
	return string(buf.Bytes()), nil
}

// IsSet reports whether a value was provided.
func (s *Secret) IsSet() bool {
	return s != nil && s.enclave != nil
}

// String never prints the value.
func (s *Secret) String() string {
	if !s.IsSet() {
		return "<unset>"
	}
	return "<redacted>"
}
