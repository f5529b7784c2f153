// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package evm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Revision selects the instruction set and the gas schedule to execute with.
type Revision int

const (
	R07_Istanbul Revision = iota
	R09_Berlin
	R10_London
	R12_Shanghai
)

// LatestRevision is the most recent revision supported.
const LatestRevision = R12_Shanghai

func (r Revision) String() string {
	switch r {
	case R07_Istanbul:
		return "Istanbul"
	case R09_Berlin:
		return "Berlin"
	case R10_London:
		return "London"
	case R12_Shanghai:
		return "Shanghai"
	default:
		return fmt.Sprintf("Revision(%d)", r)
	}
}

// ParseRevision resolves a revision by its case-insensitive name.
func ParseRevision(name string) (Revision, error) {
	for r := R07_Istanbul; r <= LatestRevision; r++ {
		if strings.EqualFold(r.String(), name) {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown revision: %q", name)
}

func (r Revision) MarshalJSON() ([]byte, error) {
	if r < R07_Istanbul || r > LatestRevision {
		return nil, &json.UnsupportedValueError{Str: r.String()}
	}
	return json.Marshal(r.String())
}

func (r *Revision) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	revision, err := ParseRevision(s)
	if err != nil {
		return err
	}
	*r = revision
	return nil
}
