// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package floria

import (
	"strings"
	"testing"

	"github.com/Fantom-foundation/evmcore/go/evm"
)

func TestRegistry_AllRevisionsAreRegistered(t *testing.T) {
	factories := GetProcessorFactories()
	for _, name := range []string{"istanbul", "berlin", "london", "shanghai"} {
		if _, found := factories[name]; !found {
			t.Errorf("no processor factory registered for %s", name)
		}
	}
}

func TestRegistry_LookupIsCaseInsensitive(t *testing.T) {
	tests := map[string]evm.Revision{
		"Istanbul": evm.R07_Istanbul,
		"berlin":   evm.R09_Berlin,
		"LONDON":   evm.R10_London,
		"shanghai": evm.R12_Shanghai,
	}
	for name, revision := range tests {
		t.Run(name, func(t *testing.T) {
			processor, err := NewProcessorByName(name, Config{Revision: evm.R07_Istanbul, MaxSteps: 10})
			if err != nil {
				t.Fatalf("failed to create processor: %v", err)
			}
			config := processor.Config()
			if config.Revision != revision {
				t.Errorf("unexpected revision, wanted %v, got %v", revision, config.Revision)
			}
			if config.MaxSteps != 10 {
				t.Errorf("other configuration values should be kept, got step limit %d", config.MaxSteps)
			}
		})
	}
}

func TestRegistry_UnknownNamesAreReported(t *testing.T) {
	_, err := NewProcessorByName("frontier", Config{})
	if err == nil || !strings.Contains(err.Error(), "frontier") {
		t.Errorf("expected an error naming the unknown processor, got %v", err)
	}
	if GetProcessorFactory("frontier") != nil {
		t.Errorf("unknown names should have no factory")
	}
}

func TestRegistry_RegistrationConflictsAreDetected(t *testing.T) {
	if err := RegisterProcessorFactory("Shanghai", NewProcessor); err == nil {
		t.Errorf("registering an existing name should fail")
	}
	if err := RegisterProcessorFactory("test-nil", nil); err == nil {
		t.Errorf("registering a nil factory should fail")
	}

	if err := RegisterProcessorFactory("test-Custom", NewProcessor); err != nil {
		t.Fatalf("failed to register factory: %v", err)
	}
	if GetProcessorFactory("test-custom") == nil {
		t.Errorf("registered factory should be found")
	}
	if err := RegisterProcessorFactory("TEST-CUSTOM", NewProcessor); err == nil {
		t.Errorf("names differing in case only should conflict")
	}
}

func TestRegistry_FactoriesAreCopied(t *testing.T) {
	factories := GetProcessorFactories()
	delete(factories, "london")
	if GetProcessorFactory("london") == nil {
		t.Errorf("modifying the returned map should not affect the registry")
	}
}
