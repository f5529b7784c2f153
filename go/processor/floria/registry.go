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
	"fmt"
	"strings"
	"sync"

	"github.com/Fantom-foundation/evmcore/go/evm"
	"golang.org/x/exp/maps"
)

// This file provides a registry for processor configurations.
//
// Every supported revision is registered under its lower-case name. Client
// applications, like the evmrun tool, select processors by name through this
// registry. Custom configurations may be registered by other packages during
// their initialization.

func init() {
	for _, revision := range []evm.Revision{
		evm.R07_Istanbul,
		evm.R09_Berlin,
		evm.R10_London,
		evm.R12_Shanghai,
	} {
		revision := revision
		err := RegisterProcessorFactory(revision.String(), func(config Config) (*Processor, error) {
			config.Revision = revision
			return NewProcessor(config)
		})
		if err != nil {
			panic(err)
		}
	}
}

// ProcessorFactory creates a processor based on the given configuration.
// Factories may override parts of the configuration.
type ProcessorFactory func(Config) (*Processor, error)

// NewProcessorByName performs a lookup for the given name (case-insensitive)
// in the registry and creates a processor using the given configuration.
func NewProcessorByName(name string, config Config) (*Processor, error) {
	factory := GetProcessorFactory(name)
	if factory == nil {
		return nil, fmt.Errorf("processor not found: %s", name)
	}
	return factory(config)
}

// GetProcessorFactory performs a lookup for the given name (case-insensitive)
// in the registry. The result is nil if no factory was registered under the
// given name.
func GetProcessorFactory(name string) ProcessorFactory {
	registryLock.Lock()
	defer registryLock.Unlock()
	return registry[strings.ToLower(name)]
}

// GetProcessorFactories obtains all registered factories.
func GetProcessorFactories() map[string]ProcessorFactory {
	registryLock.Lock()
	defer registryLock.Unlock()
	return maps.Clone(registry)
}

// RegisterProcessorFactory registers a new processor factory under the given
// name. The name is not case-sensitive. An error is returned if a factory was
// bound to the same name before, or the factory is nil.
func RegisterProcessorFactory(name string, factory ProcessorFactory) error {
	key := strings.ToLower(name)
	if factory == nil {
		return fmt.Errorf("invalid initialization: cannot register nil-factory using `%s`", key)
	}
	registryLock.Lock()
	defer registryLock.Unlock()
	if _, found := registry[key]; found {
		return fmt.Errorf("invalid initialization: multiple factories registered for `%s`", key)
	}
	registry[key] = factory
	return nil
}

var (
	registry     = map[string]ProcessorFactory{}
	registryLock sync.Mutex
)
