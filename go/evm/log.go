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
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"
)

//go:generate mockgen -source log.go -destination log_mock.go -package evm

// Log is an event emitted by a contract.
type Log struct {
	Address Address
	Topics  []Hash
	Data    []byte
}

// Equal compares logs structurally.
func (l Log) Equal(o Log) bool {
	return l.Address == o.Address &&
		slices.Equal(l.Topics, o.Topics) &&
		bytes.Equal(l.Data, o.Data)
}

func (l Log) String() string {
	return fmt.Sprintf("Log{address: %v, topics: %v, data: %x}", l.Address, l.Topics, l.Data)
}

type logJSON struct {
	Address Address `json:"address"`
	Data    string  `json:"data"`
	Topics  []Hash  `json:"topics"`
}

// MarshalJSON encodes the log as an object with the emitting address, the
// data as lowercase hex without prefix, and the list of topics.
func (l Log) MarshalJSON() ([]byte, error) {
	topics := l.Topics
	if topics == nil {
		topics = []Hash{}
	}
	return json.Marshal(logJSON{
		Address: l.Address,
		Data:    hex.EncodeToString(l.Data),
		Topics:  topics,
	})
}

func (l *Log) UnmarshalJSON(data []byte) error {
	var raw logJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw.Topics) > 4 {
		return fmt.Errorf("too many topics in log: %d", len(raw.Topics))
	}
	payload, err := hex.DecodeString(strings.TrimPrefix(raw.Data, "0x"))
	if err != nil {
		return fmt.Errorf("invalid log data: %w", err)
	}
	l.Address = raw.Address
	l.Data = payload
	l.Topics = nil
	if len(raw.Topics) > 0 {
		l.Topics = raw.Topics
	}
	return nil
}

// LogSink receives the logs emitted by a transaction.
type LogSink interface {
	HandleLog(Log)
}

// NullLogSink discards all logs.
type NullLogSink struct{}

func (NullLogSink) HandleLog(Log) {}

// LogCollector is a LogSink retaining all received logs in order. It is safe
// for concurrent use.
type LogCollector struct {
	mutex sync.Mutex
	logs  []Log
}

func (c *LogCollector) HandleLog(l Log) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.logs = append(c.logs, l)
}

// Logs returns a copy of the collected logs.
func (c *LogCollector) Logs() []Log {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return slices.Clone(c.logs)
}
