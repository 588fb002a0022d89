// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package reading

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrMissingAssetCode is returned by New when assetCode is empty.
var ErrMissingAssetCode = errors.New("reading: assetCode must not be empty")

// Datapoint is a single named value cell within a Reading. Name is unique
// within the owning Reading.
type Datapoint struct {
	Name  string
	Value Value
}

// Reading is an immutable, timestamped observation for one asset.
type Reading struct {
	assetCode  string
	userTS     time.Time
	ts         time.Time
	readKey    string
	datapoints []Datapoint
}

// New constructs a Reading. userTS is the caller-supplied (south-side)
// timestamp; ts is stamped by the caller as the server-side receipt time
// (typically time.Now(), but injectable for tests). readKey is the
// optional client-supplied dedupe key; pass "" when the caller has none.
func New(assetCode string, userTS, ts time.Time, readKey string, datapoints []Datapoint) (Reading, error) {
	if assetCode == "" {
		return Reading{}, ErrMissingAssetCode
	}
	cp := make([]Datapoint, len(datapoints))
	copy(cp, datapoints)
	return Reading{assetCode: assetCode, userTS: userTS, ts: ts, readKey: readKey, datapoints: cp}, nil
}

func (r Reading) AssetCode() string  { return r.assetCode }
func (r Reading) UserTimestamp() time.Time { return r.userTS }
func (r Reading) ServerTimestamp() time.Time { return r.ts }
func (r Reading) ReadKey() string { return r.readKey }
func (r Reading) Datapoints() []Datapoint {
	cp := make([]Datapoint, len(r.datapoints))
	copy(cp, r.datapoints)
	return cp
}

// Datapoint looks up a named datapoint; ok is false when absent.
func (r Reading) Datapoint(name string) (Datapoint, bool) {
	for _, dp := range r.datapoints {
		if dp.Name == name {
			return dp, true
		}
	}
	return Datapoint{}, false
}

// FormatStandard is the canonical "YYYY-MM-DD HH:MM:SS.uuuuuu" layout (no
// timezone); the OMF emitter appends "Z" to it directly.
const FormatStandard = "2006-01-02 15:04:05.000000"

// GetAssetDateUserTime renders UserTimestamp() in the standard layout, UTC,
// microsecond precision, no timezone suffix.
func (r Reading) GetAssetDateUserTime() string {
	return r.userTS.UTC().Format(FormatStandard)
}

// MarshalJSON renders the datapoints as a flat {name: value, ...} object,
// the shape stored in the readings table's jsonb "reading" column.
func (r Reading) MarshalJSON() ([]byte, error) {
	m := make(map[string]Value, len(r.datapoints))
	for _, dp := range r.datapoints {
		m[dp.Name] = dp.Value
	}
	return json.Marshal(m)
}
