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

// Package omf builds and forwards the linked-data payloads the north
// scheduler ships to a PI/OMF-speaking collaborator: asset identity
// records, container (schema) definitions, relationship links, and the
// per-reading value records that reference them.
package omf

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charithmadhuranga/fledge/pkg/reading"
)

// hintTagName and hintTag are the reserved hint keys ProcessReading consults
// to override the derived asset name. hintOMF is a reserved datapoint name
// that is always skipped, never emitted, wherever it appears on a reading.
const (
	hintOMF     = "OMFHint"
	hintTagName = "OMFTagNameHint"
	hintTag     = "OMFTagHint"
)

// Emitter is not safe for concurrent use: it is confined to the single
// north fetcher+emitter thread, matching the documented shared-resource
// policy for the pending containers buffer.
type Emitter struct {
	assetSent     map[string]bool
	containerSent map[string]string // link name -> base type
	linkSent      map[string]bool
	containers    strings.Builder
	containerSep  bool
}

// New returns an Emitter with empty memoisation tables, as at connection
// setup.
func New() *Emitter {
	return &Emitter{
		assetSent:     make(map[string]bool),
		containerSent: make(map[string]string),
		linkSent:      make(map[string]bool),
	}
}

// Reset clears every memoisation table, as required on connection teardown
// or when the remote signals schema loss.
func (e *Emitter) Reset() {
	e.assetSent = make(map[string]bool)
	e.containerSent = make(map[string]string)
	e.linkSent = make(map[string]bool)
	e.containers.Reset()
	e.containerSep = false
}

func baseTypeFor(v reading.Value) (string, bool) {
	switch v.Kind() {
	case reading.KindString:
		return "String", true
	case reading.KindInteger, reading.KindFloat:
		return "Double", true
	default:
		return "", false
	}
}

// ProcessReading builds the JSON record fragment for r, deriving the asset
// name from prefix+r.AssetCode() unless overridden by an OMFTagNameHint or
// OMFTagHint entry in hints. Records are comma-joined in emission order: an
// asset definition (at most once per assetName), then per-datapoint a
// container registration (queued, not emitted here), a relationship link
// (at most once per link), and a value record.
func (e *Emitter) ProcessReading(r reading.Reading, prefix string, hints map[string]string) (string, error) {
	assetName := prefix + r.AssetCode()
	if s, ok := hints[hintTagName]; ok && s != "" {
		assetName = s
	} else if s, ok := hints[hintTag]; ok && s != "" {
		assetName = s
	}

	var records []string
	if !e.assetSent[assetName] {
		records = append(records, assetRecord(assetName))
		e.assetSent[assetName] = true
	}

	userTime := r.GetAssetDateUserTime() + "Z"
	for _, dp := range r.Datapoints() {
		if dp.Name == hintOMF {
			continue
		}
		baseType, ok := baseTypeFor(dp.Value)
		if !ok {
			continue
		}
		link := assetName + "_" + dp.Name
		if _, sent := e.containerSent[link]; !sent {
			e.queueContainer(link, dp.Name, baseType)
			e.containerSent[link] = baseType
		}
		if !e.linkSent[link] {
			records = append(records, linkRecord(assetName, link))
			e.linkSent[link] = true
		}
		valueRecord, err := valueRecord(link, baseType, dp.Value, userTime)
		if err != nil {
			return "", err
		}
		records = append(records, valueRecord)
	}

	return strings.Join(records, ","), nil
}

func assetRecord(assetName string) string {
	b, _ := json.Marshal(assetName)
	return fmt.Sprintf(`{"typeid":"FledgeAsset","values":[{"AssetId":%s,"Name":%s}]}`, b, b)
}

func linkRecord(assetName, link string) string {
	assetJSON, _ := json.Marshal(assetName)
	linkJSON, _ := json.Marshal(link)
	return fmt.Sprintf(
		`{"typeid":"__Link","values":[{"source":{"typeid":"FledgeAsset","index":%s},"target":{"containerid":%s}}]}`,
		assetJSON, linkJSON,
	)
}

func valueRecord(link, baseType string, v reading.Value, userTimeZ string) (string, error) {
	linkJSON, _ := json.Marshal(link)
	timeJSON, _ := json.Marshal(userTimeZ)
	return fmt.Sprintf(
		`{"containerid":%s,"values":[{%q:%s,"Time":%s}]}`,
		linkJSON, baseType, v.String(), timeJSON,
	), nil
}
