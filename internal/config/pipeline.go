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

// Package config wires the south and north processes from environment
// variables and flags, and decodes the south ingest queue's runtime
// configChange payloads.
package config

import (
	"encoding/json"
	"fmt"

	"github.com/charithmadhuranga/fledge/internal/errs"
)

// FilterSpec names one filter stage and its opaque per-instance settings, as
// carried in a pipeline configChange payload.
type FilterSpec struct {
	Name     string          `json:"name"`
	Settings json.RawMessage `json:"settings,omitempty"`
}

// PipelineConfig is the decoded shape of a configChange(category="pipeline",
// content) payload: an ordered list of filter stages.
type PipelineConfig struct {
	Filters []FilterSpec `json:"filters"`
}

// DecodePipelineConfig parses content into a PipelineConfig. A malformed
// payload yields a KindConfig error and must leave the caller's running
// pipeline untouched — callers should check the error before tearing down
// the old pipeline, never swap first and validate after.
func DecodePipelineConfig(content []byte) (PipelineConfig, error) {
	var cfg PipelineConfig
	if err := json.Unmarshal(content, &cfg); err != nil {
		return PipelineConfig{}, errs.Wrap(errs.KindConfig, "configChange", fmt.Errorf("pipeline: %w", err))
	}
	for i, f := range cfg.Filters {
		if f.Name == "" {
			return PipelineConfig{}, errs.New(errs.KindConfig, "configChange", fmt.Sprintf("filters[%d].name must not be empty", i))
		}
	}
	return cfg, nil
}
