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

package omf

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"
)

// queueContainer appends a container definition record to the pending
// buffer; it is flushed ahead of the value records that reference it by
// FlushContainers, never inline with ProcessReading's own return value,
// since a container only needs to reach the remote once per connection and
// batching its POST separately keeps the per-reading path allocation-light.
func (e *Emitter) queueContainer(link, propertyName, baseType string) {
	if e.containerSep {
		e.containers.WriteByte(',')
	}
	e.containerSep = true
	linkJSON, _ := json.Marshal(link)
	nameJSON, _ := json.Marshal(propertyName)
	fmt.Fprintf(&e.containers,
		`{"id":%s,"typeid":%q,"name":%s,"datasource":"Fledge"}`,
		linkJSON, baseType, nameJSON)
}

// PendingContainers reports whether any container definitions are queued.
func (e *Emitter) PendingContainers() bool {
	return e.containerSep
}

// FlushContainers POSTs every queued container definition to endpoint as a
// single batch. A 2xx response clears the pending buffer and reports true;
// on any other outcome the buffer is left as it was.
// A 400 is logged as a warning and reports false without treating it as a
// hard error, since the remote most likely already knows every one of these
// containers. Any other status or a transport failure is logged as an error
// and also reports false; the caller contract is that a false result must
// prevent the corresponding value batch from being sent.
func (e *Emitter) FlushContainers(ctx context.Context, log zerolog.Logger, client *http.Client, endpoint string, headers map[string]string) bool {
	if !e.containerSep {
		return true
	}
	body := "[" + e.containers.String() + "]"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBufferString(body))
	if err != nil {
		log.Error().Err(err).Msg("building container request")
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("messagetype", "container")
	req.Header.Set("action", "create")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		log.Error().Err(err).Msg("posting containers")
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case resp.StatusCode == http.StatusBadRequest:
		log.Warn().Int("status", resp.StatusCode).Msg("container batch rejected as bad request")
		return false
	default:
		log.Error().Int("status", resp.StatusCode).Msg("container batch rejected")
		return false
	}

	e.containers.Reset()
	e.containerSep = false
	return true
}
