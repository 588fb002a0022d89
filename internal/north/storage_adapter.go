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

package north

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/charithmadhuranga/fledge/internal/storage"
)

// Engine is the storage collaborator StorageFetcher wraps; *storage.Engine
// satisfies it directly.
type Engine interface {
	FetchReadings(ctx context.Context, afterID int64, limit int) (storage.ResultSet, error)
}

// StorageFetcher adapts an Engine into a Fetcher, decoding each row into a
// Row and tracking the highest id seen for cursor advancement.
type StorageFetcher struct {
	engine Engine
}

func NewStorageFetcher(engine Engine) *StorageFetcher {
	return &StorageFetcher{engine: engine}
}

func (f *StorageFetcher) FetchReadings(ctx context.Context, afterID int64, limit int) (Page, error) {
	rs, err := f.engine.FetchReadings(ctx, afterID, limit)
	if err != nil {
		return Page{}, err
	}
	page := Page{MaxID: afterID}
	for _, r := range rs.Rows {
		row, err := decodeRow(r)
		if err != nil {
			return Page{}, err
		}
		page.Readings = append(page.Readings, row)
		if row.ID > page.MaxID {
			page.MaxID = row.ID
		}
	}
	return page, nil
}

func decodeRow(r map[string]interface{}) (Row, error) {
	id, err := asInt64(r["id"])
	if err != nil {
		return Row{}, fmt.Errorf("decoding row id: %w", err)
	}
	assetCode, _ := r["asset_code"].(string)
	readKey, _ := r["read_key"].(string)
	userTS, _ := r["user_ts"].(string)

	var payload json.RawMessage
	switch t := r["reading"].(type) {
	case json.RawMessage:
		payload = t
	case []byte:
		payload = json.RawMessage(t)
	case string:
		payload = json.RawMessage(t)
	}
	return Row{ID: id, AssetCode: assetCode, ReadKey: readKey, ReadingJSON: payload, UserTS: userTS}, nil
}

func asInt64(v interface{}) (int64, error) {
	switch t := v.(type) {
	case int64:
		return t, nil
	case int32:
		return int64(t), nil
	case int:
		return int64(t), nil
	case float64:
		return int64(t), nil
	default:
		return 0, fmt.Errorf("unexpected id representation %T", v)
	}
}
