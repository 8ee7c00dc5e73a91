package services

import (
	"bytes"
	"encoding/json"
	"sort"

	"fishda-monitor/internal/models"
)

// ParseFeed accepts either an object keyed by record key or an array of records.
// Object keys are processed in sorted order.
func ParseFeed(body []byte) ([]FeedRecord, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, &models.ValidationError{Field: "body", Message: "empty feed batch"}
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	switch trimmed[0] {
	case '{':
		var keyed map[string]models.RawReading
		if err := dec.Decode(&keyed); err != nil {
			return nil, &models.ValidationError{Field: "body", Message: "invalid feed object: " + err.Error()}
		}

		keys := make([]string, 0, len(keyed))
		for k := range keyed {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		records := make([]FeedRecord, 0, len(keys))
		for _, k := range keys {
			records = append(records, FeedRecord{Key: k, Raw: keyed[k]})
		}
		return records, nil

	case '[':
		var list []models.RawReading
		if err := dec.Decode(&list); err != nil {
			return nil, &models.ValidationError{Field: "body", Message: "invalid feed array: " + err.Error()}
		}

		records := make([]FeedRecord, 0, len(list))
		for _, raw := range list {
			key, _ := raw["key"].(string)
			records = append(records, FeedRecord{Key: key, Raw: raw})
		}
		return records, nil
	}

	return nil, &models.ValidationError{Field: "body", Message: "feed batch must be a JSON object or array"}
}
