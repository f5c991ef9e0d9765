package alerts

import (
	"bytes"
	"encoding/json"
	"strings"

	"gorm.io/datatypes"
)

// DetailFields are the loose fields an agent may send next to the details blob.
type DetailFields struct {
	AppName     string
	WindowTitle string
	URL         string
	BadWords    any
}

// MergeDetails folds the fields into the caller's details blob. A blob that is
// not a JSON object (or a string holding one) is kept under "raw".
func MergeDetails(raw json.RawMessage, f DetailFields) (datatypes.JSON, error) {
	merged := decodeDetails(raw)

	if f.URL != "" {
		merged["url"] = f.URL
	}
	if f.WindowTitle != "" {
		merged["windowTitle"] = f.WindowTitle
	}
	if f.AppName != "" {
		merged["appName"] = f.AppName
	}
	if f.BadWords != nil {
		merged["badWords"] = f.BadWords
	}

	b, err := json.Marshal(merged)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

func decodeDetails(raw json.RawMessage) map[string]any {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return map[string]any{}
	}

	var obj map[string]any
	if err := json.Unmarshal(trimmed, &obj); err == nil && obj != nil {
		return obj
	}

	// details often arrive pre-serialized as a JSON string
	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		if strings.TrimSpace(s) == "" {
			return map[string]any{}
		}
		if err := json.Unmarshal([]byte(s), &obj); err == nil && obj != nil {
			return obj
		}
		return map[string]any{"raw": s}
	}

	return map[string]any{"raw": string(trimmed)}
}
