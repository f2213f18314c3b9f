package services

import (
	"encoding/json"
	"fmt"

	"nudge/internal/auth"
	"nudge/internal/models"
)

// sealMetadata encodes and, when a key is configured, encrypts reminder metadata
func sealMetadata(c *auth.MetadataCipher, metadata map[string]interface{}) (string, bool, error) {
	if len(metadata) == 0 {
		return "", false, nil
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return "", false, fmt.Errorf("encode metadata: %w", err)
	}
	sealed, err := c.Seal(raw)
	if err != nil {
		return "", false, err
	}
	return sealed, c.Enabled(), nil
}

// openMetadata reverses sealMetadata
func openMetadata(c *auth.MetadataCipher, r *models.Reminder) (map[string]interface{}, error) {
	if r.Metadata == "" {
		return nil, nil
	}
	raw := []byte(r.Metadata)
	if r.MetadataEncrypted {
		opened, err := c.Open(r.Metadata)
		if err != nil {
			return nil, err
		}
		raw = opened
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	return out, nil
}

// jsonMetadata encodes interaction metadata for the audit log
func jsonMetadata(m map[string]interface{}) []byte {
	if len(m) == 0 {
		return nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	return b
}
