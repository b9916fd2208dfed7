package models

import (
	"encoding/json"
	"fmt"
)

// ProfileMetadata is the decoded content of a kind-0 event.
type ProfileMetadata struct {
	Name        string `json:"name,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	About       string `json:"about,omitempty"`
	Picture     string `json:"picture,omitempty"`
	Banner      string `json:"banner,omitempty"`
	Website     string `json:"website,omitempty"`
	NIP05       string `json:"nip05,omitempty"`
	LUD16       string `json:"lud16,omitempty"`
}

// ChannelMetadata is the decoded content of kind-40/41 events.
type ChannelMetadata struct {
	Name    string `json:"name,omitempty"`
	About   string `json:"about,omitempty"`
	Picture string `json:"picture,omitempty"`
}

// DecodeProfileMetadata parses a kind-0 content payload. A malformed payload
// is an error; the caller must leave any previously cached state untouched.
func DecodeProfileMetadata(content string) (*ProfileMetadata, error) {
	var m ProfileMetadata
	if err := json.Unmarshal([]byte(content), &m); err != nil {
		return nil, fmt.Errorf("malformed profile metadata: %w", err)
	}
	return &m, nil
}

// DecodeChannelMetadata parses a kind-40/41 content payload.
func DecodeChannelMetadata(content string) (*ChannelMetadata, error) {
	var m ChannelMetadata
	if err := json.Unmarshal([]byte(content), &m); err != nil {
		return nil, fmt.Errorf("malformed channel metadata: %w", err)
	}
	return &m, nil
}

// MarshalJSONString renders metadata back to the canonical JSON stored in
// cache rows.
func (m *ProfileMetadata) MarshalJSONString() (string, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (m *ChannelMetadata) MarshalJSONString() (string, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
