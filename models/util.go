package models

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
)

// NewID returns a random identifier encoded as a hyphenless UUIDv4 string.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// IsID reports whether s looks like an identifier produced by NewID.
func IsID(s string) bool {
	if len(s) != 32 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

// StringList is a list of strings that also accepts a single JSON string.
// {"roles":"student"} and {"roles":["student"]} decode to the same value.
type StringList []string

func (l *StringList) UnmarshalJSON(b []byte) error {
	var one string
	if err := json.Unmarshal(b, &one); err == nil {
		if one == "" {
			*l = StringList{}
			return nil
		}
		*l = StringList{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return err
	}
	*l = StringList(many)
	return nil
}
