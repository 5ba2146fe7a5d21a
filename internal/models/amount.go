package models

import (
	"bytes"

	jsoniter "github.com/json-iterator/go"
)

// Amount is a decimal currency value exactly as the caller sent it.
// Both JSON strings ("30.00", "12,34") and numbers (30) are accepted; the text
// is parsed into minor units by the service so rounding happens in one place.
type Amount string

// UnmarshalJSON keeps the raw text of a JSON string or number.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*a = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Amount(s)
	default:
		*a = Amount(data)
	}
	return nil
}
