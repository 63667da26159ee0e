package relay

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Envelope is the FCM v1 send request body.
type Envelope struct {
	Message Message `json:"message"`
}

// Message targets a single device registration token.
type Message struct {
	Token        string            `json:"token"`
	Notification Notification      `json:"notification"`
	Data         map[string]string `json:"data"`
}

type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// BuildEnvelope converts a request into the provider wire format. Data values
// are stringified because FCM only accepts string-typed data maps.
func BuildEnvelope(req SendRequest) Envelope {
	return Envelope{
		Message: Message{
			Token: req.TargetToken,
			Notification: Notification{
				Title: req.Title,
				Body:  req.Body,
			},
			Data: StringifyData(req.Data),
		},
	}
}

// StringifyData returns a copy of data with every value rendered as a string.
// Strings pass through, nil becomes "", scalars use their canonical text form
// and composite values are JSON-encoded. The result is never nil.
func StringifyData(data map[string]interface{}) map[string]string {
	out := make(map[string]string, len(data))
	for k, v := range data {
		out[k] = stringify(v)
	}
	return out
}

func stringify(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(val)
	case json.Number:
		return val.String()
	case fmt.Stringer:
		return val.String()
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
}
