// Package protocol encodes device requests and decodes device responses.
// Messages are JSON objects, one per line.
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
)

// Categories understood by the device.
const (
	CategoryTracker     = "tracker"
	CategoryCalibration = "calibration"
	CategoryHeartbeat   = "heartbeat"
)

// Status codes. 901 and 902 are never sent by a device; the proxy
// synthesizes them.
const (
	StatusOK                 = 200
	StatusCalibrationChanged = 800
	StatusDisplayChanged     = 801
	StatusTrackerChanged     = 802
	StatusConnectionError    = 901
	StatusNoResponse         = 902
)

// Param is one key/value pair of an ordered parameter set.
type Param struct {
	Key   string
	Value any
}

// Params is an ordered key/value set. It encodes as a JSON object with the
// keys in slice order.
type Params []Param

// Get returns the value for key.
func (p Params) Get(key string) (any, bool) {
	for _, kv := range p {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return nil, false
}

// MarshalJSON implements json.Marshaler.
func (p Params) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, kv := range p {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(kv.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(kv.Value)
		if err != nil {
			return nil, fmt.Errorf("param %q: %w", kv.Key, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler, keeping the key order.
func (p *Params) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("%w: params must be an object", ErrMalformed)
	}
	out := Params{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("%w: params key", ErrMalformed)
		}
		var v any
		if err := dec.Decode(&v); err != nil {
			return err
		}
		out = append(out, Param{Key: key, Value: v})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*p = out
	return nil
}

// Request is a message sent to the device. Values is Params, a list
// ([]string or []any) or nil.
type Request struct {
	Category string
	Request  string
	Values   any
}

type wireRequest struct {
	Category string          `json:"category"`
	Request  string          `json:"request,omitempty"`
	Values   json.RawMessage `json:"values,omitempty"`
}

// Response is a message received from the device.
type Response struct {
	Category   string                     `json:"category"`
	Request    string                     `json:"request,omitempty"`
	StatusCode int                        `json:"statuscode"`
	Values     map[string]json.RawMessage `json:"values,omitempty"`
}

// OK reports whether the device accepted the request.
func (r Response) OK() bool { return r.StatusCode == StatusOK }

// Value decodes the named value into dst.
func (r Response) Value(key string, dst any) error {
	raw, ok := r.Values[key]
	if !ok {
		return fmt.Errorf("%s: %w", key, ErrNoValue)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}

// StatusMessage returns the device supplied status message, falling back to
// a description of the status code.
func (r Response) StatusMessage() string {
	var msg string
	if err := r.Value("statusmessage", &msg); err == nil && msg != "" {
		return msg
	}
	switch r.StatusCode {
	case StatusOK:
		return "ok"
	case StatusCalibrationChanged:
		return "calibration state changed"
	case StatusDisplayChanged:
		return "display changed"
	case StatusTrackerChanged:
		return "tracker state changed"
	case StatusConnectionError:
		return "connection error"
	case StatusNoResponse:
		return "no response"
	}
	if t := http.StatusText(r.StatusCode); t != "" {
		return t
	}
	return fmt.Sprintf("status %d", r.StatusCode)
}

// IsNotification reports whether r is an unsolicited state-change message.
func (r Response) IsNotification() bool {
	return r.StatusCode >= StatusCalibrationChanged && r.StatusCode <= StatusTrackerChanged
}

// ConnectionError builds the synthetic response returned when the link to
// the device failed.
func ConnectionError(msg string) Response {
	return Synthetic(CategoryTracker, "", StatusConnectionError, msg)
}

// NoResponse builds the synthetic response returned when no matching answer
// arrived in time.
func NoResponse(category, request string) Response {
	return Synthetic(category, request, StatusNoResponse, "no response")
}

// Synthetic builds a locally generated response carrying msg as its
// status message.
func Synthetic(category, request string, code int, msg string) Response {
	m, _ := json.Marshal(msg)
	return Response{
		Category:   category,
		Request:    request,
		StatusCode: code,
		Values:     map[string]json.RawMessage{"statusmessage": m},
	}
}

// Encode serializes req as a single newline terminated line.
func Encode(req Request) ([]byte, error) {
	w := wireRequest{Category: req.Category, Request: req.Request}
	switch v := req.Values.(type) {
	case nil:
	case Params, []string, []any:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		w.Values = raw
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedValues, req.Values)
	}
	out, err := json.Marshal(w)
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

// DecodeRequest parses one request line.
func DecodeRequest(line []byte) (Request, error) {
	line = bytes.TrimSpace(line)
	if err := validate(requestSchema, line); err != nil {
		return Request{}, err
	}
	var w wireRequest
	if err := json.Unmarshal(line, &w); err != nil {
		return Request{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	req := Request{Category: w.Category, Request: w.Request}
	if len(w.Values) == 0 {
		return req, nil
	}
	switch w.Values[0] {
	case '{':
		var p Params
		if err := json.Unmarshal(w.Values, &p); err != nil {
			return Request{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		req.Values = p
	case '[':
		var list []any
		if err := json.Unmarshal(w.Values, &list); err != nil {
			return Request{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		req.Values = listValues(list)
	}
	return req, nil
}

// listValues narrows a list of strings to []string.
func listValues(list []any) any {
	names := make([]string, 0, len(list))
	for _, v := range list {
		s, ok := v.(string)
		if !ok {
			return list
		}
		names = append(names, s)
	}
	return names
}

// EncodeResponse serializes resp as a single newline terminated line.
func EncodeResponse(resp Response) ([]byte, error) {
	out, err := json.Marshal(resp)
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

// DecodeResponse parses one response line.
func DecodeResponse(line []byte) (Response, error) {
	line = bytes.TrimSpace(line)
	if err := validate(responseSchema, line); err != nil {
		return Response{}, err
	}
	var resp Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return resp, nil
}
