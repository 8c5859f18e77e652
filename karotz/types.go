package karotz

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// LED colors understood by the rabbit, in RGB hex.
const (
	White  = "FFFFFF"
	Black  = "000000"
	Red    = "FF0000"
	Green  = "00FF00"
	Blue   = "0000FF"
	Violet = "660099"
	Cyan   = "00FFFF"
	Yellow = "FFFF00"
	Pink   = "FF00CB"
	Orange = "FF9900"
)

// Sound control commands.
const (
	SoundPause = "pause"
	SoundQuit  = "quit"
)

const unknown = "unknown"

// State mirrors the payload returned by /cgi-bin/status. Only the fields the
// library reads are typed; Fields keeps everything the device reported.
type State struct {
	Sleep       bool
	Version     string
	FreeSpace   string
	SleepTime   string
	LedColor    string
	LedPulse    bool
	EarsEnabled bool
	WlanMAC     string
	EthMAC      string
	Fields      map[string]json.RawMessage
}

// DefaultState is the cached state of a client that has not talked to the
// device yet.
func DefaultState() State {
	return State{
		Sleep:       true,
		Version:     unknown,
		FreeSpace:   unknown,
		EarsEnabled: true,
	}
}

// UnmarshalJSON accepts the loosely typed status object the rabbit emits,
// where flags and counters may be numbers or numeric strings.
func (s *State) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if fields == nil {
		return fmt.Errorf("status payload is not an object")
	}
	*s = State{
		Sleep:       flagField(fields, "sleep", false),
		Version:     stringField(fields, "version"),
		FreeSpace:   stringField(fields, "karotz_free_space"),
		SleepTime:   stringField(fields, "sleep_time"),
		LedColor:    stringField(fields, "led_color"),
		LedPulse:    flagField(fields, "led_pulse", false),
		EarsEnabled: !flagField(fields, "ears_disabled", false),
		WlanMAC:     stringField(fields, "wlan_mac"),
		EthMAC:      stringField(fields, "eth_mac"),
		Fields:      fields,
	}
	return nil
}

// MarshalJSON writes the device fields back out, with the typed fields taking
// precedence so local patches (sleep after sleep/wakeup) are visible.
func (s State) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.Fields)+4)
	for k, v := range s.Fields {
		out[k] = v
	}
	out["sleep"] = boolInt(s.Sleep)
	out["version"] = s.Version
	out["karotz_free_space"] = s.FreeSpace
	if s.LedColor != "" {
		out["led_color"] = s.LedColor
	}
	return json.Marshal(out)
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	dup := s
	if s.Fields != nil {
		dup.Fields = make(map[string]json.RawMessage, len(s.Fields))
		for k, v := range s.Fields {
			dup.Fields[k] = append(json.RawMessage(nil), v...)
		}
	}
	return dup
}

// Response is a decoded reply carrying the {"return": ..., "msg": ...}
// envelope. Fields holds the full object, envelope included. Return is -1
// when the reply has no usable result code.
type Response struct {
	Return int
	Msg    string
	Fields map[string]json.RawMessage
}

// String returns the named field as text. Numbers are formatted, missing
// fields yield "".
func (r *Response) String(key string) string {
	if r == nil {
		return ""
	}
	return stringField(r.Fields, key)
}

// Int returns the named field as an integer when it holds one.
func (r *Response) Int(key string) (int, bool) {
	if r == nil {
		return 0, false
	}
	return intField(r.Fields, key)
}

// Decode unmarshals the whole reply into dest.
func (r *Response) Decode(dest any) error {
	if r == nil {
		return fmt.Errorf("response is nil")
	}
	raw, err := json.Marshal(r.Fields)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

// EarsPosition is the payload of ears and ears_random replies.
type EarsPosition struct {
	Left  int
	Right int
}

// Ears extracts the left/right ear positions.
func (r *Response) Ears() (EarsPosition, error) {
	left, okLeft := r.Int("left")
	right, okRight := r.Int("right")
	if !okLeft || !okRight {
		return EarsPosition{}, fmt.Errorf("response has no ear positions")
	}
	return EarsPosition{Left: left, Right: right}, nil
}

// SnapshotInfo names the files produced by a snapshot call.
type SnapshotInfo struct {
	Filename  string
	Thumbnail string
}

// Snapshot extracts the snapshot file names.
func (r *Response) Snapshot() (SnapshotInfo, error) {
	info := SnapshotInfo{Filename: r.String("filename"), Thumbnail: r.String("thumb")}
	if info.Filename == "" {
		return SnapshotInfo{}, fmt.Errorf("response has no snapshot filename")
	}
	return info, nil
}

func decodeResponse(body []byte) (*Response, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, fmt.Errorf("reply is not an object")
	}
	resp := &Response{Return: -1, Fields: fields}
	if code, ok := returnCode(fields); ok {
		resp.Return = code
	}
	resp.Msg = stringField(fields, "msg")
	return resp, nil
}

// returnCode reads the envelope result code. Only whole numbers count; a
// fractional or unparseable code is reported as absent, which the caller
// treats as a rejection.
func returnCode(fields map[string]json.RawMessage) (int, bool) {
	text := strings.TrimSpace(stringField(fields, "return"))
	if text == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(text); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

func stringField(fields map[string]json.RawMessage, key string) string {
	raw, ok := fields[key]
	if !ok {
		return ""
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func intField(fields map[string]json.RawMessage, key string) (int, bool) {
	text := strings.TrimSpace(stringField(fields, key))
	if text == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(text); err == nil {
		return n, true
	}
	if f, err := strconv.ParseFloat(text, 64); err == nil {
		return int(f), true
	}
	return 0, false
}

func flagField(fields map[string]json.RawMessage, key string, fallback bool) bool {
	text := strings.ToLower(strings.TrimSpace(stringField(fields, key)))
	switch text {
	case "":
		return fallback
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	if n, ok := intField(fields, key); ok {
		return n != 0
	}
	return fallback
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
