package karotz

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

func TestState_UnmarshalLooseTypes(t *testing.T) {
	var s State
	err := json.Unmarshal([]byte(`{
  "version": 200,
  "sleep": "1",
  "karotz_free_space": "12.5M",
  "ears_disabled": "1",
  "led_pulse": 0,
  "led_color": "FF0000",
  "wlan_mac": "00:0A:0B:0C:0D:0E",
  "nb_moods": "304"
}`), &s)
	if err != nil {
		t.Fatalf("Unmarshal returned error: %v", err)
	}
	if !s.Sleep || s.Version != "200" || s.FreeSpace != "12.5M" {
		t.Fatalf("state = %#v, want sleeping version 200", s)
	}
	if s.EarsEnabled || s.LedPulse || s.LedColor != Red {
		t.Fatalf("state = %#v, want ears disabled, fixed red led", s)
	}
	if s.WlanMAC != "00:0A:0B:0C:0D:0E" {
		t.Fatalf("WlanMAC = %q", s.WlanMAC)
	}
	if _, ok := s.Fields["nb_moods"]; !ok {
		t.Fatalf("Fields = %v, want untyped fields kept", s.Fields)
	}
}

func TestState_UnmarshalRejectsNonObject(t *testing.T) {
	var s State
	if err := json.Unmarshal([]byte(`null`), &s); err == nil {
		t.Fatalf("Unmarshal(null) returned nil error")
	}
	if err := json.Unmarshal([]byte(`"x"`), &s); err == nil {
		t.Fatalf("Unmarshal(string) returned nil error")
	}
}

func TestState_MarshalReflectsTypedFields(t *testing.T) {
	var s State
	if err := json.Unmarshal([]byte(`{"sleep":"0","version":"200","nb_tags":"2"}`), &s); err != nil {
		t.Fatalf("Unmarshal returned error: %v", err)
	}
	s.Sleep = true

	raw, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("Unmarshal returned error: %v", err)
	}
	if out["sleep"] != float64(1) || out["version"] != "200" || out["nb_tags"] != "2" {
		t.Fatalf("marshalled state = %v", out)
	}
}

func TestDefaultState(t *testing.T) {
	s := DefaultState()
	if !s.Sleep || s.Version != "unknown" || s.FreeSpace != "unknown" {
		t.Fatalf("DefaultState = %#v", s)
	}
}

func TestResponse_Helpers(t *testing.T) {
	resp, err := decodeResponse([]byte(`{"return":"0","msg":"ok","left":4,"right":"9","filename":"a.jpg"}`))
	if err != nil {
		t.Fatalf("decodeResponse returned error: %v", err)
	}
	if resp.Return != 0 || resp.Msg != "ok" {
		t.Fatalf("envelope = %d %q", resp.Return, resp.Msg)
	}
	ears, err := resp.Ears()
	if err != nil || ears.Left != 4 || ears.Right != 9 {
		t.Fatalf("Ears = %#v, %v", ears, err)
	}
	if resp.String("filename") != "a.jpg" || resp.String("missing") != "" {
		t.Fatalf("String lookups wrong")
	}

	var dest struct {
		Filename string `json:"filename"`
		Left     int    `json:"left"`
	}
	if err := resp.Decode(&dest); err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if dest.Filename != "a.jpg" || dest.Left != 4 {
		t.Fatalf("Decode = %#v", dest)
	}

	empty, _ := decodeResponse([]byte(`{"return":0}`))
	if _, err := empty.Ears(); err == nil {
		t.Fatalf("Ears on reply without positions returned nil error")
	}
	if _, err := empty.Snapshot(); err == nil {
		t.Fatalf("Snapshot on reply without filename returned nil error")
	}
}

func TestDecodeResponse_MissingReturnIsNonZero(t *testing.T) {
	resp, err := decodeResponse([]byte(`{"msg":"x"}`))
	if err != nil {
		t.Fatalf("decodeResponse returned error: %v", err)
	}
	if resp.Return == 0 {
		t.Fatalf("Return = 0 for reply without return code")
	}
}

func TestError_IsAndMessage(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &Error{Kind: KindDeviceRejected, Endpoint: "leds", Message: "bad color"})
	if !errors.Is(err, ErrDeviceRejected) {
		t.Fatalf("errors.Is(%v, ErrDeviceRejected) = false", err)
	}
	if errors.Is(err, ErrTransport) {
		t.Fatalf("errors.Is(%v, ErrTransport) = true", err)
	}
	if Message(err) != "bad color" {
		t.Fatalf("Message = %q, want bad color", Message(err))
	}
	if Message(errors.New("plain")) != "plain" || Message(nil) != "" {
		t.Fatalf("Message fallbacks wrong")
	}

	silent := &Error{Kind: KindDeviceRejected, Endpoint: "sleep"}
	if silent.Error() != "karotz sleep: device rejected" {
		t.Fatalf("Error() = %q", silent.Error())
	}
}
