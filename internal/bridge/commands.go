package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/five82/karotzctl/karotz"
)

// Args carries command arguments decoded from an MQTT payload. A payload
// that is not a JSON object fills the command's primary argument instead,
// so "Bonjour" on karotz/cmd/tts and {"text":"Bonjour"} are equivalent.
type Args struct {
	URL     string `json:"url"`
	ID      ID     `json:"id"`
	Cmd     string `json:"cmd"`
	Color   string `json:"color"`
	Pulse   bool   `json:"pulse"`
	Left    int    `json:"left"`
	Right   int    `json:"right"`
	Text    string `json:"text"`
	Voice   string `json:"voice"`
	NoCache bool   `json:"nocache"`
	Silent  *bool  `json:"silent"`
	Tag     string `json:"tag"`
}

// ID is a sound or mood identifier. JSON payloads may carry it as a string
// or a number.
type ID string

// UnmarshalJSON accepts "12", 12 or null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or a number, got %s", data)
	}
	*id = ID(n.String())
	return nil
}

type command struct {
	// primary names the Args field a bare payload is assigned to.
	primary string
	// refreshState republishes the client's cached state after success.
	refreshState bool
	run          func(ctx context.Context, c *karotz.Client, a Args) (any, error)
}

func response(resp *karotz.Response, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	return resp.Fields, nil
}

func noArgs(call func(*karotz.Client, context.Context) (*karotz.Response, error)) func(context.Context, *karotz.Client, Args) (any, error) {
	return func(ctx context.Context, c *karotz.Client, _ Args) (any, error) {
		return response(call(c, ctx))
	}
}

var commands = map[string]command{
	"status": {
		refreshState: true,
		run: func(ctx context.Context, c *karotz.Client, _ Args) (any, error) {
			st, err := c.Status(ctx)
			if err != nil {
				return nil, err
			}
			return st, nil
		},
	},
	"sleep":  {refreshState: true, run: noArgs((*karotz.Client).Sleep)},
	"wakeup": {refreshState: true, run: noArgs((*karotz.Client).Wakeup)},
	"reboot": {run: noArgs((*karotz.Client).Reboot)},
	"sound": {
		primary: "url",
		run: func(ctx context.Context, c *karotz.Client, a Args) (any, error) {
			if a.ID != "" {
				return response(c.SoundInternal(ctx, string(a.ID)))
			}
			return response(c.Sound(ctx, a.URL))
		},
	},
	"sound_control": {
		primary: "cmd",
		run: func(ctx context.Context, c *karotz.Client, a Args) (any, error) {
			return response(c.SoundControl(ctx, a.Cmd))
		},
	},
	"leds": {
		primary: "color",
		run: func(ctx context.Context, c *karotz.Client, a Args) (any, error) {
			return response(c.Leds(ctx, strings.TrimPrefix(a.Color, "#"), a.Pulse))
		},
	},
	"ears": {
		run: func(ctx context.Context, c *karotz.Client, a Args) (any, error) {
			return response(c.Ears(ctx, a.Left, a.Right))
		},
	},
	"ears_reset":  {run: noArgs((*karotz.Client).EarsReset)},
	"ears_random": {run: noArgs((*karotz.Client).EarsRandom)},
	"moods": {
		primary: "id",
		run: func(ctx context.Context, c *karotz.Client, a Args) (any, error) {
			id := 0
			if s := strings.TrimSpace(string(a.ID)); s != "" {
				n, err := strconv.Atoi(s)
				if err != nil {
					return nil, fmt.Errorf("mood id %q is not a number", a.ID)
				}
				id = n
			}
			return response(c.Moods(ctx, id))
		},
	},
	"tts": {
		primary: "text",
		run: func(ctx context.Context, c *karotz.Client, a Args) (any, error) {
			return response(c.TTS(ctx, a.Text, a.Voice, a.NoCache))
		},
	},
	"snapshot": {
		run: func(ctx context.Context, c *karotz.Client, a Args) (any, error) {
			silent := true
			if a.Silent != nil {
				silent = *a.Silent
			}
			return response(c.Snapshot(ctx, silent))
		},
	},
	"snapshot_list":   {run: noArgs((*karotz.Client).SnapshotList)},
	"clear_snapshots": {run: noArgs((*karotz.Client).ClearSnapshots)},
	"clear_cache":     {run: noArgs((*karotz.Client).ClearCache)},
	"rfid_info": {
		primary: "tag",
		run: func(ctx context.Context, c *karotz.Client, a Args) (any, error) {
			return response(c.RFIDInfo(ctx, a.Tag))
		},
	},
	"rfid_delete": {
		primary: "tag",
		run: func(ctx context.Context, c *karotz.Client, a Args) (any, error) {
			return response(c.RFIDDelete(ctx, a.Tag))
		},
	},
	"rfid_list":         {run: noArgs((*karotz.Client).RFIDList)},
	"rfid_list_ext":     {run: noArgs((*karotz.Client).RFIDListExt)},
	"rfid_start_record": {run: noArgs((*karotz.Client).RFIDStartRecord)},
	"rfid_stop_record":  {run: noArgs((*karotz.Client).RFIDStopRecord)},
	"moods_list":        {run: noArgs((*karotz.Client).MoodsList)},
}

// parseArgs decodes payload for cmd.
func parseArgs(cmd command, payload []byte) (Args, error) {
	var a Args
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return a, nil
	}
	if trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &a); err != nil {
			return Args{}, fmt.Errorf("decode arguments: %w", err)
		}
		return a, nil
	}
	value := string(trimmed)
	switch cmd.primary {
	case "url":
		a.URL = value
	case "cmd":
		a.Cmd = value
	case "color":
		a.Color = value
	case "id":
		a.ID = ID(value)
	case "text":
		a.Text = value
	case "tag":
		a.Tag = value
	}
	return a, nil
}

// CommandNames lists the commands the bridge accepts.
func CommandNames() []string {
	names := make([]string, 0, len(commands)+1)
	for name := range commands {
		names = append(names, name)
	}
	names = append(names, captureCommand)
	sort.Strings(names)
	return names
}
