package karotz

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	defaultTTSText  = "Bonjour"
	defaultTTSVoice = "margaux"
)

// Status fetches the device status and replaces the cached state with it.
// An empty reply means the rabbit is offline: the cached state is marked
// sleeping and ErrDeviceOffline is returned.
func (c *Client) Status(ctx context.Context) (State, error) {
	return c.fetchStatus(ctx)
}

// Sleep puts the rabbit to sleep.
func (c *Client) Sleep(ctx context.Context) (*Response, error) {
	resp, err := c.callAPI(ctx, "sleep", "")
	if err != nil {
		return nil, err
	}
	c.updateState(func(s *State) { s.Sleep = true })
	return resp, nil
}

// Wakeup wakes the rabbit up without the wake-up sound.
func (c *Client) Wakeup(ctx context.Context) (*Response, error) {
	resp, err := c.callAPI(ctx, "wakeup", "silent=1")
	if err != nil {
		return nil, err
	}
	c.updateState(func(s *State) { s.Sleep = false })
	return resp, nil
}

// Reboot reboots the rabbit.
func (c *Client) Reboot(ctx context.Context) (*Response, error) {
	return c.callAPI(ctx, "reboot", "")
}

// Sound plays the mp3 or m3u at soundURL. The URL is sent as is; callers
// must escape it themselves if needed.
func (c *Client) Sound(ctx context.Context, soundURL string) (*Response, error) {
	return c.callAPI(ctx, "sound", "url="+soundURL)
}

// SoundInternal plays one of the sounds stored on the rabbit.
func (c *Client) SoundInternal(ctx context.Context, id string) (*Response, error) {
	return c.callAPI(ctx, "sound", "id="+id)
}

// SoundControl pauses or stops the current sound. cmd is not validated.
func (c *Client) SoundControl(ctx context.Context, cmd string) (*Response, error) {
	return c.callAPI(ctx, "sound_control", "cmd="+cmd)
}

func (c *Client) SoundControlPause(ctx context.Context) (*Response, error) {
	return c.SoundControl(ctx, SoundPause)
}

func (c *Client) SoundControlQuit(ctx context.Context) (*Response, error) {
	return c.SoundControl(ctx, SoundQuit)
}

// Leds sets the LED color, given as RGB hex such as "FF0000", optionally
// pulsing.
func (c *Client) Leds(ctx context.Context, color string, pulse bool) (*Response, error) {
	var query strings.Builder
	if pulse {
		query.WriteString("pulse=1&")
	}
	query.WriteString("color=")
	query.WriteString(color)
	return c.callAPI(ctx, "leds", query.String())
}

func (c *Client) LedsPulse(ctx context.Context, color string) (*Response, error) {
	return c.Leds(ctx, color, true)
}

func (c *Client) LedsFixed(ctx context.Context, color string) (*Response, error) {
	return c.Leds(ctx, color, false)
}

// Ears moves the ears to the given positions. Positions are not range
// checked.
func (c *Client) Ears(ctx context.Context, left, right int) (*Response, error) {
	query := "left=" + strconv.Itoa(left) + "&right=" + strconv.Itoa(right)
	return c.callAPI(ctx, "ears", query)
}

func (c *Client) EarsReset(ctx context.Context) (*Response, error) {
	return c.callAPI(ctx, "ears_reset", "")
}

// EarsRandom moves the ears to random positions; the reply carries them.
func (c *Client) EarsRandom(ctx context.Context) (*Response, error) {
	return c.callAPI(ctx, "ears_random", "")
}

// Moods triggers mood id. Zero lets the rabbit pick one at random.
func (c *Client) Moods(ctx context.Context, id int) (*Response, error) {
	var query string
	if id != 0 {
		query = "id=" + strconv.Itoa(id)
	}
	return c.callAPI(ctx, "apps/moods", query)
}

func (c *Client) RandomMood(ctx context.Context) (*Response, error) {
	return c.Moods(ctx, 0)
}

// TTS speaks text with the given voice. Empty text and voice fall back to
// "Bonjour" and "margaux". Single quotes are removed from text before it is
// encoded; the rabbit's TTS script does not cope with them.
func (c *Client) TTS(ctx context.Context, text, voice string, noCache bool) (*Response, error) {
	if text == "" {
		text = defaultTTSText
	} else {
		text = encodeComponent(strings.ReplaceAll(text, "'", ""))
	}
	if voice == "" {
		voice = defaultTTSVoice
	} else {
		voice = encodeComponent(voice)
	}
	nocache := "0"
	if noCache {
		nocache = "1"
	}
	query := `text="` + text + `"&voice=` + voice + "&nocache=" + nocache
	return c.callAPI(ctx, "tts", query)
}

// Snapshot takes a picture with the rabbit's camera. The reply names the
// JPEG and its thumbnail.
func (c *Client) Snapshot(ctx context.Context, silent bool) (*Response, error) {
	query := "silent=0"
	if silent {
		query = "silent=1"
	}
	return c.callAPI(ctx, "snapshot", query)
}

// SnapshotURL returns the snapshot_get URL serving the JPEG named filename.
func (c *Client) SnapshotURL(filename string) string {
	return c.endpointURL("snapshot_get", "filename="+filename)
}

// SnapshotThumbnailURL returns the snapshot_get URL serving the GIF
// thumbnail of filename. The rabbit names thumbnails by replacing the first
// ".jpg" with ".thumb.gif".
func (c *Client) SnapshotThumbnailURL(filename string) string {
	return c.SnapshotURL(thumbnailName(filename))
}

func thumbnailName(filename string) string {
	return strings.Replace(filename, ".jpg", ".thumb.gif", 1)
}

// FetchSnapshot downloads the image named filename. It returns the body and
// the content type reported by the rabbit.
func (c *Client) FetchSnapshot(ctx context.Context, filename string) ([]byte, string, error) {
	const endpoint = "snapshot_get"
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.SnapshotURL(filename), nil)
	if err != nil {
		kerr := transportError(endpoint, err)
		c.finish(endpoint, start, kerr)
		return nil, "", kerr
	}
	req.Header.Set("Accept", "image/*")
	req.Header.Set("User-Agent", c.userAgent)
	body, contentType, err := c.readImage(req)
	c.finish(endpoint, start, err)
	if err != nil {
		return nil, "", err
	}
	return body, contentType, nil
}

func (c *Client) SnapshotList(ctx context.Context) (*Response, error) {
	return c.callAPI(ctx, "snapshot_list", "")
}

func (c *Client) ClearSnapshots(ctx context.Context) (*Response, error) {
	return c.callAPI(ctx, "clear_snapshots", "")
}

// ClearCache empties the TTS cache.
func (c *Client) ClearCache(ctx context.Context) (*Response, error) {
	return c.callAPI(ctx, "clear_cache", "")
}

// RFIDInfo describes the RFID tag with the given id.
func (c *Client) RFIDInfo(ctx context.Context, tag string) (*Response, error) {
	return c.callAPI(ctx, "rfid_info", "tag="+encodeComponent(tag))
}

func (c *Client) RFIDList(ctx context.Context) (*Response, error) {
	return c.callAPI(ctx, "rfid_list", "")
}

func (c *Client) RFIDListExt(ctx context.Context) (*Response, error) {
	return c.callAPI(ctx, "rfid_list_ext", "")
}

func (c *Client) RFIDDelete(ctx context.Context, tag string) (*Response, error) {
	return c.callAPI(ctx, "rfid_delete", "tag="+encodeComponent(tag))
}

// RFIDStartRecord puts the rabbit in tag learning mode.
func (c *Client) RFIDStartRecord(ctx context.Context) (*Response, error) {
	return c.callAPI(ctx, "rfid_start_record", "")
}

func (c *Client) RFIDStopRecord(ctx context.Context) (*Response, error) {
	return c.callAPI(ctx, "rfid_stop_record", "")
}

func (c *Client) MoodsList(ctx context.Context) (*Response, error) {
	return c.callAPI(ctx, "moods_list", "")
}
