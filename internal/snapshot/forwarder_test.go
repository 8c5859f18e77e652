package snapshot

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/karotzctl/karotz"
)

func testJPEG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

type recordingPublisher struct {
	mu    sync.Mutex
	calls []publishCall
	err   error
	sent  chan struct{}
}

type publishCall struct {
	topic   string
	payload []byte
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{sent: make(chan struct{}, 16)}
}

func (p *recordingPublisher) Publish(topic string, payload []byte) error {
	p.mu.Lock()
	p.calls = append(p.calls, publishCall{topic: topic, payload: payload})
	p.mu.Unlock()
	select {
	case p.sent <- struct{}{}:
	default:
	}
	return p.err
}

func (p *recordingPublisher) published() []publishCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]publishCall(nil), p.calls...)
}

func newDevice(t *testing.T, img []byte, snapshotReply string) *karotz.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/cgi-bin/snapshot":
			_, _ = w.Write([]byte(snapshotReply))
		case "/cgi-bin/snapshot_get":
			if r.URL.Query().Get("filename") != "snapshot_42.jpg" {
				http.NotFound(w, r)
				return
			}
			w.Header().Set("Content-Type", "image/jpeg")
			_, _ = w.Write(img)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	c, err := karotz.NewClient(srv.URL)
	require.NoError(t, err)
	return c
}

const okSnapshot = `{"return":"0","filename":"snapshot_42.jpg","thumb":"snapshot_42.thumb.gif"}`

func TestCapture_PublishesRawImage(t *testing.T) {
	img := testJPEG(t, 64, 48, color.RGBA{0, 128, 0, 255})
	pub := newRecordingPublisher()
	f := New(newDevice(t, img, okSnapshot), pub, Options{Topic: "karotz/snapshot", Silent: true})

	info, err := f.Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "snapshot_42.jpg", info.Filename)
	assert.Equal(t, "snapshot_42.thumb.gif", info.Thumbnail)

	calls := pub.published()
	require.Len(t, calls, 1)
	assert.Equal(t, "karotz/snapshot", calls[0].topic)
	assert.Equal(t, img, calls[0].payload)
}

func TestCapture_StampsImage(t *testing.T) {
	img := testJPEG(t, 320, 240, color.RGBA{255, 255, 255, 255})
	pub := newRecordingPublisher()
	now := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	f := New(newDevice(t, img, okSnapshot), pub, Options{
		Topic: "cam",
		Stamp: true,
		Now:   func() time.Time { return now },
	})

	_, err := f.Capture(context.Background())
	require.NoError(t, err)

	calls := pub.published()
	require.Len(t, calls, 1)
	assert.NotEqual(t, img, calls[0].payload)

	out, err := jpeg.Decode(bytes.NewReader(calls[0].payload))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 320, 240), out.Bounds())

	// The band behind the label darkens the bottom-left corner.
	r, g, b, _ := out.At(1, 238).RGBA()
	assert.Less(t, (r+g+b)/3, uint32(0x8000))
	r, g, b, _ = out.At(318, 2).RGBA()
	assert.Greater(t, (r+g+b)/3, uint32(0xc000))
}

func TestCapture_UnstampableImagePublishedAsIs(t *testing.T) {
	raw := []byte("not a jpeg")
	pub := newRecordingPublisher()
	f := New(newDevice(t, raw, okSnapshot), pub, Options{Topic: "cam", Stamp: true})

	_, err := f.Capture(context.Background())
	require.NoError(t, err)
	calls := pub.published()
	require.Len(t, calls, 1)
	assert.Equal(t, raw, calls[0].payload)
}

func TestCapture_RejectedSnapshotPublishesNothing(t *testing.T) {
	pub := newRecordingPublisher()
	f := New(newDevice(t, nil, `{"return":"1","msg":"camera busy"}`), pub, Options{Topic: "cam"})

	_, err := f.Capture(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, karotz.ErrDeviceRejected))
	assert.Equal(t, "camera busy", karotz.Message(err))
	assert.Empty(t, pub.published())
}

func TestCapture_PublishErrorReturned(t *testing.T) {
	img := testJPEG(t, 8, 8, color.Black)
	pub := newRecordingPublisher()
	pub.err = errors.New("broker down")
	f := New(newDevice(t, img, okSnapshot), pub, Options{Topic: "cam"})

	_, err := f.Capture(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}

func TestRun_TriggerCaptures(t *testing.T) {
	img := testJPEG(t, 8, 8, color.Black)
	pub := newRecordingPublisher()
	f := New(newDevice(t, img, okSnapshot), pub, Options{Topic: "cam"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		f.Run(ctx)
		close(done)
	}()

	f.Trigger()
	select {
	case <-pub.sent:
	case <-time.After(2 * time.Second):
		t.Fatal("triggered capture was not published")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_IntervalCaptures(t *testing.T) {
	img := testJPEG(t, 8, 8, color.Black)
	pub := newRecordingPublisher()
	f := New(newDevice(t, img, okSnapshot), pub, Options{Topic: "cam", Interval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.Run(ctx)

	for i := 0; i < 2; i++ {
		select {
		case <-pub.sent:
		case <-time.After(2 * time.Second):
			t.Fatalf("interval capture %d was not published", i+1)
		}
	}
}

func TestStampLabel(t *testing.T) {
	ts := time.Date(2024, 3, 1, 9, 5, 7, 0, time.UTC)
	assert.Equal(t, "2024-03-01 09:05:07", StampLabel(ts))
}
