package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AltairaLabs/InterviewKit/runtime/interview"
	"github.com/AltairaLabs/InterviewKit/runtime/recorder"
)

// fakeDevice plays the candidate's browser: speech capture, synthesis and
// voice activity share one lock so overlap can be detected as it happens.
type fakeDevice struct {
	mu         sync.Mutex
	supported  bool
	listening  bool
	speaking   bool
	overlaps   int
	resets     int
	spoken     []string
	manualPlay bool

	transcripts chan string
	signals     chan SpeechSignal
	noVoice     chan bool
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		supported:   true,
		transcripts: make(chan string, 16),
		signals:     make(chan SpeechSignal, 16),
		noVoice:     make(chan bool, 16),
	}
}

func (d *fakeDevice) Supported() bool { return d.supported }

func (d *fakeDevice) StartListening(context.Context, bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.speaking {
		d.overlaps++
	}
	d.listening = true
	return nil
}

func (d *fakeDevice) StopListening(context.Context) error {
	d.mu.Lock()
	d.listening = false
	d.mu.Unlock()
	return nil
}

func (d *fakeDevice) ResetTranscript() {
	d.mu.Lock()
	d.resets++
	d.mu.Unlock()
}

func (d *fakeDevice) Transcripts() <-chan string { return d.transcripts }

func (d *fakeDevice) Speak(_ context.Context, text string) error {
	d.mu.Lock()
	if d.listening {
		d.overlaps++
	}
	d.speaking = true
	d.spoken = append(d.spoken, text)
	manual := d.manualPlay
	d.mu.Unlock()

	d.signals <- SpeechStarted
	if !manual {
		go d.finishSpeaking()
	}
	return nil
}

func (d *fakeDevice) finishSpeaking() {
	d.mu.Lock()
	was := d.speaking
	d.speaking = false
	d.mu.Unlock()
	if was {
		d.signals <- SpeechStopped
	}
}

func (d *fakeDevice) StopSpeaking(context.Context) error {
	d.mu.Lock()
	d.speaking = false
	d.mu.Unlock()
	return nil
}

func (d *fakeDevice) Signals() <-chan SpeechSignal { return d.signals }

func (d *fakeDevice) NoVoice() <-chan bool { return d.noVoice }

func (d *fakeDevice) isListening() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.listening
}

func (d *fakeDevice) spokenCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.spoken)
}

func (d *fakeDevice) overlapCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.overlaps
}

type fakeRecorder struct {
	startErr error
	started  atomic.Bool
	stops    atomic.Int32
	ended    chan struct{}
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{ended: make(chan struct{})}
}

func (r *fakeRecorder) ValidateAndStart(context.Context) error {
	if r.startErr != nil {
		return r.startErr
	}
	r.started.Store(true)
	return nil
}

func (r *fakeRecorder) Stop() *recorder.Pending {
	r.stops.Add(1)
	if !r.started.Load() {
		return nil
	}
	return recorder.Resolved(&recorder.Artifact{Data: []byte("bundle"), ContentType: "application/x-tar"})
}

func (r *fakeRecorder) Ended() <-chan struct{} { return r.ended }

type fakeDialogue struct {
	mu        sync.Mutex
	questions []string
	err       error
	histories [][]interview.Turn
	calls     int
}

func (f *fakeDialogue) NextQuestion(_ context.Context, _ interview.JobContext, history []interview.Turn) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.histories = append(f.histories, history)
	if f.err != nil {
		return "", f.err
	}
	if len(f.questions) == 0 {
		return "", nil
	}
	q := f.questions[0]
	f.questions = f.questions[1:]
	return q, nil
}

func (f *fakeDialogue) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *fakeDialogue) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeClock struct {
	mu       sync.Mutex
	duration time.Duration
	starts   int
	stopped  bool
	expired  chan struct{}
	once     sync.Once
}

func newFakeClock() *fakeClock {
	return &fakeClock{expired: make(chan struct{})}
}

func (c *fakeClock) Start(d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.starts++
	c.duration = d
	return nil
}

func (c *fakeClock) Stop() {
	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()
}

func (c *fakeClock) Expired() <-chan struct{} { return c.expired }

func (c *fakeClock) fire() {
	c.once.Do(func() { close(c.expired) })
}

func (c *fakeClock) startedWith() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.duration
}

func (c *fakeClock) startCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.starts
}

// memStore and memRecords back a real finalize.Pipeline.
type memStore struct {
	uploads atomic.Int32
	failing atomic.Bool
}

func (s *memStore) Upload(_ context.Context, key, _ string, _ []byte) (string, error) {
	s.uploads.Add(1)
	time.Sleep(5 * time.Millisecond)
	if s.failing.Load() {
		return "", errors.New("storage unavailable")
	}
	return "https://storage.example.com/" + key, nil
}

type memRecords struct {
	mu      sync.Mutex
	creates atomic.Int32
	records []*interview.InterviewRecord
}

func (r *memRecords) Create(_ context.Context, rec *interview.InterviewRecord) (string, error) {
	r.creates.Add(1)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return "rec-" + rec.SessionID, nil
}

func (r *memRecords) Update(context.Context, string, map[string]any) error { return nil }

func (r *memRecords) last() *interview.InterviewRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.records) == 0 {
		return nil
	}
	return r.records[len(r.records)-1]
}

type fakeNavigator struct {
	navigations atomic.Int32
}

func (n *fakeNavigator) Navigate(context.Context, string) error {
	n.navigations.Add(1)
	return nil
}
