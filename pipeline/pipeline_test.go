package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/yeti47/mocap/client"
	"github.com/yeti47/mocap/config"
	filemanagement "github.com/yeti47/mocap/file-management"
	"github.com/yeti47/mocap/ledger"
	motiondetection "github.com/yeti47/mocap/motion-detection"
	postprocessing "github.com/yeti47/mocap/post-processing"
	"github.com/yeti47/mocap/recording"
	"github.com/yeti47/mocap/retention"
	"github.com/yeti47/mocap/uploading"
)

// listSource hands out its frames once and then reports failed reads
type listSource struct {
	mu     sync.Mutex
	frames []int
	pos    int
}

func (s *listSource) ReadFrame() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos >= len(s.frames) {
		return 0, false
	}
	f := s.frames[s.pos]
	s.pos++
	return f, true
}

func (s *listSource) Close() error { return nil }

// batchDetector emits a clip for every n frames and flushes what is left
type batchDetector struct {
	n       int
	pending []int
}

func (d *batchDetector) Observe(frame int) *motiondetection.Clip[int] {
	d.pending = append(d.pending, frame)
	if len(d.pending) < d.n {
		return nil
	}
	return d.Flush()
}

func (d *batchDetector) Flush() *motiondetection.Clip[int] {
	if len(d.pending) == 0 {
		return nil
	}
	clip := &motiondetection.Clip[int]{ID: uuid.New(), Frames: d.pending, StartedAt: time.Now(), EndedAt: time.Now()}
	d.pending = nil
	return clip
}

func (d *batchDetector) Reset() {
	d.pending = nil
}

func (d *batchDetector) State() motiondetection.State {
	if len(d.pending) > 0 {
		return motiondetection.StateRecording
	}
	return motiondetection.StateIdle
}

type lineEncoder struct{}

func (lineEncoder) Encode(path string, frames []int) error {
	var sb strings.Builder
	for _, f := range frames {
		fmt.Fprintf(&sb, "%d\n", f)
	}
	return os.WriteFile(path, []byte(sb.String()), 0644)
}

func (lineEncoder) FileExtension() string { return ".mp4" }

type releaseCounter struct {
	mu    sync.Mutex
	count int
}

func (r *releaseCounter) release(int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count++
}

func (r *releaseCounter) get() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

type pipelineFixture struct {
	root     string
	outDir   string
	store    *client.MemoryRemoteStore
	ledger   *ledger.SQLiteLedger
	released *releaseCounter
}

func setupPipelineTest(t *testing.T, frames []int, n int, keepLocal bool, scheduler func(*client.MemoryRemoteStore) *retention.Scheduler) (*Pipeline[int], *pipelineFixture, func()) {
	t.Helper()

	root := t.TempDir()
	fixture := &pipelineFixture{
		root:     root,
		outDir:   filepath.Join(root, "out"),
		store:    client.NewMemoryRemoteStore("/cam"),
		released: &releaseCounter{},
	}

	testDB, err := ledger.NewInMemoryDB()
	if err != nil {
		t.Fatalf("Failed to create in-memory database: %v", err)
	}
	fixture.ledger, err = ledger.NewSQLiteLedger(testDB)
	if err != nil {
		testDB.Close()
		t.Fatalf("Failed to create ledger: %v", err)
	}

	assembler := postprocessing.NewAssembler[int](
		lineEncoder{},
		nil,
		config.NewStaticSettingsProvider(postprocessing.PostProcessingSettings{
			LocalRoot: root,
			OutputDir: fixture.outDir,
			FrameRate: 30,
		}),
		fixture.released.release,
		nil,
	)

	uploadQueue := uploading.NewUploadQueue(
		fixture.store.Factory(),
		uploading.NewUploader(root, nil),
		uploading.UploadQueueSettings{MaxRetries: 1, RetryDelay: time.Millisecond, RequestTimeout: time.Second, DrainTimeout: 5 * time.Second},
		nil,
	)

	var sched *retention.Scheduler
	if scheduler != nil {
		sched = scheduler(fixture.store)
	}

	p := NewPipeline[int](
		&listSource{frames: frames},
		&batchDetector{n: n},
		config.NewStaticSettingsProvider(recording.RecordingSettings{ReadRetryDelay: time.Millisecond}),
		assembler,
		uploadQueue,
		filemanagement.NewLocalFileTracker(fixture.outDir, nil),
		fixture.ledger,
		sched,
		fixture.released.release,
		config.NewStaticSettingsProvider(PipelineSettings{KeepLocalClips: keepLocal, AssemblyDrainTimeout: 5 * time.Second}),
		nil,
	)

	cleanup := func() {
		p.Stop()
		testDB.Close()
	}
	return p, fixture, cleanup
}

func frameRange(n int) []int {
	frames := make([]int, n)
	for i := range frames {
		frames[i] = i + 1
	}
	return frames
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPipeline_CapturesAssemblesAndUploads(t *testing.T) {
	p, fixture, cleanup := setupPipelineTest(t, frameRange(30), 10, false, nil)
	defer cleanup()

	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitFor(t, "three uploads", func() bool { return p.Stats().Uploaded == 3 })

	if err := p.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	remote := fixture.store.Files()
	if len(remote) != 3 {
		t.Fatalf("Expected 3 remote clips, got %v", remote)
	}
	for _, path := range remote {
		if !strings.HasPrefix(path, "/cam/out/output.") || !strings.HasSuffix(path, ".mp4") {
			t.Errorf("Unexpected remote path %s", path)
		}
	}

	counts, err := fixture.ledger.Counts(context.Background())
	if err != nil {
		t.Fatalf("Counts failed: %v", err)
	}
	if counts[ledger.StatusUploaded] != 3 {
		t.Errorf("Expected 3 uploaded clips in the ledger, got %v", counts)
	}

	entries, _ := os.ReadDir(fixture.outDir)
	if len(entries) != 0 {
		t.Errorf("Expected local clips removed after upload, %d left", len(entries))
	}
	if fixture.released.get() != 30 {
		t.Errorf("Expected every frame released once, got %d", fixture.released.get())
	}

	stats := p.Stats()
	if stats.Running || stats.FramesRead != 30 || stats.ClipsAssembled != 3 {
		t.Errorf("Unexpected stats %+v", stats)
	}
}

func TestPipeline_StopFlushesUnfinishedEpisode(t *testing.T) {
	p, fixture, cleanup := setupPipelineTest(t, frameRange(5), 10, true, nil)
	defer cleanup()

	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitFor(t, "frames read", func() bool { return p.Stats().FramesRead == 5 })

	if err := p.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	stats := p.Stats()
	if stats.ClipsEmitted != 1 || stats.Uploaded != 1 {
		t.Errorf("Expected the partial episode to be assembled and uploaded, got %+v", stats)
	}
	if len(fixture.store.Files()) != 1 {
		t.Errorf("Expected one remote clip, got %v", fixture.store.Files())
	}

	entries, _ := os.ReadDir(fixture.outDir)
	if len(entries) != 1 {
		t.Errorf("Expected the local clip to be kept, got %d files", len(entries))
	}
}

func TestPipeline_RequeuesPendingClips(t *testing.T) {
	p, fixture, cleanup := setupPipelineTest(t, nil, 10, true, nil)
	defer cleanup()

	ctx := context.Background()
	existing := filepath.Join(fixture.outDir, "output.2024.06.15.12.00.00.mp4")
	if err := os.MkdirAll(fixture.outDir, 0755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	if err := os.WriteFile(existing, []byte("1\n"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	kept := &ledger.ClipRecord{ID: uuid.New(), Path: existing, RelativePath: "out/" + filepath.Base(existing), Frames: 1, CreatedAt: time.Now()}
	missing := &ledger.ClipRecord{ID: uuid.New(), Path: filepath.Join(fixture.outDir, "gone.mp4"), RelativePath: "out/gone.mp4", Frames: 1, CreatedAt: time.Now()}
	for _, r := range []*ledger.ClipRecord{kept, missing} {
		if err := fixture.ledger.Add(ctx, r); err != nil {
			t.Fatalf("Failed to add clip: %v", err)
		}
	}

	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitFor(t, "requeued upload", func() bool { return p.Stats().Uploaded == 1 })
	p.Stop()

	if !fixture.store.Exists("/cam/out/output.2024.06.15.12.00.00.mp4") {
		t.Error("Expected the pending clip to be uploaded")
	}

	counts, _ := fixture.ledger.Counts(ctx)
	if counts[ledger.StatusUploaded] != 1 || counts[ledger.StatusFailed] != 1 || counts[ledger.StatusPending] != 0 {
		t.Errorf("Unexpected ledger counts %v", counts)
	}
}

func TestPipeline_AbandonedUploadStaysPending(t *testing.T) {
	p, fixture, cleanup := setupPipelineTest(t, nil, 10, true, nil)
	defer cleanup()

	ctx := context.Background()
	record := &ledger.ClipRecord{ID: uuid.New(), Path: filepath.Join(fixture.outDir, "a.mp4"), RelativePath: "out/a.mp4", Frames: 1, CreatedAt: time.Now()}
	if err := fixture.ledger.Add(ctx, record); err != nil {
		t.Fatalf("Failed to add clip: %v", err)
	}

	p.uploadCallbacks().OnAbandoned(&uploading.UploadJob{ClipID: record.ID, FilePath: record.Path, LastError: fmt.Errorf("connection reset")})

	pending, err := fixture.ledger.ListPending(ctx)
	if err != nil {
		t.Fatalf("ListPending failed: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != record.ID {
		t.Errorf("Expected the abandoned clip to stay pending, got %v", pending)
	}
	if p.Stats().Abandoned != 1 {
		t.Errorf("Expected one abandoned upload, got %d", p.Stats().Abandoned)
	}
}

func TestPipeline_RunsRetention(t *testing.T) {
	oldFile := "/cam/archive/old.mp4"
	newScheduler := func(store *client.MemoryRemoteStore) *retention.Scheduler {
		store.PutFile(oldFile, []byte("x"), time.Now().Add(-30*24*time.Hour))
		settings := config.NewStaticSettingsProvider(retention.RetentionSettings{Root: "/cam", AgeLimit: 7 * 24 * time.Hour, Interval: time.Hour})
		return retention.NewScheduler(store.Factory(), settings, nil, nil)
	}

	p, fixture, cleanup := setupPipelineTest(t, nil, 10, true, newScheduler)
	defer cleanup()

	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitFor(t, "retention pass", func() bool { return p.Stats().LastPurge != nil })

	if purge := p.Stats().LastPurge; purge.Deleted != 1 || purge.Error != "" {
		t.Errorf("Unexpected purge summary %+v", purge)
	}
	if fixture.store.Exists(oldFile) {
		t.Error("Expected the old remote file to be purged")
	}
}

func TestPipeline_StartTwice(t *testing.T) {
	p, _, cleanup := setupPipelineTest(t, nil, 10, true, nil)
	defer cleanup()

	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := p.Start(); err == nil {
		t.Error("Expected error when starting a running pipeline")
	}
	if !p.IsRunning() {
		t.Error("Expected pipeline to be running")
	}
	if err := p.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := p.Stop(); err != nil {
		t.Errorf("Second Stop should be a no-op, got %v", err)
	}
}

func TestPipelineSettingsProvider(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.KeepLocalClips = false
	cfg.DrainTimeoutSeconds = 12

	settings := NewPipelineSettingsProvider(config.NewStaticSettingsProvider(cfg)).GetSettings()
	if settings.KeepLocalClips || settings.AssemblyDrainTimeout != 12*time.Second {
		t.Errorf("Unexpected settings %+v", settings)
	}
}
