package transcription

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"media-transcription-service/internal/models"
	"media-transcription-service/internal/observability/logging"
	"media-transcription-service/internal/service/ffmpeg"
	"media-transcription-service/internal/service/stt"
	"media-transcription-service/internal/service/stt/mock"
	"media-transcription-service/internal/service/stt/stream"
)

// fakeAudio writes a short mono WAV to dst. With err set it leaves a
// truncated header behind at dst before failing, the way an interrupted
// ffmpeg run does.
type fakeAudio struct {
	err          error
	samples      int
	calls        int
	srcExists    bool
	wrotePartial bool
	src, dst     string
}

func (f *fakeAudio) Extract(_ context.Context, src, dst string) error {
	f.calls++
	f.src, f.dst = src, dst
	_, statErr := os.Stat(src)
	f.srcExists = statErr == nil
	if f.err != nil {
		if err := os.WriteFile(dst, []byte("RIFF\x24\x00"), 0o644); err != nil {
			return err
		}
		f.wrotePartial = true
		return f.err
	}

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	n := f.samples
	if n == 0 {
		n = 40
	}
	enc := wav.NewEncoder(out, 16000, 16, 1, 1)
	if err := enc.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: 16000},
		Data:           make([]int, n),
		SourceBitDepth: 16,
	}); err != nil {
		return err
	}
	return enc.Close()
}

type fakeTranscriber struct {
	text string
	err  error
	path string
}

func (f *fakeTranscriber) Transcribe(_ context.Context, audioPath string) (string, error) {
	f.path = audioPath
	return f.text, f.err
}

type fakeExtractor struct {
	text string
	err  error
	body string
}

func (f *fakeExtractor) Extract(_ context.Context, path string) (string, error) {
	b, _ := os.ReadFile(path)
	f.body = string(b)
	return f.text, f.err
}

type recordingPublisher struct {
	mu        sync.Mutex
	completed []models.TranscriptionCompleted
	failed    []models.TranscriptionFailed
	keys      []string
}

func (p *recordingPublisher) PublishCompleted(_ context.Context, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, key)
	p.completed = append(p.completed, event.(models.TranscriptionCompleted))
	return nil
}

func (p *recordingPublisher) PublishFailed(_ context.Context, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, key)
	p.failed = append(p.failed, event.(models.TranscriptionFailed))
	return nil
}

func upload(name, body string) Upload {
	return Upload{Filename: name, Body: strings.NewReader(body)}
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, e := range entries {
		t.Errorf("expected temp files removed, found %s", e.Name())
	}
}

func TestService_UnsupportedTypeWritesNothing(t *testing.T) {
	dir := t.TempDir()
	pub := &recordingPublisher{}
	audio := &fakeAudio{}
	svc := New(audio, WithWorkDir(dir), WithPublisher(pub))

	for _, name := range []string{"notes.txt", "archive.tar.gz", "noext", "clip.mp4.exe"} {
		_, err := svc.Process(context.Background(), upload(name, "data"), "")
		if err == nil {
			t.Fatalf("%s: expected error", name)
		}
		if err.Error() != MsgUnsupportedType {
			t.Errorf("%s: expected %q, got %q", name, MsgUnsupportedType, err.Error())
		}
		if KindOf(err) != KindUnsupportedType {
			t.Errorf("%s: expected kind %s, got %s", name, KindUnsupportedType, KindOf(err))
		}
	}
	if audio.calls != 0 {
		t.Errorf("expected no ffmpeg calls, got %d", audio.calls)
	}
	assertEmptyDir(t, dir)
	if len(pub.failed) != 4 {
		t.Errorf("expected 4 failed events, got %d", len(pub.failed))
	}
}

func TestService_MediaDefaultsToWhisper(t *testing.T) {
	dir := t.TempDir()
	audio := &fakeAudio{}
	whisper := &fakeTranscriber{text: "hello from whisper"}
	vosk := &fakeTranscriber{text: "hello from vosk"}
	pub := &recordingPublisher{}
	svc := New(audio,
		WithWorkDir(dir),
		WithTranscriber(stt.MethodWhisper, whisper),
		WithTranscriber(stt.MethodVosk, vosk),
		WithPublisher(pub),
	)

	ctx := logging.ContextWithRequestID(context.Background(), "req-1")
	got, err := svc.Process(ctx, upload("talk.MP4", "video bytes"), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "hello from whisper" {
		t.Errorf("expected whisper text, got %q", got)
	}
	if vosk.path != "" {
		t.Error("expected vosk not to be called")
	}

	wantSrc := filepath.Join(dir, "temp_talk.MP4")
	wantDst := filepath.Join(dir, "temp_talk.wav")
	if audio.src != wantSrc || audio.dst != wantDst {
		t.Errorf("expected ffmpeg %s -> %s, got %s -> %s", wantSrc, wantDst, audio.src, audio.dst)
	}
	if !audio.srcExists {
		t.Error("expected upload persisted before ffmpeg ran")
	}
	if whisper.path != wantDst {
		t.Errorf("expected backend to read %s, got %s", wantDst, whisper.path)
	}
	assertEmptyDir(t, dir)

	if len(pub.completed) != 1 {
		t.Fatalf("expected 1 completed event, got %d", len(pub.completed))
	}
	ev := pub.completed[0]
	if ev.RequestID != "req-1" || pub.keys[0] != "req-1" {
		t.Errorf("expected request id req-1, got %s (key %s)", ev.RequestID, pub.keys[0])
	}
	if ev.Category != "media" || ev.Method != "whisper" || ev.Text != "hello from whisper" {
		t.Errorf("unexpected event: %+v", ev)
	}
}

func TestService_VoskStreamsAndConcatenates(t *testing.T) {
	dir := t.TempDir()
	factory := &mock.Factory{}
	vosk := stream.New(stt.MethodVosk, factory, stream.WithChunkFrames(4))
	svc := New(&fakeAudio{samples: 40}, WithWorkDir(dir), WithTranscriber(stt.MethodVosk, vosk))

	got, err := svc.Process(context.Background(), upload("lecture.mkv", "mkv"), "vosk")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "the quick brown fox jumps over the lazy dog"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}

	opened := factory.Opened()
	if len(opened) != 1 {
		t.Fatalf("expected one stream, got %d", len(opened))
	}
	if opened[0].SampleRate() != 16000 {
		t.Errorf("expected 16000 Hz stream, got %d", opened[0].SampleRate())
	}
	if opened[0].Chunks() != 10 {
		t.Errorf("expected 10 chunks, got %d", opened[0].Chunks())
	}
	assertEmptyDir(t, dir)
}

func TestService_UnknownMethod(t *testing.T) {
	dir := t.TempDir()
	audio := &fakeAudio{}
	svc := New(audio, WithWorkDir(dir), WithTranscriber(stt.MethodWhisper, &fakeTranscriber{}))

	for _, method := range []string{"deepspeech", "google"} {
		_, err := svc.Process(context.Background(), upload("a.avi", "x"), method)
		if KindOf(err) != KindUnsupportedMethod {
			t.Fatalf("%s: expected unsupported method, got %v", method, err)
		}
		if err.Error() != "Unsupported transcription method: "+method {
			t.Errorf("unexpected message %q", err.Error())
		}
	}
	if audio.calls != 0 {
		t.Errorf("expected no ffmpeg calls, got %d", audio.calls)
	}
	assertEmptyDir(t, dir)
}

func TestService_FFmpegFailure(t *testing.T) {
	dir := t.TempDir()
	audio := &fakeAudio{err: &ffmpeg.ExitError{Err: errors.New("exit status 1"), Stderr: "Invalid data found when processing input\n"}}
	tr := &fakeTranscriber{text: "unused"}
	pub := &recordingPublisher{}
	svc := New(audio, WithWorkDir(dir), WithTranscriber(stt.MethodWhisper, tr), WithPublisher(pub))

	_, err := svc.Process(context.Background(), upload("broken.mp4", "garbage"), "whisper")
	if KindOf(err) != KindToolFailure {
		t.Fatalf("expected tool failure, got %v", err)
	}
	want := "FFmpeg failed: Invalid data found when processing input\n"
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}
	if tr.path != "" {
		t.Error("expected backend not to run")
	}
	if !audio.wrotePartial || audio.dst != AudioPath(TempPath(dir, "broken.mp4")) {
		t.Fatalf("expected a partial audio file at the derived path, got %q", audio.dst)
	}
	assertEmptyDir(t, dir)

	if len(pub.failed) != 1 || pub.failed[0].ErrorKind != string(KindToolFailure) {
		t.Errorf("expected one tool_failure event, got %+v", pub.failed)
	}
}

func TestService_BackendFailure(t *testing.T) {
	dir := t.TempDir()
	factory := &mock.Factory{FailAfter: 2}
	vosk := stream.New(stt.MethodVosk, factory, stream.WithChunkFrames(4))
	svc := New(&fakeAudio{}, WithWorkDir(dir), WithTranscriber(stt.MethodVosk, vosk))

	_, err := svc.Process(context.Background(), upload("talk.mp4", "v"), "vosk")
	if KindOf(err) != KindParseFailure {
		t.Fatalf("expected parse failure, got %v", err)
	}
	if !errors.Is(err, mock.ErrInjected) {
		t.Errorf("expected wrapped ErrInjected, got %v", err)
	}
	assertEmptyDir(t, dir)
}

func TestService_DocumentDispatch(t *testing.T) {
	dir := t.TempDir()
	pdf := &fakeExtractor{text: "page one\n"}
	audio := &fakeAudio{}
	svc := New(audio, WithWorkDir(dir), WithDocumentExtractor(CategoryPDF, pdf))

	got, err := svc.Process(context.Background(), upload("Report.PDF", "%PDF-1.4"), "vosk")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "page one\n" {
		t.Errorf("expected extractor text, got %q", got)
	}
	if pdf.body != "%PDF-1.4" {
		t.Errorf("expected extractor to read the full upload, got %q", pdf.body)
	}
	if audio.calls != 0 {
		t.Error("expected no ffmpeg call for a document")
	}
	assertEmptyDir(t, dir)
}

func TestService_DocumentParseFailure(t *testing.T) {
	dir := t.TempDir()
	svc := New(&fakeAudio{}, WithWorkDir(dir))

	_, err := svc.Process(context.Background(), upload("slides.pptx", "not a zip"), "")
	if KindOf(err) != KindParseFailure {
		t.Fatalf("expected parse failure, got %v", err)
	}
	assertEmptyDir(t, dir)
}

func TestService_RealDOCX(t *testing.T) {
	dir := t.TempDir()
	var body strings.Builder
	zw := zip.NewWriter(&body)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	w.Write([]byte(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		`<w:p><w:r><w:t>Line one</w:t></w:r></w:p><w:p><w:r><w:t>Line two</w:t></w:r></w:p></w:body></w:document>`))
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	svc := New(&fakeAudio{}, WithWorkDir(dir))
	got, err := svc.Process(context.Background(), upload("memo.docx", body.String()), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Line one\nLine two" {
		t.Errorf("unexpected text %q", got)
	}
	assertEmptyDir(t, dir)
}

func TestService_StorageFailure(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "does-not-exist")
	svc := New(&fakeAudio{}, WithWorkDir(missing), WithTranscriber(stt.MethodWhisper, &fakeTranscriber{}))

	_, err := svc.Process(context.Background(), upload("clip.mp4", "x"), "")
	if KindOf(err) != KindStorage {
		t.Fatalf("expected storage error, got %v", err)
	}
}

func TestService_PathSeparatorsInFilenameStayInWorkDir(t *testing.T) {
	dir := t.TempDir()
	pdf := &fakeExtractor{text: "ok"}
	svc := New(&fakeAudio{}, WithWorkDir(dir), WithDocumentExtractor(CategoryPDF, pdf))

	if _, err := svc.Process(context.Background(), upload("../../etc/doc.pdf", "x"), ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pdf.body != "x" {
		t.Errorf("expected upload stored under work dir, got body %q", pdf.body)
	}
	assertEmptyDir(t, dir)
}

func TestService_Methods(t *testing.T) {
	svc := New(&fakeAudio{},
		WithTranscriber(stt.MethodVosk, &fakeTranscriber{}),
		WithTranscriber(stt.MethodWhisper, &fakeTranscriber{}),
		WithTranscriber(stt.MethodGoogle, nil),
	)
	got := strings.Join(svc.Methods(), ",")
	if got != "vosk,whisper" {
		t.Errorf("expected vosk,whisper, got %s", got)
	}
}

// Two requests with the same filename share one temp path.
func TestTempPath_IdenticalFilenamesShareAPath(t *testing.T) {
	a := TempPath("/work", "video.mp4")
	b := TempPath("/work", "uploads/video.mp4")
	if a != b {
		t.Errorf("expected identical temp paths, got %s and %s", a, b)
	}
	if a != filepath.Join("/work", "temp_video.mp4") {
		t.Errorf("unexpected temp path %s", a)
	}
}

// gatedExtractor holds its first call until release is closed, then reads
// whatever is at path by then.
type gatedExtractor struct {
	mu      sync.Mutex
	calls   int
	entered chan struct{}
	release chan struct{}
}

func (g *gatedExtractor) Extract(_ context.Context, path string) (string, error) {
	g.mu.Lock()
	first := g.calls == 0
	g.calls++
	g.mu.Unlock()

	if first {
		close(g.entered)
		<-g.release
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Concurrent uploads with one filename collide on the temp file: the second
// request overwrites the first one's upload and removes it when done.
func TestService_ConcurrentIdenticalFilenamesCollide(t *testing.T) {
	dir := t.TempDir()
	gate := &gatedExtractor{entered: make(chan struct{}), release: make(chan struct{})}
	svc := New(&fakeAudio{}, WithWorkDir(dir), WithDocumentExtractor(CategoryPDF, gate))

	type outcome struct {
		text string
		err  error
	}
	first := make(chan outcome, 1)
	go func() {
		text, err := svc.Process(context.Background(), upload("report.pdf", "first upload"), "")
		first <- outcome{text, err}
	}()
	<-gate.entered

	text, err := svc.Process(context.Background(), upload("report.pdf", "second upload"), "")
	if err != nil {
		t.Fatalf("second request: unexpected error: %v", err)
	}
	if text != "second upload" {
		t.Errorf("second request: expected its own body, got %q", text)
	}

	close(gate.release)
	got := <-first
	if got.text == "first upload" {
		t.Fatal("expected the first request to lose its temp file to the second")
	}
	if !errors.Is(got.err, os.ErrNotExist) || KindOf(got.err) != KindParseFailure {
		t.Errorf("expected the first request to find its temp file deleted, got %q, %v", got.text, got.err)
	}
	assertEmptyDir(t, dir)
}

func TestAudioPath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"/w/temp_a.mp4", "/w/temp_a.wav"},
		{"/w/temp_a.b.mkv", "/w/temp_a.b.wav"},
		{"temp_x.AVI", "temp_x.wav"},
	}
	for _, tt := range tests {
		if got := AudioPath(tt.in); got != tt.want {
			t.Errorf("AudioPath(%s): expected %s, got %s", tt.in, tt.want, got)
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		want Category
	}{
		{"a.mp4", CategoryMedia},
		{"a.MKV", CategoryMedia},
		{"a.avi", CategoryMedia},
		{"a.docx", CategoryDOCX},
		{"a.PpTx", CategoryPPTX},
		{"a.pdf", CategoryPDF},
		{"a.doc", CategoryUnsupported},
		{"a.pdf.txt", CategoryUnsupported},
		{"", CategoryUnsupported},
	}
	for _, tt := range tests {
		if got := Classify(tt.name); got != tt.want {
			t.Errorf("Classify(%q): expected %s, got %s", tt.name, tt.want, got)
		}
	}
}

func TestErrorKind(t *testing.T) {
	wrapped := errors.Join(errors.New("context"), errParse(errors.New("bad xml")))
	if KindOf(wrapped) != KindParseFailure {
		t.Errorf("expected parse failure through wrapping, got %s", KindOf(wrapped))
	}
	if KindOf(errors.New("plain")) != "" {
		t.Error("expected empty kind for a plain error")
	}

	toolErr := errTool(errors.New("executable file not found"))
	if toolErr.Error() != "FFmpeg failed: executable file not found" {
		t.Errorf("unexpected message %q", toolErr.Error())
	}
}

func TestErrTool_Messages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "stderr kept verbatim",
			err:  &ffmpeg.ExitError{Err: errors.New("exit status 1"), Stderr: "moov atom not found\n"},
			want: "FFmpeg failed: moov atom not found\n",
		},
		{
			name: "killed with empty stderr",
			err:  &ffmpeg.ExitError{Err: errors.New("signal: killed")},
			want: "FFmpeg failed: signal: killed",
		},
		{
			name: "blank stderr",
			err:  &ffmpeg.ExitError{Err: context.Canceled, Stderr: " \n"},
			want: "FFmpeg failed: context canceled",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errTool(tt.err).Error(); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
