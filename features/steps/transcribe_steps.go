//go:build integration

package steps

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"

	"github.com/cucumber/godog"

	apihttp "media-transcription-service/internal/http"
	"media-transcription-service/internal/service/ffmpeg"
	"media-transcription-service/internal/service/stt"
	"media-transcription-service/internal/service/transcription"
)

// mockFFmpeg writes an empty WAV placeholder or fails with a scripted stderr.
type mockFFmpeg struct {
	stderr string
}

func (m *mockFFmpeg) Extract(_ context.Context, src, dst string) error {
	if m.stderr != "" {
		return &ffmpeg.ExitError{Err: fmt.Errorf("exit status 1"), Stderr: m.stderr}
	}
	return os.WriteFile(dst, nil, 0o644)
}

// namedTranscriber answers with its method and the audio file it was given.
type namedTranscriber struct {
	method stt.Method
}

func (n namedTranscriber) Transcribe(_ context.Context, audioPath string) (string, error) {
	return fmt.Sprintf("%s: %s", n.method, filepath.Base(audioPath)), nil
}

type backend struct {
	svc *transcription.Service
}

func (b backend) Ready() bool { return true }

func (b backend) Service() (*transcription.Service, error) { return b.svc, nil }

// transcribeContext holds test state for transcribe scenarios
type transcribeContext struct {
	workDir  string
	ffmpeg   *mockFFmpeg
	router   http.Handler
	response *httptest.ResponseRecorder
	body     map[string]string
}

// SharedTranscribeContext is reset before each scenario via Before hook
var SharedTranscribeContext *transcribeContext

func getTranscribeContext() *transcribeContext {
	return SharedTranscribeContext
}

func InitializeTranscribeScenario(ctx *godog.ScenarioContext) {
	ctx.Before(func(c context.Context, sc *godog.Scenario) (context.Context, error) {
		dir, err := os.MkdirTemp("", "transcribe-feature-")
		if err != nil {
			return c, err
		}
		SharedTranscribeContext = &transcribeContext{
			workDir: dir,
			ffmpeg:  &mockFFmpeg{},
		}
		return c, nil
	})

	ctx.After(func(c context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		if tc := getTranscribeContext(); tc != nil {
			os.RemoveAll(tc.workDir)
		}
		return c, nil
	})

	ctx.Step(`^the transcription service is running$`, theServiceIsRunning)
	ctx.Step(`^ffmpeg fails with "([^"]*)"$`, ffmpegFailsWith)
	ctx.Step(`^I upload "([^"]*)" with content "([^"]*)"$`, iUpload)
	ctx.Step(`^I upload "([^"]*)" with content "([^"]*)" using method "([^"]*)"$`, iUploadWithMethod)
	ctx.Step(`^the response status is (\d+)$`, theResponseStatusIs)
	ctx.Step(`^the response has error "([^"]*)"$`, theResponseHasError)
	ctx.Step(`^the response has transcription "([^"]*)"$`, theResponseHasTranscription)
	ctx.Step(`^the work directory is empty$`, theWorkDirectoryIsEmpty)
}

func theServiceIsRunning() error {
	tc := getTranscribeContext()
	svc := transcription.New(tc.ffmpeg,
		transcription.WithWorkDir(tc.workDir),
		transcription.WithTranscriber(stt.MethodWhisper, namedTranscriber{method: stt.MethodWhisper}),
		transcription.WithTranscriber(stt.MethodVosk, namedTranscriber{method: stt.MethodVosk}),
	)
	tc.router = apihttp.NewRouter(backend{svc: svc}, 0)
	return nil
}

func ffmpegFailsWith(stderr string) error {
	getTranscribeContext().ffmpeg.stderr = stderr
	return nil
}

func iUpload(filename, content string) error {
	return upload(filename, content, "")
}

func iUploadWithMethod(filename, content, method string) error {
	return upload(filename, content, method)
}

func upload(filename, content, method string) error {
	tc := getTranscribeContext()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return err
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		return err
	}
	if method != "" {
		if err := mw.WriteField("method", method); err != nil {
			return err
		}
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req := httptest.NewRequest(http.MethodPost, "/transcribe/", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	tc.response = httptest.NewRecorder()
	tc.router.ServeHTTP(tc.response, req)

	tc.body = nil
	return json.Unmarshal(tc.response.Body.Bytes(), &tc.body)
}

func theResponseStatusIs(status int) error {
	if got := getTranscribeContext().response.Code; got != status {
		return fmt.Errorf("expected status %d, got %d", status, got)
	}
	return nil
}

func theResponseHasError(msg string) error {
	return expectField("error", msg)
}

func theResponseHasTranscription(text string) error {
	return expectField("transcription", text)
}

func expectField(key, want string) error {
	body := getTranscribeContext().body
	if len(body) != 1 {
		return fmt.Errorf("expected a single-key body, got %v", body)
	}
	if got, ok := body[key]; !ok || got != want {
		return fmt.Errorf("expected %s=%q, got %v", key, want, body)
	}
	return nil
}

func theWorkDirectoryIsEmpty() error {
	entries, err := os.ReadDir(getTranscribeContext().workDir)
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		return fmt.Errorf("expected no temp files, found %d (first: %s)", len(entries), entries[0].Name())
	}
	return nil
}
