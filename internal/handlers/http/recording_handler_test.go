package http

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"streamcast/internal/core/domain"
	"streamcast/internal/core/ports"
	"streamcast/internal/infrastructure/repositories/memory"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// flakyStore wraps a working store and can simulate the backend being
// unreachable.
type flakyStore struct {
	ports.RecordingStore
	down bool
}

func (f *flakyStore) Ping(ctx context.Context) error {
	if f.down {
		return domain.ErrStoreUnavailable
	}
	return f.RecordingStore.Ping(ctx)
}

// stubTranscoder re-emits the input upper-wrapped with a marker, or
// fails mid-stream after writing a partial body.
type stubTranscoder struct {
	failMidStream bool
}

func (s *stubTranscoder) Transcode(ctx context.Context, src io.Reader, w io.Writer, preset domain.PresetName) error {
	return s.run(src, w, "video:"+string(preset)+":")
}

func (s *stubTranscoder) TranscodeAudio(ctx context.Context, src io.Reader, w io.Writer) error {
	return s.run(src, w, "audio:")
}

func (s *stubTranscoder) run(src io.Reader, w io.Writer, marker string) error {
	if _, err := w.Write([]byte(marker)); err != nil {
		return err
	}
	if s.failMidStream {
		return errors.New("encoder crashed")
	}
	_, err := io.Copy(w, src)
	return err
}

type testEnv struct {
	router *gin.Engine
	store  *flakyStore
	trans  *stubTranscoder
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &testEnv{
		store: &flakyStore{RecordingStore: memory.NewMemoryRecordingStore(0)},
		trans: &stubTranscoder{},
	}
	handler := NewRecordingHandler(env.store, env.trans, nil, zap.NewNop().Sugar())

	env.router = gin.New()
	handler.SetupRoutes(env.router.Group("/api"))
	return env
}

func multipartBody(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func (e *testEnv) upload(t *testing.T, filename string, content []byte) domain.Recording {
	t.Helper()
	body, contentType := multipartBody(t, "file", filename, content)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/api/recordings", body)
	req.Header.Set("Content-Type", contentType)
	e.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	rec, err := e.store.Get(context.Background(), lastID(t, e.store.RecordingStore))
	require.NoError(t, err)
	return *rec
}

func lastID(t *testing.T, store ports.RecordingStore) domain.RecordingID {
	t.Helper()
	list, err := store.List(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, list)
	return list[len(list)-1].ID
}

func TestUploadReturnsMetadata(t *testing.T) {
	env := newEnv(t)

	body, contentType := multipartBody(t, "file", "clip.webm", []byte("payload"))
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/api/recordings", body)
	req.Header.Set("Content-Type", contentType)
	env.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"filename":"clip.webm"`)
	assert.Contains(t, w.Body.String(), `"length":7`)
}

func TestUploadWithoutFileIs400(t *testing.T) {
	env := newEnv(t)

	body, contentType := multipartBody(t, "wrongfield", "clip.webm", []byte("payload"))
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/api/recordings", body)
	req.Header.Set("Content-Type", contentType)
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStoreDownIs503(t *testing.T) {
	env := newEnv(t)
	rec := env.upload(t, "clip.webm", []byte("payload"))
	env.store.down = true

	cases := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/recordings"},
		{http.MethodGet, "/api/recordings/" + string(rec.ID)},
		{http.MethodDelete, "/api/recordings/" + string(rec.ID)},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(tc.method, tc.path, nil)
		env.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, "%s %s", tc.method, tc.path)
	}
}

func TestListRecordings(t *testing.T) {
	env := newEnv(t)
	env.upload(t, "a.webm", []byte("aaa"))
	env.upload(t, "b.webm", []byte("bbbb"))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/recordings", nil)
	env.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "a.webm")
	assert.Contains(t, w.Body.String(), "b.webm")
}

func TestDownloadOriginalBytes(t *testing.T) {
	env := newEnv(t)
	rec := env.upload(t, "clip.webm", []byte("original-bytes"))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/recordings/"+string(rec.ID), nil)
	env.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "original-bytes", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "clip.webm")
	assert.Equal(t, "14", w.Header().Get("Content-Length"))
}

func TestDownloadTranscodedVideo(t *testing.T) {
	env := newEnv(t)
	rec := env.upload(t, "clip.webm", []byte("bytes"))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/recordings/"+string(rec.ID)+"?quality=low", nil)
	env.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "video/webm", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "clip_low.webm")
	assert.Equal(t, "video:low:bytes", w.Body.String())
}

func TestDownloadAudioExtraction(t *testing.T) {
	env := newEnv(t)
	rec := env.upload(t, "clip.webm", []byte("bytes"))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/recordings/"+string(rec.ID)+"?quality=audio", nil)
	env.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "audio/mpeg", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "clip_audio.mp3")
	assert.Equal(t, "audio:bytes", w.Body.String())
}

func TestUnknownQualityRejectedBeforeStore(t *testing.T) {
	env := newEnv(t)
	rec := env.upload(t, "clip.webm", []byte("bytes"))
	env.store.down = true // would 503 if the store were touched first

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/recordings/"+string(rec.ID)+"?quality=4k", nil)
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMalformedIDIs400(t *testing.T) {
	env := newEnv(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/recordings/not-a-uuid", nil)
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodDelete, "/api/recordings/not-a-uuid", nil)
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUnknownRecordingIs404(t *testing.T) {
	env := newEnv(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/recordings/0f8fad5b-d9cb-469f-a165-70867728950e", nil)
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTranscodeFailureAfterHeadersTruncatesBody(t *testing.T) {
	env := newEnv(t)
	rec := env.upload(t, "clip.webm", []byte("bytes"))
	env.trans.failMidStream = true

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/recordings/"+string(rec.ID)+"?quality=medium", nil)
	env.router.ServeHTTP(w, req)

	// Status was already committed; only the body is cut short.
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "video:medium:", w.Body.String())
}

func TestDeleteTwice(t *testing.T) {
	env := newEnv(t)
	rec := env.upload(t, "clip.webm", []byte("bytes"))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodDelete, "/api/recordings/"+string(rec.ID), nil)
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodDelete, "/api/recordings/"+string(rec.ID), nil)
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
