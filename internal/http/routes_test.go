package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"mri-console/internal/backend"
	"mri-console/internal/classify"
	"mri-console/internal/db"
	"mri-console/internal/help"
	"mri-console/internal/report"
	"mri-console/internal/schemas"
	"mri-console/internal/session"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeBackend struct {
	probs       classify.ProbabilityMap
	predictErr  error
	analytics   schemas.Analytics
	models      []schemas.ModelInfo
	predictions []schemas.PredictionRecord
	listErr     error
	users       map[string]schemas.User
	gotImage    []byte
}

func (f *fakeBackend) Predict(_ context.Context, _, _ string, image io.Reader) (classify.ProbabilityMap, error) {
	f.gotImage, _ = io.ReadAll(image)
	return f.probs, f.predictErr
}
func (f *fakeBackend) Analytics(context.Context) (schemas.Analytics, error) {
	return f.analytics, f.listErr
}
func (f *fakeBackend) Models(context.Context) ([]schemas.ModelInfo, error) {
	return f.models, nil
}
func (f *fakeBackend) Predictions(context.Context, int) ([]schemas.PredictionRecord, error) {
	return f.predictions, nil
}
func (f *fakeBackend) CreateUser(_ context.Context, in schemas.CreateUserRequest) (schemas.User, error) {
	if in.Email == "" || in.FullName == "" || in.Password == "" {
		return schemas.User{}, backend.ErrMissingUserFields
	}
	u := schemas.User{UserID: "u-new", Email: in.Email, FullName: in.FullName, Role: in.Role}
	f.users[u.UserID] = u
	return u, nil
}
func (f *fakeBackend) ListUsers(context.Context) ([]schemas.User, error) {
	out := make([]schemas.User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, u)
	}
	return out, nil
}
func (f *fakeBackend) GetUser(_ context.Context, id string) (schemas.User, error) {
	u, ok := f.users[id]
	if !ok {
		return u, &backend.APIError{Op: "GET /users/" + id, Status: 404, Detail: "User not found"}
	}
	return u, nil
}
func (f *fakeBackend) UpdateUser(_ context.Context, id string, in schemas.UpdateUserRequest) (schemas.User, error) {
	u, err := f.GetUser(context.Background(), id)
	if err != nil {
		return u, err
	}
	if in.Role != nil {
		u.Role = *in.Role
	}
	f.users[id] = u
	return u, nil
}
func (f *fakeBackend) DeleteUser(_ context.Context, id string) error {
	if _, err := f.GetUser(context.Background(), id); err != nil {
		return err
	}
	delete(f.users, id)
	return nil
}

type fakeArchive struct {
	mu      sync.Mutex
	rows    map[string]db.Classification
	reports map[string]db.Report
	insErr  error
}

func newFakeArchive() *fakeArchive {
	return &fakeArchive{rows: map[string]db.Classification{}, reports: map[string]db.Report{}}
}

func (f *fakeArchive) Ping(context.Context) error { return nil }
func (f *fakeArchive) InsertClassification(_ context.Context, c *db.Classification) error {
	if f.insErr != nil {
		return f.insErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[c.ID] = *c
	return nil
}
func (f *fakeArchive) SetImageRef(_ context.Context, id, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.rows[id]
	c.ImageRef.String, c.ImageRef.Valid = ref, true
	f.rows[id] = c
	return nil
}
func (f *fakeArchive) SetReportStatus(_ context.Context, id, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.rows[id]
	c.ReportStatus = status
	f.rows[id] = c
	return nil
}
func (f *fakeArchive) GetClassification(_ context.Context, id string) (db.Classification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.rows[id]
	if !ok {
		return c, db.ErrNotFound
	}
	return c, nil
}
func (f *fakeArchive) ListClassifications(_ context.Context, sid string, _ int) ([]db.Classification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []db.Classification
	for _, c := range f.rows {
		if c.SessionID == sid {
			out = append(out, c)
		}
	}
	return out, nil
}
func (f *fakeArchive) LatestReport(_ context.Context, id string) (db.Report, error) {
	r, ok := f.reports[id]
	if !ok {
		return r, db.ErrNotFound
	}
	return r, nil
}

type fakeBlobs struct {
	scans   map[string][]byte
	objects map[string]any
}

func (f *fakeBlobs) PutScan(_ context.Context, id, _ string, data []byte) (string, error) {
	f.scans[id] = data
	return "s3://b/scans/" + id, nil
}
func (f *fakeBlobs) GetJSON(_ context.Context, ref string, out any) error {
	v, ok := f.objects[ref]
	if !ok {
		return errors.New("no such key")
	}
	b, _ := json.Marshal(v)
	return json.Unmarshal(b, out)
}

type fakeQueue struct {
	ids []string
	err error
}

func (f *fakeQueue) EnqueueReport(_ context.Context, id string) error {
	if f.err != nil {
		return f.err
	}
	f.ids = append(f.ids, id)
	return nil
}

type harness struct {
	backend *fakeBackend
	archive *fakeArchive
	blobs   *fakeBlobs
	queue   *fakeQueue
	srv     *Server
	h       http.Handler
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	center, err := help.Load()
	require.NoError(t, err)
	hs := &harness{
		backend: &fakeBackend{users: map[string]schemas.User{"u1": {UserID: "u1", Email: "a@b.c", Role: "user"}}},
		archive: newFakeArchive(),
		blobs:   &fakeBlobs{scans: map[string][]byte{}, objects: map[string]any{}},
		queue:   &fakeQueue{},
	}
	hs.srv = &Server{
		Backend:  hs.backend,
		Archive:  hs.archive,
		Blobs:    hs.blobs,
		Queue:    hs.queue,
		Sessions: session.NewStore(),
		Help:     center,
		Log:      zap.NewNop(),
		Settings: Settings{APIToken: "admin-token", MaxUploadBytes: 1024, PredictionsLimit: 200},
	}
	hs.h = hs.srv.Routes()
	return hs
}

func (hs *harness) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	hs.h.ServeHTTP(rec, req)
	return rec
}

func uploadRequest(t *testing.T, filename, contentType string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, _ = part.Write(data)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/classify", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestClassify(t *testing.T) {
	hs := newHarness(t)
	require.NoError(t, json.Unmarshal([]byte(`{"MildDemented": 0.02, "ModerateDemented": 0.02, "NonDemented": 0.92, "VeryMildDemented": 0.04}`), &hs.backend.probs))

	rec := hs.do(uploadRequest(t, "brain.png", "image/png", []byte("PNG")))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp schemas.ClassifyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, classify.NonDemented, resp.Result.TopClass)
	assert.InDelta(t, 92.0, resp.Result.ConfidencePercent, 1e-9)
	assert.Equal(t, "No Disease", resp.Formatted.Label)
	assert.Equal(t, "92.0%", resp.Formatted.Confidence)
	assert.Equal(t, "4.0%", resp.Formatted.Scores[classify.VeryMildDemented])
	assert.True(t, session.ValidID(resp.SessionID))
	assert.Equal(t, resp.SessionID, rec.Header().Get(sessionHeader))
	assert.Equal(t, []byte("PNG"), hs.backend.gotImage)

	require.NotEmpty(t, resp.ClassificationID)
	row, err := hs.archive.GetClassification(context.Background(), resp.ClassificationID)
	require.NoError(t, err)
	assert.Equal(t, "brain.png", row.Filename)
	assert.Equal(t, "s3://b/scans/"+resp.ClassificationID, row.ImageRef.String)
	assert.Equal(t, []string{resp.ClassificationID}, hs.queue.ids)

	e, ok := hs.srv.Sessions.Get(resp.SessionID)
	require.True(t, ok)
	assert.Equal(t, resp.Result, e.Result)
}

func TestClassify_ReusesSessionAndReplacesResult(t *testing.T) {
	hs := newHarness(t)
	sid := session.NewID()

	hs.backend.probs = classify.ProbabilityMap{{Class: "A", Probability: 0.5}, {Class: "B", Probability: 0.5}}
	req := uploadRequest(t, "one.jpg", "image/jpeg", []byte("1"))
	req.Header.Set(sessionHeader, sid)
	require.Equal(t, http.StatusOK, hs.do(req).Code)

	hs.backend.probs = classify.ProbabilityMap{{Class: "Unknown", Probability: 0.7}, {Class: classify.NonDemented, Probability: 0.3}}
	req = uploadRequest(t, "two.jpg", "image/jpeg", []byte("2"))
	req.Header.Set(sessionHeader, sid)
	require.Equal(t, http.StatusOK, hs.do(req).Code)

	rec := hs.do(httptest.NewRequest(http.MethodGet, "/sessions/"+sid+"/result", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Entry session.Entry `json:"entry"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "two.jpg", got.Entry.Filename)
	assert.Equal(t, "Unknown", got.Entry.Result.TopClass)
	assert.InDelta(t, 30.0, got.Entry.Result.Scores.NonDemented, 1e-9)

	rec = hs.do(httptest.NewRequest(http.MethodGet, "/sessions/"+sid+"/history", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var hist []historyItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hist))
	require.Len(t, hist, 2)
	for _, h := range hist {
		if h.Filename == "two.jpg" {
			assert.Equal(t, []string{"Unknown", classify.NonDemented}, h.Probabilities.Classes())
		}
	}
}

func TestClassify_EmptyPredictionIsNotStored(t *testing.T) {
	hs := newHarness(t)
	hs.backend.probs = classify.ProbabilityMap{}
	sid := session.NewID()

	req := uploadRequest(t, "brain.png", "image/png", []byte("PNG"))
	req.Header.Set(sessionHeader, sid)
	rec := hs.do(req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "empty prediction from server")
	_, ok := hs.srv.Sessions.Get(sid)
	assert.False(t, ok)
	assert.Empty(t, hs.archive.rows)
	assert.Empty(t, hs.queue.ids)
}

func TestClassify_RejectsBadUploads(t *testing.T) {
	hs := newHarness(t)

	rec := hs.do(uploadRequest(t, "scan.dcm", "application/dicom", []byte("DICM")))
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	rec = hs.do(uploadRequest(t, "big.png", "image/png", bytes.Repeat([]byte("x"), 2048)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/classify", nil)
	rec = hs.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Nil(t, hs.backend.gotImage, "backend must not be called")
}

func TestClassify_BackendErrors(t *testing.T) {
	hs := newHarness(t)

	hs.backend.predictErr = &backend.APIError{Op: "POST /predict", Status: 400, Detail: "Invalid image"}
	rec := hs.do(uploadRequest(t, "a.png", "image/png", []byte("x")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid image"}`, rec.Body.String())

	hs.backend.predictErr = errors.New("connection refused")
	rec = hs.do(uploadRequest(t, "a.png", "image/png", []byte("x")))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestClassify_ArchiveFailureStillAnswers(t *testing.T) {
	hs := newHarness(t)
	hs.archive.insErr = errors.New("db down")
	hs.backend.probs = classify.ProbabilityMap{{Class: classify.MildDemented, Probability: 1}}

	rec := hs.do(uploadRequest(t, "a.png", "image/png", []byte("x")))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp schemas.ClassifyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.ClassificationID)
	assert.Empty(t, hs.queue.ids)
}

func TestSessionResult_Unknown(t *testing.T) {
	hs := newHarness(t)
	rec := hs.do(httptest.NewRequest(http.MethodGet, "/sessions/"+session.NewID()+"/result", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReports(t *testing.T) {
	hs := newHarness(t)
	hs.archive.rows["pending"] = db.Classification{ID: "pending", ReportStatus: db.ReportPending}
	hs.archive.rows["failed"] = db.Classification{ID: "failed", ReportStatus: db.ReportFailed}
	hs.archive.rows["ready"] = db.Classification{ID: "ready", ReportStatus: db.ReportReady}
	hs.archive.reports["ready"] = db.Report{ObjectRef: "s3://b/reports/ready/1.json"}
	hs.blobs.objects["s3://b/reports/ready/1.json"] = report.Report{ScanID: "ready", Label: "Mild"}

	assert.Equal(t, http.StatusNotFound, hs.do(httptest.NewRequest(http.MethodGet, "/reports/nope", nil)).Code)
	assert.Equal(t, http.StatusAccepted, hs.do(httptest.NewRequest(http.MethodGet, "/reports/pending", nil)).Code)
	assert.Equal(t, http.StatusInternalServerError, hs.do(httptest.NewRequest(http.MethodGet, "/reports/failed", nil)).Code)

	rec := hs.do(httptest.NewRequest(http.MethodGet, "/reports/ready", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var rep report.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rep))
	assert.Equal(t, "Mild", rep.Label)
}

func TestReports_Disabled(t *testing.T) {
	hs := newHarness(t)
	hs.srv.Archive = nil
	h := hs.srv.Routes()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reports/x", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestPredictionsAndOverview(t *testing.T) {
	hs := newHarness(t)
	conf := 80.0
	hs.backend.predictions = []schemas.PredictionRecord{
		{PredictionID: "p1", Filename: "alpha.png", PredictedClass: classify.NonDemented, Confidence: &conf},
		{PredictionID: "p2", Filename: "beta.png", PredictedClass: "Moderate"},
	}
	hs.backend.models = []schemas.ModelInfo{{Filename: "cnn.h5", Active: true}}
	total := 2
	hs.backend.analytics = schemas.Analytics{TotalPredictions: total, AvgConfidence: &conf}

	rec := hs.do(httptest.NewRequest(http.MethodGet, "/predictions?q=ALPHA", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var preds predictionsResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &preds))
	assert.Equal(t, 1, preds.Matched)
	assert.Equal(t, "80.0%", preds.Rows[0].Confidence)
	assert.Equal(t, 2, preds.Stats.Total)
	assert.Equal(t, 1, preds.Stats.ModerateDemented)

	rec = hs.do(httptest.NewRequest(http.MethodGet, "/overview", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var ov overviewResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ov))
	assert.Equal(t, 2, ov.Analytics.TotalPredictions)
	assert.Equal(t, "80.0%", ov.Analytics.AvgConfidenceText)
	require.Len(t, ov.Models, 1)
	assert.Equal(t, "cnn", ov.Models[0].Name)

	hs.backend.listErr = errors.New("backend down")
	rec = hs.do(httptest.NewRequest(http.MethodGet, "/overview", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHelp(t *testing.T) {
	hs := newHarness(t)
	rec := hs.do(httptest.NewRequest(http.MethodGet, "/help?q=report", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		FAQ    []help.FAQ   `json:"faq"`
		Guides []help.Guide `json:"guides"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.FAQ)
	assert.NotEmpty(t, body.Guides)
}

func TestUsersRequireToken(t *testing.T) {
	hs := newHarness(t)

	rec := hs.do(httptest.NewRequest(http.MethodGet, "/users", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	assert.Equal(t, http.StatusUnauthorized, hs.do(req).Code)
}

func TestUsersCRUD(t *testing.T) {
	hs := newHarness(t)
	authed := func(method, path, body string) *httptest.ResponseRecorder {
		var r io.Reader
		if body != "" {
			r = bytes.NewBufferString(body)
		}
		req := httptest.NewRequest(method, path, r)
		req.Header.Set("Authorization", "Bearer admin-token")
		return hs.do(req)
	}

	assert.Equal(t, http.StatusOK, authed(http.MethodGet, "/users", "").Code)
	assert.Equal(t, http.StatusBadRequest, authed(http.MethodPost, "/users", `{"email": "x@y.z"}`).Code)
	assert.Equal(t, http.StatusCreated, authed(http.MethodPost, "/users", `{"email": "x@y.z", "full_name": "X", "password": "pw"}`).Code)

	rec := authed(http.MethodPut, "/users/u1", `{"role": "admin"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"role":"admin"`)

	assert.Equal(t, http.StatusBadRequest, authed(http.MethodPut, "/users/u1", `{"email": ""}`).Code)
	assert.Equal(t, http.StatusNotFound, authed(http.MethodGet, "/users/ghost", "").Code)
	assert.Equal(t, http.StatusNoContent, authed(http.MethodDelete, "/users/u1", "").Code)
	assert.Equal(t, http.StatusNotFound, authed(http.MethodDelete, "/users/u1", "").Code)
}

func TestHealthz(t *testing.T) {
	hs := newHarness(t)
	rec := hs.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func classifyOnce(t *testing.T, hs *harness) string {
	t.Helper()
	hs.backend.probs = classify.ProbabilityMap{{Class: classify.MildDemented, Probability: 1}}
	rec := hs.do(uploadRequest(t, "a.png", "image/png", []byte("x")))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp schemas.ClassifyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.ClassificationID)
	return resp.ClassificationID
}

func TestReports_EnqueueFailureMarksFailed(t *testing.T) {
	hs := newHarness(t)
	hs.queue.err = errors.New("redis down")

	id := classifyOnce(t, hs)
	assert.Equal(t, db.ReportFailed, hs.archive.rows[id].ReportStatus)
	for i := 0; i < 3; i++ {
		rec := hs.do(httptest.NewRequest(http.MethodGet, "/reports/"+id, nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	}
}

func TestReports_NoQueueMarksFailed(t *testing.T) {
	hs := newHarness(t)
	hs.srv.Queue = nil
	hs.h = hs.srv.Routes()

	id := classifyOnce(t, hs)
	assert.Equal(t, db.ReportFailed, hs.archive.rows[id].ReportStatus)
	rec := hs.do(httptest.NewRequest(http.MethodGet, "/reports/"+id, nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestReports_QueuedStaysPending(t *testing.T) {
	hs := newHarness(t)
	id := classifyOnce(t, hs)
	assert.Equal(t, db.ReportPending, hs.archive.rows[id].ReportStatus)
	assert.Equal(t, http.StatusAccepted, hs.do(httptest.NewRequest(http.MethodGet, "/reports/"+id, nil)).Code)
}
