package router

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"giftletter/internal/canvas/model"
	"giftletter/internal/canvas/repository"
	"giftletter/internal/canvas/service"
	"giftletter/internal/compose"
	"giftletter/internal/upload"
	"giftletter/middleware"
	"giftletter/pkg/kv"
	"giftletter/socket"
)

var secret = []byte("router-secret")

type api struct {
	t      *testing.T
	server *httptest.Server
	svc    *service.GiftService
}

func newAPI(t *testing.T) *api {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	store := kv.NewMemory()
	uploads := upload.NewStore(store, upload.Options{BaseURL: "https://gifts.example.com", MaxBytes: 1 << 16, RPS: 100, Burst: 100})
	hub := socket.NewHub(nil)
	svc := service.NewGiftService(repository.NewSnapshotRepository(store), uploads, hub, service.Options{
		SaveDelay:     20 * time.Millisecond,
		PublicBaseURL: "https://gifts.example.com",
		IssueToken:    middleware.TokenIssuer(secret),
	})
	hub.Canvas = svc
	go hub.Run(ctx)

	server := httptest.NewServer(Setup(svc, uploads, hub, secret))
	t.Cleanup(server.Close)
	return &api{t: t, server: server, svc: svc}
}

func (a *api) do(method, path, token, contentType string, body []byte) *http.Response {
	a.t.Helper()
	req, err := http.NewRequest(method, a.server.URL+path, bytes.NewReader(body))
	require.NoError(a.t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(a.t, err)
	a.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (a *api) json(method, path, token string, v any) *http.Response {
	a.t.Helper()
	body, err := json.Marshal(v)
	require.NoError(a.t, err)
	return a.do(method, path, token, "application/json", body)
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func multipartFile(t *testing.T, field, filename string, data []byte) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return buf.Bytes(), mw.FormDataContentType()
}

func TestGiftLifecycle(t *testing.T) {
	a := newAPI(t)

	resp := a.do(http.MethodPost, "/api/gifts", "", "", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	gift := decode[model.Gift](t, resp)
	require.NotEmpty(t, gift.Token)
	assert.Equal(t, "https://gifts.example.com/"+gift.ID, gift.Link)
	base := "/api/gifts/" + gift.ID

	resp = a.json(http.MethodPost, base+"/items", gift.Token, model.AddItemRequest{
		Type: model.ItemNote, Content: "Happy birthday", Color: "yellow", Position: &model.Position{X: 10, Y: 10},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	note := decode[model.ItemResponse](t, resp).Item

	resp = a.json(http.MethodPatch, base+"/items/"+note.ID+"/position", gift.Token, model.MoveItemRequest{Position: model.Position{X: 50, Y: 80}})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = a.json(http.MethodPatch, base+"/items/"+note.ID, gift.Token, model.UpdateItemRequest{Field: "content", Value: "Happy birthday!"})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = a.json(http.MethodPatch, base+"/items/"+note.ID, gift.Token, model.UpdateItemRequest{Field: "caption", Value: "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	require.Eventually(t, func() bool {
		items, err := a.svc.Repo.Load(context.Background(), gift.ID)
		return err == nil && len(items) == 1 && items[0].Content == "Happy birthday!"
	}, time.Second, 10*time.Millisecond)

	resp = a.do(http.MethodGet, base+"/canvas", "", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	canvas := decode[model.CanvasResponse](t, resp)
	require.Len(t, canvas.Items, 1)
	assert.Equal(t, model.Position{X: 50, Y: 80}, canvas.Items[0].Position)
	assert.Equal(t, "yellow", canvas.Items[0].Color)

	require.Eventually(t, func() bool {
		resp := a.do(http.MethodGet, base+"/status", "", "", nil)
		return resp.StatusCode == http.StatusOK && decode[map[string]any](t, resp)["label"] == "Saved"
	}, time.Second, 10*time.Millisecond)

	resp = a.do(http.MethodDelete, base+"/items/"+note.ID, gift.Token, "", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = a.do(http.MethodDelete, base, gift.Token, "", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = a.do(http.MethodGet, base+"/canvas", "", "", nil)
	assert.Empty(t, decode[model.CanvasResponse](t, resp).Items)
}

func TestEditorRoutesNeedMatchingToken(t *testing.T) {
	a := newAPI(t)
	gift := decode[model.Gift](t, a.do(http.MethodPost, "/api/gifts", "", "", nil))
	other := decode[model.Gift](t, a.do(http.MethodPost, "/api/gifts", "", "", nil))

	body := model.AddItemRequest{Type: model.ItemNote, Color: "pink"}
	assert.Equal(t, http.StatusUnauthorized, a.json(http.MethodPost, "/api/gifts/"+gift.ID+"/items", "", body).StatusCode)
	assert.Equal(t, http.StatusForbidden, a.json(http.MethodPost, "/api/gifts/"+gift.ID+"/items", other.Token, body).StatusCode)
	assert.Equal(t, http.StatusBadRequest, a.json(http.MethodPost, "/api/gifts/"+gift.ID+"/items", gift.Token, model.AddItemRequest{Type: "sticker"}).StatusCode)
}

func TestReplaceCanvas(t *testing.T) {
	a := newAPI(t)
	gift := decode[model.Gift](t, a.do(http.MethodPost, "/api/gifts", "", "", nil))
	base := "/api/gifts/" + gift.ID

	items := []model.LetterItem{{ID: "a", Type: model.ItemSpotify, Content: "https://open.spotify.com/track/1"}}
	resp := a.json(http.MethodPut, base+"/canvas", gift.Token, model.CanvasResponse{Items: items})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	stored, err := a.svc.Repo.Load(context.Background(), gift.ID)
	require.NoError(t, err)
	assert.Equal(t, items, stored)

	resp = a.do(http.MethodPut, base+"/canvas", gift.Token, "application/json", []byte(`{"items":[{"id":"b","type":"sticker"}]}`))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = a.do(http.MethodPut, base+"/canvas", gift.Token, "application/json", []byte(`{}`))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDialogRoutes(t *testing.T) {
	a := newAPI(t)
	gift := decode[model.Gift](t, a.do(http.MethodPost, "/api/gifts", "", "", nil))
	base := "/api/gifts/" + gift.ID

	// photo from a picked file, inlined
	img, err := compose.Render(4, 4, nil)
	require.NoError(t, err)
	var pngBuf bytes.Buffer
	require.NoError(t, png.Encode(&pngBuf, img))
	body, ct := multipartFile(t, "file", "me.png", pngBuf.Bytes())
	resp := a.do(http.MethodPost, base+"/photos", gift.Token, ct, body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	photo := decode[model.ItemResponse](t, resp).Item
	assert.Equal(t, model.ItemPhoto, photo.Type)
	assert.True(t, strings.HasPrefix(photo.Content, "data:image/png;base64,"))
	require.NotNil(t, photo.Caption)

	// camera frame, re-encoded as JPEG
	resp = a.do(http.MethodPost, base+"/photos?source=camera", gift.Token, "image/png", pngBuf.Bytes())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.True(t, strings.HasPrefix(decode[model.ItemResponse](t, resp).Item.Content, "data:image/jpeg;base64,"))

	// voice note, uploaded and served back
	resp = a.do(http.MethodPost, base+"/voice", gift.Token, "audio/wav", []byte("RIFF\x00\x00\x00\x00WAVEfmt "))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	voice := decode[model.ItemResponse](t, resp).Item
	assert.Equal(t, model.ItemVoice, voice.Type)
	prefix := "https://gifts.example.com/blobs/" + gift.ID + "/voice-"
	require.True(t, strings.HasPrefix(voice.Content, prefix), voice.Content)

	blob := a.do(http.MethodGet, strings.TrimPrefix(voice.Content, "https://gifts.example.com"), "", "", nil)
	require.Equal(t, http.StatusOK, blob.StatusCode)
	assert.True(t, strings.HasPrefix(blob.Header.Get("Content-Type"), "audio/"), blob.Header.Get("Content-Type"))

	// doodle
	resp = a.json(http.MethodPost, base+"/doodles", gift.Token, DoodleBody{Strokes: []compose.Stroke{{Points: []compose.Point{{X: 1, Y: 1}, {X: 20, Y: 20}}}}})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, model.ItemDoodle, decode[model.ItemResponse](t, resp).Item.Type)

	resp = a.json(http.MethodPost, base+"/doodles", gift.Token, DoodleBody{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	require.Eventually(t, func() bool {
		items, err := a.svc.Repo.Load(context.Background(), gift.ID)
		return err == nil && len(items) == 4
	}, time.Second, 10*time.Millisecond)
}

type DoodleBody struct {
	Strokes []compose.Stroke `json:"strokes"`
}

func TestUploadRoute(t *testing.T) {
	a := newAPI(t)
	gift := decode[model.Gift](t, a.do(http.MethodPost, "/api/gifts", "", "", nil))

	body, ct := multipartFile(t, "file", "song.mp3", []byte("ID3 data"))
	resp := a.do(http.MethodPost, "/api/gifts/"+gift.ID+"/uploads", gift.Token, ct, body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	url := decode[model.UploadResponse](t, resp).URL
	assert.Equal(t, "https://gifts.example.com/blobs/"+gift.ID+"/song.mp3", url)

	body, ct = multipartFile(t, "file", "big.bin", bytes.Repeat([]byte("x"), 1<<17))
	// over MaxBytes, under the form limit: rejected by the upload store
	resp = a.do(http.MethodPost, "/api/gifts/"+gift.ID+"/uploads", gift.Token, ct, body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)

	assert.Equal(t, http.StatusNotFound, a.do(http.MethodGet, "/blobs/"+gift.ID+"/nope.mp3", "", "", nil).StatusCode)
}

func TestOperationalRoutes(t *testing.T) {
	a := newAPI(t)
	resp := a.do(http.MethodGet, "/healthz", "", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = a.do(http.MethodGet, "/metrics", "", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = a.do(http.MethodOptions, "/api/gifts", "", "", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}
