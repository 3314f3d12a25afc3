package router

import (
	"net/http"

	canvasHandler "giftletter/internal/canvas"
	"giftletter/internal/canvas/service"
	"giftletter/internal/upload"
	"giftletter/middleware"
	"giftletter/socket"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func Setup(svc *service.GiftService, uploads *upload.Store, hub *socket.Hub, secret []byte) http.Handler {
	mux := http.NewServeMux()
	auth := middleware.AuthMiddleware(secret)

	// WebSocket
	wsHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		giftID := r.Context().Value(middleware.GiftIDKey).(string)
		socket.ServeWs(hub, w, r, giftID)
	})
	mux.Handle("GET /ws", auth(wsHandler))

	// REST API
	h := canvasHandler.NewCanvasHandler(svc, uploads)

	mux.HandleFunc("POST /api/gifts", h.CreateGift)
	mux.HandleFunc("GET /api/gifts/{id}/canvas", h.GetCanvas)
	mux.HandleFunc("GET /api/gifts/{id}/status", h.GetStatus)
	mux.Handle("PUT /api/gifts/{id}/canvas", auth(http.HandlerFunc(h.ReplaceCanvas)))
	mux.Handle("DELETE /api/gifts/{id}", auth(http.HandlerFunc(h.DeleteGift)))
	mux.Handle("POST /api/gifts/{id}/items", auth(http.HandlerFunc(h.AddItem)))
	mux.Handle("PATCH /api/gifts/{id}/items/{itemId}/position", auth(http.HandlerFunc(h.MoveItem)))
	mux.Handle("PATCH /api/gifts/{id}/items/{itemId}", auth(http.HandlerFunc(h.UpdateItem)))
	mux.Handle("DELETE /api/gifts/{id}/items/{itemId}", auth(http.HandlerFunc(h.DeleteItem)))
	mux.Handle("POST /api/gifts/{id}/photos", auth(http.HandlerFunc(h.AddPhoto)))
	mux.Handle("POST /api/gifts/{id}/voice", auth(http.HandlerFunc(h.AddVoice)))
	mux.Handle("POST /api/gifts/{id}/doodles", auth(http.HandlerFunc(h.AddDoodle)))
	mux.Handle("POST /api/gifts/{id}/uploads", auth(http.HandlerFunc(h.Upload)))
	mux.HandleFunc("GET /blobs/{id}/{filename}", h.ServeBlob)

	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	return middleware.CORSMiddleware(mux)
}
