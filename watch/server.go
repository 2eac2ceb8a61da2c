package watch

import (
	"net/http"

	"github.com/fsxd/fsxd/vfs"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Mount registers GET /watch on router, upgrading to a websocket
// connection and registering it with hub. Non-upgrade requests get 426,
// an invalid path query parameter gets 400.
func Mount(router chi.Router, hub *Hub, log *logrus.Entry) {
	router.Get("/watch", func(w http.ResponseWriter, r *http.Request) {
		if path := r.URL.Query().Get("path"); path != "" && path[0] != '/' {
			http.Error(w, `{"code":"EINVAL","message":"path must start with /"}`, http.StatusBadRequest)
			return
		}
		if !websocket.IsWebSocketUpgrade(r) {
			http.Error(w, "upgrade required", http.StatusUpgradeRequired)
			return
		}

		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.WithError(err).Warn("watch: upgrade failed")
			return
		}

		conn := newConnection(hub.NewConnectionID(), ws, hub, log)
		hub.Register(conn)

		if path := r.URL.Query().Get("path"); path != "" {
			recursive := r.URL.Query().Get("recursive") == "true"
			hub.Subscribe(conn, path, recursive)
			conn.send(subscribedMessage{Type: "subscribed", Path: path})
		}

		go conn.readLoop()
	})
}

// AsNotifier adapts hub to vfs.Notifier explicitly (Hub already satisfies
// the interface; server.New passes the hub to vfs.WithNotifier directly).
func AsNotifier(hub *Hub) vfs.Notifier { return hub }
