// Package server wires the VFS, tiered placement, CAS, RPC, watch and
// tool layers into one chi.Router, the way cmd/fsxd's main assembles a
// running process.
package server

import (
	"net/http"
	"time"

	"github.com/fsxd/fsxd/auth"
	"github.com/fsxd/fsxd/cas"
	"github.com/fsxd/fsxd/refcount"
	"github.com/fsxd/fsxd/rpc"
	"github.com/fsxd/fsxd/tier"
	"github.com/fsxd/fsxd/tools"
	"github.com/fsxd/fsxd/vfs"
	"github.com/fsxd/fsxd/watch"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// Config bundles the tunables cmd/fsxd exposes as flags.
type Config struct {
	TenantRoot         string
	HotMaxSize         int64
	WarmMaxSize        int64
	Promotion          tier.PromotionPolicy
	PromotionThreshold int64
	HeartbeatInterval  time.Duration
	ConnectionTimeout  time.Duration
	AllowAnonymousRead bool
	JWT                auth.Config
}

// Server is the assembled process: every component wired together and
// mounted on a single chi.Router.
type Server struct {
	Router chi.Router
	VFS    *vfs.InodeGraph
	Hub    *watch.Hub
	Tools  *tools.Registry
	Log    *logrus.Entry
	cfg    Config
}

// New builds a Server from cfg, using in-memory reference implementations
// of the hot/warm/cold BlobTiers and the MetadataStore (the pluggable
// persistent-store seam documented in DESIGN.md).
func New(cfg Config, log *logrus.Entry) *Server {
	idx := tier.NewIndex(tier.NewMemoryMetadataStore(), 4096)
	placement := tier.New(idx, tier.NewMemoryBlobTier(), tier.NewMemoryBlobTier(), tier.NewMemoryBlobTier(), tier.Options{
		HotMaxSize: cfg.HotMaxSize, WarmMaxSize: cfg.WarmMaxSize,
		Promotion: cfg.Promotion, PromotionThreshold: cfg.PromotionThreshold,
	})
	store := cas.New(placement, refcount.New())

	hub := watch.NewHub(log.WithField("component", "watch")).WithIntervals(cfg.HeartbeatInterval, cfg.ConnectionTimeout)

	g := vfs.New(cfg.TenantRoot, store, vfs.WithNotifier(hub))

	toolRegistry := tools.NewRegistry(g, tools.Config{AllowAnonymousRead: cfg.AllowAnonymousRead})
	toolRegistry.OnAuthFailure(func(name string, a tools.AuthContext, err *tools.AuthError) {
		log.WithFields(logrus.Fields{"tool": name, "userId": a.UserID, "code": err.Code}).Warn("tool auth failure")
	})

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(requestLogger(log))
	router.Use(authMiddleware(cfg.JWT))

	methodRouter := rpc.NewRouter()
	rpc.RegisterVFSMethods(methodRouter, g)
	rpc.RegisterToolMethods(methodRouter, toolRegistry)
	rpc.Mount(router, methodRouter, g, log.WithField("component", "rpc"))
	watch.Mount(router, hub, log.WithField("component", "watch"))

	return &Server{
		Router: router, VFS: g, Hub: hub, Tools: toolRegistry, Log: log, cfg: cfg,
	}
}

// ListenAndServe starts the HTTP server on addr.
func (s *Server) ListenAndServe(addr string) error {
	s.Log.WithField("addr", addr).Info("fsxd listening")
	return http.ListenAndServe(addr, s.Router)
}
