package daemon

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gekkofs/gekkofs/internal/gkfslog"
	"github.com/gekkofs/gekkofs/pkg/chunkstore"
	"github.com/gekkofs/gekkofs/pkg/distributor"
	"github.com/gekkofs/gekkofs/pkg/metadata"
)

// Server is one storage-node daemon process: an HTTP listener
// fronting a metadata store and a chunk store, reachable at the
// /gkfs/v1 endpoints registered below.
type Server struct {
	cfg     Config
	httpSrv *http.Server
	log     *gkfslog.Logger
}

// NewServer builds a Server serving meta and chunks under cfg. The
// worker pool is sized by cfg.NumWorkers, default DefaultNumWorkers.
func NewServer(cfg Config, meta *metadata.Store, chunks *chunkstore.Store, log *gkfslog.Logger) *Server {
	numWorkers := cfg.NumWorkers
	if numWorkers <= 0 {
		numWorkers = DefaultNumWorkers
	}
	numHosts := cfg.NumHosts
	if numHosts == 0 {
		numHosts = 1
	}
	pool := NewWorkerPool(numWorkers)
	metaOps := NewMetadataOps(meta, chunks)
	dataOps := NewDataOps(chunks, pool, distributor.NewHashDistributor(numHosts))
	h := NewHandlers(metaOps, dataOps, cfg, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/gkfs/v1/metadata/create", h.Create)
	mux.HandleFunc("/gkfs/v1/metadata/stat", h.Stat)
	mux.HandleFunc("/gkfs/v1/metadata/remove", h.Remove)
	mux.HandleFunc("/gkfs/v1/metadata/update", h.Update)
	mux.HandleFunc("/gkfs/v1/metadata/update-size", h.UpdateSize)
	mux.HandleFunc("/gkfs/v1/metadata/size", h.GetSize)
	mux.HandleFunc("/gkfs/v1/metadata/decr-size", h.DecreaseSize)
	mux.HandleFunc("/gkfs/v1/metadata/dirents", h.Dirents)
	mux.HandleFunc("/gkfs/v1/metadata/symlink", h.Symlink)
	mux.HandleFunc("/gkfs/v1/data/write", h.Write)
	mux.HandleFunc("/gkfs/v1/data/read", h.Read)
	mux.HandleFunc("/gkfs/v1/data/truncate", h.Truncate)
	mux.HandleFunc("/gkfs/v1/data/chunk-stat", h.ChunkStat)
	mux.HandleFunc("/gkfs/v1/config", h.FSConfig)

	return &Server{
		cfg: cfg,
		httpSrv: &http.Server{
			Addr:    cfg.ListenAddr,
			Handler: mux,
		},
		log: log,
	}
}

// ListenAndServe starts the daemon, blocking until the listener
// fails or Shutdown is called, in which case it returns nil.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.httpSrv.Addr)
	if err != nil {
		return err
	}
	s.log.Info("daemon listening on %s (rootdir=%s, metadir=%s)", ln.Addr(), s.cfg.RootDir, s.cfg.MetaDirOrDefault())
	err = s.httpSrv.Serve(ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Addr returns the address the server is configured to listen on.
func (s *Server) Addr() string { return s.httpSrv.Addr }

// Shutdown gracefully stops the server, waiting up to timeout for
// in-flight requests (chunk writes in particular) to complete.
func (s *Server) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.httpSrv.Shutdown(ctx)
}
