// Command gkfsd is the GekkoFS storage-node daemon: it serves the
// metadata and data RPC endpoints over plain HTTP, backed by a
// goleveldb metadata store and a chunked on-disk data store under
// --rootdir.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gekkofs/gekkofs/internal/client"
	"github.com/gekkofs/gekkofs/internal/gkfslog"
	"github.com/gekkofs/gekkofs/pkg/chunkstore"
	"github.com/gekkofs/gekkofs/pkg/daemon"
	"github.com/gekkofs/gekkofs/pkg/hostsfile"
	"github.com/gekkofs/gekkofs/pkg/metadata"
	"github.com/gekkofs/gekkofs/pkg/sorted/leveldbkv"
)

var (
	mountDir    = flag.String("mountdir", "", "mount directory this cluster is bound to, reported via fs_config (required)")
	rootDir     = flag.String("rootdir", "", "local directory holding this daemon's chunk data (required)")
	metaDir     = flag.String("metadir", "", "local directory holding this daemon's metadata database (default: rootdir)")
	listenAddr  = flag.String("listen", "", "address to listen on, host:port (required; gkfsd does not pick an ephemeral port since the hosts file must advertise a fixed, dialable endpoint)")
	hostsPath   = flag.String("hosts-file", "./gkfs_hosts.txt", "hosts file to append this daemon's endpoint to on startup and remove it from on shutdown")
	rpcProtocol = flag.String("rpc-protocol", "tcp", "RPC transport: tcp, verbs, psm2 (only tcp is implemented)")
	autoSM      = flag.Bool("auto-sm", false, "accepted for CLI compatibility; shared-memory intra-node transport is not implemented")
	numWorkers  = flag.Int("numworkers", daemon.DefaultNumWorkers, "worker pool size for per-chunk subtask fan-out")
	numHosts    = flag.Uint("numhosts", 0, "expected cluster size, reported via fs_config (required)")
	versionFlag = flag.Bool("version", false, "print version and exit")
)

const version = "0.1.0"

func usage() {
	fmt.Fprint(os.Stderr, "usage: gkfsd -mountdir <dir> -rootdir <dir> -listen <addr> -numhosts <n>\n")
	flag.PrintDefaults()
	os.Exit(1)
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if *versionFlag {
		fmt.Println("gkfsd", version)
		return
	}
	if *mountDir == "" || *rootDir == "" || *numHosts == 0 || *listenAddr == "" {
		usage()
	}
	if *rpcProtocol != "tcp" {
		fmt.Fprintf(os.Stderr, "gkfsd: rpc-protocol %q not implemented, only tcp is supported\n", *rpcProtocol)
		os.Exit(1)
	}

	logger := gkfslog.NewFromEnv()
	fds := client.NewInternalFDs()
	if fd, ok := logger.Fd(); ok {
		if !fds.Register(int(fd), "LIBGKFS_LOG_OUTPUT") {
			fmt.Fprintf(os.Stderr, "gkfsd: log output fd %d already registered\n", fd)
			os.Exit(1)
		}
		defer fds.Release(int(fd))
	}

	cfg := daemon.Config{
		MountDir:    *mountDir,
		RootDir:     *rootDir,
		MetaDir:     *metaDir,
		ListenAddr:  *listenAddr,
		HostsFile:   *hostsPath,
		RPCProtocol: *rpcProtocol,
		AutoSM:      *autoSM,
		NumWorkers:  *numWorkers,
		UID:         uint32(os.Getuid()),
		GID:         uint32(os.Getgid()),
		NumHosts:    uint32(*numHosts),
		Fields:      metadata.DefaultFieldConfig,
	}

	kv, err := leveldbkv.Open(filepath.Join(cfg.MetaDirOrDefault(), "metadata"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "gkfsd: opening metadata store: %v\n", err)
		os.Exit(1)
	}
	store := metadata.NewStore(kv, cfg.Fields)

	chunkRoot := filepath.Join(cfg.RootDir, "data", "chunks")
	if err := os.MkdirAll(chunkRoot, 0750); err != nil {
		fmt.Fprintf(os.Stderr, "gkfsd: creating chunk directory: %v\n", err)
		os.Exit(1)
	}
	chunks, err := chunkstore.Open(chunkRoot)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gkfsd: opening chunk store: %v\n", err)
		os.Exit(1)
	}

	srv := daemon.NewServer(cfg, store, chunks, logger)

	hostname, _ := os.Hostname()
	entry := hostsfile.Entry{Hostname: hostname, Endpoint: "http://" + srv.Addr()}
	if err := hostsfile.Append(cfg.HostsFile, entry); err != nil {
		fmt.Fprintf(os.Stderr, "gkfsd: appending to hosts file: %v\n", err)
		os.Exit(1)
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	serveDone := make(chan error, 1)
	go func() {
		serveDone <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveDone:
		if err != nil {
			logger.Error("daemon exited: %v", err)
		}
	case sig := <-sigc:
		logger.Info("signal %s received, shutting down", sig)
		if err := srv.Shutdown(10 * time.Second); err != nil {
			logger.Error("shutdown: %v", err)
		}
		<-serveDone
	}

	if err := hostsfile.Remove(cfg.HostsFile, entry); err != nil {
		logger.Error("removing hosts file entry: %v", err)
	}
	logger.Info("gkfsd exiting")
}
