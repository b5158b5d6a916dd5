// Command gkfs-mount mounts a GekkoFS namespace onto a local
// directory via FUSE. Every syscall against the mountpoint reaches
// this process through the kernel's FUSE channel, so applications
// need no preloading or relinking. See internal/client/fuseops's
// package doc for how that shapes path classification.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"

	"github.com/gekkofs/gekkofs/internal/client"
	"github.com/gekkofs/gekkofs/internal/client/fuseops"
	"github.com/gekkofs/gekkofs/internal/client/rpcclient"
	"github.com/gekkofs/gekkofs/internal/gkfslog"
	"github.com/gekkofs/gekkofs/pkg/distributor"
	"github.com/gekkofs/gekkofs/pkg/hostsfile"
	"github.com/gekkofs/gekkofs/pkg/metadata"
)

var (
	hostsFile = flag.String("hosts-file", os.Getenv("LIBGKFS_HOSTS_FILE"), "path to the hosts file listing running gkfsd daemons (or $LIBGKFS_HOSTS_FILE)")
	timeout   = flag.Duration("rpc-timeout", 0, "per-request RPC timeout, 0 for none")
)

func usage() {
	fmt.Fprint(os.Stderr, "usage: gkfs-mount [opts] <mountpoint>\n")
	flag.PrintDefaults()
	os.Exit(2)
}

func main() {
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() != 1 {
		usage()
	}
	mountDir := flag.Arg(0)
	if !filepath.IsAbs(mountDir) {
		// A relative mountpoint is anchored at LIBGKFS_CWD when an
		// exec'ing parent handed one down, else at the process cwd.
		base := os.Getenv("LIBGKFS_CWD")
		if base == "" {
			var err error
			if base, err = os.Getwd(); err != nil {
				log.Fatalf("gkfs-mount: getwd: %v", err)
			}
		}
		mountDir = filepath.Join(base, mountDir)
	}

	logger := gkfslog.NewFromEnv()
	log.SetFlags(0)

	if *hostsFile == "" {
		log.Fatal("gkfs-mount: no hosts file given (-hosts-file or $LIBGKFS_HOSTS_FILE)")
	}
	entries, err := hostsfile.Parse(*hostsFile)
	if err != nil {
		log.Fatalf("gkfs-mount: reading hosts file: %v", err)
	}
	if len(entries) == 0 {
		log.Fatal("gkfs-mount: hosts file is empty")
	}
	endpoints := make([]string, len(entries))
	for i, e := range entries {
		endpoints[i] = e.Endpoint
	}
	hostname, _ := os.Hostname()
	localID := hostsfile.LocalHostID(entries, hostname)

	// Bootstrap: learn this cluster's field layout and uid/gid from
	// daemon 0 before building the real, full-field-config facade.
	dist := distributor.NewHashDistributor(uint32(len(endpoints)))
	bootstrap := rpcclient.New(endpoints, dist, metadata.DefaultFieldConfig, *timeout)
	fscfg, errno := bootstrap.FSConfig()
	if errno != nil {
		log.Fatalf("gkfs-mount: fs_config bootstrap call failed: %v", errno)
	}
	fields := metadata.FieldConfig{
		UseAtime:    fscfg.UseAtime,
		UseMtime:    fscfg.UseMtime,
		UseCtime:    fscfg.UseCtime,
		UseLinkCnt:  fscfg.UseLinkCnt,
		UseBlocks:   fscfg.UseBlocks,
		HasSymlinks: fscfg.HasSymlinks,
	}

	facade := rpcclient.New(endpoints, dist, fields, *timeout)
	ctx := &client.MountContext{
		MountDir:    mountDir,
		Hosts:       endpoints,
		LocalID:     uint32(localID),
		UseAtime:    fields.UseAtime,
		UseMtime:    fields.UseMtime,
		UseCtime:    fields.UseCtime,
		UseLinkCnt:  fields.UseLinkCnt,
		UseBlocks:   fields.UseBlocks,
		HasSymlinks: fields.HasSymlinks,
		UID:         fscfg.UID,
		GID:         fscfg.GID,
	}
	fs := &fuseops.FS{
		Ctx:   ctx,
		RPC:   facade,
		Fds:   client.NewFdTable(),
		Paths: client.NewResolver(mountDir),
		Log:   logger,
	}

	conn, err := fuse.Mount(mountDir,
		fuse.FSName("gekkofs"),
		fuse.Subtype("gkfs"))
	if err != nil {
		log.Fatalf("gkfs-mount: mount: %v", err)
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	doneServe := make(chan error, 1)
	go func() {
		doneServe <- fusefs.Serve(conn, fs)
	}()

	select {
	case err := <-doneServe:
		logger.Info("fs.Serve returned: %v", err)
	case sig := <-sigc:
		logger.Info("signal %s received, unmounting", sig)
	}

	time.AfterFunc(5*time.Second, func() {
		logger.Error("unmount did not complete in time, forcing exit")
		os.Exit(1)
	})
	if err := fuse.Unmount(mountDir); err != nil {
		logger.Error("unmount: %v", err)
	}
	conn.Close()
	logger.Info("gkfs-mount exiting")
}
