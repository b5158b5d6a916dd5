// Package distributor implements the deterministic placement of
// metadata and data chunks onto daemon hosts. Every client configured
// with the same host list computes identical placements, which is
// the property the daemon-side handlers and the client RPC facade
// both rely on to agree, without coordination, on which daemon owns a
// given chunk.
package distributor

import (
	"fmt"
	"hash/fnv"
)

// Distributor maps a path, optionally combined with a chunk id, to
// the index of the responsible host in a fixed host list.
type Distributor interface {
	// LocateData returns the host id owning chunk chunkID of path.
	LocateData(path string, chunkID int64) uint32
	// LocateMetadata returns the host id owning path's metadata entry.
	LocateMetadata(path string) uint32
	// NumHosts returns the number of hosts this distributor spreads
	// placements across.
	NumHosts() uint32
}

// HashDistributor is the default Distributor: a stable hash of the
// path (for metadata) or path+chunk id (for data), reduced modulo the
// host count.
type HashDistributor struct {
	numHosts uint32
}

// NewHashDistributor returns a HashDistributor spreading placements
// across numHosts hosts. numHosts must be > 0.
func NewHashDistributor(numHosts uint32) *HashDistributor {
	if numHosts == 0 {
		panic("distributor: numHosts must be > 0")
	}
	return &HashDistributor{numHosts: numHosts}
}

func (d *HashDistributor) NumHosts() uint32 { return d.numHosts }

func (d *HashDistributor) LocateMetadata(path string) uint32 {
	return hashString(path) % d.numHosts
}

func (d *HashDistributor) LocateData(path string, chunkID int64) uint32 {
	h := fnv.New32a()
	h.Write([]byte(path))
	fmt.Fprintf(h, "%d", chunkID)
	return h.Sum32() % d.numHosts
}

func hashString(s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return h.Sum32()
}

// ForwardingDistributor pins every operation from this client to a
// single designated host, regardless of path or chunk id: forwarding
// mode as a static, construction-time choice, with no dynamic
// re-binding.
type ForwardingDistributor struct {
	host     uint32
	numHosts uint32
}

// NewForwardingDistributor returns a ForwardingDistributor that always
// routes to host, out of a cluster of numHosts hosts. host must be <
// numHosts.
func NewForwardingDistributor(host, numHosts uint32) *ForwardingDistributor {
	if numHosts == 0 || host >= numHosts {
		panic("distributor: invalid forwarding host")
	}
	return &ForwardingDistributor{host: host, numHosts: numHosts}
}

func (d *ForwardingDistributor) NumHosts() uint32 { return d.numHosts }

func (d *ForwardingDistributor) LocateMetadata(string) uint32 { return d.host }

func (d *ForwardingDistributor) LocateData(string, int64) uint32 { return d.host }
