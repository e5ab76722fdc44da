// Package rpcfabric implements rma.Fabric over real TCP connections
// using net/rpc, one process per rank listening on its own port, in the
// style of raft/raft_integration_test.go's multi-replica-in-one-binary
// TCP pattern. Every RMA primitive becomes a single RPC to the target
// rank's server; rank 0 additionally serves as the barrier coordinator.
package rpcfabric

import (
	"fmt"
	"net"
	"net/rpc"
	"sync"

	cmap "github.com/orcaman/concurrent-map"

	"github.com/poetlab/dht/rma"
)

// Server is the RPC-exposed wrapper around one rank's window. net/rpc
// requires exported methods of the shape func(Args, *Reply) error.
type Server struct {
	window *rma.Window

	barMu      sync.Mutex
	barCond    *sync.Cond
	barSize    int
	barArrived int
	barGen     int
}

func newServer(window *rma.Window, size int) *Server {
	s := &Server{window: window, barSize: size}
	s.barCond = sync.NewCond(&s.barMu)
	return s
}

type GetArgs struct {
	ByteOffset, N int
}
type GetReply struct {
	Data []byte
}

func (s *Server) Get(args GetArgs, reply *GetReply) error {
	reply.Data = s.window.Get(args.ByteOffset, args.N)
	return nil
}

type PutArgs struct {
	ByteOffset int
	Data       []byte
}
type PutReply struct{}

func (s *Server) Put(args PutArgs, reply *PutReply) error {
	s.window.Put(args.ByteOffset, args.Data)
	return nil
}

type CASArgs struct {
	ByteOffset      int
	Expect, Desired int32
}
type CASReply struct {
	Old int32
}

func (s *Server) CompareAndSwap(args CASArgs, reply *CASReply) error {
	reply.Old = s.window.CompareAndSwap(args.ByteOffset, args.Expect, args.Desired)
	return nil
}

type ReplaceArgs struct {
	ByteOffset int
	Value      int32
}
type ReplaceReply struct{}

func (s *Server) AtomicReplace(args ReplaceArgs, reply *ReplaceReply) error {
	s.window.AtomicReplace(args.ByteOffset, args.Value)
	return nil
}

type NoArgs struct{}
type NoReply struct{}

func (s *Server) LockShared(args NoArgs, reply *NoReply) error {
	s.window.LockShared()
	return nil
}
func (s *Server) UnlockShared(args NoArgs, reply *NoReply) error {
	s.window.UnlockShared()
	return nil
}
func (s *Server) LockExclusive(args NoArgs, reply *NoReply) error {
	s.window.LockExclusive()
	return nil
}
func (s *Server) UnlockExclusive(args NoArgs, reply *NoReply) error {
	s.window.UnlockExclusive()
	return nil
}

type DroppedReply struct {
	Count uint64
}

func (s *Server) ContentionDropped(args NoArgs, reply *DroppedReply) error {
	reply.Count = s.window.ContentionDropped()
	return nil
}

func (s *Server) RecordDropped(args NoArgs, reply *NoReply) error {
	s.window.RecordDropped()
	return nil
}

// Arrive is rank 0's barrier-coordinator RPC: it blocks the caller until
// every rank in the group has called Arrive for the current generation,
// then releases them all and advances the generation, mirroring
// rma's in-process cyclic-rendezvous barrier over the network.
func (s *Server) Arrive(args NoArgs, reply *NoReply) error {
	s.barMu.Lock()
	defer s.barMu.Unlock()
	gen := s.barGen
	s.barArrived++
	if s.barArrived == s.barSize {
		s.barArrived = 0
		s.barGen++
		s.barCond.Broadcast()
		return nil
	}
	for gen == s.barGen {
		s.barCond.Wait()
	}
	return nil
}

// Fabric is the rma.Fabric implementation backed by live TCP connections:
// rank's own window is held locally (Get/Put/etc. against it skip the
// network), every other rank's window is addressed via an RPC client
// dialed lazily and cached in peers.
type Fabric struct {
	rank      int
	addrs     []string
	part      rma.Partition
	window    *rma.Window
	server    *Server
	listener  net.Listener
	peers     cmap.ConcurrentMap
}

// New starts rank's RPC listener on addrs[rank] and returns a Fabric
// ready to address every rank in addrs, including itself. addrs[0] also
// hosts the barrier coordinator. Dialing peers happens lazily on first
// use, not here, so ranks can start listening before every peer is up.
func New(rank int, addrs []string, n, numSpecies int) (*Fabric, error) {
	part := rma.NewPartition(len(addrs), n)
	window := rma.NewWindow(part.LocalCapacity, numSpecies)
	server := newServer(window, len(addrs))

	rpcServer := rpc.NewServer()
	if err := rpcServer.RegisterName("Window", server); err != nil {
		return nil, fmt.Errorf("rpcfabric: register: %w", err)
	}

	ln, err := net.Listen("tcp", addrs[rank])
	if err != nil {
		return nil, fmt.Errorf("rpcfabric: listen on %s: %w", addrs[rank], err)
	}
	go rpcServer.Accept(ln)

	f := &Fabric{
		rank:     rank,
		addrs:    addrs,
		part:     part,
		window:   window,
		server:   server,
		listener: ln,
		peers:    cmap.New(),
	}
	return f, nil
}

func (f *Fabric) Rank() int            { return f.rank }
func (f *Fabric) Size() int            { return len(f.addrs) }
func (f *Fabric) Partition() rma.Partition { return f.part }

func (f *Fabric) client(rank int) (*rpc.Client, error) {
	if c, ok := f.peers.Get(f.addrs[rank]); ok {
		return c.(*rpc.Client), nil
	}
	c, err := rpc.Dial("tcp", f.addrs[rank])
	if err != nil {
		return nil, fmt.Errorf("rpcfabric: dial %s: %w", f.addrs[rank], err)
	}
	f.peers.Set(f.addrs[rank], c)
	return c, nil
}

func (f *Fabric) Barrier() {
	c, err := f.client(0)
	if err != nil {
		panic(err)
	}
	if err := c.Call("Window.Arrive", NoArgs{}, &NoReply{}); err != nil {
		panic(err)
	}
}

func (f *Fabric) Get(rank, byteOffset, n int) []byte {
	if rank == f.rank {
		return f.window.Get(byteOffset, n)
	}
	c, err := f.client(rank)
	if err != nil {
		panic(err)
	}
	var reply GetReply
	if err := c.Call("Window.Get", GetArgs{ByteOffset: byteOffset, N: n}, &reply); err != nil {
		panic(err)
	}
	return reply.Data
}

func (f *Fabric) Put(rank, byteOffset int, data []byte) {
	if rank == f.rank {
		f.window.Put(byteOffset, data)
		return
	}
	c, err := f.client(rank)
	if err != nil {
		panic(err)
	}
	if err := c.Call("Window.Put", PutArgs{ByteOffset: byteOffset, Data: data}, &PutReply{}); err != nil {
		panic(err)
	}
}

func (f *Fabric) CompareAndSwap(rank, byteOffset int, expect, desired int32) int32 {
	if rank == f.rank {
		return f.window.CompareAndSwap(byteOffset, expect, desired)
	}
	c, err := f.client(rank)
	if err != nil {
		panic(err)
	}
	var reply CASReply
	args := CASArgs{ByteOffset: byteOffset, Expect: expect, Desired: desired}
	if err := c.Call("Window.CompareAndSwap", args, &reply); err != nil {
		panic(err)
	}
	return reply.Old
}

func (f *Fabric) AtomicReplace(rank, byteOffset int, value int32) {
	if rank == f.rank {
		f.window.AtomicReplace(byteOffset, value)
		return
	}
	c, err := f.client(rank)
	if err != nil {
		panic(err)
	}
	args := ReplaceArgs{ByteOffset: byteOffset, Value: value}
	if err := c.Call("Window.AtomicReplace", args, &ReplaceReply{}); err != nil {
		panic(err)
	}
}

// Flush/FlushAll are no-ops: every RPC above is a synchronous round trip,
// so by the time Get/Put/CompareAndSwap/AtomicReplace returns, the
// operation has already completed on the target rank.
func (f *Fabric) Flush(rank int) {}
func (f *Fabric) FlushAll()      {}

func (f *Fabric) LockShared(rank int) {
	f.lockCall(rank, "Window.LockShared")
}
func (f *Fabric) UnlockShared(rank int) {
	f.lockCall(rank, "Window.UnlockShared")
}
func (f *Fabric) LockExclusive(rank int) {
	f.lockCall(rank, "Window.LockExclusive")
}
func (f *Fabric) UnlockExclusive(rank int) {
	f.lockCall(rank, "Window.UnlockExclusive")
}

func (f *Fabric) lockCall(rank int, method string) {
	if rank == f.rank {
		switch method {
		case "Window.LockShared":
			f.window.LockShared()
		case "Window.UnlockShared":
			f.window.UnlockShared()
		case "Window.LockExclusive":
			f.window.LockExclusive()
		case "Window.UnlockExclusive":
			f.window.UnlockExclusive()
		}
		return
	}
	c, err := f.client(rank)
	if err != nil {
		panic(err)
	}
	if err := c.Call(method, NoArgs{}, &NoReply{}); err != nil {
		panic(err)
	}
}

// LockAll/UnlockAll mark the local window's epoch flag only: unlike
// LocalFabric there is no shared cluster state to update collectively,
// and every other rank opens/closes its own epoch independently in its
// own constructor/Close call.
func (f *Fabric) LockAll()   { f.window.SetEpochOpen(true) }
func (f *Fabric) UnlockAll() { f.window.SetEpochOpen(false) }

func (f *Fabric) ContentionDropped() uint64 {
	return f.window.ContentionDropped()
}

func (f *Fabric) RecordDropped(rank int) {
	if rank == f.rank {
		f.window.RecordDropped()
		return
	}
	c, err := f.client(rank)
	if err != nil {
		panic(err)
	}
	c.Call("Window.RecordDropped", NoArgs{}, &NoReply{})
}

// Close closes the listener and every dialed peer connection.
func (f *Fabric) Close() error {
	for _, key := range f.peers.Keys() {
		if c, ok := f.peers.Get(key); ok {
			c.(*rpc.Client).Close()
		}
	}
	return f.listener.Close()
}

var _ rma.Fabric = (*Fabric)(nil)
