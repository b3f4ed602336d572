// Package pmemobj implements a transactional, crash-consistent
// persistent-memory object store: a single memory-mapped pool file
// holding a heap of offset-addressed objects, a root object, and the
// lane/ulog machinery that makes multi-object updates atomic across a
// crash.
package pmemobj

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"sync"
	"unsafe"

	"github.com/arjenvos/pmemobj/internal/constants"
	"github.com/arjenvos/pmemobj/internal/ctl"
	"github.com/arjenvos/pmemobj/internal/lane"
	"github.com/arjenvos/pmemobj/internal/layout"
	"github.com/arjenvos/pmemobj/internal/operation"
	"github.com/arjenvos/pmemobj/internal/palloc"
	"github.com/arjenvos/pmemobj/internal/pmemops"
	"github.com/arjenvos/pmemobj/internal/rangetree"
	"github.com/arjenvos/pmemobj/internal/stats"
	"github.com/arjenvos/pmemobj/internal/ulog"
)

// DefaultNlanes is used when Options.Nlanes is zero or negative. The
// PMEMOBJ_NLANES environment variable is not read.
const DefaultNlanes = 4

// Options configures Create and Open.
type Options struct {
	// Nlanes overrides the number of concurrency lanes. Zero uses
	// DefaultNlanes.
	Nlanes int
	// StatsMode sets the initial stats-tracking mode; defaults to
	// stats.Disabled.
	StatsMode stats.Mode
}

// Pool is an open persistent-memory pool: a memory-mapped file backing
// a heap of allocated objects reachable from a single root object.
type Pool struct {
	mu sync.Mutex

	ops  pmemops.MemOps
	path string

	hdr    *layout.PoolHeader
	nlanes int

	lanes  []*lane.Lane
	desc   *lane.Descriptor
	heap   *palloc.Heap
	alloc  *palloc.Facade
	stats  *stats.Stats
	ctl    *ctl.Registry
	debug  ctl.DebugFlags
	txSize ctl.TxCacheSize

	uuidLo uint64

	userBufMu sync.Mutex
	userBufs  *rangetree.Tree
}

// ToPtr translates a pool-relative byte offset into a process address
// within the mapped region. Implements ulog.Resolver and list.Resolver.
func (p *Pool) ToPtr(offset uint64) unsafe.Pointer {
	return unsafe.Add(p.ops.Base(), offset)
}

// ToOffset translates a process address within the mapped region back
// into a pool-relative byte offset.
func (p *Pool) ToOffset(ptr unsafe.Pointer) uint64 {
	return uint64(uintptr(ptr) - uintptr(p.ops.Base()))
}

func laneRegionSize(nlanes int) uint64 {
	return uint64(nlanes) * constants.LaneTotalSize
}

// arenaBase is the first byte offset available to the heap: right
// after the fixed header and the lane region.
func (p *Pool) arenaBase() uint64 {
	return layout.HeaderSize + laneRegionSize(p.nlanes)
}

// Create creates a new pool file of poolSize bytes at path, stamped
// with the given layout name, and opens it.
func Create(path string, poolSize int64, layoutName string, opts Options) (*Pool, error) {
	if len(layoutName) > constants.MaxLayoutNameLen {
		return nil, NewError("Create", ErrCodeInvalidArgument, "layout name too long")
	}
	nlanes := opts.Nlanes
	if nlanes <= 0 {
		nlanes = DefaultNlanes
	}
	minSize := int64(layout.HeaderSize) + int64(laneRegionSize(nlanes)) + constants.CachelineSize
	if poolSize < minSize {
		return nil, NewPoolError("Create", path, ErrCodeInvalidArgument, fmt.Sprintf("pool size %d below minimum %d", poolSize, minSize))
	}

	fm, err := pmemops.CreateFile(path, poolSize)
	if err != nil {
		return nil, WrapError("Create", err)
	}

	p := newPool(fm, path, nlanes, opts.StatsMode)
	if _, err := rand.Read(p.hdr.UUID[:]); err != nil {
		fm.Close()
		return nil, WrapError("Create", err)
	}
	p.uuidLo = uuidLoOf(p.hdr.UUID)
	p.hdr.SetSignature()
	p.hdr.SetLayout(layoutName)
	p.hdr.PoolSize = uint64(poolSize)
	p.hdr.FormatMajor = constants.PoolFormatMajor
	p.hdr.ArenaBump = p.arenaBase()
	p.hdr.RootOffset = 0
	p.ops.Persist(unsafe.Pointer(p.hdr), layout.HeaderSize)

	for i := 0; i < nlanes; i++ {
		base := layout.HeaderSize + uint64(i)*constants.LaneTotalSize
		ulog.Construct(p.ToPtr(base+constants.LaneInternalOffset), p.ops, constants.InternalUlogCapacity, 1, 0)
		ulog.Construct(p.ToPtr(base+constants.LaneExternalOffset), p.ops, constants.ExternalUlogCapacity, 1, 0)
		ulog.Construct(p.ToPtr(base+constants.LaneUndoOffset), p.ops, constants.UndoUlogCapacity, 1, 0)
	}

	desc, err := lane.Boot(p.lanes)
	if err != nil {
		fm.Close()
		return nil, WrapError("Create", err)
	}
	p.desc = desc
	p.heap = palloc.NewHeap(p.hdr.ArenaBump, p.hdr.PoolSize-p.hdr.ArenaBump)
	p.heap.BindBumpPersistence(p.persistArenaBump)
	p.alloc = palloc.NewFacade(p.heap)
	p.wireCtl()
	registerPool(p)
	return p, nil
}

// Open opens an existing pool file at path, replaying any unclean
// shutdown's logged-but-unapplied transactions before returning.
func Open(path string, opts Options) (*Pool, error) {
	fm, err := pmemops.OpenFile(path)
	if err != nil {
		return nil, WrapError("Open", err)
	}
	nlanes := opts.Nlanes
	if nlanes <= 0 {
		nlanes = DefaultNlanes
	}

	p := newPool(fm, path, nlanes, opts.StatsMode)
	if !p.hdr.SignatureValid() {
		fm.Close()
		return nil, NewPoolError("Open", path, ErrCodeCorrupted, "bad pool signature")
	}
	if p.hdr.FormatMajor != constants.PoolFormatMajor {
		fm.Close()
		return nil, NewPoolError("Open", path, ErrCodeInvalidArgument, "unsupported pool format version")
	}
	p.uuidLo = uuidLoOf(p.hdr.UUID)

	desc, err := lane.RecoverAndBoot(p.lanes)
	if err != nil {
		fm.Close()
		return nil, WrapError("Open", err)
	}
	p.desc = desc
	p.heap = palloc.NewHeap(p.hdr.ArenaBump, p.hdr.PoolSize-p.hdr.ArenaBump)
	p.heap.BindBumpPersistence(p.persistArenaBump)
	p.alloc = palloc.NewFacade(p.heap)
	p.wireCtl()
	registerPool(p)
	return p, nil
}

// uuidLoOf derives the registry key used to address a pool (what
// PMDK calls pool_uuid_lo) from its on-media UUID: the low 8 bytes,
// forced odd so a freshly zeroed UUID (which should never happen given
// Create always fills it with crypto/rand, but would otherwise produce
// a uuidLo of 0 indistinguishable from the null OID's PoolUUIDLo) can
// never collide with Null.
func uuidLoOf(uuid [16]byte) uint64 {
	return binary.LittleEndian.Uint64(uuid[8:16]) | 1
}

// persistArenaBump mirrors the heap's advancing bump pointer into the
// pool header so Open resumes allocation past it rather than reusing
// live memory as fresh space (see PoolHeader.ArenaBump).
func (p *Pool) persistArenaBump(newBump uint64) {
	p.hdr.ArenaBump = newBump
	p.ops.Persist(unsafe.Pointer(&p.hdr.ArenaBump), 8)
}

func newPool(fm *pmemops.FileMapping, path string, nlanes int, statsMode stats.Mode) *Pool {
	p := &Pool{
		ops:      fm,
		path:     path,
		nlanes:   nlanes,
		stats:    stats.New(statsMode),
		userBufs: rangetree.New(),
	}
	p.hdr = (*layout.PoolHeader)(p.ops.Base())

	cacheSize := func() uint64 { return p.txSize.Load() }
	windowOpt := operation.WithWindowLimit(cacheSize)

	noExtend := func(minCapacity uint64) (*ulog.Log, error) {
		return nil, fmt.Errorf("pmemobj: the internal ulog is fixed-size and never extends (ENOMEM)")
	}

	p.lanes = make([]*lane.Lane, nlanes)
	for i := 0; i < nlanes; i++ {
		base := layout.HeaderSize + uint64(i)*constants.LaneTotalSize
		internal := ulog.At(p.ToPtr(base+constants.LaneInternalOffset), p.ops, p)
		external := ulog.At(p.ToPtr(base+constants.LaneExternalOffset), p.ops, p)
		undo := ulog.At(p.ToPtr(base+constants.LaneUndoOffset), p.ops, p)
		p.lanes[i] = &lane.Lane{
			Internal: operation.New(internal, noExtend, windowOpt),
			External: operation.New(external, p.extendFor("external"), windowOpt),
			Undo:     operation.New(undo, p.extendFor("undo"), windowOpt),
		}
	}
	return p
}

// extendFor returns an operation.Extend that grows a context's ulog
// chain by reserving a fresh continuation record from the heap, outside
// of any transaction's own redo bookkeeping (the same pattern the heap's
// own bump allocation already uses: a crash between Reserve and Commit
// leaves the memory unreachable and nothing reclaims it, see
// palloc.Heap.Commit's doc comment).
// Only external and undo ulogs extend; the internal ulog stays
// fixed-size, since it only ever holds the allocator's own bookkeeping
// for a single transaction's actions, bounded by design.
func (p *Pool) extendFor(kind string) operation.Extend {
	return func(minCapacity uint64) (*ulog.Log, error) {
		size := constants.SizeofAlignedUlog(minCapacity)
		a, err := p.alloc.Reserve(size)
		if err != nil {
			return nil, fmt.Errorf("pmemobj: extend %s ulog: %w", kind, err)
		}
		p.alloc.Commit([]palloc.Action{a})
		ptr := p.ToPtr(a.Offset)
		payload := a.Size - constants.UlogHeaderSize
		ulog.Construct(ptr, p.ops, payload, 1, 0)
		return ulog.At(ptr, p.ops, p), nil
	}
}

func (p *Pool) wireCtl() {
	classSizes := []uint64{64, 128, 256, 512, 1024, 2048, 4096, 8192, 16384, 32768, 65536, 131072, 262144, 524288, 1048576}
	p.ctl = ctl.BuildDefault(p.stats, &p.debug, &p.txSize, classSizes)
}

// Close unmaps the pool file and releases its file descriptor. Close
// does not wait for in-flight transactions; callers must ensure none
// are outstanding.
func (p *Pool) Close() error {
	unregisterPool(p)
	if fm, ok := p.ops.(*pmemops.FileMapping); ok {
		return fm.Close()
	}
	return nil
}

// Root returns the pool's root object offset, allocating and zeroing
// one of the given size on first use (size is ignored on subsequent
// calls; the root is fixed once created).
func (p *Pool) Root(size uint64) (OID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.hdr.RootOffset != 0 {
		return OID{PoolUUIDLo: p.uuidLo, Off: p.hdr.RootOffset}, nil
	}
	if size == 0 {
		return Null, NewError("Root", ErrCodeInvalidArgument, "root size must be nonzero on first call")
	}
	a, err := p.alloc.Reserve(size)
	if err != nil {
		return Null, WrapError("Root", err)
	}
	p.ops.Memset(p.ToPtr(a.Offset), 0, a.Size, 0)
	p.ops.Persist(p.ToPtr(a.Offset), a.Size)
	p.alloc.Commit([]palloc.Action{a})
	p.hdr.RootOffset = a.Offset
	p.ops.Persist(unsafe.Pointer(&p.hdr.RootOffset), 8)
	p.stats.RecordAlloc(a.Size)
	return OID{PoolUUIDLo: p.uuidLo, Off: a.Offset}, nil
}

// Direct returns the process address of the object identified by oid.
// The null OID resolves to nil. An OID stamped with another pool's
// PoolUUIDLo also resolves to nil rather than silently dereferencing
// this pool's mapping at the wrong offset; use the package-level Direct
// to resolve an OID without already knowing which pool it belongs to.
func (p *Pool) Direct(oid OID) unsafe.Pointer {
	if oid.IsNull() {
		return nil
	}
	if oid.PoolUUIDLo != 0 && oid.PoolUUIDLo != p.uuidLo {
		return nil
	}
	return p.ToPtr(oid.Off)
}

// UUIDLo returns the registry key this pool is addressed by (what an
// OID's PoolUUIDLo field holds for any object allocated from it).
func (p *Pool) UUIDLo() uint64 { return p.uuidLo }

// AllocFillByte returns the byte tx.Alloc should pre-fill a fresh
// allocation with, per debug.heap.alloc_pattern (0 means "zero-fill",
// the default).
func (p *Pool) AllocFillByte() byte { return byte(p.debug.AllocPattern.Load()) }

// SkipExpensiveChecks reports tx.debug.skip_expensive_checks: when set,
// a transaction may skip optional consistency bookkeeping that costs
// more than the correctness it buys (see tx.AddRange's dedup check).
func (p *Pool) SkipExpensiveChecks() bool { return p.debug.SkipExpensiveChecks.Load() }

// RegisterUserBuffer records [offset, offset+size) as backing a ulog
// continuation record supplied by a caller via tx.LogAppendBuffer. It
// rejects a range that overlaps one already registered (the same
// memory can't back two live log records at once) whenever
// tx.debug.verify_user_buffers is enabled; with verification off the
// registration always succeeds, matching the reference engine's
// "trust the caller" default.
func (p *Pool) RegisterUserBuffer(offset, size uint64) error {
	p.userBufMu.Lock()
	defer p.userBufMu.Unlock()
	if p.debug.VerifyUserBuffers.Load() && p.userBufs.Overlaps(offset, size) {
		return NewError("Pool.RegisterUserBuffer", ErrCodeInvalidArgument, "buffer range already registered")
	}
	p.userBufs.Add(offset, size)
	return nil
}

// Ctl returns the pool's CTL registry, for Get/Set/Exec against the
// paths (tx.debug.*, heap.*, stats.*).
func (p *Pool) Ctl() *ctl.Registry { return p.ctl }

// Stats returns the pool's counters.
func (p *Pool) Stats() stats.Snapshot { return p.stats.Snapshot() }

// Ops returns the pool's memory-operations capability, for callers
// (the tx package) that need to read or write pool memory directly.
func (p *Pool) Ops() pmemops.MemOps { return p.ops }

// Alloc returns the pool's allocator facade.
func (p *Pool) Alloc() *palloc.Facade { return p.alloc }

// HoldLane acquires a lane on behalf of info's caller. See
// lane.Descriptor.Hold.
func (p *Pool) HoldLane(info *lane.LaneInfo) (idx int, l *lane.Lane, release func(), err error) {
	return p.desc.Hold(info)
}

// RecordAlloc/RecordFree/RecordTxBegin/RecordTxCommit/RecordTxAbort
// update the pool's stats counters; exported so the tx package can
// report allocator and transaction activity without reaching into the
// pool's internal stats.Stats field.
func (p *Pool) RecordAlloc(size uint64)  { p.stats.RecordAlloc(size) }
func (p *Pool) RecordFree(size uint64)   { p.stats.RecordFree(size) }
func (p *Pool) RecordTxBegin()           { p.stats.RecordTxBegin() }
func (p *Pool) RecordTxCommit()          { p.stats.RecordTxCommit() }
func (p *Pool) RecordTxAbort()           { p.stats.RecordTxAbort() }
