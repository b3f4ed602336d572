package pmemobj

// OID identifies a persistent object by its pool's UUID and the
// object's byte offset within that pool: the offset alone isn't
// portable across pools, so every OID carries which pool it belongs
// to.
type OID struct {
	PoolUUIDLo uint64
	Off        uint64
}

// Null is the zero-value OID, which never addresses a real object
// (offset 0 always falls inside the pool header).
var Null = OID{}

// IsNull reports whether oid is the null OID.
func (oid OID) IsNull() bool {
	return oid == Null
}

// Offset returns the object's pool-relative byte offset.
func (oid OID) Offset() uint64 {
	return oid.Off
}
