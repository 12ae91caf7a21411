// Package kinds encodes a small kind hierarchy into a uint64 so that a value can
// be tested against any of its ancestors with a single mask walk.
package kinds

const (
	length   = 64
	idLength = 8
	depthMax = length / idLength
	idMask   = (1 << idLength) - 1
)

// Bases returns the ancestor ids packed into t, closest first.
func Bases(t uint64) [depthMax]uint64 {
	var bases [depthMax]uint64
	for i := 1; i < depthMax; i++ {
		bases[i-1] = (t >> (idLength * i)) & idMask
	}
	return bases
}

// Kind packs id together with every id found in bases.
func Kind(id uint64, bases ...uint64) uint64 {
	id = id & idMask
	ids := make(map[uint64]struct{})

	for _, base := range bases {
		for j := 0; j < depthMax; j++ {
			baseId := (base >> (idLength * j)) & idMask
			if baseId == 0 {
				break
			}
			if _, ok := ids[baseId]; !ok {
				ids[baseId] = struct{}{}
				id |= baseId << (idLength * len(ids))
			}
		}
	}
	return id
}

// IsKind reports whether kind is, or descends from, any of bases.
func IsKind(kind uint64, bases ...uint64) bool {
	for _, base := range bases {
		baseId := base & idMask
		if baseId == 0 {
			continue
		}
		for i := 0; i < depthMax; i++ {
			if (kind>>(idLength*i))&idMask == baseId {
				return true
			}
		}
	}
	return false
}

var (
	Null  = Kind(0)
	Error = Kind(1)

	Registration   = Kind(2, Error)
	DuplicateState = Kind(3, Registration)
	MissingField   = Kind(4, Registration)
	CallableField  = Kind(5, Registration)
	FieldType      = Kind(6, Registration)
	MissingMethod  = Kind(7, Registration)
	NotCallable    = Kind(8, Registration)

	Lifecycle     = Kind(9, Error)
	Stopped       = Kind(10, Lifecycle)
	Running       = Kind(11, Lifecycle)
	UnknownState  = Kind(12, Lifecycle)
	UnknownMethod = Kind(13, Lifecycle)
	Arguments     = Kind(14, Lifecycle)
	Entry         = Kind(15, Lifecycle)

	Timer          = Kind(16, Error)
	DuplicateTimer = Kind(17, Timer)
	Blocked        = Kind(18, Timer)
	Unbound        = Kind(19, Timer)
	InvalidDelay   = Kind(20, Timer)
	TimerAction    = Kind(21, Timer)
)
