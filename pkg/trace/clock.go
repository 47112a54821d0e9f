package trace

import "time"

// nowFunc is a seam for deterministic tests; production code always
// uses wall-clock time, per spec.md's §9 design note that monotonicity
// is not required because spans carry both timestamps independently.
var nowFunc = func() uint64 {
	return uint64(time.Now().UnixNano())
}
