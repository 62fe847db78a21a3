package raster

import (
	"fmt"

	"github.com/couchcryptid/storm-data-blobtag/internal/domain"
)

// Op maps matching input values to a label code. Ops are immutable and
// always test the original input value, so their order never matters.
type Op struct {
	code  int32
	name  string
	match func(ts domain.Timestep, v int32) bool
}

// Code is the value written for matching cells.
func (o Op) Code() int32 {
	return o.code
}

func (o Op) String() string {
	return o.name
}

// Replace maps the listed blob ids of each timestep to code.
func Replace(code int32, members map[domain.Timestep][]int32) Op {
	lookup := make(map[domain.Timestep]map[int32]struct{}, len(members))
	n := 0
	for ts, ids := range members {
		set := make(map[int32]struct{}, len(ids))
		for _, id := range ids {
			set[id] = struct{}{}
		}
		lookup[ts] = set
		n += len(ids)
	}
	return Op{
		code: code,
		name: fmt.Sprintf("replace(%d blobs -> %d)", n, code),
		match: func(ts domain.Timestep, v int32) bool {
			_, ok := lookup[ts][v]
			return ok
		},
	}
}

// Keep maps code to itself at every timestep.
func Keep(code int32) Op {
	return Op{
		code:  code,
		name:  fmt.Sprintf("keep(%d)", code),
		match: func(_ domain.Timestep, v int32) bool { return v == code },
	}
}

// IdentityOps returns ops that leave an already relabeled mask unchanged.
func IdentityOps(set []domain.Label) []Op {
	ops := make([]Op, 0, len(set))
	for _, l := range set {
		if l.Code > 0 {
			ops = append(ops, Keep(l.Code))
		}
	}
	return ops
}
