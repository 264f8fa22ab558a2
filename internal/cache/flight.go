package cache

import (
	"golang.org/x/sync/singleflight"

	"financeprovider/internal/normalize"
)

// Flight is the in-flight fetch registry. Concurrent callers for the
// same key attach to one shared execution and observe the identical
// outcome; the entry is removed the moment the execution completes.
type Flight struct {
	g singleflight.Group
}

func NewFlight() *Flight { return &Flight{} }

// Do runs fn once per key across concurrent callers. shared reports
// whether this caller attached to an execution started by another.
func (f *Flight) Do(key string, fn func() (*normalize.Result, error)) (res *normalize.Result, shared bool, err error) {
	v, err, shared := f.g.Do(key, func() (any, error) {
		return fn()
	})
	if v != nil {
		res = v.(*normalize.Result)
	}
	return res, shared, err
}
