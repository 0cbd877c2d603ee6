package storage

import (
	"sort"
	"strings"
)

type stagedValue struct {
	value   []byte
	deleted bool
}

// Staged buffers writes over a base Database until Commit. Reads see the
// buffered writes. It is not safe for concurrent use.
type Staged struct {
	base    Database
	pending map[string]stagedValue
}

var _ Database = (*Staged)(nil)

// NewStaged returns an empty overlay on base.
func NewStaged(base Database) *Staged {
	return &Staged{base: base, pending: make(map[string]stagedValue)}
}

// Put buffers a write.
func (s *Staged) Put(key []byte, value []byte) error {
	s.pending[string(key)] = stagedValue{value: append([]byte(nil), value...)}
	return nil
}

// Get returns the buffered value, falling back to the base.
func (s *Staged) Get(key []byte) ([]byte, error) {
	if v, ok := s.pending[string(key)]; ok {
		if v.deleted {
			return nil, ErrNotFound
		}
		return append([]byte(nil), v.value...), nil
	}
	return s.base.Get(key)
}

// Delete buffers a removal.
func (s *Staged) Delete(key []byte) error {
	s.pending[string(key)] = stagedValue{deleted: true}
	return nil
}

// Iterate merges the base keys under prefix with the buffered writes.
func (s *Staged) Iterate(prefix []byte, fn func(key, value []byte) bool) error {
	merged := make(map[string][]byte)
	if err := s.base.Iterate(prefix, func(key, value []byte) bool {
		merged[string(key)] = value
		return true
	}); err != nil {
		return err
	}
	for key, v := range s.pending {
		if !strings.HasPrefix(key, string(prefix)) {
			continue
		}
		if v.deleted {
			delete(merged, key)
			continue
		}
		merged[key] = append([]byte(nil), v.value...)
	}
	keys := make([]string, 0, len(merged))
	for key := range merged {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if !fn([]byte(key), merged[key]) {
			return nil
		}
	}
	return nil
}

// Pending reports the number of buffered writes.
func (s *Staged) Pending() int { return len(s.pending) }

// Discard drops every buffered write.
func (s *Staged) Discard() {
	s.pending = make(map[string]stagedValue)
}

// Commit flushes the buffered writes to the base, atomically when the base
// is a BatchWriter. The buffer is kept on error so the caller decides
// whether to retry or Discard.
func (s *Staged) Commit() error {
	if len(s.pending) == 0 {
		return nil
	}
	ops := make([]BatchOp, 0, len(s.pending))
	for key, v := range s.pending {
		ops = append(ops, BatchOp{Key: []byte(key), Value: v.value, Delete: v.deleted})
	}
	sort.Slice(ops, func(i, j int) bool { return string(ops[i].Key) < string(ops[j].Key) })
	if writer, ok := s.base.(BatchWriter); ok {
		if err := writer.WriteBatch(ops); err != nil {
			return err
		}
	} else {
		for _, op := range ops {
			var err error
			if op.Delete {
				err = s.base.Delete(op.Key)
			} else {
				err = s.base.Put(op.Key, op.Value)
			}
			if err != nil {
				return err
			}
		}
	}
	s.Discard()
	return nil
}

// Close leaves the base open; its owner closes it.
func (s *Staged) Close() {}
