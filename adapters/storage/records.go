package storage

import (
	"encoding/binary"
	"encoding/json"

	"github.com/ippan/core/round"
)

// roundRecordPrefix namespaces round.Record entries from the blockdag
// key layout (single prefix bytes 'b', 'p', 'r') sharing the same pebble
// database.
const roundRecordPrefix = 'R'

var _ round.RecordStore = (*DB)(nil)

func roundRecordKey(id uint64) []byte {
	k := make([]byte, 9)
	k[0] = roundRecordPrefix
	binary.BigEndian.PutUint64(k[1:], id)
	return k
}

// SaveRound implements round.RecordStore, persisting r as JSON under its
// round id. Round records are operator/audit-facing, not part of any
// consensus-critical hash, so JSON (as the teacher's api package already
// uses for its own wire responses) is a reasonable encoding here rather
// than a bespoke canonical format.
func (d *DB) SaveRound(r *round.Record) error {
	buf, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return d.Put(roundRecordKey(r.RoundID), buf)
}

// LoadRound implements round.RecordStore.
func (d *DB) LoadRound(id uint64) (*round.Record, bool, error) {
	buf, err := d.Get(roundRecordKey(id))
	if err != nil {
		return nil, false, err
	}
	if buf == nil {
		return nil, false, nil
	}
	var r round.Record
	if err := json.Unmarshal(buf, &r); err != nil {
		return nil, false, err
	}
	return &r, true, nil
}
