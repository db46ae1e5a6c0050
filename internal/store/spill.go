package store

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/csvquery/csvquery/internal/common"
	"github.com/csvquery/csvquery/internal/config"
	"github.com/csvquery/csvquery/internal/typeinfer"
)

// Spill writes c's already-materialized dense array to w as a sequence
// of LZ4-compressed blocks (common.BlockWriter, the teacher's
// internal/common/cidx.go spill format) and frees the in-memory array,
// so a column too large to keep resident can still serve reads.
//
// Each cell's canonical text form is truncated to the 64-byte
// common.ColumnRecord.Value array; an NA cell is written with Overflow=1; this makes Spill unsuitable for character columns with very
// long values (documented gap, see DESIGN.md).
func (c *Column) Spill(w io.Writer) error {
	if !c.materialized.Load() {
		c.MaterializeAll()
	}

	bw, err := common.NewBlockWriter(w)
	if err != nil {
		return err
	}
	for r, v := range c.values {
		rec := common.ColumnRecord{Row: int64(r)}
		if c.naMask[r] {
			rec.Overflow = 1
		} else {
			copy(rec.Value[:], formatForSpill(v))
		}
		if err := bw.WriteRecord(rec); err != nil {
			return err
		}
	}
	if err := bw.Close(); err != nil {
		return err
	}

	c.materialized.Store(false)
	c.values = nil
	c.naMask = nil
	return nil
}

// spillState holds the reader/cache a spilled column reads back through.
type spillState struct {
	reader   *common.BlockReader
	cache    *BlockCache
	keyPrefix string
}

// LoadSpill switches c into spilled mode: subsequent Get calls decompress
// the owning block (through cache, shared across a Table's columns) and
// reparse the cell instead of reading the original byte source.
func (c *Column) LoadSpill(r io.ReadSeeker, cache *BlockCache, keyPrefix string) error {
	br, err := common.NewBlockReader(r)
	if err != nil {
		return err
	}
	c.spill = &spillState{reader: br, cache: cache, keyPrefix: keyPrefix}
	c.materialized.Store(false)
	c.values = nil
	c.naMask = nil
	return nil
}

// getSpilled implements Get's spilled-column path.
func (c *Column) getSpilled(row int64) (interface{}, bool) {
	s := c.spill
	blocks := s.reader.Footer.Blocks
	blockIdx := sort.Search(len(blocks), func(i int) bool {
		return blocks[i].StartRow > row
	}) - 1
	if blockIdx < 0 {
		blockIdx = 0
	}

	key := fmt.Sprintf("%s:%d", s.keyPrefix, blockIdx)
	records := s.cache.Get(key)
	if records == nil {
		var err error
		records, err = s.reader.ReadBlock(blocks[blockIdx])
		if err != nil {
			return nil, true
		}
		s.cache.Put(key, records)
	}

	for _, rec := range records {
		if rec.Row != row {
			continue
		}
		if rec.Overflow == 1 {
			return nil, true
		}
		v, ok := parseFromSpill(c.AssignedType, c.Format, rec.Value[:])
		return v, !ok
	}
	return nil, true
}

func formatForSpill(v interface{}) []byte {
	switch val := v.(type) {
	case string:
		return []byte(val)
	case time.Time:
		return []byte(val.Format(time.RFC3339))
	case FactorValue:
		return []byte(val.Label)
	default:
		return []byte(fmt.Sprint(val))
	}
}

// parseFromSpill reparses a spilled cell's truncated text form back into
// its assigned type. raw is the zero-padded 64-byte record Value; the
// trailing zero bytes are trimmed before parsing.
func parseFromSpill(assigned config.ColumnType, format string, raw []byte) (interface{}, bool) {
	raw = bytes.TrimRight(raw, "\x00")
	switch assigned {
	case config.TypeCharacter:
		return string(raw), true
	case config.TypeLogical:
		return typeinfer.ParseLogical(raw)
	case config.TypeInteger:
		return typeinfer.ParseInteger(raw)
	case config.TypeDouble:
		return typeinfer.ParseDouble(raw, '.')
	case config.TypeNumberGrouped:
		return typeinfer.ParseNumberGrouped(raw, '.', ',')
	case config.TypeDate, config.TypeTime, config.TypeDateTime:
		return parseTimeValue(time.RFC3339, raw)
	default:
		return string(raw), true
	}
}
