package surface

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fingerprintedDisk(sectors, bps, max int) *memDisk {
	d := newMemDisk(sectors, bps, max)
	d.fill(func(sector uint64) []byte { return Fingerprint(sector, bps) })
	return d
}

func TestReadRangeSplitsAtTransferCap(t *testing.T) {
	d := fingerprintedDisk(100, 512, 7)
	obs := &recorder{}
	r := NewSectorReader(d, obs)

	data, err := r.ReadRange(3, 25)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(Pattern(3, 25, 512), data), "reassembled data must be ordered by sector")

	want := []diskCall{
		{Op: "read", Sector: 3, Count: 7},
		{Op: "read", Sector: 10, Count: 7},
		{Op: "read", Sector: 17, Count: 7},
		{Op: "read", Sector: 24, Count: 4},
	}
	if diff := cmp.Diff(want, d.calls); diff != "" {
		t.Fatalf("device calls mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []uint64{3 * 512, 10 * 512, 17 * 512, 24 * 512}, obs.positions)
}

func TestReadRangeMatchesSingleSectorReads(t *testing.T) {
	for _, max := range []int{1, 3, 8, 64, 1000} {
		d := fingerprintedDisk(64, 512, max)
		r := NewSectorReader(d, nil)

		bulk, err := r.ReadRange(0, 64)
		require.NoError(t, err, "max transfer %d", max)

		var single []byte
		for i := uint64(0); i < 64; i++ {
			b, err := d.ReadSector(i)
			require.NoError(t, err)
			single = append(single, b...)
		}
		assert.True(t, bytes.Equal(single, bulk), "max transfer %d", max)
	}
}

func TestReadRangeStopsAtFirstFailure(t *testing.T) {
	d := fingerprintedDisk(64, 512, 8)
	d.bad[20] = true
	r := NewSectorReader(d, nil)

	data, err := r.ReadRange(0, 64)
	assert.Nil(t, data)
	require.Error(t, err)
	assert.True(t, IsTransient(err))
	assert.Equal(t, codeCRC, ErrorCode(err))
	assert.Len(t, d.calls, 3, "no segment after the failing one may be read")
}

func TestReadRangeFatal(t *testing.T) {
	d := fingerprintedDisk(64, 512, 8)
	d.fatal[0] = true
	r := NewSectorReader(d, nil)

	_, err := r.ReadRange(0, 8)
	require.Error(t, err)
	assert.False(t, IsTransient(err))
	assert.ErrorIs(t, err, errRemoved)
	assert.Equal(t, codeNotConnected, ErrorCode(err))
}

type shortDisk struct{ *memDisk }

func (d shortDisk) ReadSectors(sector uint64, count int) ([]byte, error) {
	b, err := d.memDisk.ReadSectors(sector, count)
	if err != nil {
		return nil, err
	}
	return b[:len(b)-1], nil
}

func TestReadRangeShortTransfer(t *testing.T) {
	r := NewSectorReader(shortDisk{fingerprintedDisk(16, 512, 8)}, nil)
	_, err := r.ReadRange(0, 4)
	assert.ErrorIs(t, err, ErrShortTransfer)
	assert.False(t, IsTransient(err))
}

func TestReadRangeExhaustiveRecoversReadableSectors(t *testing.T) {
	d := fingerprintedDisk(32, 512, 8)
	d.bad[9] = true
	d.bad[12] = true
	obs := &recorder{}
	r := NewSectorReader(d, obs)

	rec, err := r.ReadRangeExhaustive(0, 16)
	require.NoError(t, err)
	assert.Equal(t, []uint64{9, 12}, rec.Damaged)
	require.Len(t, rec.Data, 16*512)

	zero := make([]byte, 512)
	for i := uint64(0); i < 16; i++ {
		got := rec.Data[i*512 : (i+1)*512]
		if d.bad[i] {
			assert.Equal(t, zero, got, "damaged sector %d must be zero", i)
			continue
		}
		assert.True(t, VerifySector(got, i), "sector %d", i)
	}

	assert.Len(t, d.callsOf("read1"), 8, "only the failing segment is retried sector by sector")
	assert.Len(t, obs.matching("Read failure (error: 23) at sectors 8-15"), 1)
	assert.Len(t, obs.matching("at sector 9"), 1)
	assert.Len(t, obs.matching("at sector 12"), 1)
}

func TestReadRangeExhaustiveDamagedIndicesAreAbsolute(t *testing.T) {
	d := fingerprintedDisk(4096, 512, 128)
	d.bad[3000] = true
	r := NewSectorReader(d, nil)

	rec, err := r.ReadRangeExhaustive(2900, 300)
	require.NoError(t, err)
	assert.Equal(t, []uint64{3000}, rec.Damaged)
}

func TestReadRangeExhaustiveFatalDuringRetry(t *testing.T) {
	d := fingerprintedDisk(32, 512, 8)
	d.hook = func(c diskCall) error {
		switch {
		case c.Op == "read" && c.Sector == 8:
			return mediaError(c.Op, c.Sector, c.Count)
		case c.Op == "read1" && c.Sector == 11:
			return fatalError(c.Op, c.Sector, c.Count)
		}
		return nil
	}
	r := NewSectorReader(d, nil)

	rec, err := r.ReadRangeExhaustive(0, 24)
	assert.Nil(t, rec)
	require.Error(t, err)
	assert.False(t, IsTransient(err))
	assert.Equal(t, codeNotConnected, ErrorCode(err))

	last := d.calls[len(d.calls)-1]
	assert.Equal(t, diskCall{Op: "read1", Sector: 11, Count: 1}, last, "no I/O after a fatal error")
}

func TestReadRangeExhaustiveFatalBulk(t *testing.T) {
	d := fingerprintedDisk(32, 512, 8)
	d.fatal[4] = true
	r := NewSectorReader(d, nil)

	_, err := r.ReadRangeExhaustive(0, 8)
	require.Error(t, err)
	assert.Empty(t, d.callsOf("read1"), "fatal bulk errors are not retried")
}

func TestReadRangeExhaustiveUnexplainedBulkFailure(t *testing.T) {
	d := fingerprintedDisk(32, 512, 8)
	d.failBulk = true
	obs := &recorder{}
	r := NewSectorReader(d, obs)

	rec, err := r.ReadRangeExhaustive(0, 8)
	assert.Nil(t, rec)
	assert.ErrorIs(t, err, ErrUnexplainedBulkFailure)
	assert.False(t, IsTransient(err), "an unexplained bulk failure is fatal")
	assert.Len(t, d.callsOf("read1"), 8)
	assert.NotEmpty(t, obs.matching("could not be attributed"))
}

func TestCancelBeforeReadIssuesNoIO(t *testing.T) {
	d := fingerprintedDisk(32, 512, 8)
	r := NewSectorReader(d, nil)
	r.Cancel()
	r.Cancel()
	assert.True(t, r.Cancelled())

	_, err := r.ReadRange(0, 4)
	assert.ErrorIs(t, err, ErrCancelled)
	_, err = r.ReadRange(0, 32)
	assert.ErrorIs(t, err, ErrCancelled)
	_, err = r.ReadRangeExhaustive(0, 32)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Empty(t, d.calls)
}

func TestCancelBetweenSegments(t *testing.T) {
	d := fingerprintedDisk(64, 512, 8)
	r := NewSectorReader(d, nil)
	d.hook = func(c diskCall) error {
		if c.Sector == 8 {
			r.Cancel()
		}
		return nil
	}

	_, err := r.ReadRange(0, 64)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Len(t, d.calls, 2, "the in-flight call completes, nothing after it starts")
}

func TestCancelDuringSectorRetry(t *testing.T) {
	d := fingerprintedDisk(32, 512, 8)
	d.bad[6] = true
	r := NewSectorReader(d, nil)
	d.hook = func(c diskCall) error {
		if c.Op == "read1" && c.Sector == 2 {
			r.Cancel()
		}
		return nil
	}

	_, err := r.ReadRangeExhaustive(0, 8)
	assert.ErrorIs(t, err, ErrCancelled)
	last := d.calls[len(d.calls)-1]
	assert.Equal(t, uint64(2), last.Sector)
}
