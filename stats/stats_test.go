package stats

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hdvalidator/surface"
)

type stubDisk struct {
	readErr  error
	writeErr error
}

func (stubDisk) BytesPerSector() int     { return 512 }
func (stubDisk) TotalSectors() uint64    { return 1024 }
func (stubDisk) MaxTransferSectors() int { return 8 }

func (d stubDisk) ReadSectors(_ uint64, count int) ([]byte, error) {
	if d.readErr != nil {
		return nil, d.readErr
	}
	return make([]byte, count*512), nil
}

func (d stubDisk) ReadSector(sector uint64) ([]byte, error) { return d.ReadSectors(sector, 1) }

func (d stubDisk) WriteSectors(uint64, []byte) error { return d.writeErr }

func TestInstrumentCountsCalls(t *testing.T) {
	okBefore := testutil.ToFloat64(DiskOpCounter.WithLabelValues("read", ResultOK))
	bytesBefore := testutil.ToFloat64(DiskBytesCounter.WithLabelValues("read"))
	writeBefore := testutil.ToFloat64(DiskBytesCounter.WithLabelValues("write"))

	d := Instrument(stubDisk{})
	assert.Equal(t, 512, d.BytesPerSector())
	assert.Equal(t, uint64(1024), d.TotalSectors())

	_, err := d.ReadSectors(0, 4)
	require.NoError(t, err)
	require.NoError(t, d.WriteSectors(0, make([]byte, 1024)))

	assert.Equal(t, okBefore+1, testutil.ToFloat64(DiskOpCounter.WithLabelValues("read", ResultOK)))
	assert.Equal(t, bytesBefore+2048, testutil.ToFloat64(DiskBytesCounter.WithLabelValues("read")))
	assert.Equal(t, writeBefore+1024, testutil.ToFloat64(DiskBytesCounter.WithLabelValues("write")))
}

func TestInstrumentClassifiesErrors(t *testing.T) {
	media := &surface.DeviceError{Op: "read", Code: 5, Media: true, Err: errors.New("eio")}
	fatal := &surface.DeviceError{Op: "write", Code: 19, Err: errors.New("enodev")}
	mediaBefore := testutil.ToFloat64(DiskOpCounter.WithLabelValues("read_sector", ResultMedia))
	fatalBefore := testutil.ToFloat64(DiskOpCounter.WithLabelValues("write", ResultFatal))

	d := Instrument(stubDisk{readErr: media, writeErr: fatal})
	_, err := d.ReadSector(3)
	assert.Same(t, media, err)
	assert.Same(t, fatal, d.WriteSectors(0, make([]byte, 512)))

	assert.Equal(t, mediaBefore+1, testutil.ToFloat64(DiskOpCounter.WithLabelValues("read_sector", ResultMedia)))
	assert.Equal(t, fatalBefore+1, testutil.ToFloat64(DiskOpCounter.WithLabelValues("write", ResultFatal)))
}

func TestRecordBlockAndProgress(t *testing.T) {
	before := testutil.ToFloat64(BlockCounter.WithLabelValues("Overwrite OK"))
	RecordBlock(surface.OverwriteOK)
	assert.Equal(t, before+1, testutil.ToFloat64(BlockCounter.WithLabelValues("Overwrite OK")))

	RecordProgress(4096, 1.5e6)
	assert.Equal(t, 4096.0, testutil.ToFloat64(PositionGauge))
	assert.Equal(t, 1.5e6, testutil.ToFloat64(SpeedGauge))
}

func TestMetricsServer(t *testing.T) {
	none, err := StartMetricsServer("")
	require.NoError(t, err)
	assert.Nil(t, none)
	assert.NoError(t, none.Shutdown(context.Background()))

	s, err := StartMetricsServer("127.0.0.1:0")
	require.NoError(t, err)
	defer s.Shutdown(context.Background())

	RecordBlock(surface.OK)
	resp, err := http.Get("http://" + s.Addr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `hdvalidator_test_blocks_total{status="OK"}`)
}

func TestPush(t *testing.T) {
	var method, path string
	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		w.WriteHeader(http.StatusAccepted)
	}))
	defer gw.Close()

	require.NoError(t, Push(gw.URL, "run-1"))
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/metrics/job/hdvalidator/run_id/run-1", path)

	assert.NoError(t, Push("", "run-1"))
}
