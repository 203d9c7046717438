package diagnostics

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danmuck/legosorter/internal/mcp"
	"github.com/danmuck/legosorter/internal/protocol/session"
	"github.com/danmuck/legosorter/internal/testutil/mcptest"
	"github.com/danmuck/legosorter/internal/testutil/scenetest"
	"github.com/danmuck/legosorter/internal/testutil/testlog"
	"github.com/stretchr/testify/require"
)

func fastClient(addr string) *mcp.Client {
	cfg := session.DefaultConfig()
	cfg.ConnectTimeout = time.Second
	cfg.Timeout = time.Second
	cfg.PollInterval = 20 * time.Millisecond
	cfg.Retry.Sleep = func(context.Context, time.Duration) error { return nil }
	return mcp.NewClient(addr, cfg)
}

func TestWriteCSVLayouts(t *testing.T) {
	testlog.Start(t)
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, RaycastReport{Frame: 20, Collection: false}))
	require.Equal(t, "PART_NAME,TOP_Z,HIT_OBJECT,GAP_m\nNO_PARTS,0,None,\n", buf.String())

	buf.Reset()
	require.NoError(t, WriteCSV(&buf, RaycastReport{Frame: 20, Collection: true, Rows: []RaycastRow{
		{Name: "3001.dat", TopZ: scenetest.F(0.0712), Hit: true, HitObject: "Sorting_Bucket", Gap: scenetest.F(0.01)},
		{Name: "3023.dat", TopZ: scenetest.F(-0.5)},
		{Name: "3024.dat", Error: "no bound box"},
	}}))
	require.Equal(t, "PART_NAME,TOP_Z,HIT_OBJECT,GAP_m\n"+
		"3001.dat,0.071200,Sorting_Bucket,0.010000\n"+
		"3023.dat,-0.500000,,\n"+
		"3024.dat,ERROR,,no bound box\n", buf.String())
}

func TestRaycastWritesFrameCSV(t *testing.T) {
	testlog.Start(t)
	srv := mcptest.Start(t, mcptest.Payload(map[string]any{
		"frame":      7,
		"collection": true,
		"rows": []map[string]any{
			{"name": "3005.dat", "top_z": 0.2, "hit": true, "gap": 0.05, "hit_object": "Conveyor_Belt"},
		},
	}, "raycast_diagnostic: 1 parts at frame 7"))
	dir := filepath.Join(t.TempDir(), "renders")

	report, err := New(fastClient(srv.Addr()), dir).Raycast(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "diagnostic_frame07.csv"), report.Path)
	require.Len(t, report.Rows, 1)

	raw, err := os.ReadFile(report.Path)
	require.NoError(t, err)
	require.Equal(t, "PART_NAME,TOP_Z,HIT_OBJECT,GAP_m\n3005.dat,0.200000,Conveyor_Belt,0.050000\n", string(raw))
	require.Contains(t, srv.Requests()[0].Params.Code, "FRAME = 7")
}

func TestRaycastRejectsBadFrame(t *testing.T) {
	testlog.Start(t)
	_, err := New(nil, t.TempDir()).Raycast(context.Background(), 0)
	require.Error(t, err)
}

func TestRaycastPropagatesHostErrors(t *testing.T) {
	testlog.Start(t)
	srv := mcptest.Start(t, mcptest.Fail("no scene"))
	dir := t.TempDir()
	d := New(fastClient(srv.Addr()), dir)
	_, err := d.Raycast(context.Background(), DefaultRaycastFrame)
	require.True(t, mcp.IsRemote(err))
	require.NoFileExists(t, d.CSVPath(DefaultRaycastFrame))
}

func TestInspectDecodesAndPrints(t *testing.T) {
	testlog.Start(t)
	srv := mcptest.Start(t, mcptest.Payload(map[string]any{"frames": []map[string]any{
		{"frame": 1, "bucket_top_z": 0.09, "collection": true, "parts": []map[string]any{
			{"name": "3001.dat", "location": []any{0.01, 0, 0.25}, "rigid_body": true, "mass": 0.002, "shape": "CONVEX_HULL", "margin": 0.001},
			{"name": "3002.dat", "location": []any{nil, 0, 0}, "rigid_body": false},
		}},
		{"frame": 20, "bucket_top_z": nil, "collection": false},
	}}))

	states, err := New(fastClient(srv.Addr()), t.TempDir()).Inspect(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, states, 2)
	require.Contains(t, srv.Requests()[0].Params.Code, "FRAMES = [1, 20]")

	var buf bytes.Buffer
	PrintStates(&buf, states)
	require.Equal(t, "--- Frame 1 ---\n"+
		"Bucket top Z: 0.090000\n"+
		"3001.dat: loc=(0.010,0.000,0.250), rb=true, mass=0.002000, shape=CONVEX_HULL, margin=0.001000\n"+
		"3002.dat: loc=(None,0.000,0.000), rb=false, mass=None, shape=None, margin=None\n"+
		"--- Frame 20 ---\n"+
		"Bucket top Z: None\n"+
		"No lego_parts collection\n", buf.String())
}
