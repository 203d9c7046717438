package scenario

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/legosorter/internal/mcp"
	"github.com/danmuck/legosorter/internal/protocol/session"
	"github.com/danmuck/legosorter/internal/scene"
	"github.com/danmuck/legosorter/internal/scripts"
	"github.com/danmuck/legosorter/internal/stages"
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

func track(name string, pts ...[3]float64) Track {
	tr := Track{Name: name}
	for i, p := range pts {
		tr.Samples = append(tr.Samples, Sample{
			Frame:    i + 1,
			Location: scenetest.Loc(p[0], p[1], p[2]),
			Rotation: scenetest.Loc(0, 0, 0),
			Finite:   true,
		})
	}
	return tr
}

func TestCatalogueLoads(t *testing.T) {
	testlog.Start(t)
	var names []string
	for _, s := range List() {
		names = append(names, s.Name)
		require.NotEmpty(t, s.Description, s.Name)
		require.NotEmpty(t, s.Checks, s.Name)
		require.Equal(t, scripts.ClearScene, s.Setup[0], s.Name)
	}
	require.Equal(t, []string{
		"basic_gravity", "conveyor_transport", "multiple_parts_separation", "bucket_hole_clearance",
		"physics_stability", "conveyor_friction", "material_assignment", "collection_organization",
		"camera_positioning", "lighting_setup",
	}, names)

	s, err := Get("physics_stability")
	require.NoError(t, err)
	require.Equal(t, 200, s.Frames)
	require.True(t, s.NeedsTracks())

	s, err = Get("lighting_setup")
	require.NoError(t, err)
	require.False(t, s.NeedsTracks())

	_, err = Get("levitation")
	require.ErrorIs(t, err, ErrUnknownScenario)
}

func TestParseRejectsBadEntries(t *testing.T) {
	testlog.Start(t)
	cases := map[string]string{
		"bad op":        "- {name: a, setup: [clear_scene], frames: 1, checks: [{metric: light_count, op: '~', value: 1}]}",
		"bad metric":    "- {name: a, setup: [clear_scene], frames: 1, checks: [{metric: vibes, op: '<', value: 1}]}",
		"unknown stage": "- {name: a, setup: [spawn_dragons], frames: 1}",
		"zero frames":   "- {name: a, setup: [clear_scene], frames: 0}",
		"duplicate":     "- {name: a, frames: 1}\n- {name: a, frames: 1}",
		"no name":       "- {frames: 1}",
		"not a list":    "name: a",
	}
	for name, raw := range cases {
		_, err := Parse([]byte(raw))
		require.Error(t, err, name)
	}
	_, err := Parse([]byte("- {name: a, setup: [clear_scene], frames: 1, checks: [{metric: vibes, op: '<', value: 1}]}"))
	require.ErrorIs(t, err, ErrInvalidCheck)
}

func TestSummary(t *testing.T) {
	testlog.Start(t)
	out := Summary("conveyor_friction")
	require.Contains(t, out, "Scenario: conveyor_friction")
	require.Contains(t, out, "  2. create_conveyor_belt")
	require.Contains(t, out, "Simulation Frames: 100")
	require.Contains(t, out, "max_backslide <= 0.001")
	require.Contains(t, out, "Validation Notes:")
	require.Equal(t, "Unknown scenario: nope", Summary("nope"))
}

func TestMeasureTracks(t *testing.T) {
	testlog.Start(t)
	stuck := track("stuck", [3]float64{0.05, 0, -0.05})
	stuck.Samples = append(stuck.Samples, Sample{Frame: 2, Location: [3]*float64{nil, scenetest.F(0), scenetest.F(0)}})
	tracks := &Tracks{Parts: []Track{
		track("falling", [3]float64{0, 0, 0.5}, [3]float64{0, 0, 0.3}, [3]float64{0, 0, 0.3}),
		track("sliding", [3]float64{1, 0, 1}, [3]float64{1.1, 0, 1}, [3]float64{1.05, 0, 1}),
		stuck,
	}}

	m := Measure(tracks, scene.Snapshot{}, scripts.DefaultParams())
	require.Equal(t, 3.0, m[MetricPartCount])
	require.Equal(t, 1.0, m[MetricNonFiniteSamples])
	require.InDelta(t, 0.2, m[MetricMaxSpeed], 1e-9)
	require.InDelta(t, 0.05, m[MetricFinalSpeedMax], 1e-9)
	require.InDelta(t, 0.05, m[MetricMaxBackslide], 1e-9)
	require.InDelta(t, 1.48661, m[MetricMaxAbsPosition], 1e-4)
	require.InDelta(t, 1.0, m[MetricFinalZMax], 1e-9)
	require.InDelta(t, -0.05, m[MetricFinalZMin], 1e-9)
	require.InDelta(t, 0.0, m[MetricFinalXMin], 1e-9)
	require.InDelta(t, 0.0, m[MetricNetXMin], 1e-9)
	require.Equal(t, 1.0, m[MetricStalledParts])
	require.Equal(t, 1.0, m[MetricPartsInBucket])
	require.Equal(t, 3.0, m[MetricPartsNotThroughHole])
	require.InDelta(t, 0.35355, m[MetricMinSpacing], 1e-4)
}

func TestMeasureWithoutTracksLeavesMotionUnset(t *testing.T) {
	testlog.Start(t)
	m := Measure(nil, scenetest.Healthy(10), scripts.DefaultParams())
	for metric := range trackMetrics {
		_, ok := m[metric]
		require.False(t, ok, metric)
	}
	require.Equal(t, 10.0, m[MetricPartCount])
}

func TestMeasureScene(t *testing.T) {
	testlog.Start(t)
	snap := scenetest.Healthy(10)
	m := Measure(nil, snap, scripts.DefaultParams())
	require.Equal(t, 1.0, m[MetricBucketMaterials])
	require.Equal(t, 1.0, m[MetricConveyorMaterials])
	require.Equal(t, 0.0, m[MetricPartsWithoutMaterial])
	require.Equal(t, 1.0, m[MetricBucketCollection])
	require.Equal(t, 1.0, m[MetricConveyorCollection])
	require.Equal(t, 1.0, m[MetricPartsCollection])
	require.Equal(t, 0.0, m[MetricMisplacedObjects])
	require.Equal(t, 1.0, m[MetricCameraExists])
	require.InDelta(t, 2.41039, m[MetricCameraDistance], 1e-4)
	require.Equal(t, 3.0, m[MetricLightCount])
	require.Equal(t, 1.0, m[MetricKeyLight])
	require.Equal(t, 1.0, m[MetricRimLight])

	scenetest.Mutate(&snap, "part_03", func(o *scene.Object) {
		o.Collections = append(o.Collections, "Collection")
		o.Materials = 0
	})
	snap = scenetest.Remove(snap, scripts.LightFill)
	m = Measure(nil, snap, scripts.DefaultParams())
	require.Equal(t, 1.0, m[MetricMisplacedObjects])
	require.Equal(t, 1.0, m[MetricPartsWithoutMaterial])
	require.Equal(t, 0.0, m[MetricFillLight])
	require.Equal(t, 2.0, m[MetricLightCount])
}

func TestEvaluate(t *testing.T) {
	testlog.Start(t)
	s := Scenario{Name: "x", Checks: []Check{
		{Metric: MetricLightCount, Op: ">=", Value: 3},
		{Metric: MetricCameraDistance, Op: "<", Value: 10},
		{Metric: MetricMinSpacing, Op: ">", Value: 0.05},
	}}
	issues := Evaluate(s, Measurements{MetricLightCount: 3, MetricCameraDistance: 12})
	require.Len(t, issues, 2)
	require.Equal(t, MetricCameraDistance, issues[0].Check.Metric)
	require.Equal(t, 12.0, *issues[0].Actual)
	require.Contains(t, issues[0].String(), "expected < 10")
	require.Nil(t, issues[1].Actual)
	require.Contains(t, issues[1].Message, "no data")

	require.Empty(t, Evaluate(s, Measurements{MetricLightCount: 4, MetricCameraDistance: 3, MetricMinSpacing: 0.2}))
}

func stableTracks(n, frames int) Tracks {
	var out Tracks
	for i := 0; i < n; i++ {
		pts := make([][3]float64, frames)
		for f := range pts {
			pts[f] = [3]float64{0.1 * float64(i), 0, 0.05}
		}
		out.Parts = append(out.Parts, track(fmt.Sprintf("part_%02d", i), pts...))
	}
	return out
}

func TestRunnerEvaluatesSceneOnlyScenario(t *testing.T) {
	testlog.Start(t)
	srv := mcptest.Start(t, mcptest.Route(map[string]mcptest.Handler{
		"scene_state:": mcptest.Payload(scenetest.Healthy(10), "scene_state: ok"),
	}, mcptest.Reply("stage ok")))
	client := fastClient(srv.Addr())
	r := NewRunner(client, stages.NewRunner(client, nil), scripts.DefaultParams())

	res, err := r.Run(context.Background(), "lighting_setup")
	require.NoError(t, err)
	require.True(t, res.Passed(), "%v", res.Issues)
	require.Len(t, res.Setup.Results, 2)
	require.Len(t, srv.Requests(), 3)
	for _, req := range srv.Requests() {
		require.NotContains(t, req.Params.Code, "part_tracks:")
	}
}

func TestRunnerSamplesEveryFrame(t *testing.T) {
	testlog.Start(t)
	srv := mcptest.Start(t, mcptest.Route(map[string]mcptest.Handler{
		"part_tracks:": mcptest.Payload(stableTracks(4, 200)),
		"scene_state:": mcptest.Payload(scenetest.Healthy(4)),
	}, mcptest.Reply("stage ok")))
	client := fastClient(srv.Addr())
	r := NewRunner(client, stages.NewRunner(client, nil), scripts.DefaultParams())

	res, err := r.Run(context.Background(), "physics_stability")
	require.NoError(t, err)
	require.True(t, res.Passed(), "%v", res.Issues)
	require.Equal(t, 0.0, res.Measurements[MetricMaxSpeed])

	var probe string
	for _, req := range srv.Requests() {
		if strings.Contains(req.Params.Code, "part_tracks:") {
			probe = req.Params.Code
		}
	}
	require.Contains(t, probe, "FRAMES = [1, 2, 3,")
	require.Contains(t, probe, ", 199, 200]")
}

func TestRunnerBakesEveryScenarioFrame(t *testing.T) {
	testlog.Start(t)
	srv := mcptest.Start(t, mcptest.Route(map[string]mcptest.Handler{
		"part_tracks:": mcptest.Payload(stableTracks(4, 200)),
		"scene_state:": mcptest.Payload(scenetest.Healthy(4)),
	}, mcptest.Reply("stage ok")))
	client := fastClient(srv.Addr())
	r := NewRunner(client, stages.NewRunner(client, nil), scripts.DefaultParams())

	_, err := r.Run(context.Background(), "physics_stability")
	require.NoError(t, err)

	var physics string
	for _, req := range srv.Requests() {
		if strings.Contains(req.Params.Code, "FRAME_END = ") {
			physics = req.Params.Code
		}
	}
	require.Contains(t, physics, "FRAME_END = 200\n")

	// shorter scenarios keep the configured range
	srv = mcptest.Start(t, mcptest.Route(map[string]mcptest.Handler{
		"part_tracks:": mcptest.Payload(stableTracks(2, 50)),
		"scene_state:": mcptest.Payload(scenetest.Healthy(2)),
	}, mcptest.Reply("stage ok")))
	client = fastClient(srv.Addr())
	r = NewRunner(client, stages.NewRunner(client, nil), scripts.DefaultParams())
	_, err = r.Run(context.Background(), "basic_gravity")
	require.NoError(t, err)
	physics = ""
	for _, req := range srv.Requests() {
		if strings.Contains(req.Params.Code, "FRAME_END = ") {
			physics = req.Params.Code
		}
	}
	require.Contains(t, physics, "FRAME_END = 100\n")
}

func TestRunnerReportsFailedChecks(t *testing.T) {
	testlog.Start(t)
	srv := mcptest.Start(t, mcptest.Route(map[string]mcptest.Handler{
		"part_tracks:": mcptest.Payload(stableTracks(2, 100)),
		"scene_state:": mcptest.Payload(scenetest.Healthy(2)),
	}, mcptest.Reply("stage ok")))
	client := fastClient(srv.Addr())
	r := NewRunner(client, stages.NewRunner(client, nil), scripts.DefaultParams())

	res, err := r.Run(context.Background(), "conveyor_transport")
	require.NoError(t, err)
	require.False(t, res.Passed())
	require.Len(t, res.Issues, 2)
	require.Equal(t, MetricFinalXMin, res.Issues[0].Check.Metric)
	require.Equal(t, MetricFinalZMin, res.Issues[1].Check.Metric)
}

func TestRunnerStopsOnSetupFailure(t *testing.T) {
	testlog.Start(t)
	srv := mcptest.Start(t, mcptest.Fail("bpy exploded"))
	client := fastClient(srv.Addr())
	r := NewRunner(client, stages.NewRunner(client, nil), scripts.DefaultParams())

	res, err := r.Run(context.Background(), "basic_gravity")
	require.Error(t, err)
	require.True(t, mcp.IsRemote(err))
	require.Equal(t, stages.RunAborted, res.Setup.Status)
	require.Len(t, srv.Requests(), 1)
	require.False(t, res.Passed())
}
