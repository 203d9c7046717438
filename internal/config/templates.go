package config

import (
	"fmt"
	"os"
)

// Template is a commented legosorter.toml with every default spelled out.
func Template() string {
	return sorterTemplate
}

func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(sorterTemplate), 0o600)
}

const sorterTemplate = `# legosorter configuration.
# Environment overrides: BLENDER_MCP_HOST, BLENDER_MCP_PORT, BLENDER_MCP_TIMEOUT (seconds),
# BLENDER_MCP_DEBUG, SKIP_CONVEYOR, LEGOSORTER_RENDER_DIR.

debug = false

[blender]
host = "localhost"
port = 9876
connect_timeout = "5s"
timeout = "120s"
poll_interval = "500ms"
heartbeat_interval = "10s"

# Reach a host add-on bound to the loopback of another machine.
# [blender.ssh]
# host = "render-box"
# port = "22"
# user = "artist"
# key_path = "~/.ssh/id_ed25519"
# known_hosts_path = "~/.ssh/known_hosts"
# timeout = "10s"

[retry]
attempts = 3
initial_delay = "1s"
multiplier = 2.0
max_delay = "30s"
jitter = false

[pipeline]
skip_conveyor = false
continue_on_error = true

[pipeline.stage_timeouts]
clear_scene = "30s"
create_sorting_bucket = "60s"
create_conveyor_belt = "60s"
import_lego_parts = "180s"
animate_lego_physics = "300s"
setup_lighting = "60s"

[scene.bucket]
radius = 0.12
height = 0.18
inner_top_radius = 0.11
inner_bottom_radius = 0.03
hole_radius = 0.04
hole_location = [0.11, 0.0, 1.02]
mass = 50.0
friction = 0.8
restitution = 0.3

[scene.conveyor]
location = [0.25, 0.0, 0.95]
scale = [1.5, 0.3, 0.02]
incline = 0.1
subdivide = 8
friction = 0.3
restitution = 0.1
support_x = [0.0, 0.5]
support_z = 0.85

[scene.parts]
ldraw_path = "/Applications/Studio 2.0/ldraw/parts/"
# names = ["3001", "3003"]   # omit to use the built-in common part list
count = 10
spawn_z = 0.25
spread = 0.08
spacing = 0.05
mass = 0.002
friction = 0.9
restitution = 0.4
damping = 0.1
seed = 0

[scene.physics]
gravity = -9.81
substeps = 60
solver_iterations = 120
frame_start = 1
frame_end = 100
ground_size = 5.0

[scene.lighting]
key_watts = 800.0
fill_watts = 400.0
rim_watts = 600.0
ambient_strength = 0.2
ambient_color = [0.9, 0.95, 1.0]

[render]
dir = "renders"
frames = [1, 5, 10, 20]
ortho_views = ["front", "back", "right", "left", "top", "bottom", "iso_ne", "iso_nw", "iso_se", "iso_sw"]
# perspective_views = ["diag", "front", "side", "diag_left"]
engine = "BLENDER_EEVEE_NEXT"
resolution_x = 1920
resolution_y = 1080
percentage = 100
clip_start = 0.01
clip_end = 2000.0
lens_mm = 50.0
ortho_padding = 1.05
bounds_frame = 1
clear = true

[history]
# path = "legosorter.db"

[server]
addr = "127.0.0.1:8087"
cors_origins = ["http://localhost:3000"]
# token = "change-me"

[logging]
# file = "legosorter.log"
`
