package scripts

// Scene object and collection names shared by the host scripts and the Go side checks.
const (
	CollectionBucket   = "bucket"
	CollectionConveyor = "conveyor_belt"
	CollectionParts    = "lego_parts"
	CollectionLighting = "lighting"

	ObjectBucket         = "Sorting_Bucket"
	ObjectBucketCollider = "Sorting_Bucket_Collider"
	ObjectConveyor       = "Conveyor_Belt"
	ObjectGround         = "Physics_Ground"
	ObjectCamera         = "SorterCam"

	LightKey  = "Key_Light"
	LightFill = "Fill_Light"
	LightRim  = "Rim_Light"
)

// Vec3 is a TOML-friendly [x, y, z].
type Vec3 [3]float64

// Params parameterizes every stage script.
type Params struct {
	Bucket   BucketParams   `toml:"bucket"`
	Conveyor ConveyorParams `toml:"conveyor"`
	Parts    PartsParams    `toml:"parts"`
	Physics  PhysicsParams  `toml:"physics"`
	Lighting LightingParams `toml:"lighting"`
}

type BucketParams struct {
	Radius            float64 `toml:"radius"`
	Height            float64 `toml:"height"`
	InnerTopRadius    float64 `toml:"inner_top_radius"`
	InnerBottomRadius float64 `toml:"inner_bottom_radius"`
	HoleRadius        float64 `toml:"hole_radius"`
	HoleLocation      Vec3    `toml:"hole_location"`
	Mass              float64 `toml:"mass"`
	Friction          float64 `toml:"friction"`
	Restitution       float64 `toml:"restitution"`
}

type ConveyorParams struct {
	Location    Vec3      `toml:"location"`
	Scale       Vec3      `toml:"scale"`
	Incline     float64   `toml:"incline"`
	Subdivide   int       `toml:"subdivide"`
	Friction    float64   `toml:"friction"`
	Restitution float64   `toml:"restitution"`
	SupportX    []float64 `toml:"support_x"`
	SupportZ    float64   `toml:"support_z"`
}

type PartsParams struct {
	LDrawPath   string   `toml:"ldraw_path"`
	Names       []string `toml:"names"`
	Count       int      `toml:"count"`
	SpawnZ      float64  `toml:"spawn_z"`
	Spread      float64  `toml:"spread"`
	Spacing     float64  `toml:"spacing"`
	Mass        float64  `toml:"mass"`
	Friction    float64  `toml:"friction"`
	Restitution float64  `toml:"restitution"`
	Damping     float64  `toml:"damping"`
	Seed        int64    `toml:"seed"`
}

type PhysicsParams struct {
	Gravity          float64 `toml:"gravity"`
	Substeps         int     `toml:"substeps"`
	SolverIterations int     `toml:"solver_iterations"`
	FrameStart       int     `toml:"frame_start"`
	FrameEnd         int     `toml:"frame_end"`
	GroundSize       float64 `toml:"ground_size"`
}

type LightingParams struct {
	KeyWatts        float64 `toml:"key_watts"`
	FillWatts       float64 `toml:"fill_watts"`
	RimWatts        float64 `toml:"rim_watts"`
	AmbientStrength float64 `toml:"ambient_strength"`
	AmbientColor    Vec3    `toml:"ambient_color"`
}

// DefaultLDrawPath is where Studio 2.0 installs the LDraw part library on macOS.
const DefaultLDrawPath = "/Applications/Studio 2.0/ldraw/parts/"

// CommonParts lists frequently used LEGO part numbers, most common first.
var CommonParts = []string{
	"4073", "3023", "3024", "2780", "54200", "3069b", "3710", "3005", "3020", "3022",
	"2412b", "6558", "15573", "98138", "3070b", "3021", "3003", "3666", "3623", "11477",
	"2431", "85984", "4274", "3010", "3001", "3062b", "2420", "15068", "43093", "87580",
	"3795", "3068b", "25269", "3004", "3008", "3705", "4865b", "11458", "42003", "3039",
	"3040", "3622", "3009", "3700", "6632", "32000", "30236", "3062", "3009pb02", "2458",
	"14719", "3066", "2450", "32062", "6636", "4032", "26047", "3176", "6141", "4273",
	"32073", "3665", "2819", "41678", "2460", "3673", "3937", "11211", "2877", "43857",
	"30363", "6140", "4085d", "99207", "3680", "2456", "4477", "3832", "3002", "3007",
	"3749", "48336", "18654", "41750", "2540", "32063", "32064", "4485", "32013", "6536",
	"92947", "43722", "60477", "18651", "30057", "2357", "6081", "4286", "32523", "32009",
	"42107", "15207", "4716", "14704", "42610", "3794", "2429c01", "6538", "30162",
}

// DefaultParams returns the reference sorter geometry.
func DefaultParams() Params {
	return Params{
		Bucket: BucketParams{
			Radius:            0.12,
			Height:            0.18,
			InnerTopRadius:    0.11,
			InnerBottomRadius: 0.03,
			HoleRadius:        0.04,
			HoleLocation:      Vec3{0.11, 0, 1.02},
			Mass:              50,
			Friction:          0.8,
			Restitution:       0.3,
		},
		Conveyor: ConveyorParams{
			Location:    Vec3{0.25, 0, 0.95},
			Scale:       Vec3{1.5, 0.3, 0.02},
			Incline:     0.1,
			Subdivide:   8,
			Friction:    0.3,
			Restitution: 0.1,
			SupportX:    []float64{0.0, 0.5},
			SupportZ:    0.85,
		},
		Parts: PartsParams{
			LDrawPath:   DefaultLDrawPath,
			Names:       append([]string(nil), CommonParts...),
			Count:       10,
			SpawnZ:      0.25,
			Spread:      0.08,
			Spacing:     0.05,
			Mass:        0.002,
			Friction:    0.9,
			Restitution: 0.4,
			Damping:     0.1,
		},
		Physics: PhysicsParams{
			Gravity:          -9.81,
			Substeps:         60,
			SolverIterations: 120,
			FrameStart:       1,
			FrameEnd:         100,
			GroundSize:       5,
		},
		Lighting: LightingParams{
			KeyWatts:        800,
			FillWatts:       400,
			RimWatts:        600,
			AmbientStrength: 0.2,
			AmbientColor:    Vec3{0.9, 0.95, 1.0},
		},
	}
}

// SelectedParts is the slice of Names the import stage loads.
func (p PartsParams) SelectedParts() []string {
	if p.Count <= 0 || p.Count >= len(p.Names) {
		return p.Names
	}
	return p.Names[:p.Count]
}
