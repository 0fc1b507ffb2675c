// CLAUDE:SUMMARY Canonical data model: Watch, Snapshot, Change, AgentMemory and their JSON-encoded sub-shapes.
package store

// Engine selects the mechanism used to acquire raw bytes for a watch.
type Engine string

const (
	EngineHTTP     Engine = "http"
	EngineJSRender Engine = "js-render"
	EngineRSS      Engine = "rss"
	EngineShell    Engine = "shell"
)

// ExtractionStrategy selects how a content slice is chosen from raw bytes.
type ExtractionStrategy string

const (
	ExtractAuto     ExtractionStrategy = "auto"
	ExtractSelector ExtractionStrategy = "selector"
	ExtractFull     ExtractionStrategy = "full"
	ExtractMeta     ExtractionStrategy = "meta"
	ExtractRSS      ExtractionStrategy = "rss"
	ExtractJSONLD   ExtractionStrategy = "json_ld"
)

// Extraction configures the extraction step for a watch.
type Extraction struct {
	Strategy ExtractionStrategy `json:"strategy"`
	Selector string             `json:"selector,omitempty"` // CSS selector(s), comma-separated, for ExtractSelector
}

// Normalization is the set of canonicalisation toggles applied before hashing.
type Normalization struct {
	StripWhitespace bool `json:"strip_whitespace"`
	StripDates      bool `json:"strip_dates"`
	StripRandomIDs  bool `json:"strip_random_ids"`
}

// DefaultNormalization returns the conservative default: whitespace
// stripping on, date/ID stripping off.
func DefaultNormalization() Normalization {
	return Normalization{StripWhitespace: true}
}

// FilterKind tags the variant of a FilterRule.
type FilterKind string

const (
	FilterIncludeContains FilterKind = "include_contains"
	FilterExcludeContains FilterKind = "exclude_contains"
	FilterIncludeRegex    FilterKind = "include_regex"
	FilterExcludeRegex    FilterKind = "exclude_regex"
	FilterMinChangedChars FilterKind = "min_changed_chars"
	FilterMaxChangedChars FilterKind = "max_changed_chars"
	FilterOnlyAdditions   FilterKind = "only_additions"
	FilterOnlyRemovals    FilterKind = "only_removals"
)

// FilterRule is one tagged rule in a watch's ordered filter list.
type FilterRule struct {
	Kind    FilterKind `json:"kind"`
	Pattern string     `json:"pattern,omitempty"` // substring or regex, for *Contains / *Regex kinds
	N       int        `json:"n,omitempty"`       // threshold, for Min/MaxChangedChars
}

// AgentConfig configures whether and how the external agent subprocess is consulted.
type AgentConfig struct {
	Enabled      bool   `json:"enabled"`
	Instructions string `json:"instructions,omitempty"`
	UseProfile   bool   `json:"use_profile,omitempty"`
}

// Watch is a monitoring configuration.
type Watch struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	URL           string            `json:"url"`
	Engine        Engine            `json:"engine"`
	Extraction    Extraction        `json:"extraction"`
	Normalization Normalization     `json:"normalization"`
	Filters       []FilterRule      `json:"filters"`
	AgentConfig   AgentConfig       `json:"agent_config"`
	IntervalSecs  int64             `json:"interval_secs"`
	Enabled       bool              `json:"enabled"`
	Headers       map[string]string `json:"headers"`
	CookieFile    string            `json:"cookie_file,omitempty"`
	StorageState  string            `json:"storage_state,omitempty"`
	NotifyTarget  string            `json:"notify_target,omitempty"`
	Tags          []string          `json:"tags"`
	CreatedAt     int64             `json:"created_at"`

	// LastError, FailCount and LastAttemptAt track fetch health. Only
	// LastAttemptAt affects scheduling (next due = LastAttemptAt +
	// IntervalSecs); the scheduler does not back off a failing watch.
	LastError     string `json:"last_error,omitempty"`
	FailCount     int    `json:"fail_count"`
	LastAttemptAt int64  `json:"last_attempt_at,omitempty"`
}

// NewWatch builds a Watch with sensible defaults applied: enabled,
// interval_secs=900, whitespace-only normalization, http engine, auto
// extraction, no filters, no agent.
func NewWatch(id, name, url string) *Watch {
	return &Watch{
		ID:            id,
		Name:          name,
		URL:           url,
		Engine:        EngineHTTP,
		Extraction:    Extraction{Strategy: ExtractAuto},
		Normalization: DefaultNormalization(),
		IntervalSecs:  900,
		Enabled:       true,
		Headers:       map[string]string{},
		Tags:          []string{},
	}
}

// Snapshot is a point-in-time observation of a watch.
type Snapshot struct {
	ID        string `json:"id"`
	WatchID   string `json:"watch_id"`
	FetchedAt int64  `json:"fetched_at"`
	Raw       []byte `json:"raw,omitempty"` // nil once pruned
	Extracted string `json:"extracted"`
	// ContentHash is the SHA-256 of Extracted (post-normalization); it is
	// the sole equality predicate for change detection.
	ContentHash string `json:"content_hash"`
	// RawHash is the SHA-256 of the raw fetch body, a distinct hash space
	// from ContentHash. It drives the fetcher's raw-fetch-unchanged
	// short-circuit so unpacking a byte-identical response never reaches
	// extraction.
	RawHash string `json:"raw_hash,omitempty"`
	ETag    string `json:"etag,omitempty"`
	LastMod string `json:"last_modified,omitempty"`
}

// Change is a detected transition between two consecutive snapshots whose
// content hashes differ.
type Change struct {
	ID            string  `json:"id"`
	WatchID       string  `json:"watch_id"`
	DetectedAt    int64   `json:"detected_at"`
	OldSnapshotID string  `json:"old_snapshot_id"`
	NewSnapshotID string  `json:"new_snapshot_id"`
	Diff          string  `json:"diff"`
	FilterPassed  bool    `json:"filter_passed"`
	AgentResponse *string `json:"agent_response,omitempty"` // JSON-encoded AgentVerdict, or nil
	Notified      bool    `json:"notified"`
}

// AgentVerdict is the structured reply expected from the agent subprocess.
type AgentVerdict struct {
	Notify         bool                   `json:"notify"`
	Title          string                 `json:"title"`
	Summary        string                 `json:"summary"`
	MemoryUpdates  map[string]interface{} `json:"memory_updates,omitempty"`
	Reasoning      string                 `json:"reasoning,omitempty"`
}

// AgentMemory is a per-watch scratchpad the external agent reads and writes.
type AgentMemory struct {
	WatchID   string                 `json:"watch_id"`
	Memory    map[string]interface{} `json:"memory"`
	UpdatedAt int64                  `json:"updated_at"`
}

// MaxMemoryBytes bounds the serialized size of a watch's AgentMemory. Beyond
// this, keys are dropped in unspecified order (Go maps carry no order) until
// the document fits.
const MaxMemoryBytes = 16 * 1024

// IsOverLimit reports whether an estimate of the memory document's JSON size
// (key and string lengths plus fixed per-entry overhead) exceeds
// MaxMemoryBytes.
func (m *AgentMemory) IsOverLimit() bool {
	return memorySize(m.Memory) > MaxMemoryBytes
}

// TruncateToLimit drops entries from Memory until it fits within
// MaxMemoryBytes. Order of removal is unspecified since map iteration order
// is unspecified; callers that need stable pruning should hold a bounded key
// set instead.
func (m *AgentMemory) TruncateToLimit() {
	for m.IsOverLimit() && len(m.Memory) > 0 {
		for k := range m.Memory {
			delete(m.Memory, k)
			break
		}
	}
}

func memorySize(m map[string]interface{}) int {
	n := 2 // braces
	for k, v := range m {
		n += len(k) + 4
		switch vv := v.(type) {
		case string:
			n += len(vv)
		default:
			n += 8
		}
	}
	return n
}
