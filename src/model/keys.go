package model

// Redis key layout, one entry per user id or dependency name
//
// turn_summary:{user_id}  // TurnSummary JSON, sliding TTL
// responses:{user_id}     // list of ResponseRecord JSON, newest first, capped
// transcript:{user_id}    // eino messages JSON, trimmed to the last N
// circuit:{dependency}    // CircuitRecord JSON, TTL refreshed on every write
const (
	SummaryKeyPrefix    = "turn_summary:"
	ResponsesKeyPrefix  = "responses:"
	TranscriptKeyPrefix = "transcript:"
	CircuitKeyPrefix    = "circuit:"
)
