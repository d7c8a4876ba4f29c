package ingest

const (
	// Raw posts read from a source, payload is the post as JSON.
	TOPIC_RAW_POST = "topic.raw_post"
	// Normalized records, payload is the record as JSON.
	TOPIC_NORMALIZED_RECORD = "topic.normalized_record"
	// Posts or records that could not go through, payload is what was received.
	TOPIC_DEAD_LETTER = "topic.dead_letter"

	// Position of the post in its source, carried along the whole chain.
	METADATA_SEQ = "seq"
	// Why a message ended in the dead letter topic.
	METADATA_ERROR = "error"
	// Stage that dead-lettered a message, one of STAGE_*.
	METADATA_STAGE = "stage"

	STAGE_NORMALIZE = "normalize"
	STAGE_PERSIST   = "persist"

	DDOG_RECORD_STATE_COUNTER = "postmux.ingest.record_state"
)
