package outbox

const snapshotRecordedSchema = `{
  "type": "object",
  "title": "SnapshotRecorded",
  "properties": {
    "snapshot_id": {"type": "string"},
    "tenant_id": {"type": "string"},
    "user_id": {"type": "string"},
    "application": {"type": "string"},
    "window_title": {"type": "string"},
    "observed_at": {"type": "string", "format": "date-time"},
    "duration_seconds": {"type": "number"},
    "is_active": {"type": "boolean"},
    "is_focused": {"type": "boolean"},
    "memory_mb": {"type": "number"},
    "cpu_percent": {"type": "number"},
    "source": {"type": "string"}
  },
  "required": ["snapshot_id", "tenant_id", "user_id", "application", "observed_at", "duration_seconds", "source"],
  "additionalProperties": false
}`
