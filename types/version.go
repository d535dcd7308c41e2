package types

// Version is the canonical project version.
// The CLI, the snapshot JSON shape and the notification event share it.
const Version = "0.1.0"

// SchemaVersion is the version of the serialized Snapshot and event shapes.
// It moves in lockstep with Version.
const SchemaVersion = Version
