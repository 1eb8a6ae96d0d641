// Package trigger defines the unit of exchange between the two cooperating
// processes: the Trigger Record and its on-disk JSON form.
//
// A trigger file looks like:
//
//	{
//	  "action": "import_object",
//	  "timestamp": 1700000000.25,
//	  "data": {"fbx_path": "/x/fbx/hero.fbx", "object_name": "Hero"}
//	}
//
// and is named trigger_<action>_<unix-seconds>.json. After a consumer has
// handled it, the file is renamed with a ".processed" suffix and kept as
// history until swept.
//
// Records are untyped envelopes. Decode turns a record into one of the
// typed Command variants (ImportObject, ImportAnimation, ImportScene,
// ImportAllScenes, CleanKeyframes); an action outside that set is an
// explicit ErrCodeUnknownAction failure rather than a silent fallthrough.
//
// Digest gives every record a stable content hash (canonical JSON, NFC
// normalised strings, SHA-256 with domain separation) used by the journal.
package trigger
