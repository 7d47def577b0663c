// Package event defines the status-update wire format and its validation.
//
// Conventions:
//   - All fields are strings; the wire format is a flat JSON object.
//   - merchant_id, project, ref form the join key used for routing.
//   - status/message are required only for task-completion types ("*.Task").
package event
