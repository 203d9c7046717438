// Package protocol owns the BlenderMCP wire contract.
//
// Ownership boundary:
// - execute_code request envelope (one JSON object per line)
// - response envelope decoding and result flattening
// - probe payload framing inside script output
package protocol
