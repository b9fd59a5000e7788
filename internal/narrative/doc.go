// Package narrative turns analyzed content into structured story text. A
// story is generated in three phases (structure plan, prose, auxiliary
// artifacts); each phase falls back to a deterministic template when the
// backend call fails, so generation never raises for a malformed model
// response.
package narrative
