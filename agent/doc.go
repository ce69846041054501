// Package agent contains the model driven agent of the service and the
// factory that produces one per run.
//
// A ModelAgent couples a language model, an instruction and the static tool
// catalog, and executes runs through the flow package. Agents are cheap and
// single-use: the runner asks a Factory for a new one every run, so nothing
// but the shared proverb store and the session history survives between
// runs.
package agent
