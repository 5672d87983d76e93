// Package preflight provides readiness checks for the generation server and
// the local paths audiogen writes to.
//
// The CLI "audiogen status" command runs RunAll and prints one line per
// check. The individual checks are exported so other commands can verify a
// single dependency before doing real work.
package preflight
