// Package logs reads the audiogen log file for `audiogen logs`.
//
// Last returns the final lines with bounded memory and the offset where the
// file ended. Follow polls from an offset and emits new lines until the
// context ends, starting over when the file is truncated.
package logs
