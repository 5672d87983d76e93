// Package upload sends melody files to the generation server.
//
// Files are sniffed before sending; anything that is not audio is rejected
// locally with ErrUnsupported, matching the server's own audio/* check. A
// successful upload yields the server-relative path that melody-mode
// submissions reference.
package upload
