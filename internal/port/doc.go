// Package port implements the concurrent TCP-connect scan engine.
//
// The 16-bit port space is split across N workers by striding:
//
//	worker i scans i+1, i+1+N, i+1+2N, ... while the port is <= 65535
//
// This gives every port in 1-65535 exactly one owner for any N in
// [1, 65535]. Port 0 is never scanned. Workers report open ports through a
// single Collector intake; the Scanner closes the intake only after every
// worker has returned, then the Collector sorts and hands back the result.
package port
