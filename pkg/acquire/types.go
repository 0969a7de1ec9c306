// Package acquire holds the data model and line-protocol core shared by
// both worker binaries: the parsed request/status message types, the tag
// lookup helper, and the Method type that drives the read-dispatch-reply
// loop against a URIAcquirer.
package acquire

import "time"

// FetchItem is one URI-acquisition request handed down by the parent
// process. It is immutable for the duration of a single fetch attempt.
type FetchItem struct {
	URI          string
	Filename     string
	LastModified time.Time
	SignedBy     string
}

// FetchResult is what a worker reports back after acting on a FetchItem.
type FetchResult struct {
	Filename     string
	Size         int64
	LastModified time.Time
	ResumePoint  int64
	IMSHit       bool
	MD5Hash      string

	// SignerLines carries the gpgv worker's classified signer identities
	// (Good, then Bad, then NoPubKey, each group in encounter order). The
	// HTTP worker leaves this nil.
	SignerLines []string
}
