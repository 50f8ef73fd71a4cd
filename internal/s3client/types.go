// Package s3client issues signed ListObjects calls against the S3 REST
// API and turns the XML response into typed results. It owns its own
// transport: one TLS or plain TCP connection per request, no retries —
// retry policy belongs to the caller (the Worker).
package s3client

import "time"

// Object is one entry under Contents in a ListBucketResult. Optional
// fields are nil when the server omitted them.
type Object struct {
	Key               string
	ETag              *string
	Size              *int64
	LastModified      *time.Time
	StorageClass      *string
	ChecksumAlgorithm *string
	ChecksumType      *string
	Owner             *Owner
	RestoreStatus     *string
}

// Owner is the optional Contents/Owner block, present only when the
// caller asked for it (fetch_owner on V2, always eligible on V1).
type Owner struct {
	ID          string
	DisplayName string
}

// ListingResult is the union of the V1 and V2 response shapes. The
// token fields distinguish the two APIs: V1 populates PrevToken/NextToken
// from Marker/NextMarker, V2 from ContinuationToken/NextContinuationToken;
// everything else is identical.
type ListingResult struct {
	Objects      []Object
	SubPrefixes  []string
	IsTruncated  bool
	PrevToken    string
	NextToken    string
}

// Params is the superset of parameters accepted by ListV1 and ListV2.
// Marker is consumed only by ListV1, ContinuationToken and FetchOwner
// and StartAfter only by ListV2.
type Params struct {
	Bucket             string
	Prefix             string
	Delimiter          string
	EncodingType       string
	MaxKeys            int
	Marker             string
	ContinuationToken  string
	FetchOwner         bool
	StartAfter         string
}
