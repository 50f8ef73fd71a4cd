package s3client

import (
	"encoding/xml"
	"fmt"
	"time"
)

// listBucketResultXML mirrors the subset of ListBucketResult this
// client consumes: CommonPrefixes/Prefix, Contents/{Key,ETag,Size,
// LastModified,Owner,StorageClass,ChecksumAlgorithm,ChecksumType,
// RestoreStatus}, IsTruncated, and the V1 and V2 cursor pairs. The
// top-level Prefix and Delimiter elements are not decoded.
type listBucketResultXML struct {
	XMLName               xml.Name        `xml:"ListBucketResult"`
	IsTruncated           string          `xml:"IsTruncated"`
	Marker                string          `xml:"Marker"`
	NextMarker            string          `xml:"NextMarker"`
	ContinuationToken     string          `xml:"ContinuationToken"`
	NextContinuationToken string          `xml:"NextContinuationToken"`
	CommonPrefixes        []commonPrefixXML `xml:"CommonPrefixes"`
	Contents              []contentsXML   `xml:"Contents"`
}

type commonPrefixXML struct {
	Prefix string `xml:"Prefix"`
}

type contentsXML struct {
	Key               string    `xml:"Key"`
	ETag              *string   `xml:"ETag"`
	Size              *int64    `xml:"Size"`
	LastModified      *string   `xml:"LastModified"`
	StorageClass      *string   `xml:"StorageClass"`
	ChecksumAlgorithm *string   `xml:"ChecksumAlgorithm"`
	ChecksumType      *string   `xml:"ChecksumType"`
	RestoreStatus     *restoreStatusXML `xml:"RestoreStatus"`
	Owner             *ownerXML `xml:"Owner"`
}

// validChecksumAlgorithm and validChecksumType mirror the enum values S3
// actually emits for these two fields; anything else is a ParseError so
// a server protocol change surfaces instead of silently passing through
// an unrecognized tag.
var validChecksumAlgorithm = map[string]bool{
	"CRC32": true, "CRC32C": true, "SHA1": true, "SHA256": true, "CRC64NVME": true,
}

var validChecksumType = map[string]bool{
	"COMPOSITE": true, "FULL_OBJECT": true,
}

type restoreStatusXML struct {
	IsRestoreInProgress *bool   `xml:"IsRestoreInProgress"`
	RestoreExpiryDate   *string `xml:"RestoreExpiryDate"`
}

type ownerXML struct {
	ID          string `xml:"ID"`
	DisplayName string `xml:"DisplayName"`
}

// parseListBucketResult decodes body and validates it: a missing root
// is fatal, IsTruncated must be exactly
// "true"/"false", and a truncated response must carry a non-empty next
// token for the API version in use.
func parseListBucketResult(body []byte, v2 bool, prevToken string) (ListingResult, error) {
	var doc listBucketResultXML
	if err := xml.Unmarshal(body, &doc); err != nil {
		return ListingResult{}, &ParseError{Kind: ParseRootMissing, Err: err}
	}
	if doc.XMLName.Local != "ListBucketResult" {
		return ListingResult{}, &ParseError{Kind: ParseRootMissing}
	}

	var truncated bool
	switch doc.IsTruncated {
	case "true":
		truncated = true
	case "false":
		truncated = false
	default:
		return ListingResult{}, &ParseError{Kind: ParseInvalidBool, Err: fmt.Errorf("IsTruncated=%q", doc.IsTruncated)}
	}

	result := ListingResult{
		IsTruncated: truncated,
		PrevToken:   prevToken,
	}

	if truncated {
		if v2 {
			if doc.NextContinuationToken == "" {
				return ListingResult{}, &ParseError{Kind: ParseMissingContinuation}
			}
			result.NextToken = doc.NextContinuationToken
		} else {
			if doc.NextMarker == "" {
				return ListingResult{}, &ParseError{Kind: ParseMissingContinuation}
			}
			result.NextToken = doc.NextMarker
		}
	}

	for _, cp := range doc.CommonPrefixes {
		result.SubPrefixes = append(result.SubPrefixes, cp.Prefix)
	}

	for _, c := range doc.Contents {
		if c.ChecksumAlgorithm != nil && *c.ChecksumAlgorithm != "" && !validChecksumAlgorithm[*c.ChecksumAlgorithm] {
			return ListingResult{}, &ParseError{Kind: ParseUnknownEnum, Err: fmt.Errorf("ChecksumAlgorithm: %q", *c.ChecksumAlgorithm)}
		}
		if c.ChecksumType != nil && *c.ChecksumType != "" && !validChecksumType[*c.ChecksumType] {
			return ListingResult{}, &ParseError{Kind: ParseUnknownEnum, Err: fmt.Errorf("ChecksumType: %q", *c.ChecksumType)}
		}

		obj := Object{
			Key:          c.Key,
			ETag:         c.ETag,
			Size:         c.Size,
			// StorageClass is deliberately left unvalidated: the upstream
			// C++ Object constructor validates ChecksumAlgorithm and
			// ChecksumType against their enums but never does the same
			// for StorageClass, so an unrecognized value here is passed
			// through rather than rejected.
			StorageClass:      c.StorageClass,
			ChecksumAlgorithm: c.ChecksumAlgorithm,
			ChecksumType:      c.ChecksumType,
		}
		if c.LastModified != nil {
			t, err := time.Parse(time.RFC3339, *c.LastModified)
			if err != nil {
				return ListingResult{}, &ParseError{Kind: ParseTimeInvalid, Err: fmt.Errorf("LastModified: %w", err)}
			}
			obj.LastModified = &t
		}
		if c.Owner != nil {
			obj.Owner = &Owner{ID: c.Owner.ID, DisplayName: c.Owner.DisplayName}
		}
		if c.RestoreStatus != nil && c.RestoreStatus.IsRestoreInProgress != nil {
			status := "in-progress"
			if !*c.RestoreStatus.IsRestoreInProgress {
				status = "complete"
			}
			obj.RestoreStatus = &status
		}
		result.Objects = append(result.Objects, obj)
	}

	return result, nil
}
