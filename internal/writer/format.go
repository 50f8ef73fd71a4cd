package writer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/FairForge/s3sweep/internal/s3client"
)

// Format selects the Writer's output encoding.
type Format int

const (
	// Plain writes one key per line.
	Plain Format = iota
	// JSON writes one JSON object per line (JSON Lines).
	JSON
)

// jsonObject mirrors s3client.Object with omitempty tags so absent
// fields are suppressed, per the JSON format's contract.
type jsonObject struct {
	Key               string  `json:"key"`
	ETag              *string `json:"etag,omitempty"`
	Size              *int64  `json:"size,omitempty"`
	LastModified      *string `json:"last_modified,omitempty"`
	StorageClass      *string `json:"storage_class,omitempty"`
	ChecksumAlgorithm *string `json:"checksum_algorithm,omitempty"`
	ChecksumType      *string `json:"checksum_type,omitempty"`
	OwnerID           *string `json:"owner_id,omitempty"`
	OwnerDisplayName  *string `json:"owner_display_name,omitempty"`
	RestoreStatus     *string `json:"restore_status,omitempty"`
}

// FormatBatch serializes objects per format. Workers call this locally,
// once per listing response, before pushing the result to the Writer.
func FormatBatch(objects []s3client.Object, format Format, logger *zap.Logger) []byte {
	var buf bytes.Buffer
	for _, obj := range objects {
		switch format {
		case JSON:
			writeJSONLine(&buf, obj)
		default:
			writePlainLine(&buf, obj, logger)
		}
	}
	return buf.Bytes()
}

func writePlainLine(buf *bytes.Buffer, obj s3client.Object, logger *zap.Logger) {
	if obj.Key == "" {
		if logger != nil {
			logger.Warn("skipping object with no key")
		}
		return
	}
	buf.WriteString(obj.Key)
	buf.WriteByte('\n')
}

func writeJSONLine(buf *bytes.Buffer, obj s3client.Object) {
	jo := jsonObject{
		Key:               obj.Key,
		ETag:              obj.ETag,
		Size:              obj.Size,
		StorageClass:      obj.StorageClass,
		ChecksumAlgorithm: obj.ChecksumAlgorithm,
		ChecksumType:      obj.ChecksumType,
		RestoreStatus:     obj.RestoreStatus,
	}
	if obj.LastModified != nil {
		s := obj.LastModified.Format(time.RFC3339)
		jo.LastModified = &s
	}
	if obj.Owner != nil {
		jo.OwnerID = &obj.Owner.ID
		jo.OwnerDisplayName = &obj.Owner.DisplayName
	}

	enc, err := json.Marshal(jo)
	if err != nil {
		fmt.Fprintf(buf, `{"error":"marshal failed for key %q"}`+"\n", obj.Key)
		return
	}
	buf.Write(enc)
	buf.WriteByte('\n')
}
