package s3client

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/FairForge/s3sweep/internal/signer"
)

// buildQuery renders the query string in a fixed order: list-type (V2
// only), max-keys, the pagination cursor,
// version-specific extras, delimiter, encoding-type, prefix. S3 does
// not require this order, but the signer's canonical query string is
// built by re-sorting these same parameters — going through the motions
// in a fixed, readable order here keeps request construction
// deterministic and easy to diff in logs.
func buildQuery(p Params, v2 bool) string {
	var parts []string

	add := func(key, value string) {
		parts = append(parts, fmt.Sprintf("%s=%s", key, signer.EncodeQueryComponent(value)))
	}

	if v2 {
		add("list-type", "2")
	}
	add("max-keys", strconv.Itoa(p.MaxKeys))

	if v2 {
		if p.ContinuationToken != "" {
			add("continuation-token", p.ContinuationToken)
		}
	} else if p.Marker != "" {
		add("marker", p.Marker)
	}

	if v2 {
		if p.FetchOwner {
			add("fetch-owner", "true")
		}
		if p.StartAfter != "" {
			add("start-after", p.StartAfter)
		}
	}

	if p.Delimiter != "" {
		add("delimiter", p.Delimiter)
	}
	if p.EncodingType != "" {
		add("encoding-type", p.EncodingType)
	}

	if p.Prefix != "" {
		if p.EncodingType == "url" {
			// The server is already being told to URL-encode identifiers
			// in its response; passing the prefix verbatim here matches
			// that contract rather than double-encoding it.
			parts = append(parts, "prefix="+p.Prefix)
		} else {
			add("prefix", p.Prefix)
		}
	}

	return strings.Join(parts, "&")
}
