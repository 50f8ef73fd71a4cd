// Package signer implements AWS Signature Version 4 for requests issued
// by the listing client. It is deliberately hand-rolled: the whole point
// of this project is the crawler and the signer/listing client it sits
// on, not a thin wrapper over an existing SDK.
package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"
)

const (
	algorithm  = "AWS4-HMAC-SHA256"
	timeFormat = "20060102T150405Z"
	dateFormat = "20060102"
)

// EmptyStringSHA256 is the hex SHA-256 of the empty string, used as the
// payload hash for bodyless GET requests.
const EmptyStringSHA256 = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

// Credentials is the immutable record spec.md §3 describes. It is
// constructed once by the bootstrap collaborator and shared read-only
// across every Worker.
type Credentials struct {
	AccessKey string
	SecretKey string
	Region    string
	Endpoint  string
}

// Signer derives SigV4 Authorization headers for prepared requests
// targeting the S3 service.
type Signer struct {
	creds Credentials
}

// New returns a Signer bound to the given credentials.
func New(creds Credentials) *Signer {
	return &Signer{creds: creds}
}

// SignRequest signs req in place: it sets x-amz-date, x-amz-content-sha256,
// Accept-Encoding, and Authorization. payload is the request body (nil/empty
// for the listing requests this client issues). If the caller has already
// set x-amz-content-sha256 on req (e.g. to sign a body it streams rather
// than holds in memory), that value is used as the payload-hash line
// instead of hashing payload. now is the wall-clock instant used for the
// timestamp and credential scope, passed explicitly so signing is a pure,
// testable function of its inputs (spec.md §8 invariant 4: identical
// output for identical (secret, date, region, service)).
func (s *Signer) SignRequest(req *http.Request, payload []byte, now time.Time) (string, error) {
	now = now.UTC()
	payloadHash := req.Header.Get("x-amz-content-sha256")
	if payloadHash == "" {
		payloadHash = sha256Hex(payload)
	}

	req.Header.Set("x-amz-date", now.Format(timeFormat))
	req.Header.Set("x-amz-content-sha256", payloadHash)
	req.Header.Set("Accept-Encoding", "identity")
	if req.Header.Get("host") == "" && req.Header.Get("Host") == "" {
		req.Header.Set("host", req.URL.Host)
	}

	canonicalHeaders, signedHeaders := canonicalizeHeaders(req)
	canonicalRequest := buildCanonicalRequest(req, canonicalHeaders, signedHeaders, payloadHash)

	scope := credentialScope(now, s.creds.Region)
	stringToSign := buildStringToSign(now, scope, canonicalRequest)

	signingKey := deriveSigningKey(s.creds.SecretKey, now, s.creds.Region)
	signature := hex.EncodeToString(hmacSHA256(signingKey, stringToSign))

	auth := fmt.Sprintf("%s Credential=%s/%s,SignedHeaders=%s,Signature=%s",
		algorithm, s.creds.AccessKey, scope, signedHeaders, signature)
	req.Header.Set("Authorization", auth)
	return auth, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func hmacSHA256(key []byte, data string) []byte {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(data))
	return h.Sum(nil)
}

// deriveSigningKey computes k1=HMAC("AWS4"+secret, date), k2=HMAC(k1,
// region), k3=HMAC(k2, "s3"), signing=HMAC(k3, "aws4_request"). It is a
// pure function of (secret, date, region) — spec.md §8 invariant 4.
func deriveSigningKey(secretKey string, t time.Time, region string) []byte {
	kDate := hmacSHA256([]byte("AWS4"+secretKey), t.Format(dateFormat))
	kRegion := hmacSHA256(kDate, region)
	kService := hmacSHA256(kRegion, "s3")
	return hmacSHA256(kService, "aws4_request")
}

func credentialScope(t time.Time, region string) string {
	return fmt.Sprintf("%s/%s/s3/aws4_request", t.Format(dateFormat), region)
}

func buildStringToSign(t time.Time, scope, canonicalRequest string) string {
	hash := sha256Hex([]byte(canonicalRequest))
	return fmt.Sprintf("%s\n%s\n%s\n%s", algorithm, t.Format(timeFormat), scope, hash)
}

// buildCanonicalRequest assembles the six-line canonical request per
// spec.md §4.1.1. The canonical URI and query string are taken from
// req.URL, which the Listing Client is responsible for having already
// percent-encoded per its own rules (§4.2). The query string is decoded
// and re-encoded with EncodeQueryComponent, the same rules the client
// uses, then sorted (see canonicalQueryString).
func buildCanonicalRequest(req *http.Request, canonicalHeaders, signedHeaders, payloadHash string) string {
	uri := req.URL.EscapedPath()
	if uri == "" {
		uri = "/"
	}
	return strings.Join([]string{
		req.Method,
		uri,
		canonicalQueryString(req),
		canonicalHeaders,
		signedHeaders,
		payloadHash,
	}, "\n")
}

// canonicalQueryString sorts query parameters by the byte value of their
// percent-encoded key, rendering "key=value" joined by "&". Missing
// values render empty, matching spec.md §4.1.1.
func canonicalQueryString(req *http.Request) string {
	if req.URL.RawQuery == "" {
		return ""
	}
	query := req.URL.Query()
	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return encodeQueryComponent(keys[i]) < encodeQueryComponent(keys[j])
	})

	var parts []string
	for _, k := range keys {
		vals := query[k]
		if len(vals) == 0 {
			parts = append(parts, fmt.Sprintf("%s=", encodeQueryComponent(k)))
			continue
		}
		for _, v := range vals {
			parts = append(parts, fmt.Sprintf("%s=%s", encodeQueryComponent(k), encodeQueryComponent(v)))
		}
	}
	return strings.Join(parts, "&")
}

// canonicalizeHeaders returns the canonical headers block (lowercased
// name, trimmed value, "\n"-terminated, sorted by name) and the
// semicolon-joined signed-headers list. The signed-headers set is host,
// every x-amz-* header, and content-md5 when present (spec.md §4.1.2).
// Multi-valued headers are not folded — the first occurrence wins; this
// is a documented limitation (spec.md §9 open question, see DESIGN.md)
// that does not matter for the listing traffic this client issues.
func canonicalizeHeaders(req *http.Request) (canonicalHeaders, signedHeaders string) {
	values := make(map[string]string)
	var names []string

	add := func(name, value string) {
		lower := strings.ToLower(name)
		if _, ok := values[lower]; !ok {
			names = append(names, lower)
		}
		values[lower] = trimHeaderValue(value)
	}

	if h := req.Header.Get("host"); h != "" {
		add("host", h)
	} else if req.Host != "" {
		add("host", req.Host)
	} else {
		add("host", req.URL.Host)
	}

	for name, vals := range req.Header {
		lower := strings.ToLower(name)
		if lower == "host" {
			continue
		}
		if strings.HasPrefix(lower, "x-amz-") || lower == "content-md5" {
			if len(vals) > 0 {
				add(name, vals[0])
			}
		}
	}

	sort.Strings(names)

	var sb strings.Builder
	for _, name := range names {
		sb.WriteString(name)
		sb.WriteString(":")
		sb.WriteString(values[name])
		sb.WriteString("\n")
	}
	return sb.String(), strings.Join(names, ";")
}

func trimHeaderValue(v string) string {
	return strings.TrimFunc(v, func(r rune) bool { return r == ' ' })
}
