package s3client

import "testing"

func TestParseListBucketResult_Truncated(t *testing.T) {
	body := []byte(`<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult>
  <IsTruncated>true</IsTruncated>
  <NextContinuationToken>T1</NextContinuationToken>
  <CommonPrefixes><Prefix>a/</Prefix></CommonPrefixes>
  <CommonPrefixes><Prefix>b/</Prefix></CommonPrefixes>
  <Contents>
    <Key>a/one.txt</Key>
    <ETag>"abc123"</ETag>
    <Size>42</Size>
  </Contents>
</ListBucketResult>`)

	result, err := parseListBucketResult(body, true, "")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !result.IsTruncated {
		t.Fatal("expected IsTruncated = true")
	}
	if result.NextToken != "T1" {
		t.Fatalf("NextToken = %q, want T1", result.NextToken)
	}
	if len(result.SubPrefixes) != 2 || result.SubPrefixes[0] != "a/" || result.SubPrefixes[1] != "b/" {
		t.Fatalf("SubPrefixes = %v", result.SubPrefixes)
	}
	if len(result.Objects) != 1 || result.Objects[0].Key != "a/one.txt" {
		t.Fatalf("Objects = %v", result.Objects)
	}
	if result.Objects[0].Size == nil || *result.Objects[0].Size != 42 {
		t.Fatalf("Size = %v", result.Objects[0].Size)
	}
}

func TestParseListBucketResult_NotTruncated(t *testing.T) {
	body := []byte(`<ListBucketResult><IsTruncated>false</IsTruncated></ListBucketResult>`)
	result, err := parseListBucketResult(body, true, "T0")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if result.IsTruncated {
		t.Fatal("expected IsTruncated = false")
	}
	if result.NextToken != "" {
		t.Fatalf("NextToken = %q, want empty", result.NextToken)
	}
	if result.PrevToken != "T0" {
		t.Fatalf("PrevToken = %q, want T0", result.PrevToken)
	}
}

func TestParseListBucketResult_MissingRoot(t *testing.T) {
	body := []byte(`<NotTheRightRoot></NotTheRightRoot>`)
	_, err := parseListBucketResult(body, true, "")
	var pe *ParseError
	if !asParseError(err, &pe) || pe.Kind != ParseRootMissing {
		t.Fatalf("expected ParseError(RootMissing), got %v", err)
	}
}

func TestParseListBucketResult_InvalidBool(t *testing.T) {
	body := []byte(`<ListBucketResult><IsTruncated>maybe</IsTruncated></ListBucketResult>`)
	_, err := parseListBucketResult(body, true, "")
	var pe *ParseError
	if !asParseError(err, &pe) || pe.Kind != ParseInvalidBool {
		t.Fatalf("expected ParseError(InvalidBool), got %v", err)
	}
}

func TestParseListBucketResult_MissingContinuation(t *testing.T) {
	body := []byte(`<ListBucketResult><IsTruncated>true</IsTruncated></ListBucketResult>`)
	_, err := parseListBucketResult(body, true, "")
	var pe *ParseError
	if !asParseError(err, &pe) || pe.Kind != ParseMissingContinuation {
		t.Fatalf("expected ParseError(MissingContinuation), got %v", err)
	}
}

func TestParseListBucketResult_V1MarkerPair(t *testing.T) {
	body := []byte(`<ListBucketResult><IsTruncated>true</IsTruncated><NextMarker>m2</NextMarker></ListBucketResult>`)
	result, err := parseListBucketResult(body, false, "m1")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if result.NextToken != "m2" || result.PrevToken != "m1" {
		t.Fatalf("tokens = prev=%q next=%q", result.PrevToken, result.NextToken)
	}
}

func TestParseListBucketResult_UnknownChecksumAlgorithm(t *testing.T) {
	body := []byte(`<ListBucketResult><IsTruncated>false</IsTruncated>
<Contents><Key>k</Key><ChecksumAlgorithm>MD5</ChecksumAlgorithm></Contents>
</ListBucketResult>`)
	_, err := parseListBucketResult(body, true, "")
	var pe *ParseError
	if !asParseError(err, &pe) || pe.Kind != ParseUnknownEnum {
		t.Fatalf("expected ParseError(UnknownEnum), got %v", err)
	}
}

func TestParseListBucketResult_UnknownChecksumType(t *testing.T) {
	body := []byte(`<ListBucketResult><IsTruncated>false</IsTruncated>
<Contents><Key>k</Key><ChecksumType>PARTIAL</ChecksumType></Contents>
</ListBucketResult>`)
	_, err := parseListBucketResult(body, true, "")
	var pe *ParseError
	if !asParseError(err, &pe) || pe.Kind != ParseUnknownEnum {
		t.Fatalf("expected ParseError(UnknownEnum), got %v", err)
	}
}

func TestParseListBucketResult_ValidChecksumFields(t *testing.T) {
	body := []byte(`<ListBucketResult><IsTruncated>false</IsTruncated>
<Contents><Key>k</Key><ChecksumAlgorithm>SHA256</ChecksumAlgorithm><ChecksumType>FULL_OBJECT</ChecksumType></Contents>
</ListBucketResult>`)
	result, err := parseListBucketResult(body, true, "")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	obj := result.Objects[0]
	if obj.ChecksumAlgorithm == nil || *obj.ChecksumAlgorithm != "SHA256" {
		t.Fatalf("ChecksumAlgorithm = %v", obj.ChecksumAlgorithm)
	}
	if obj.ChecksumType == nil || *obj.ChecksumType != "FULL_OBJECT" {
		t.Fatalf("ChecksumType = %v", obj.ChecksumType)
	}
}

func TestParseListBucketResult_InvalidLastModified(t *testing.T) {
	body := []byte(`<ListBucketResult><IsTruncated>false</IsTruncated>
<Contents><Key>k</Key><LastModified>not-a-time</LastModified></Contents>
</ListBucketResult>`)
	_, err := parseListBucketResult(body, true, "")
	var pe *ParseError
	if !asParseError(err, &pe) || pe.Kind != ParseTimeInvalid {
		t.Fatalf("expected ParseError(TimeInvalid), got %v", err)
	}
}

func asParseError(err error, target **ParseError) bool {
	pe, ok := err.(*ParseError)
	if !ok {
		return false
	}
	*target = pe
	return true
}
