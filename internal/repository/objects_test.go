package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const emlFormat = "eml://ecoinformatics.org/eml-2.1.1"

const listingXML = `<?xml version="1.0" encoding="UTF-8"?>
<d1:objectList xmlns:d1="http://ns.dataone.org/service/types/v1" count="5" start="0" total="5">
  <objectInfo>
    <identifier>arctic-data.7.1</identifier>
    <formatId>eml://ecoinformatics.org/eml-2.1.1</formatId>
  </objectInfo>
  <objectInfo>
    <identifier>arctic-data.8.1</identifier>
    <formatId>text/csv</formatId>
  </objectInfo>
  <objectInfo>
    <identifier>doi:10.18739/A2X</identifier>
    <formatId>eml://ecoinformatics.org/eml-2.1.1</formatId>
  </objectInfo>
  <objectInfo>
    <identifier>autogen.2016051712345.1</identifier>
    <formatId>eml://ecoinformatics.org/eml-2.1.1</formatId>
  </objectInfo>
  <objectInfo>
    <identifier>arctic-data.7.1</identifier>
    <formatId>eml://ecoinformatics.org/eml-2.1.1</formatId>
  </objectInfo>
</d1:objectList>`

func TestParseObjectList(t *testing.T) {
	list, err := ParseObjectList([]byte(listingXML))
	require.NoError(t, err)

	n, err := list.Count()
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Len(t, list.Identifiers(), 5)
	assert.Equal(t, "arctic-data.8.1", list.Identifiers()[1])
}

func TestObjectList_QualifyingPIDs(t *testing.T) {
	list, err := ParseObjectList([]byte(listingXML))
	require.NoError(t, err)

	got := list.QualifyingPIDs(emlFormat, []string{"arctic-data.", "autogen."})
	assert.Equal(t, []string{
		"arctic-data.7.1",
		"autogen.2016051712345.1",
		"arctic-data.7.1",
	}, got, "document order with duplicates")

	assert.Empty(t, list.QualifyingPIDs("eml://ecoinformatics.org/eml-2.1.0", []string{"arctic-data."}))
	assert.Empty(t, list.QualifyingPIDs(emlFormat, nil))
}

func TestObjectList_CountMissing(t *testing.T) {
	list, err := ParseObjectList([]byte(`<objectList><objectInfo><identifier>x</identifier></objectInfo></objectList>`))
	require.NoError(t, err)

	_, err = list.Count()

	var missing *MissingAttributeError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "count", missing.Attr)

	bad := "many"
	list.CountAttr = &bad
	_, err = list.Count()
	require.ErrorAs(t, err, &missing)
}

func TestObjectList_EmptyListing(t *testing.T) {
	list, err := ParseObjectList([]byte(`<d1:objectList xmlns:d1="http://ns.dataone.org/service/types/v1" count="0" start="0" total="0"/>`))
	require.NoError(t, err)

	n, err := list.Count()
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, list.QualifyingPIDs(emlFormat, []string{"arctic-data."}))
}

func TestParseObjectList_Malformed(t *testing.T) {
	_, err := ParseObjectList([]byte("<html><body>Service Unavailable"))

	var malformed *MalformedResponseError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, "list objects", malformed.Op)
	assert.Contains(t, string(malformed.Body), "Service Unavailable")
}
