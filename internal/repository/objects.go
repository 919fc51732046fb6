package repository

import (
	"encoding/xml"
	"strconv"
	"strings"
)

// ObjectInfo is one entry of an object listing.
type ObjectInfo struct {
	Identifier string `xml:"identifier"`
	FormatID   string `xml:"formatId"`
}

// ObjectList is the parsed listing document.
type ObjectList struct {
	CountAttr *string      `xml:"count,attr"`
	Objects   []ObjectInfo `xml:"objectInfo"`
}

// ParseObjectList decodes a listing body.
func ParseObjectList(body []byte) (*ObjectList, error) {
	var list ObjectList
	if err := xml.Unmarshal(body, &list); err != nil {
		return nil, &MalformedResponseError{Op: "list objects", Body: body, Err: err}
	}

	return &list, nil
}

// Count returns the root count attribute.
func (l *ObjectList) Count() (int, error) {
	if l.CountAttr == nil {
		return 0, &MissingAttributeError{Attr: "count"}
	}

	n, err := strconv.Atoi(strings.TrimSpace(*l.CountAttr))
	if err != nil {
		return 0, &MissingAttributeError{Attr: "count"}
	}

	return n, nil
}

// Identifiers returns every identifier in document order.
func (l *ObjectList) Identifiers() []string {
	ids := make([]string, 0, len(l.Objects))
	for _, o := range l.Objects {
		ids = append(ids, o.Identifier)
	}

	return ids
}

// QualifyingPIDs returns identifiers whose format is exactly formatID and
// which start with any of prefixes, in document order. Duplicates are
// kept.
func (l *ObjectList) QualifyingPIDs(formatID string, prefixes []string) []string {
	var pids []string

	for _, o := range l.Objects {
		if o.FormatID != formatID {
			continue
		}

		for _, p := range prefixes {
			if strings.HasPrefix(o.Identifier, p) {
				pids = append(pids, o.Identifier)
				break
			}
		}
	}

	return pids
}
