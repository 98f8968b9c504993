// Package xmlrecord parses the small attribute-bag XML dialect NetStorage
// responses use into typed records, tolerating non-XML bodies, per spec §4.5.
package xmlrecord

import (
	"bytes"
	"encoding/xml"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Node is a generic parsed XML element: its own tag name, its attributes as
// plain fields (no namespace prefix), and any repeated child elements
// grouped by tag name in encounter order.
type Node struct {
	XMLName  string
	Attrs    map[string]string
	Children map[string][]*Node
}

// Status is returned for non-XML bodies, wrapping just the HTTP status
// code, per spec §4.5.
type Status struct {
	Code int
}

// Record is the top-level decoded response: either a Status (non-XML body)
// or a Node tree (XML body).
type Record struct {
	Status *Status
	Root   *Node
}

// Parse decodes body. If body does not begin (after leading whitespace)
// with "<?xml", it returns a Record carrying only {status:{code:httpStatus}}.
func Parse(body []byte, httpStatus int) (*Record, error) {
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	if !bytes.HasPrefix(trimmed, []byte("<?xml")) {
		return &Record{Status: &Status{Code: httpStatus}}, nil
	}

	dec := xml.NewDecoder(bytes.NewReader(trimmed))

	root, err := parseNode(dec)
	if err != nil {
		return nil, errors.Wrap(err, "xmlrecord: malformed body")
	}

	return &Record{Root: root}, nil
}

// parseNode reads the next StartElement (skipping the XML prolog/procinst)
// and recursively decodes it and its children.
func parseNode(dec *xml.Decoder) (*Node, error) {
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}

		if se, ok := tok.(xml.StartElement); ok {
			return decodeElement(dec, se)
		}
	}
}

func decodeElement(dec *xml.Decoder, se xml.StartElement) (*Node, error) {
	n := &Node{
		XMLName:  se.Name.Local,
		Attrs:    map[string]string{},
		Children: map[string][]*Node{},
	}

	for _, a := range se.Attr {
		n.Attrs[a.Name.Local] = a.Value
	}

	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			child, err := decodeElement(dec, t)
			if err != nil {
				return nil, err
			}

			n.Children[child.XMLName] = append(n.Children[child.XMLName], child)
		case xml.EndElement:
			return n, nil
		}
	}
}

// FileRecord mirrors one <file> element under <stat>, per spec §3's
// RemoteEntry.
type FileRecord struct {
	Name      string
	Type      string
	Size      string
	MTime     string
	MD5       string
	Target    string
	Implicit  string
}

// Files returns every <file> child of the root node, normalizing the
// single-or-repeated XML shape to a sequence, per spec §4.5.
func (r *Record) Files() []FileRecord {
	if r == nil || r.Root == nil {
		return nil
	}

	var out []FileRecord

	for _, f := range r.Root.Children["file"] {
		out = append(out, FileRecord{
			Name:     f.Attrs["name"],
			Type:     f.Attrs["type"],
			Size:     f.Attrs["size"],
			MTime:    f.Attrs["mtime"],
			MD5:      f.Attrs["md5"],
			Target:   f.Attrs["target"],
			Implicit: f.Attrs["implicit"],
		})
	}

	return out
}

// DirectoryRecord mirrors the <stat> root when it describes a directory
// in aggregate (bytes/files), per spec §3.
type DirectoryRecord struct {
	Bytes string
	Files string
}

// Directory returns the root node's own directory-aggregate attributes,
// if the root carries them.
func (r *Record) Directory() (DirectoryRecord, bool) {
	if r == nil || r.Root == nil {
		return DirectoryRecord{}, false
	}

	b, hasBytes := r.Root.Attrs["bytes"]
	f, hasFiles := r.Root.Attrs["files"]

	if r.Root.XMLName != "stat" && r.Root.XMLName != "directory" {
		return DirectoryRecord{}, false
	}

	if !hasBytes && !hasFiles {
		return DirectoryRecord{}, false
	}

	return DirectoryRecord{Bytes: b, Files: f}, true
}

// DUInfoRecord mirrors the <du-info> element returned by "du".
type DUInfoRecord struct {
	Files string
	Bytes string
}

// DUInfo returns the <du-info> child of the root, if present.
func (r *Record) DUInfo() (DUInfoRecord, bool) {
	if r == nil || r.Root == nil {
		return DUInfoRecord{}, false
	}

	children := r.Root.Children["du-info"]
	if len(children) == 0 {
		return DUInfoRecord{}, false
	}

	n := children[0]

	return DUInfoRecord{Files: n.Attrs["files"], Bytes: n.Attrs["bytes"]}, true
}

// StatusCode returns a non-XML body's {status:{code}} value.
func (r *Record) StatusCode() (int, bool) {
	if r == nil || r.Status == nil {
		return 0, false
	}

	return r.Status.Code, true
}

// ParseSize parses a RemoteEntry's decimal-digit size string, defaulting to
// 0 for an empty or malformed value, per spec §4.8's aggregation rule.
func ParseSize(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}

	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}

	return v
}
