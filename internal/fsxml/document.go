package fsxml

import (
	"bytes"
	"encoding/xml"
)

// Document is the instruction tree returned to the switch's XML lookup.
//
// Every attribute value passes through encoding/xml, so escaping happens once
// at Render time and call sites only ever deal in plain strings.
type Document struct {
	XMLName  xml.Name  `xml:"document"`
	Type     string    `xml:"type,attr"`
	Sections []Section `xml:"section"`
}

const documentType = "freeswitch/xml"

const (
	SectionDirectory = "directory"
	SectionDialplan  = "dialplan"
	SectionResult    = "result"
)

type Section struct {
	Name        string    `xml:"name,attr"`
	Description string    `xml:"description,attr,omitempty"`
	Domains     []Domain  `xml:"domain,omitempty"`
	Contexts    []Context `xml:"context,omitempty"`
	Result      *Result   `xml:"result,omitempty"`
}

type Result struct {
	Status string `xml:"status,attr"`
}

// --- directory ---

type Domain struct {
	Name      string     `xml:"name,attr"`
	Params    []Param    `xml:"params>param"`
	Variables []Variable `xml:"variables>variable"`
	Groups    []Group    `xml:"groups>group"`
}

type Group struct {
	Name  string `xml:"name,attr"`
	Users []User `xml:"users>user"`
}

type User struct {
	ID        string     `xml:"id,attr"`
	Params    []Param    `xml:"params>param"`
	Variables []Variable `xml:"variables>variable"`
}

type Param struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

type Variable struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// --- dialplan ---

type Context struct {
	Name       string      `xml:"name,attr"`
	Extensions []Extension `xml:"extension"`
}

type Extension struct {
	Name       string      `xml:"name,attr"`
	Conditions []Condition `xml:"condition"`
}

// Condition is a guarded block. With no Field/guard attributes it always
// matches; AntiActions run only when the guard fails.
type Condition struct {
	Field      string `xml:"field,attr,omitempty"`
	Expression string `xml:"expression,attr,omitempty"`
	Wday       string `xml:"wday,attr,omitempty"`
	TimeOfDay  string `xml:"time-of-day,attr,omitempty"`
	Break      string `xml:"break,attr,omitempty"`

	Actions     []Action `xml:"action"`
	AntiActions []Action `xml:"anti-action"`
}

// Guarded reports whether the block depends on a runtime test.
func (c Condition) Guarded() bool {
	return c.Field != "" || c.Wday != "" || c.TimeOfDay != ""
}

type Action struct {
	Application string `xml:"application,attr"`
	Data        string `xml:"data,attr,omitempty"`
}

// Render serializes the document with an XML header.
func Render(d *Document) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(d); err != nil {
		return nil, err
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
