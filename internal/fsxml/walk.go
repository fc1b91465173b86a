package fsxml

import "strings"

// Actions returns every action of every dialplan condition in document order.
func (d *Document) Actions() []Action {
	var out []Action
	for _, c := range d.Conditions() {
		out = append(out, c.Actions...)
	}
	return out
}

// Conditions returns every dialplan condition in document order.
func (d *Document) Conditions() []Condition {
	var out []Condition
	for _, s := range d.Sections {
		for _, ctx := range s.Contexts {
			for _, ext := range ctx.Extensions {
				out = append(out, ext.Conditions...)
			}
		}
	}
	return out
}

// Users returns every directory user in document order.
func (d *Document) Users() []User {
	var out []User
	for _, s := range d.Sections {
		for _, dom := range s.Domains {
			for _, g := range dom.Groups {
				out = append(out, g.Users...)
			}
		}
	}
	return out
}

// Variable returns the value of the last action that sets name, which is the
// value the variable holds once every action has run.
func (d *Document) Variable(name string) (string, bool) {
	prefix := name + "="
	value, found := "", false
	for _, a := range d.Actions() {
		if a.Application == "set" && strings.HasPrefix(a.Data, prefix) {
			value, found = strings.TrimPrefix(a.Data, prefix), true
		}
	}
	return value, found
}
