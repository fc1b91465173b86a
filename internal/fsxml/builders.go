package fsxml

import (
	"fmt"
	"strconv"
)

func newDocument(sections ...Section) *Document {
	return &Document{Type: documentType, Sections: sections}
}

// EmptyDirectory is returned for unknown or non-operational domains.
func EmptyDirectory() *Document {
	return newDocument(Section{Name: SectionDirectory})
}

// EmptyDialplan is returned when no operational tenant owns the domain.
func EmptyDialplan() *Document {
	return newDocument(Section{Name: SectionDialplan})
}

// NotFound is the switch's standard "fall back to local config" answer.
func NotFound() *Document {
	return newDocument(Section{Name: SectionResult, Result: &Result{Status: "not found"}})
}

// Directory wraps domains into a directory document.
func Directory(domains ...Domain) *Document {
	return newDocument(Section{Name: SectionDirectory, Domains: domains})
}

// Dialplan wraps one context into a dialplan document.
func Dialplan(ctx Context) *Document {
	return newDocument(Section{Name: SectionDialplan, Contexts: []Context{ctx}})
}

// --- actions ---

func Bridge(target string) Action { return Action{Application: "bridge", Data: target} }

func Playback(file string) Action { return Action{Application: "playback", Data: file} }

func RecordSession(path string) Action { return Action{Application: "record_session", Data: path} }

func Respond(code int, reason string) Action {
	return Action{Application: "respond", Data: strconv.Itoa(code) + " " + reason}
}

func Set(name, value string) Action {
	return Action{Application: "set", Data: name + "=" + value}
}

func Log(level, message string) Action {
	return Action{Application: "log", Data: level + " " + message}
}

// Limit admits the call against a per-realm ceiling; over the ceiling the
// switch hangs up with onExceed (a hangup cause prefixed with "!").
func Limit(backend, realm, resource string, max int, onExceed string) Action {
	return Action{Application: "limit", Data: fmt.Sprintf("%s %s %s %d %s", backend, realm, resource, max, onExceed)}
}

func Voicemail(profile, domain, mailbox string) Action {
	return Action{Application: "voicemail", Data: profile + " " + domain + " " + mailbox}
}

func IVR(menu string) Action { return Action{Application: "ivr", Data: menu} }

// HTTPNotify fires an out-of-band HTTP request from the switch.
func HTTPNotify(url string) Action { return Action{Application: "curl", Data: url + " post"} }

// UserAddress is the dial string for a registered directory user.
func UserAddress(number, domain string) string {
	return "user/" + number + "@" + domain
}
